package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/sanitize"
)

// MissingPhoneMessage is the error text returned to the form tool.
const MissingPhoneMessage = "Phone number is required"

// ErrMissingPhone is returned when no tier yields a phone number.
var ErrMissingPhone = errors.New("phone number is required")

// LeadSignal is a Typebot capture normalized into lead attributes.
type LeadSignal struct {
	PhoneNumber string
	ResultID    string
	Name        string
	Email       string
	Data        leaddomain.TypebotData
}

// Update converts the signal into a non-destructive lead update.
func (s LeadSignal) Update() leaddomain.Update {
	u := leaddomain.Update{Name: optional(s.Name), Email: optional(s.Email)}
	if !s.Data.IsEmpty() {
		data := s.Data
		u.TypebotData = &data
	}
	return u
}

// attributeOrder fixes lookup order so specific budget keys are claimed
// before the generic budget synonyms can match them.
var attributeOrder = []string{
	"name", "email", "transactionType", "propertyType",
	"budgetPurchase", "budgetRent", "budget",
	"location", "timeframe", "financing", "message",
}

// field is one key/value candidate from a payload tier.
type field struct {
	key   string
	value string
}

// Extractor normalizes Typebot payloads. Lookups run over three tiers in
// order: direct fields, answer entries, then variables.
type Extractor struct {
	phoneTokens []string
	synonyms    map[string][]string
	normalizer  phone.Normalizer
}

func NewExtractor(t config.TypebotTuning, normalizer phone.Normalizer) *Extractor {
	synonyms := make(map[string][]string, len(t.Synonyms))
	for attr, names := range t.Synonyms {
		synonyms[attr] = lowerAll(names)
	}
	return &Extractor{phoneTokens: lowerAll(t.PhoneTokens), synonyms: synonyms, normalizer: normalizer}
}

// Extract returns the lead signal or ErrMissingPhone. A phone-like value that
// cannot be a real number counts as missing.
func (e *Extractor) Extract(body []byte) (LeadSignal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return LeadSignal{}, ErrMissingPhone
	}

	tiers := [][]field{directFields(payload), answerFields(payload["answers"]), variableFields(payload["variables"])}

	var sig LeadSignal
	for _, tier := range tiers {
		if v, _ := lookup(tier, e.phoneTokens, nil); v != "" {
			if canonical := e.normalizer.Canonical(v); e.normalizer.Plausible(canonical) {
				sig.PhoneNumber = canonical
				break
			}
		}
	}
	if sig.PhoneNumber == "" {
		return LeadSignal{}, ErrMissingPhone
	}
	sig.ResultID = stringify(payload["resultId"])

	values := e.attributes(tiers)
	sig.Name = sanitize.Text(values["name"])
	sig.Email = sanitize.Text(values["email"])
	sig.Data = leaddomain.TypebotData{
		TransactionType: optional(values["transactionType"]),
		PropertyType:    optional(values["propertyType"]),
		Budget:          optional(values["budget"]),
		BudgetPurchase:  optional(values["budgetPurchase"]),
		BudgetRent:      optional(values["budgetRent"]),
		Location:        optional(values["location"]),
		Timeframe:       optional(values["timeframe"]),
		Financing:       optional(values["financing"]),
		Message:         optional(values["message"]),
	}
	return sig, nil
}

func (e *Extractor) attributes(tiers [][]field) map[string]string {
	out := make(map[string]string, len(attributeOrder))
	claimed := make([]map[string]bool, len(tiers))
	for i := range claimed {
		claimed[i] = map[string]bool{}
	}
	for _, attr := range attributeOrder {
		names := e.synonyms[attr]
		if len(names) == 0 {
			continue
		}
		for i, tier := range tiers {
			if v, key := lookup(tier, names, claimed[i]); v != "" {
				out[attr] = v
				claimed[i][key] = true
				break
			}
		}
	}
	return out
}

// lookup returns the first non-empty value whose key contains one of the
// names, trying names in order. Keys in skip are not considered.
func lookup(fields []field, names []string, skip map[string]bool) (string, string) {
	for _, name := range names {
		needle := compact(name)
		for _, f := range fields {
			if f.value == "" || skip[f.key] {
				continue
			}
			if strings.Contains(compact(f.key), needle) {
				return f.value, f.key
			}
		}
	}
	return "", ""
}

func directFields(payload map[string]any) []field {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == "answers" || k == "variables" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]field, 0, len(keys))
	for _, k := range keys {
		out = append(out, field{key: k, value: stringify(payload[k])})
	}
	return out
}

// answerFields reads [{blockId|variableId|variableName|question, value|answer}].
func answerFields(raw any) []field {
	items, _ := raw.([]any)
	out := make([]field, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var ids []string
		for _, k := range []string{"blockId", "variableId", "variableName", "variable", "question", "field", "name"} {
			if v := stringify(entry[k]); v != "" {
				ids = append(ids, v)
			}
		}
		value := firstString(entry, "value", "answer", "content", "text")
		out = append(out, field{key: strings.Join(ids, " "), value: value})
	}
	return out
}

// variableFields reads either [{name, value}] or a {name: value} object.
func variableFields(raw any) []field {
	switch v := raw.(type) {
	case []any:
		out := make([]field, 0, len(v))
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, field{key: stringify(entry["name"]), value: stringify(entry["value"])})
		}
		return out
	case map[string]any:
		return directFields(v)
	}
	return nil
}

func firstString(entry map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringify(entry[k]); v != "" {
			return v
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// compact lowercases and drops separators so "e-mail", "e_mail" and
// "E Mail" compare equal.
func compact(s string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// optional cleans form markup and maps blank values to nil.
func optional(s string) *string {
	s = sanitize.Text(s)
	if s == "" {
		return nil
	}
	return &s
}

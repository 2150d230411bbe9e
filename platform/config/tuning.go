package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds operational knobs that change without code changes:
// sanitizer phrases, scoring weights, Typebot synonyms and reply texts.
type Tuning struct {
	Sanitizer SanitizerTuning `yaml:"sanitizer"`
	Scoring   ScoringTuning   `yaml:"scoring"`
	Typebot   TypebotTuning   `yaml:"typebot"`
	Replies   ReplyTuning     `yaml:"replies"`
}

type SanitizerTuning struct {
	LeakPhrases []string `yaml:"leak_phrases"`
	AckToken    string   `yaml:"ack_token"`
}

// ScoringTuning carries every weight and threshold the lead scorer uses.
type ScoringTuning struct {
	Base              int           `yaml:"base"`
	Name              int           `yaml:"name"`
	Email             int           `yaml:"email"`
	Budget            int           `yaml:"budget"`
	Timeframe         int           `yaml:"timeframe"`
	UrgentTimeframe   int           `yaml:"urgent_timeframe"`
	Financing         int           `yaml:"financing"`
	ApprovedFinancing int           `yaml:"approved_financing"`
	Location          int           `yaml:"location"`
	PropertyType      int           `yaml:"property_type"`
	TransactionType   int           `yaml:"transaction_type"`
	PerMessage        int           `yaml:"per_message"`
	MessagesCap       int           `yaml:"messages_cap"`
	PropertyEngaged   int           `yaml:"property_engaged"`
	SchedulingIntent  int           `yaml:"scheduling_intent"`
	VisitBooked       int           `yaml:"visit_booked"`
	VisitCancelled    int           `yaml:"visit_cancelled"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	StalePenalty      int           `yaml:"stale_penalty"`
	DormantAfter      time.Duration `yaml:"dormant_after"`
	DormantPenalty    int           `yaml:"dormant_penalty"`
	HotThreshold      int           `yaml:"hot_threshold"`
	WarmThreshold     int           `yaml:"warm_threshold"`
	UrgentKeywords    []string      `yaml:"urgent_keywords"`
	FinancingKeywords []string      `yaml:"approved_financing_keywords"`
}

// TypebotTuning lists the field-name synonyms used to pull lead attributes
// out of free-form Typebot payloads.
type TypebotTuning struct {
	PhoneTokens []string            `yaml:"phone_tokens"`
	Synonyms    map[string][]string `yaml:"synonyms"`
}

// ReplyTuning holds fixed customer-facing texts. Placeholders: {name},
// {property}, {link}, {phone}, {when}.
type ReplyTuning struct {
	GenerationFailure   string `yaml:"generation_failure"`
	SchedulingLink      string `yaml:"scheduling_link"`
	PickProperty        string `yaml:"pick_property"`
	SchedulingFailure   string `yaml:"scheduling_failure"`
	AlreadyBooked       string `yaml:"already_booked"`
	ReminderDayBefore   string `yaml:"reminder_day_before"`
	ReminderHoursBefore string `yaml:"reminder_hours_before"`
}

// RenderReply substitutes {key} placeholders. Unknown placeholders are left as is.
func RenderReply(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(tmpl))
}

// LoadTuning reads the YAML tuning file at path on top of DefaultTuning.
// A missing file yields the defaults.
func LoadTuning(path string) (*Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}

	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if t.Scoring.WarmThreshold > t.Scoring.HotThreshold {
		return nil, fmt.Errorf("tuning: warm_threshold %d exceeds hot_threshold %d", t.Scoring.WarmThreshold, t.Scoring.HotThreshold)
	}
	if t.Sanitizer.AckToken == "" {
		return nil, fmt.Errorf("tuning: sanitizer.ack_token must not be empty")
	}
	return t, nil
}

// DefaultTuning returns the built-in tuning values.
func DefaultTuning() *Tuning {
	return &Tuning{
		Sanitizer: SanitizerTuning{
			LeakPhrases: []string{
				"vou enviar as fotos",
				"vou te enviar as fotos",
				"enviando as fotos",
				"segue as fotos",
				"seguem as fotos",
				"vou mandar as fotos",
				"enviarei as fotos",
				"[enviar_fotos]",
				"send_property_details",
				"shouldsendpropertydetails",
			},
			AckToken: "👍",
		},
		Scoring: ScoringTuning{
			Base:              10,
			Name:              5,
			Email:             5,
			Budget:            15,
			Timeframe:         10,
			UrgentTimeframe:   5,
			Financing:         10,
			ApprovedFinancing: 5,
			Location:          5,
			PropertyType:      5,
			TransactionType:   5,
			PerMessage:        2,
			MessagesCap:       15,
			PropertyEngaged:   5,
			SchedulingIntent:  25,
			VisitBooked:       15,
			VisitCancelled:    -10,
			StaleAfter:        7 * 24 * time.Hour,
			StalePenalty:      -10,
			DormantAfter:      30 * 24 * time.Hour,
			DormantPenalty:    -25,
			HotThreshold:      70,
			WarmThreshold:     40,
			UrgentKeywords:    []string{"imediat", "urgente", "agora", "este mês", "esse mês", "1 mês", "30 dias"},
			FinancingKeywords: []string{"aprovado", "à vista", "a vista", "fgts"},
		},
		Typebot: TypebotTuning{
			PhoneTokens: []string{"phone", "telefone", "celular", "whatsapp", "fone"},
			Synonyms: map[string][]string{
				"name":            {"nome", "name"},
				"email":           {"email", "e-mail"},
				"transactionType": {"transacao", "transação", "transaction", "finalidade", "objetivo"},
				"propertyType":    {"tipo_imovel", "tipoimovel", "tipo de imóvel", "tipo de imovel", "property_type", "propertytype"},
				"budgetPurchase":  {"orcamento_compra", "valor_compra", "budget_compra", "orçamento compra"},
				"budgetRent":      {"orcamento_locacao", "orcamento_aluguel", "valor_aluguel", "budget_locacao", "orçamento aluguel"},
				"budget":          {"orcamento", "orçamento", "budget", "faixa_preco", "faixa de preço", "valor"},
				"location":        {"localizacao", "localização", "bairro", "regiao", "região", "cidade", "location"},
				"timeframe":       {"prazo", "quando", "timeframe", "urgencia", "urgência"},
				"financing":       {"financiamento", "financing", "pagamento"},
				"message":         {"mensagem", "message", "observacao", "observação", "duvida", "dúvida"},
			},
		},
		Replies: ReplyTuning{
			GenerationFailure:   "Desculpe, tive um problema para responder agora. Pode repetir sua mensagem em instantes?",
			SchedulingLink:      "Perfeito, {name}! Para agendar sua visita ao imóvel {property}, escolha o melhor horário neste link: {link}",
			PickProperty:        "Claro! Qual imóvel você gostaria de visitar? Me diga o código ou o nome do imóvel que eu agendo para você.",
			SchedulingFailure:   "Desculpe, não consegui gerar o link de agendamento agora. Você pode falar com um corretor pelo telefone {phone}.",
			AlreadyBooked:       "Você já tem uma visita agendada para o imóvel {property}. Se precisar remarcar, use o link enviado no e-mail de confirmação.",
			ReminderDayBefore:   "Olá {name}! Lembrete: sua visita ao imóvel {property} está marcada para amanhã, {when}.",
			ReminderHoursBefore: "Olá {name}! Sua visita ao imóvel {property} é hoje às {when}. Até já!",
		},
	}
}

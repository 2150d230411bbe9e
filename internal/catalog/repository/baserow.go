package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

const baserowPageSize = 200

// Baserow reads properties from a Baserow table using user field names.
type Baserow struct {
	baseURL string
	token   string
	tableID string
	http    *http.Client
}

// NewBaserow returns nil when the catalog is not configured.
func NewBaserow(cfg config.CatalogConfig) *Baserow {
	if cfg.GetBaserowAPIURL() == "" || cfg.GetBaserowPropertiesTableID() == "" {
		return nil
	}
	return &Baserow{
		baseURL: strings.TrimRight(cfg.GetBaserowAPIURL(), "/"),
		token:   cfg.GetBaserowAPIToken(),
		tableID: cfg.GetBaserowPropertiesTableID(),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type baserowPage struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []baserowRow `json:"results"`
}

type baserowFile struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type baserowRow struct {
	ID           int             `json:"id"`
	Title        string          `json:"Titulo"`
	Type         string          `json:"Tipo"`
	Transaction  string          `json:"Transacao"`
	Price        json.RawMessage `json:"Preco"`
	Neighborhood string          `json:"Bairro"`
	City         string          `json:"Cidade"`
	Bedrooms     json.RawMessage `json:"Quartos"`
	Bathrooms    json.RawMessage `json:"Banheiros"`
	Area         json.RawMessage `json:"Area"`
	Description  string          `json:"Descricao"`
	Images       json.RawMessage `json:"Imagens"`
	Active       *bool           `json:"Ativo"`
}

// ListProperties walks every page of the table and drops inactive rows.
func (b *Baserow) ListProperties(ctx context.Context) ([]domain.Property, error) {
	var out []domain.Property
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("user_field_names", "true")
		q.Set("size", strconv.Itoa(baserowPageSize))
		q.Set("page", strconv.Itoa(page))
		endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/?%s", b.baseURL, b.tableID, q.Encode())

		var body baserowPage
		if err := b.get(ctx, endpoint, &body); err != nil {
			return nil, err
		}
		for _, row := range body.Results {
			if p := row.toDomain(); p.Active {
				out = append(out, p)
			}
		}
		if body.Next == nil || len(body.Results) == 0 {
			return out, nil
		}
	}
}

// GetProperty fetches a single row.
func (b *Baserow) GetProperty(ctx context.Context, id int) (domain.Property, error) {
	if id <= 0 {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	endpoint := fmt.Sprintf("%s/api/database/rows/table/%s/%d/?user_field_names=true", b.baseURL, b.tableID, id)

	var row baserowRow
	if err := b.get(ctx, endpoint, &row); err != nil {
		return domain.Property{}, err
	}
	p := row.toDomain()
	if !p.Active {
		return domain.Property{}, domain.ErrPropertyNotFound
	}
	return p, nil
}

func (b *Baserow) get(ctx context.Context, endpoint string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+b.token)
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("baserow request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrPropertyNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("baserow returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode baserow response: %w", err)
	}
	return nil
}

func (r baserowRow) toDomain() domain.Property {
	return domain.Property{
		ID:           r.ID,
		Title:        strings.TrimSpace(r.Title),
		Type:         strings.TrimSpace(r.Type),
		Transaction:  strings.TrimSpace(r.Transaction),
		Price:        number(r.Price),
		Neighborhood: strings.TrimSpace(r.Neighborhood),
		City:         strings.TrimSpace(r.City),
		Bedrooms:     int(number(r.Bedrooms)),
		Bathrooms:    int(number(r.Bathrooms)),
		Area:         number(r.Area),
		Description:  strings.TrimSpace(r.Description),
		Images:       images(r.Images),
		Active:       r.Active == nil || *r.Active,
	}
}

// number accepts Baserow decimals, which arrive as strings, as well as plain numbers.
func number(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, _ = strconv.ParseFloat(s, 64)
	return f
}

// images accepts a file field (array of objects) or a text field of
// comma or newline separated references.
func images(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var files []baserowFile
	if err := json.Unmarshal(raw, &files); err == nil {
		out := make([]string, 0, len(files))
		for _, f := range files {
			if f.URL != "" {
				out = append(out, f.URL)
			} else if f.Name != "" {
				out = append(out, f.Name)
			}
		}
		return out
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsNotFound reports whether err means the property does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrPropertyNotFound)
}

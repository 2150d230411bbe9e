// Package calendly creates single-use booking links and decodes invitee webhooks.
package calendly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
)

const defaultAPIURL = "https://api.calendly.com"

// Tracking parameters carry the customer key and property through the
// booking flow and come back on the invitee webhook.
const (
	paramPhone    = "utm_content"
	paramProperty = "utm_term"
	paramSource   = "utm_source"
	paramCampaign = "utm_campaign"
)

// ErrNotConfigured is returned when neither an API token nor a public
// scheduling URL is set.
var ErrNotConfigured = errors.New("calendly is not configured")

// BookingRequest describes who is booking which property.
type BookingRequest struct {
	PhoneNumber   string
	CustomerName  string
	CustomerEmail string
	PropertyID    string
	PropertyTitle string
}

// Client creates booking links. With an API token it asks Calendly for a
// single-use scheduling link; otherwise it decorates the public scheduling URL.
type Client struct {
	apiURL    string
	token     string
	eventType string
	publicURL string
	http      *http.Client
}

func NewClient(cfg config.CalendlyConfig) *Client {
	return &Client{
		apiURL:    defaultAPIURL,
		token:     cfg.GetCalendlyAPIToken(),
		eventType: cfg.GetCalendlyEventTypeURI(),
		publicURL: cfg.GetCalendlySchedulingURL(),
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIURL points the client at another API host.
func (c *Client) WithAPIURL(u string) *Client {
	c.apiURL = strings.TrimRight(u, "/")
	return c
}

type schedulingLinkRequest struct {
	MaxEventCount int    `json:"max_event_count"`
	Owner         string `json:"owner"`
	OwnerType     string `json:"owner_type"`
}

type schedulingLinkResponse struct {
	Resource struct {
		BookingURL string `json:"booking_url"`
	} `json:"resource"`
}

// CreateBookingLink returns a link that, once booked, produces an invitee
// webhook carrying req.PhoneNumber and req.PropertyID.
func (c *Client) CreateBookingLink(ctx context.Context, req BookingRequest) (string, error) {
	base, err := c.baseLink(ctx)
	if err != nil {
		return "", err
	}
	return decorate(base, req)
}

func (c *Client) baseLink(ctx context.Context) (string, error) {
	if c.token == "" || c.eventType == "" {
		if c.publicURL == "" {
			return "", ErrNotConfigured
		}
		return c.publicURL, nil
	}

	body, err := json.Marshal(schedulingLinkRequest{MaxEventCount: 1, Owner: c.eventType, OwnerType: "EventType"})
	if err != nil {
		return "", fmt.Errorf("marshal calendly payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/scheduling_links", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calendly request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("calendly returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out schedulingLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode calendly response: %w", err)
	}
	if out.Resource.BookingURL == "" {
		return "", errors.New("calendly returned no booking url")
	}
	return out.Resource.BookingURL, nil
}

func decorate(base string, req BookingRequest) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid booking url: %w", err)
	}
	q := u.Query()
	q.Set(paramSource, "whatsapp")
	q.Set(paramCampaign, "visita")
	q.Set(paramPhone, req.PhoneNumber)
	if req.PropertyID != "" {
		q.Set(paramProperty, req.PropertyID)
	}
	if req.CustomerName != "" {
		q.Set("name", req.CustomerName)
	}
	if req.CustomerEmail != "" {
		q.Set("email", req.CustomerEmail)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

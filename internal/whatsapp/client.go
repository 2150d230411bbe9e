// Package whatsapp sends outbound messages through the Evolution API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Client talks to one Evolution API instance. A nil *Client drops every
// message, which keeps local runs without a WhatsApp number working.
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
	log      *logger.Logger
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetEvolutionAPIURL() == "" || cfg.GetEvolutionInstance() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetEvolutionAPIURL(), "/"),
		apiKey:   cfg.GetEvolutionAPIKey(),
		instance: cfg.GetEvolutionInstance(),
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log.WithComponent("whatsapp"),
	}
}

// SendMessage sends a text message to a canonical phone number.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, text string) error {
	if c == nil {
		return nil
	}
	if err := c.post(ctx, "sendText", sendTextRequest{Number: phoneNumber, Text: text}); err != nil {
		return err
	}
	c.log.Info("whatsapp text sent", "phone", logger.MaskPhone(phoneNumber))
	return nil
}

// SendMedia sends one image by URL with an optional caption.
func (c *Client) SendMedia(ctx context.Context, phoneNumber string, mediaURL string, caption string) error {
	if c == nil {
		return nil
	}
	req := sendMediaRequest{
		Number:    phoneNumber,
		MediaType: "image",
		Media:     mediaURL,
		FileName:  fileName(mediaURL),
		Caption:   caption,
	}
	if err := c.post(ctx, "sendMedia", req); err != nil {
		return err
	}
	c.log.Info("whatsapp media sent", "phone", logger.MaskPhone(phoneNumber))
	return nil
}

func (c *Client) post(ctx context.Context, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/message/%s/%s", c.baseURL, action, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}

func fileName(mediaURL string) string {
	if i := strings.IndexAny(mediaURL, "?#"); i >= 0 {
		mediaURL = mediaURL[:i]
	}
	name := path.Base(mediaURL)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

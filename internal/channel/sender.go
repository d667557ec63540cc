package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SendResult records the delivery outcome persisted onto the outbound message.
type SendResult struct {
	Sent       bool           `json:"sent"`
	Reason     string         `json:"reason,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
}

// Sender delivers one outbound text to a channel destination. Implementations
// must not retry; failed sends are recorded and the turn moves on.
type Sender interface {
	SendText(ctx context.Context, to, body string) SendResult
}

// WhatsAppSender speaks the WhatsApp Cloud API messages endpoint.
type WhatsAppSender struct {
	APIBase       string
	Token         string
	PhoneNumberID string
	Client        *http.Client
}

func NewWhatsAppSender(apiBase, token, phoneNumberID string) *WhatsAppSender {
	return &WhatsAppSender{
		APIBase:       strings.TrimRight(apiBase, "/"),
		Token:         token,
		PhoneNumberID: phoneNumberID,
		Client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WhatsAppSender) SendText(ctx context.Context, to, body string) SendResult {
	if s.PhoneNumberID == "" || s.Token == "" {
		log.Warn().Msg("whatsapp credentials not configured, skipping send")
		return SendResult{Sent: false, Reason: "missing_credentials"}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"preview_url": false, "body": body},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Sent: false, Reason: err.Error()}
	}

	url := s.APIBase + "/" + s.PhoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return SendResult{Sent: false, Reason: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("whatsapp send failed")
		return SendResult{Sent: false, Reason: err.Error()}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	var decoded map[string]any
	if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); readErr == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	if !ok {
		log.Error().Int("status", resp.StatusCode).Str("to", to).Msg("whatsapp send rejected")
	}
	return SendResult{Sent: ok, StatusCode: resp.StatusCode, Response: decoded}
}

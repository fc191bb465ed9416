package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultMailtrapURL = "https://send.api.mailtrap.io/api/send"
	defaultSubject     = "Password Reset OTP for SehatBridge"
	defaultFromName    = "Med-Space"
)

// MailtrapConfig configures the Mailtrap sending API.
type MailtrapConfig struct {
	APIKey    string
	URL       string
	FromEmail string
	FromName  string
	Subject   string
	Timeout   time.Duration
}

// MailtrapSender sends reset codes through the Mailtrap HTTP API.
type MailtrapSender struct {
	config MailtrapConfig
	client *http.Client
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailRequest struct {
	From     emailAddress   `json:"from"`
	To       []emailAddress `json:"to"`
	Subject  string         `json:"subject"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Category string         `json:"category,omitempty"`
}

// NewMailtrapSender fills defaults and returns a sender. APIKey and FromEmail
// are required.
func NewMailtrapSender(cfg MailtrapConfig) (*MailtrapSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("notify: mailtrap api key and from email are required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultMailtrapURL
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MailtrapSender{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (m *MailtrapSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	if strings.TrimSpace(msg.Email) == "" {
		return ErrNoRecipient
	}

	text := otpText(msg)
	payload, err := json.Marshal(emailRequest{
		From:     emailAddress{Email: m.config.FromEmail, Name: m.config.FromName},
		To:       []emailAddress{{Email: msg.Email, Name: msg.Name}},
		Subject:  m.config.Subject,
		Text:     text,
		HTML:     "<p>" + html.EscapeString(text) + "</p>",
		Category: "password_reset",
	})
	if err != nil {
		return fmt.Errorf("notify: marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: mailtrap: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: mailtrap returned status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

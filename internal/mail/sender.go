// Package mail adapts the transactional mail collaborator.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/securerights/copyright-detection-go/internal/config"
)

// Attachment is an inline mail attachment.
type Attachment struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// Message is one outbound mail.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Message struct {
	To          string       `json:"to"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Sender delivers mail.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// HTTPSender implements Sender against the mail collaborator's HTTP API.
type HTTPSender struct {
	baseURL    string
	from       string
	httpClient *http.Client
}

// NewHTTPSender creates a sender from configuration.
func NewHTTPSender(cfg *config.MailConfig) *HTTPSender {
	return &HTTPSender{
		baseURL:    cfg.BaseURL,
		from:       cfg.From,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg *Message) error {
	if msg.From == "" {
		msg.From = s.from
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail service returned %d", resp.StatusCode)
	}

	return nil
}

var _ Sender = (*HTTPSender)(nil)

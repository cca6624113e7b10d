// Package mail sends transactional email through Brevo.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyshelf/internal/logger"
)

const BrevoURL = "https://api.brevo.com/v3/smtp/email"

type address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoMessage struct {
	Sender      address   `json:"sender"`
	To          []address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

// Brevo posts messages to the Brevo SMTP API.
type Brevo struct {
	apiKey     string
	sender     address
	url        string
	httpClient *http.Client
}

func NewBrevo(apiKey, senderEmail, senderName string) *Brevo {
	return &Brevo{
		apiKey:     apiKey,
		sender:     address{Name: senderName, Email: senderEmail},
		url:        BrevoURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Brevo) WithURL(u string) *Brevo {
	b.url = u
	return b
}

func (b *Brevo) Send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(brevoMessage{
		Sender:      b.sender,
		To:          []address{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo error: %d %s", resp.StatusCode, string(body))
	}
	logger.L(ctx).Debug("mail sent", "to", to, "subject", subject)
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when
// no Brevo key is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, html string) error {
	logger.L(ctx).Info("mail not sent (no provider configured)", "to", to, "subject", subject, "body", html)
	return nil
}

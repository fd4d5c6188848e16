// Package notifier delivers price drop alerts.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrMailerDisabled is returned when no mail provider is configured
var ErrMailerDisabled = errors.New("email delivery is not configured")

// Message is a rendered email
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends a rendered email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DisabledMailer rejects every message
type DisabledMailer struct{}

// Send always fails with ErrMailerDisabled
func (DisabledMailer) Send(ctx context.Context, msg Message) error {
	return ErrMailerDisabled
}

// SendGridMailer sends mail through the SendGrid v3 mail/send API
type SendGridMailer struct {
	client   *resty.Client
	endpoint string
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridErrors struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// NewSendGridMailer creates a mailer posting to endpoint with apiKey
func NewSendGridMailer(apiKey, endpoint string) *SendGridMailer {
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetAuthToken(apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &SendGridMailer{
		client:   client,
		endpoint: endpoint,
	}
}

// Send posts msg to SendGrid. Any non-2xx answer is an error.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	body := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: msg.To}}}},
		From:             sendGridAddress{Email: msg.From},
		Subject:          msg.Subject,
		Content: []sendGridContent{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	}

	var apiErr sendGridErrors
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post(m.endpoint)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		if len(apiErr.Errors) > 0 {
			return fmt.Errorf("sendgrid rejected message (status %d): %s", resp.StatusCode(), apiErr.Errors[0].Message)
		}
		return fmt.Errorf("sendgrid rejected message (status %d)", resp.StatusCode())
	}
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/publisher"
)

// StreamKey is the stream field that carries base64 alert payloads
const StreamKey = "b64_price_drop"

// Alert describes a qualifying price drop
type Alert struct {
	ProductID      string    `json:"productId"`
	Recipient      string    `json:"userEmail"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	OldPrice       float64   `json:"oldPrice"`
	NewPrice       float64   `json:"newPrice"`
	TargetPrice    float64   `json:"targetPrice"`
	DropPercentage int       `json:"dropPercentage"`
	DetectedAt     time.Time `json:"detectedAt"`
}

// Notifier delivers alerts
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Dispatcher renders alerts into emails and hands them to a Mailer.
// When a publisher is set, each alert is also mirrored onto the alert stream.
type Dispatcher struct {
	mailer    Mailer
	from      string
	currency  string
	publisher publisher.Publisher
	logger    *logger.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithPublisher mirrors alerts onto a stream
func WithPublisher(p publisher.Publisher) DispatcherOption {
	return func(d *Dispatcher) {
		d.publisher = p
	}
}

// WithCurrency sets the symbol printed before prices
func WithCurrency(symbol string) DispatcherOption {
	return func(d *Dispatcher) {
		d.currency = symbol
	}
}

// NewDispatcher creates a dispatcher sending from the given address
func NewDispatcher(mailer Mailer, from string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mailer:   mailer,
		from:     from,
		currency: "₹",
		logger:   logger.ForNotifier(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type alertView struct {
	Title          string
	URL            string
	OldPrice       string
	NewPrice       string
	DropPercentage int
}

var htmlBody = htmltemplate.Must(htmltemplate.New("alert").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #ff9900;">Price Drop Alert!</h2>
  <div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="color: #333; margin-top: 0;">{{.Title}}</h3>
    <div style="margin: 15px 0;">
      <span style="text-decoration: line-through; color: #666;">{{.OldPrice}}</span>
      <span style="font-size: 24px; font-weight: bold; color: #28a745;">{{.NewPrice}}</span>
      <span style="background: #ff4444; color: white; padding: 4px 8px; border-radius: 4px; font-size: 12px; font-weight: bold;">{{.DropPercentage}}% OFF</span>
    </div>
    <a href="{{.URL}}" style="display: inline-block; background: #ff9900; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin-top: 10px;">View product</a>
  </div>
  <p style="color: #666; font-size: 12px;">This alert was sent by Price Monitor. Remove the product from tracking to stop receiving alerts.</p>
</div>
`))

var textBody = texttemplate.Must(texttemplate.New("alert").Parse(
	`Great news! The price for "{{.Title}}" has dropped from {{.OldPrice}} to {{.NewPrice}} ({{.DropPercentage}}% off).

View product: {{.URL}}
`))

// FormatPrice renders a price with the currency symbol and two decimals
func FormatPrice(symbol string, price float64) string {
	return symbol + decimal.NewFromFloat(price).StringFixed(2)
}

// Subject returns the email subject for a drop of pct percent
func Subject(pct int) string {
	return fmt.Sprintf("Price Drop Alert - %d%% off!", pct)
}

// Render builds the email for alert without sending it
func (d *Dispatcher) Render(alert Alert) (Message, error) {
	view := alertView{
		Title:          alert.Title,
		URL:            alert.URL,
		OldPrice:       FormatPrice(d.currency, alert.OldPrice),
		NewPrice:       FormatPrice(d.currency, alert.NewPrice),
		DropPercentage: alert.DropPercentage,
	}

	var html, text bytes.Buffer
	if err := htmlBody.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	if err := textBody.Execute(&text, view); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}

	return Message{
		To:      alert.Recipient,
		From:    d.from,
		Subject: Subject(alert.DropPercentage),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Notify emails the alert. Stream mirroring is best effort and never fails the call.
func (d *Dispatcher) Notify(ctx context.Context, alert Alert) error {
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now()
	}

	msg, err := d.Render(alert)
	if err != nil {
		return apperrors.NewDispatch("notifier", "failed to render alert", err)
	}

	sendErr := d.mailer.Send(ctx, msg)
	d.publish(ctx, alert)

	if sendErr != nil {
		return apperrors.NewDispatch("notifier", "failed to send alert email", sendErr)
	}

	d.logger.Info().
		Str("product_id", alert.ProductID).
		Str("recipient", alert.Recipient).
		Int("drop_percentage", alert.DropPercentage).
		Msg("Price drop alert sent")
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, alert Alert) {
	if d.publisher == nil {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to encode alert for stream")
		return
	}
	if err := d.publisher.Publish(ctx, StreamKey, payload); err != nil {
		d.logger.Warn().Err(err).Str("product_id", alert.ProductID).Msg("Failed to publish alert")
	}
}

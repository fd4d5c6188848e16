package renderer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

// BrowserlessRenderer renders pages through a remote headless Chrome
// exposing the browserless /content endpoint.
type BrowserlessRenderer struct {
	addr   string
	client *resty.Client
	slots  slots
	logger *logger.Logger
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout"`
}

type contentRequest struct {
	URL         string      `json:"url"`
	GotoOptions gotoOptions `json:"gotoOptions"`
}

// NewBrowserlessRenderer creates a renderer that allows at most concurrency
// sessions in flight against addr.
func NewBrowserlessRenderer(addr string, concurrency int) *BrowserlessRenderer {
	client := resty.New()
	client.SetTimeout(90 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &BrowserlessRenderer{
		addr:   strings.TrimRight(addr, "/"),
		client: client,
		slots:  newSlots(concurrency),
		logger: logger.ForRenderer("browserless"),
	}
}

// Name returns the renderer name
func (b *BrowserlessRenderer) Name() string {
	return "browserless"
}

// Acquire reserves a concurrency slot
func (b *BrowserlessRenderer) Acquire(ctx context.Context) (Session, error) {
	if err := b.slots.acquire(ctx); err != nil {
		return nil, apperrors.NewFetch("renderer:browserless", "no render slot available", err)
	}
	return &browserlessSession{
		renderer: b,
		releaser: newReleaser(func() error {
			b.slots.release()
			return nil
		}),
	}, nil
}

type browserlessSession struct {
	*releaser
	renderer *BrowserlessRenderer
}

// Render asks browserless for the page content once the network is idle
func (s *browserlessSession) Render(ctx context.Context, url string, opts Options) (string, error) {
	b := s.renderer
	timeout := timeoutOrDefault(opts.Timeout)

	b.logger.Debug().
		Str("url", url).
		Dur("timeout", timeout).
		Msg("Rendering page")

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(contentRequest{
			URL: url,
			GotoOptions: gotoOptions{
				WaitUntil: "networkidle0",
				Timeout:   timeout.Milliseconds(),
			},
		}).
		Post(b.addr + "/content")
	if err != nil {
		return "", apperrors.NewFetch("renderer:browserless", "render request failed", err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return "", apperrors.New(apperrors.ErrorTypeRateLimit, "renderer:browserless",
			"browserless rejected the request", fmt.Errorf("status %d", resp.StatusCode()))
	case resp.StatusCode() != http.StatusOK:
		return "", apperrors.NewFetch("renderer:browserless",
			fmt.Sprintf("unexpected status code: %d", resp.StatusCode()), nil)
	}

	content := resp.String()
	if strings.TrimSpace(content) == "" {
		return "", apperrors.NewFetch("renderer:browserless", "empty page content", nil)
	}
	return content, nil
}

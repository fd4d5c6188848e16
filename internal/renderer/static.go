package renderer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

// StaticRenderer fetches raw markup over HTTP without executing scripts.
// It suits server-rendered product pages and tests.
type StaticRenderer struct {
	client *http.Client
	logger *logger.Logger
}

// NewStaticRenderer creates a static renderer. A nil client uses the shared default.
func NewStaticRenderer(client *http.Client) *StaticRenderer {
	return &StaticRenderer{
		client: client,
		logger: logger.ForRenderer("http"),
	}
}

// Name returns the renderer name
func (r *StaticRenderer) Name() string {
	return "http"
}

// Acquire returns a session; static sessions hold no resources
func (r *StaticRenderer) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewFetch("renderer:http", "context done before acquire", err)
	}
	return &staticSession{renderer: r, releaser: newReleaser(nil)}, nil
}

type staticSession struct {
	*releaser
	renderer *StaticRenderer
}

// Render downloads the page and decodes it to UTF-8
func (s *staticSession) Render(ctx context.Context, url string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(opts.Timeout))
	defer cancel()

	started := time.Now()
	body, err := helpers.FetchWithRandomHeaders(ctx, s.renderer.client, url)
	if err != nil {
		var rateErr *helpers.RateLimitError
		if errors.As(err, &rateErr) {
			return "", apperrors.New(apperrors.ErrorTypeRateLimit, "renderer:http", "source site is rate limiting", err)
		}
		return "", apperrors.NewFetch("renderer:http", "page request failed", err)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", apperrors.NewFetch("renderer:http", "failed to read page", err)
	}

	s.renderer.logger.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Dur("took", time.Since(started)).
		Msg("Fetched page")

	return string(data), nil
}

package renderer

import (
	"context"
	"errors"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

// RodRenderer drives a Chrome instance over the DevTools protocol. It either
// connects to controlURL or launches a local headless browser on first use.
// Each session is a separate tab.
type RodRenderer struct {
	controlURL string
	slots      slots
	logger     *logger.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewRodRenderer creates a rod-backed renderer
func NewRodRenderer(controlURL string, concurrency int) *RodRenderer {
	return &RodRenderer{
		controlURL: controlURL,
		slots:      newSlots(concurrency),
		logger:     logger.ForRenderer("rod"),
	}
}

// Name returns the renderer name
func (r *RodRenderer) Name() string {
	return "rod"
}

func (r *RodRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	controlURL := r.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, err
		}
		r.launcher = l
		controlURL = u
		r.logger.Info().Str("control_url", u).Msg("Launched local browser")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if r.launcher != nil {
			r.launcher.Kill()
			r.launcher = nil
		}
		return nil, err
	}
	r.browser = browser
	return browser, nil
}

// Acquire opens a fresh tab within a concurrency slot
func (r *RodRenderer) Acquire(ctx context.Context) (Session, error) {
	if err := r.slots.acquire(ctx); err != nil {
		return nil, apperrors.NewFetch("renderer:rod", "no render slot available", err)
	}

	browser, err := r.connect()
	if err != nil {
		r.slots.release()
		return nil, apperrors.NewFetch("renderer:rod", "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		r.slots.release()
		r.dropBrowser(browser)
		return nil, apperrors.NewFetch("renderer:rod", "failed to open tab", err)
	}

	return &rodSession{
		page:   page,
		logger: r.logger,
		releaser: newReleaser(func() error {
			defer r.slots.release()
			return page.Close()
		}),
	}, nil
}

// dropBrowser forgets a browser that can no longer open tabs so the next
// Acquire reconnects. A browser already replaced by another caller is left alone.
func (r *RodRenderer) dropBrowser(browser *rod.Browser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != browser {
		return
	}
	r.browser = nil
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	r.logger.Warn().Msg("Browser connection lost, reconnecting on next acquire")
}

// Close shuts the browser down
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}

type rodSession struct {
	*releaser
	page   *rod.Page
	logger *logger.Logger
}

// Render navigates and waits until no request has been in flight for the quiet window
func (s *rodSession) Render(ctx context.Context, url string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(opts.Timeout))
	defer cancel()

	quiet := opts.QuietWindow
	if quiet <= 0 {
		quiet = DefaultOptions().QuietWindow
	}

	page := s.page.Context(ctx)
	wait := page.WaitRequestIdle(quiet, nil, nil, nil)

	if err := page.Navigate(url); err != nil {
		return "", s.wrap(ctx, "navigation failed", err)
	}
	wait()

	if err := ctx.Err(); err != nil {
		return "", s.wrap(ctx, "page did not settle", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", s.wrap(ctx, "failed to read page markup", err)
	}

	s.logger.Debug().Str("url", url).Int("bytes", len(html)).Msg("Rendered page")
	return html, nil
}

func (s *rodSession) wrap(ctx context.Context, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = context.DeadlineExceeded
	}
	return apperrors.NewFetch("renderer:rod", msg, err)
}

// Package fetcher renders a product page and extracts its current price and title.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/pricewatch/internal/extractor"
	"sjsage522/pricewatch/internal/renderer"
	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/cache"
)

const component = "fetcher"

// Observation is what a successful fetch yields
type Observation struct {
	Price float64
	Title string
	// TitleFound is false when Title is the placeholder
	TitleFound bool
}

// Fetcher combines a renderer with an extractor
type Fetcher struct {
	renderer  renderer.Renderer
	extractor *extractor.Extractor
	opts      renderer.Options
	cache     cache.CacheService
	blockTime time.Duration
	logger    *logger.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithOptions sets the render options used for every fetch
func WithOptions(opts renderer.Options) Option {
	return func(f *Fetcher) {
		f.opts = opts
	}
}

// WithBlockCache pauses fetching from a host for blockTime after it rate limits us
func WithBlockCache(c cache.CacheService, blockTime time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.blockTime = blockTime
	}
}

// New creates a fetcher
func New(r renderer.Renderer, ex *extractor.Extractor, opts ...Option) *Fetcher {
	f := &Fetcher{
		renderer:  r,
		extractor: ex,
		opts:      renderer.DefaultOptions(),
		logger:    logger.ForFetcher(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Placeholder returns the title used when none can be extracted
func (f *Fetcher) Placeholder() string {
	return f.extractor.DefaultTitle()
}

// Fetch renders rawURL and extracts its price and title. The renderer
// session is released on every path, including timeouts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Observation, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.NewFetch(component, fmt.Sprintf("invalid product url %q", rawURL), err)
	}

	if err := f.checkBlocked(u.Host); err != nil {
		return nil, err
	}

	timeout := f.opts.Timeout
	if timeout <= 0 {
		timeout = renderer.DefaultOptions().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := f.renderer.Acquire(ctx)
	if err != nil {
		return nil, f.classify(ctx, rawURL, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			f.logger.Warn().Err(cerr).Str("renderer", f.renderer.Name()).Msg("Failed to release renderer session")
		}
	}()

	started := time.Now()
	html, err := session.Render(ctx, rawURL, f.opts)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeRateLimit) {
			f.block(u.Host)
		}
		return nil, f.classify(ctx, rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeParsing, component, "failed to parse page", err)
	}

	price, ok := f.extractor.Price(doc.Selection)
	if !ok {
		return nil, apperrors.NewParsing(component, "Could not extract price from page")
	}
	title, found := f.extractor.Title(doc.Selection)

	f.logger.Debug().
		Str("url", rawURL).
		Float64("price", price).
		Bool("title_found", found).
		Dur("took", time.Since(started)).
		Msg("Fetched product page")

	return &Observation{Price: price, Title: title, TitleFound: found}, nil
}

func (f *Fetcher) classify(ctx context.Context, rawURL string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewFetch(component, fmt.Sprintf("timed out after %v loading %s", f.opts.Timeout, rawURL), context.DeadlineExceeded)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewFetch(component, "failed to load "+rawURL, err)
}

func blockKey(host string) string {
	return "fetch_blocked:" + host
}

func (f *Fetcher) checkBlocked(host string) error {
	if f.cache == nil {
		return nil
	}

	_, err := f.cache.Get(blockKey(host))
	switch {
	case err == nil:
		return apperrors.NewRateLimit(component, f.blockTime)
	case errors.Is(err, cache.ErrMiss):
		return nil
	default:
		// an unreachable cache must not stop fetching
		f.logger.Warn().Err(err).Str("host", host).Msg("Fetch block lookup failed")
		return nil
	}
}

func (f *Fetcher) block(host string) {
	if f.cache == nil || f.blockTime <= 0 {
		return
	}

	value := []byte(strconv.Itoa(int(f.blockTime / time.Second)))
	if err := f.cache.Set(blockKey(host), value, f.blockTime); err != nil {
		f.logger.Warn().Err(err).Str("host", host).Msg("Failed to set fetch block")
		return
	}
	f.logger.Warn().
		Str("host", host).
		Dur("block", f.blockTime).
		Msg("Source site is rate limiting; pausing fetches")
}

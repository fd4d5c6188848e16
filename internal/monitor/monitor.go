// Package monitor runs the fetch, decide, record and notify pipeline for
// tracked products.
package monitor

import (
	"context"
	"sync"
	"time"

	"sjsage522/pricewatch/internal/decision"
	"sjsage522/pricewatch/internal/fetcher"
	"sjsage522/pricewatch/internal/notifier"
	"sjsage522/pricewatch/internal/registry"
	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

// PageFetcher loads a product page and extracts price and title
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Observation, error)
	Placeholder() string
}

// TrackRequest adds or re-registers a product
type TrackRequest struct {
	ID          string
	URL         string
	OwnerEmail  string
	TargetPrice float64
	Title       string
}

// Edit is an owner-initiated change to a tracked product
type Edit struct {
	URL         *string
	Title       *string
	TargetPrice *float64
}

// Monitor orchestrates price checks
type Monitor struct {
	registry *registry.Registry
	fetcher  PageFetcher
	notifier notifier.Notifier
	pacer    Pacer
	bulkMu   sync.Mutex
	logger   *logger.Logger
}

// New creates a monitor
func New(reg *registry.Registry, f PageFetcher, n notifier.Notifier, pacer Pacer) *Monitor {
	if pacer == nil {
		pacer = NewDelayPacer(2 * time.Second)
	}
	return &Monitor{
		registry: reg,
		fetcher:  f,
		notifier: n,
		pacer:    pacer,
		logger:   logger.ForMonitor(),
	}
}

// Registry exposes the product registry
func (m *Monitor) Registry() *registry.Registry {
	return m.registry
}

// Track upserts the product and runs an initial check. The initial check's
// failure is reported in its result, not as an error.
func (m *Monitor) Track(ctx context.Context, req TrackRequest) (string, CheckResult, error) {
	if req.URL == "" || req.OwnerEmail == "" || req.TargetPrice <= 0 {
		return "", CheckResult{}, apperrors.NewValidation("monitor", "Missing required fields: email, prodUrl, price")
	}

	update := registry.ProductUpdate{
		URL:         &req.URL,
		OwnerEmail:  &req.OwnerEmail,
		TargetPrice: &req.TargetPrice,
	}

	if req.Title != "" {
		update.Title = &req.Title
	} else {
		placeholder := m.fetcher.Placeholder()
		update.DefaultTitle = &placeholder
	}

	id, err := m.registry.Upsert(ctx, req.ID, update)
	if err != nil {
		return "", CheckResult{}, err
	}

	m.logger.Info().
		Str("product_id", id).
		Str("owner", req.OwnerEmail).
		Str("url", req.URL).
		Msg("Product added for tracking")

	result, err := m.Check(ctx, id)
	if err != nil {
		// removed between upsert and check
		return id, failure("", apperrors.Message(err)), nil
	}
	return id, result, nil
}

// Edit applies an owner edit
func (m *Monitor) Edit(ctx context.Context, id string, e Edit) (*registry.TrackedProduct, error) {
	if e.TargetPrice != nil && *e.TargetPrice <= 0 {
		return nil, apperrors.NewValidation("monitor", "price must be positive")
	}
	if e.URL != nil && *e.URL == "" {
		return nil, apperrors.NewValidation("monitor", "prodUrl cannot be empty")
	}

	return m.registry.Update(ctx, id, func(p *registry.TrackedProduct) error {
		if e.URL != nil {
			p.URL = *e.URL
		}
		if e.Title != nil {
			p.Title = *e.Title
		}
		if e.TargetPrice != nil {
			p.TargetPrice = *e.TargetPrice
		}
		return nil
	})
}

// Check runs one fetch-decide-record-notify cycle. Unknown ids are returned
// as a not-found error; fetch failures are reported in the result.
func (m *Monitor) Check(ctx context.Context, id string) (CheckResult, error) {
	product, err := m.registry.Get(ctx, id)
	if err != nil {
		return CheckResult{}, err
	}

	log := m.logger.WithField("product_id", id)
	log.Debug().Str("url", product.URL).Msg("Checking price")

	obs, err := m.fetcher.Fetch(ctx, product.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Price check failed")
		m.markChecked(ctx, id)
		return failure("", apperrors.Message(err)), nil
	}

	var (
		previous float64
		dec      decision.Decision
	)
	updated, err := m.registry.Update(ctx, id, func(p *registry.TrackedProduct) error {
		previous = decision.Baseline(p.LastPrice, obs.Price)
		dec = decision.Decide(obs.Price, previous, p.TargetPrice)

		if obs.TitleFound || p.Title == "" {
			p.Title = obs.Title
		}
		p.RecordPrice(obs.Price, m.registry.Now(), m.registry.HistoryLimit())
		return nil
	})
	if err != nil {
		return CheckResult{}, err
	}

	log.Info().
		Float64("current", obs.Price).
		Float64("previous", previous).
		Float64("target", updated.TargetPrice).
		Bool("notify", dec.ShouldNotify).
		Msg("Price checked")

	result := CheckResult{
		Success:        true,
		PriceDrop:      dec.ShouldNotify,
		ShouldNotify:   dec.ShouldNotify,
		CurrentPrice:   obs.Price,
		PreviousPrice:  previous,
		DropPercentage: dec.DropPercentage,
		Message:        MessageNoDrop,
	}
	if !dec.ShouldNotify {
		return result, nil
	}

	err = m.notifier.Notify(ctx, notifier.Alert{
		ProductID:      id,
		Recipient:      updated.OwnerEmail,
		Title:          updated.Title,
		URL:            updated.URL,
		OldPrice:       previous,
		NewPrice:       obs.Price,
		TargetPrice:    updated.TargetPrice,
		DropPercentage: dec.DropPercentage,
		DetectedAt:     m.registry.Now(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to dispatch price drop alert")
		result.Message = MessageDropNotSent
		result.NotificationError = apperrors.Message(err)
		return result, nil
	}

	result.Message = MessageDropNotified
	return result, nil
}

// markChecked stamps the attempt time on a failed fetch. Price, history and
// title stay as they were.
func (m *Monitor) markChecked(ctx context.Context, id string) {
	_, err := m.registry.Update(ctx, id, func(p *registry.TrackedProduct) error {
		now := m.registry.Now()
		p.LastCheckedAt = &now
		return nil
	})
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		m.logger.Error().Err(err).Str("product_id", id).Msg("Failed to record check attempt")
	}
}

// CheckAll checks every tracked product in enumeration order, pacing between
// products. It always returns one result per product; products not reached
// before ctx is done are reported as cancelled. Only one bulk run executes at a time.
func (m *Monitor) CheckAll(ctx context.Context) (*BulkResult, error) {
	m.bulkMu.Lock()
	defer m.bulkMu.Unlock()

	products, err := m.registry.All(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	results := make([]CheckResult, 0, len(products))

	for i, p := range products {
		if i > 0 {
			if err := m.pacer.Wait(ctx); err != nil {
				results = append(results, cancelled(products[i:])...)
				break
			}
		}
		if ctx.Err() != nil {
			results = append(results, cancelled(products[i:])...)
			break
		}

		res, err := m.Check(ctx, p.ID)
		if err != nil {
			res = failure("", apperrors.Message(err))
		}
		res.ProductID = p.ID
		results = append(results, res)
	}

	m.logger.Info().
		Int("total", len(results)).
		Dur("took", time.Since(started)).
		Msg("Bulk check finished")

	return &BulkResult{Results: results, TotalChecked: len(results)}, nil
}

func cancelled(products []registry.TrackedProduct) []CheckResult {
	out := make([]CheckResult, 0, len(products))
	for _, p := range products {
		out = append(out, failure(p.ID, MessageCheckCancelled))
	}
	return out
}

package worker

import (
	"context"
	"os"
	"time"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/monitor"
	"sjsage522/pricewatch/services/publisher"
)

// BulkChecker runs the bulk price re-check
type BulkChecker interface {
	CheckAll(ctx context.Context) (*monitor.BulkResult, error)
}

// Worker periodically re-checks every tracked product
type Worker struct {
	ctx           context.Context
	checker       BulkChecker
	publisher     publisher.Publisher
	logger        helpers.LoggerInterface
	checkInterval time.Duration
}

// NewWorker creates a new worker. pub may be nil when no alert stream is configured.
func NewWorker(
	ctx context.Context,
	checker BulkChecker,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
	checkInterval time.Duration,
) *Worker {
	return &Worker{
		ctx:           ctx,
		checker:       checker,
		publisher:     pub,
		logger:        logger,
		checkInterval: checkInterval,
	}
}

// Start runs a check cycle every interval until the worker's context is done.
// The first cycle starts after one interval since products are checked when added.
func (w *Worker) Start() {
	if w.checkInterval <= 0 {
		w.logger.LogInfo("Periodic price checks disabled")
		return
	}

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.runOnce()
		}
	}
}

// runOnce runs one bulk check and then trims the alert streams
func (w *Worker) runOnce() {
	start := time.Now()

	result, err := w.checker.CheckAll(w.ctx)
	if err != nil {
		w.logger.LogError("CheckAll", err)
		return
	}

	failed := 0
	drops := 0
	for _, r := range result.Results {
		switch {
		case !r.Success:
			failed++
		case r.PriceDrop:
			drops++
		}
	}

	if os.Getenv("PRICEWATCH_ENVIRONMENT") != "production" || failed > 0 {
		w.logger.LogInfo("Checked %d products in %s: %d drops, %d failed",
			result.TotalChecked, time.Since(start), drops, failed)
	}

	if w.publisher == nil {
		return
	}
	// Trim all streams after checking
	if err := w.publisher.TrimStreams(w.ctx); err != nil {
		w.logger.LogError("StreamTrimming", err)
	}
}

package monitor

import (
	"context"
	"time"
)

// Pacer throttles the bulk re-check between consecutive products
type Pacer interface {
	// Wait blocks until the next product may be checked or ctx is done
	Wait(ctx context.Context) error
}

// DelayPacer enforces a fixed pause
type DelayPacer struct {
	Delay time.Duration
}

// NewDelayPacer creates a pacer pausing d between products
func NewDelayPacer(d time.Duration) *DelayPacer {
	return &DelayPacer{Delay: d}
}

// Wait sleeps for the configured delay
func (p *DelayPacer) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package renderer turns a product URL into fully rendered page markup.
//
// A Renderer hands out Sessions. Every acquired Session must be closed exactly
// once, whatever the outcome of the render, so browser instances and
// concurrency slots are always returned.
package renderer

import (
	"context"
	"sync"
	"time"
)

// Options controls a single render
type Options struct {
	// Timeout bounds navigation plus settling
	Timeout time.Duration
	// QuietWindow is how long the network must stay idle before the page
	// counts as settled
	QuietWindow time.Duration
}

// DefaultOptions returns the default render options
func DefaultOptions() Options {
	return Options{
		Timeout:     20 * time.Second,
		QuietWindow: 500 * time.Millisecond,
	}
}

// Session is an acquired rendering context
type Session interface {
	// Render navigates to url, waits for the page to settle and returns its markup
	Render(ctx context.Context, url string, opts Options) (string, error)
	// Close releases the session. Calls after the first are no-ops.
	Close() error
}

// Renderer acquires rendering sessions
type Renderer interface {
	Acquire(ctx context.Context) (Session, error)
	Name() string
}

// releaser runs a release func at most once
type releaser struct {
	once    sync.Once
	release func() error
	err     error
}

func newReleaser(release func() error) *releaser {
	return &releaser{release: release}
}

func (r *releaser) Close() error {
	r.once.Do(func() {
		if r.release != nil {
			r.err = r.release()
		}
	})
	return r.err
}

// slots is a counting semaphore bounding concurrent sessions
type slots chan struct{}

func newSlots(n int) slots {
	if n <= 0 {
		n = 1
	}
	return make(slots, n)
}

func (s slots) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s slots) release() {
	<-s
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultOptions().Timeout
	}
	return d
}

// Package registry keeps the set of tracked products and their price ledgers.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

const component = "registry"

// Registry serializes mutations per product id on top of a Store
type Registry struct {
	store        Store
	locks        *keyLocks
	historyLimit int
	now          func() time.Time
	newID        func() string
	logger       *logger.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithHistoryLimit caps the number of price samples kept per product.
// Limits above DefaultHistoryLimit are clamped to it.
func WithHistoryLimit(limit int) Option {
	return func(r *Registry) {
		if limit > 0 {
			r.historyLimit = min(limit, DefaultHistoryLimit)
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry over store
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:        store,
		locks:        newKeyLocks(),
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		newID: func() string {
			return "product_" + uuid.NewString()
		},
		logger: logger.ForRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HistoryLimit returns the per-product ledger capacity
func (r *Registry) HistoryLimit() int {
	return r.historyLimit
}

// Now returns the registry clock's current time
func (r *Registry) Now() time.Time {
	return r.now()
}

// Upsert creates the product when id is empty or unknown, otherwise merges
// update into the stored record. It returns the product id.
func (r *Registry) Upsert(ctx context.Context, id string, update ProductUpdate) (string, error) {
	if id == "" {
		id = r.newID()
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	p, found, err := r.store.Get(ctx, id)
	if err != nil {
		return "", apperrors.NewStore(component, "failed to load product", err)
	}
	if !found {
		p = &TrackedProduct{ID: id, PriceHistory: []PricePoint{}}
	}

	p.apply(update, r.historyLimit)

	if err := r.store.Put(ctx, p); err != nil {
		return "", apperrors.NewStore(component, "failed to save product", err)
	}

	r.logger.Debug().
		Str("id", id).
		Bool("created", !found).
		Msg("Product upserted")

	return id, nil
}

// Get returns a copy of the product or a not-found error
func (r *Registry) Get(ctx context.Context, id string) (*TrackedProduct, error) {
	p, found, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewStore(component, "failed to load product", err)
	}
	if !found {
		return nil, apperrors.NewNotFound(component, "Product not found")
	}
	return p, nil
}

// ListByOwner returns every product whose owner is email
func (r *Registry) ListByOwner(ctx context.Context, email string) ([]TrackedProduct, error) {
	products, err := r.store.ListByOwner(ctx, email)
	if err != nil {
		return nil, apperrors.NewStore(component, "failed to list products", err)
	}
	return products, nil
}

// Remove deletes a product and reports whether it existed
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	removed, err := r.store.Delete(ctx, id)
	if err != nil {
		return false, apperrors.NewStore(component, "failed to remove product", err)
	}
	return removed, nil
}

// Update runs fn on the current record under the product's lock and stores
// the result. A removed product is never recreated.
func (r *Registry) Update(ctx context.Context, id string, fn func(p *TrackedProduct) error) (*TrackedProduct, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	p, found, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewStore(component, "failed to load product", err)
	}
	if !found {
		return nil, apperrors.NewNotFound(component, "Product not found")
	}

	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID = id

	if err := r.store.Put(ctx, p); err != nil {
		return nil, apperrors.NewStore(component, "failed to save product", err)
	}
	return p.Clone(), nil
}

// All returns every product in enumeration order
func (r *Registry) All(ctx context.Context) ([]TrackedProduct, error) {
	products, err := r.store.List(ctx)
	if err != nil {
		return nil, apperrors.NewStore(component, "failed to list products", err)
	}
	return products, nil
}

// Count returns the number of tracked products
func (r *Registry) Count(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, apperrors.NewStore(component, "failed to count products", err)
	}
	return n, nil
}

// Close closes the underlying store
func (r *Registry) Close() error {
	return r.store.Close()
}

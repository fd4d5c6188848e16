package registry

import "context"

// Store is the persistence backend behind the registry. Implementations need
// not serialize writers per product; the Registry does that.
type Store interface {
	// Get returns the stored product and whether it exists
	Get(ctx context.Context, id string) (*TrackedProduct, bool, error)

	// Put inserts or replaces a product
	Put(ctx context.Context, p *TrackedProduct) error

	// Delete removes a product and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)

	// List returns every product in insertion order
	List(ctx context.Context) ([]TrackedProduct, error)

	// ListByOwner returns every product owned by email
	ListByOwner(ctx context.Context, email string) ([]TrackedProduct, error)

	// Count returns the number of stored products
	Count(ctx context.Context) (int, error)

	// Close releases backend connections
	Close() error
}

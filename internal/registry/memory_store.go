package registry

import (
	"context"
	"sync"
)

// MemoryStore keeps products in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*TrackedProduct
	order    []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*TrackedProduct),
	}
}

// Get returns a copy of the stored product
func (m *MemoryStore) Get(ctx context.Context, id string) (*TrackedProduct, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

// Put stores a copy of p
func (m *MemoryStore) Put(ctx context.Context, p *TrackedProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.products[p.ID] = p.Clone()
	return nil
}

// Delete removes a product
func (m *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[id]; !exists {
		return false, nil
	}
	delete(m.products, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// List returns copies of all products in insertion order
func (m *MemoryStore) List(ctx context.Context) ([]TrackedProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TrackedProduct, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.products[id].Clone())
	}
	return out, nil
}

// ListByOwner returns copies of the products owned by email
func (m *MemoryStore) ListByOwner(ctx context.Context, email string) ([]TrackedProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TrackedProduct, 0)
	for _, id := range m.order {
		if p := m.products[id]; p.OwnerEmail == email {
			out = append(out, *p.Clone())
		}
	}
	return out, nil
}

// Count returns the number of products
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.products), nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

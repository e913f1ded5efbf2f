package catalog

import (
	"context"
	"maps"
	"sync"
)

// MemStore holds the collection in process memory. It starts with an
// empty collection unless seeded.
type MemStore struct {
	mu       sync.RWMutex
	products []Product
}

func NewMemStore(seed ...Product) *MemStore {
	return &MemStore{products: cloneProducts(seed)}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Load(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products), nil
}

func (s *MemStore) Replace(ctx context.Context, products []Product) error {
	cp := cloneProducts(products)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = cp
	return nil
}

func cloneProducts(in []Product) []Product {
	out := make([]Product, len(in))
	for i, p := range in {
		p.Data = maps.Clone(p.Data)
		out[i] = p
	}
	return out
}

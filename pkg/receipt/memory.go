package receipt

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps receipts in process memory, most recently updated
// first. Old entries are evicted beyond the capacity.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[string]*Receipt
	order    []string
	capacity int
}

// DefaultMemoryCapacity bounds the in-process store.
const DefaultMemoryCapacity = 10000

// NewMemoryStore creates an in-process store. A capacity of zero or
// less uses the default.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		receipts: make(map[string]*Receipt),
		capacity: capacity,
	}
}

// Save stores or replaces the receipt for its missive ID.
func (s *MemoryStore) Save(_ context.Context, r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *r
	clone.UpdatedAt = time.Now()
	if existing, ok := s.receipts[r.MissiveID]; ok {
		clone.CreatedAt = existing.CreatedAt
		s.removeFromOrder(r.MissiveID)
	}
	s.receipts[r.MissiveID] = &clone
	s.order = append([]string{r.MissiveID}, s.order...)

	for len(s.order) > s.capacity {
		victim := s.order[len(s.order)-1]
		s.order = s.order[:len(s.order)-1]
		delete(s.receipts, victim)
	}
	return nil
}

// Get returns the receipt for a missive ID, ErrNotFound when absent.
func (s *MemoryStore) Get(_ context.Context, missiveID string) (*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[missiveID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *r
	return &clone, nil
}

// List returns up to limit receipts, most recently updated first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*Receipt, 0, limit)
	for _, id := range s.order[:limit] {
		clone := *s.receipts[id]
		out = append(out, &clone)
	}
	return out, nil
}

// Delete removes the receipt for a missive ID; unknown IDs are a no-op.
func (s *MemoryStore) Delete(_ context.Context, missiveID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[missiveID]; ok {
		delete(s.receipts, missiveID)
		s.removeFromOrder(missiveID)
	}
	return nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) removeFromOrder(missiveID string) {
	for i, id := range s.order {
		if id == missiveID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

var _ Store = (*MemoryStore)(nil)

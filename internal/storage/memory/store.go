package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tjfontaine/courtside/internal/storage"
)

// DefaultCapacity bounds how many records the store keeps.
const DefaultCapacity = 1000

// Store is an in-memory InvocationStore that keeps the most recent records.
type Store struct {
	mu       sync.RWMutex
	records  []*storage.Invocation
	capacity int
}

var _ storage.InvocationStore = (*Store)(nil)

// New creates a new in-memory store holding up to capacity records.
// A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

func (s *Store) RecordInvocation(ctx context.Context, inv *storage.Invocation) error {
	if inv.ID == "" {
		return fmt.Errorf("invocation id is required")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *inv
	rec.Arguments = slices.Clone(inv.Arguments)
	s.records = append(s.records, &rec)
	if over := len(s.records) - s.capacity; over > 0 {
		s.records = slices.Delete(s.records, 0, over)
	}
	return nil
}

func (s *Store) ListInvocations(ctx context.Context, opts storage.ListOptions) ([]*storage.Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.EffectiveLimit()
	var result []*storage.Invocation
	for i := len(s.records) - 1; i >= 0 && len(result) < limit; i-- {
		rec := s.records[i]
		if opts.Capability != "" && rec.Capability != opts.Capability {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}

package traces

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Trace // traceID -> trace
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Trace),
	}
}

// Put stores or replaces a trace.
func (r *MemoryRepo) Put(ctx context.Context, trace Trace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[trace.ID] = trace
	return nil
}

// Get returns a trace by ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Trace, error) {
	if err := ctx.Err(); err != nil {
		return Trace{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	trace, ok := r.data[id]
	if !ok {
		return Trace{}, ErrNotFound
	}
	return trace, nil
}

// ListByOwner returns an owner's traces, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	owned := make([]Trace, 0)
	for _, trace := range r.data {
		if trace.UserID == ownerID {
			owned = append(owned, trace)
		}
	}
	r.mu.RUnlock()

	if offset >= len(owned) {
		return []Trace{}, nil
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	end := len(owned)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return owned[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)

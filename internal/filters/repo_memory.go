package filters

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo keeps filters in process memory.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]SavedFilter
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]SavedFilter)}
}

func (r *MemoryRepo) Create(ctx context.Context, f SavedFilter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.data[f.ID] = f
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (SavedFilter, error) {
	if err := ctx.Err(); err != nil {
		return SavedFilter{}, err
	}
	r.mu.RLock()
	f, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return SavedFilter{}, ErrNotFound
	}
	return f, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]SavedFilter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]SavedFilter, 0)
	for _, f := range r.data {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

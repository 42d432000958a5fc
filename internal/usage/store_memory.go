package usage

import (
	"context"
	"sync"
	"time"
)

// Store persists subscriptions and monthly counters.
type Store interface {
	// GetSubscription returns the default free subscription when none is stored.
	GetSubscription(ctx context.Context, userID string) (Subscription, error)
	SetSubscription(ctx context.Context, userID string, sub Subscription) error
	// Counter returns the counter for the period containing now.
	Counter(ctx context.Context, userID string, now time.Time) (Counter, error)
	// Increment adds one trace to the current period.
	Increment(ctx context.Context, userID string, now time.Time) (Counter, error)
}

// MemoryStore keeps usage in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	subs     map[string]Subscription
	counters map[string]Counter
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:     make(map[string]Subscription),
		counters: make(map[string]Counter),
	}
}

func (s *MemoryStore) GetSubscription(ctx context.Context, userID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	s.mu.RLock()
	sub, ok := s.subs[userID]
	s.mu.RUnlock()
	if !ok {
		return defaultSubscription(), nil
	}
	return sub, nil
}

func (s *MemoryStore) SetSubscription(ctx context.Context, userID string, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.subs[userID] = sub
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Counter(ctx context.Context, userID string, now time.Time) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := rollover(s.counters[userID], now)
	s.counters[userID] = c
	return c, nil
}

func (s *MemoryStore) Increment(ctx context.Context, userID string, now time.Time) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := rollover(s.counters[userID], now)
	c.TraceCount++
	s.counters[userID] = c
	return c, nil
}

var _ Store = (*MemoryStore)(nil)

package filters

import "context"

// Repo persists saved filters.
type Repo interface {
	Create(ctx context.Context, f SavedFilter) error
	Get(ctx context.Context, id string) (SavedFilter, error)
	// ListByUser returns the user's filters, newest first.
	ListByUser(ctx context.Context, userID string) ([]SavedFilter, error)
	Delete(ctx context.Context, id string) error
}

package filters

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"agenttrace-backend/internal/sanitize"
)

// Service manages saved filters.
type Service struct {
	Repo  Repo
	Now   func() time.Time
	NewID func() string
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now, NewID: uuid.NewString}
}

// List returns the user's filters, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]SavedFilter, error) {
	return s.Repo.ListByUser(ctx, userID)
}

// Create saves a named filter. The stored name is trimmed and the filter
// values are sanitized.
func (s *Service) Create(ctx context.Context, userID, name string, values map[string]any) (SavedFilter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedFilter{}, ErrNameRequired
	}
	clean, _ := sanitize.Sanitize(values).(map[string]any)
	if clean == nil {
		clean = map[string]any{}
	}
	f := SavedFilter{
		ID:        s.NewID(),
		UserID:    userID,
		Name:      name,
		Filters:   clean,
		CreatedAt: s.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, f); err != nil {
		return SavedFilter{}, err
	}
	return f, nil
}

// Delete removes a filter the user owns.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	f, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if f.UserID != userID {
		return ErrForbidden
	}
	return s.Repo.Delete(ctx, id)
}

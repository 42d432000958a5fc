package filters

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("filter not found")
	ErrForbidden    = errors.New("not authorized to delete this filter")
	ErrNameRequired = errors.New("filter name is required")
)

// SavedFilter is a named search preset owned by one user.
type SavedFilter struct {
	ID        string         `json:"id"`
	UserID    string         `json:"-"`
	Name      string         `json:"name"`
	Filters   map[string]any `json:"filters"`
	CreatedAt time.Time      `json:"created_at"`
}

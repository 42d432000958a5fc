package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotConfigured is returned when no identity backend is available.
	ErrNotConfigured = errors.New("authentication not configured")
)

// Identity is the verified subject behind a bearer token.
type Identity struct {
	SubjectID string `json:"id"`
	Email     string `json:"email,omitempty"`
}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	sharedauth "agenttrace-backend/internal/shared/auth"
)

const defaultVerifyTimeout = 5 * time.Second

// SupabaseVerifier resolves bearer tokens against a hosted Supabase auth
// endpoint (GET {url}/auth/v1/user).
type SupabaseVerifier struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
	// HTTPClient supplies the base transport. Defaults to an instrumented client.
	HTTPClient *http.Client
}

var _ sharedauth.Verifier = (*SupabaseVerifier)(nil)

// NewSupabaseVerifier builds a verifier for the project at baseURL.
func NewSupabaseVerifier(baseURL, anonKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AnonKey: anonKey,
		Timeout: defaultVerifyTimeout,
		HTTPClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify returns the identity for token, or ErrInvalidToken when the
// identity service rejects it.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (sharedauth.Identity, error) {
	if v == nil || v.BaseURL == "" || v.AnonKey == "" {
		return sharedauth.Identity{}, sharedauth.ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return sharedauth.Identity{}, sharedauth.ErrInvalidToken
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	base := v.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: &apiKeyTransport{key: v.AnonKey, base: transport},
	})
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return sharedauth.Identity{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return sharedauth.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return sharedauth.Identity{}, sharedauth.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return sharedauth.Identity{}, fmt.Errorf("verify token: identity service status %d", resp.StatusCode)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return sharedauth.Identity{}, fmt.Errorf("verify token: decode user: %w", err)
	}
	if user.ID == "" {
		return sharedauth.Identity{}, sharedauth.ErrInvalidToken
	}
	return sharedauth.Identity{SubjectID: user.ID, Email: user.Email}, nil
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("apikey", t.key)
	return t.base.RoundTrip(clone)
}

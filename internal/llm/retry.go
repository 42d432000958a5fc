package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"agenttrace-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingProvider struct {
	base  Provider
	delay time.Duration
}

// WithRetry wraps p so a transient failure is retried once.
func WithRetry(p Provider) Provider {
	if p == nil {
		return nil
	}
	return retryingProvider{base: p, delay: retryBaseDelay}
}

func (r retryingProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	out, err := r.base.Complete(ctx, req)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"attempt": 1,
		"error":   err.Error(),
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return r.base.Complete(ctx, req)
}

// ShouldRetry reports whether err looks transient: timeouts, rate limiting,
// server errors and dropped connections.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") ||
		strings.Contains(msg, "http status 429") ||
		strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}

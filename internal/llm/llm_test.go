package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type flakyProvider struct {
	errs  []error
	calls int
}

func (f *flakyProvider) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "ok", nil
}

func TestWithRetryRetriesTransientOnce(t *testing.T) {
	base := &flakyProvider{errs: []error{fmt.Errorf("openai: http status 503")}}
	p := retryingProvider{base: base, delay: time.Millisecond}

	out, err := p.Complete(context.Background(), CompletionRequest{User: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "ok" || base.calls != 2 {
		t.Fatalf("expected success on second call, got out=%q calls=%d", out, base.calls)
	}
}

func TestWithRetryDoesNotRetryClientErrors(t *testing.T) {
	base := &flakyProvider{errs: []error{fmt.Errorf("openai: http status 400")}}
	p := retryingProvider{base: base, delay: time.Millisecond}

	if _, err := p.Complete(context.Background(), CompletionRequest{User: "hi"}); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected one call, got %d", base.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("http status 429"), true},
		{errors.New("http status 502"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("http status 401"), false},
	}
	for _, tt := range tests {
		if got := ShouldRetry(tt.err); got != tt.want {
			t.Fatalf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPlaceholderProvider(t *testing.T) {
	out, err := PlaceholderProvider{}.Complete(context.Background(), CompletionRequest{User: "explain"})
	if err != nil || out != PlaceholderReply {
		t.Fatalf("unexpected reply %q err=%v", out, err)
	}
	if _, err := (PlaceholderProvider{}).Complete(context.Background(), CompletionRequest{}); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestCountTokens(t *testing.T) {
	if CountTokens("gpt-4o-mini", "") != 0 {
		t.Fatalf("empty text should cost nothing")
	}
	short := CountTokens("gpt-4o-mini", "hello world")
	long := CountTokens("gpt-4o-mini", "hello world, this sentence is noticeably longer than the first one")
	if short <= 0 || long <= short {
		t.Fatalf("unexpected counts short=%d long=%d", short, long)
	}
	if CountTokens("some-unknown-model", "hello world") <= 0 {
		t.Fatalf("unknown model should still be counted")
	}
}

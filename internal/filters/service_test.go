package filters

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepo())
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	svc.Now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	svc.NewID = func() string {
		n++
		return fmt.Sprintf("f-%d", n)
	}
	return svc
}

func TestCreateListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	if _, err := svc.Create(ctx, "u1", "  errors only ", map[string]any{"step_type": "error"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "slow", map[string]any{"min_duration_ms": 1000}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "u2", "other", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 || out[0].Name != "slow" || out[1].Name != "errors only" {
		t.Fatalf("unexpected list %+v", out)
	}
}

func TestCreateRequiresName(t *testing.T) {
	if _, err := newTestService().Create(context.Background(), "u1", "   ", nil); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestCreateSanitizesValues(t *testing.T) {
	f, err := newTestService().Create(context.Background(), "u1", "q", map[string]any{"q": "password=hunter2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.Filters["q"] != "password: [REDACTED]" {
		t.Fatalf("expected redacted value, got %v", f.Filters["q"])
	}
}

func TestDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	f, _ := svc.Create(ctx, "u1", "mine", nil)

	if err := svc.Delete(ctx, "u2", f.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if out, _ := svc.List(ctx, "u1"); len(out) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(out))
	}
}

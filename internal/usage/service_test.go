package usage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agenttrace-backend/internal/shared/config"
)

func newTestService(now *time.Time) *Service {
	svc := NewService(DefaultPlans())
	svc.Now = func() time.Time { return *now }
	return svc
}

func TestFreePlanLimitsTracesPerMonth(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	for i := 0; i < 10; i++ {
		if err := svc.CanCreateTrace(ctx, "user-1"); err != nil {
			t.Fatalf("trace %d: unexpected error %v", i+1, err)
		}
		if err := svc.RecordTrace(ctx, "user-1"); err != nil {
			t.Fatalf("RecordTrace: %v", err)
		}
	}

	err := svc.CanCreateTrace(ctx, "user-1")
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if !strings.Contains(err.Error(), "monthly limit of 10 traces") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	u, err := svc.Usage(ctx, "user-1")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if u.TraceCount != 10 || u.TraceLimit != 10 || u.ResetDate != "2024-06-01" {
		t.Fatalf("unexpected usage %+v", u)
	}
}

func TestUsageResetsOnFirstOfNextMonth(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	for i := 0; i < 3; i++ {
		if err := svc.RecordTrace(ctx, "user-1"); err != nil {
			t.Fatalf("RecordTrace: %v", err)
		}
	}
	u, _ := svc.Usage(ctx, "user-1")
	if u.ResetDate != "2025-01-01" || u.TraceCount != 3 {
		t.Fatalf("unexpected usage before rollover %+v", u)
	}

	now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u, err := svc.Usage(ctx, "user-1")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if u.TraceCount != 0 || u.ResetDate != "2025-02-01" {
		t.Fatalf("expected rollover, got %+v", u)
	}
}

func TestPaidPlansAreUnlimitedAndGrantAI(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	ok, err := svc.HasFeature(ctx, "user-1", FeatureAI)
	if err != nil || ok {
		t.Fatalf("free plan should not grant AI: ok=%v err=%v", ok, err)
	}

	sub, err := svc.SetPlan(ctx, "user-1", "Pro")
	if err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	if sub.PlanType != PlanPro || sub.CurrentPeriodEnd == nil {
		t.Fatalf("unexpected subscription %+v", sub)
	}

	for i := 0; i < 25; i++ {
		_ = svc.RecordTrace(ctx, "user-1")
	}
	if err := svc.CanCreateTrace(ctx, "user-1"); err != nil {
		t.Fatalf("pro plan should be unlimited: %v", err)
	}
	if ok, _ := svc.HasFeature(ctx, "user-1", FeatureAI); !ok {
		t.Fatalf("pro plan should grant AI")
	}
	if ok, _ := svc.HasFeature(ctx, "user-1", "teleport"); ok {
		t.Fatalf("unknown feature should be denied")
	}
}

func TestCanceledSubscriptionFallsBackToFree(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	end := NextReset(now)
	canceled := Subscription{PlanType: PlanPro, Status: StatusCanceled, CurrentPeriodEnd: &end}
	if err := svc.store.SetSubscription(ctx, "user-1", canceled); err != nil {
		t.Fatalf("SetSubscription: %v", err)
	}

	plan, err := svc.Plan(ctx, "user-1")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Name != PlanFree {
		t.Fatalf("expected free plan for canceled subscription, got %q", plan.Name)
	}
	if ok, _ := svc.HasFeature(ctx, "user-1", FeatureAI); ok {
		t.Fatalf("canceled subscription should not grant AI")
	}
	u, err := svc.Usage(ctx, "user-1")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if u.TraceLimit != 10 {
		t.Fatalf("expected free limit, got %d", u.TraceLimit)
	}
	if got := svc.PlanFor(canceled); got.Name != PlanFree {
		t.Fatalf("PlanFor canceled = %q, want free", got.Name)
	}
}

func TestSetPlanRejectsUnknownPlan(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	if _, err := svc.SetPlan(context.Background(), "user-1", "platinum"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestDefaultSubscriptionIsFreeActive(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	sub, err := svc.Subscription(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if sub.PlanType != PlanFree || sub.Status != StatusActive || sub.CurrentPeriodEnd != nil {
		t.Fatalf("unexpected default %+v", sub)
	}
}

func TestPlansFromConfigOverridesRows(t *testing.T) {
	plans := PlansFromConfig(map[string]config.PlanConfig{
		"Free":       {TracesPerMonth: 25, RetentionDays: 7},
		"enterprise": {TracesPerMonth: Unlimited, AIFeatures: true, APIAccess: true, RetentionDays: 730},
	})
	if got := plans.Lookup(PlanFree); got.TracesPerMonth != 25 || got.RetentionDays != 7 {
		t.Fatalf("free override not applied: %+v", got)
	}
	if got := plans.Lookup("enterprise"); !got.AIFeatures || got.RetentionDays != 730 {
		t.Fatalf("new plan not added: %+v", got)
	}
	if got := plans.Lookup(PlanPro); got.RetentionDays != 90 {
		t.Fatalf("untouched plan changed: %+v", got)
	}
	if got := plans.Lookup("missing"); got.Name != PlanFree {
		t.Fatalf("unknown plan should fall back to free, got %+v", got)
	}
}

func TestMemoryStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryStore()
	if _, err := store.Increment(ctx, "u", time.Now()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

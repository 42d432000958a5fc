package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agenttrace-backend/internal/shared/telemetry"
)

// Service applies the plan table to stored subscriptions and counters.
type Service struct {
	store Store
	plans Plans
	Now   func() time.Time
}

// NewService constructs a Service with an in-memory store.
func NewService(plans Plans) *Service {
	return NewStoreService(NewMemoryStore(), plans)
}

// NewStoreService constructs a Service over the given store.
func NewStoreService(store Store, plans Plans) *Service {
	if plans == nil {
		plans = DefaultPlans()
	}
	return &Service{store: store, plans: plans, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Plans returns the active plan table.
func (s *Service) Plans() Plans {
	return s.plans
}

// Subscription returns the user's subscription, free/active by default.
func (s *Service) Subscription(ctx context.Context, userID string) (Subscription, error) {
	return s.store.GetSubscription(ctx, userID)
}

// Plan resolves the user's current plan row. Subscriptions that are not
// active fall back to the free plan.
func (s *Service) Plan(ctx context.Context, userID string) (Plan, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	return s.PlanFor(sub), nil
}

// PlanFor returns the plan row that governs sub.
func (s *Service) PlanFor(sub Subscription) Plan {
	if sub.Status != StatusActive {
		return s.plans.Lookup(PlanFree)
	}
	return s.plans.Lookup(sub.PlanType)
}

// Usage returns the current period's trace count and limit.
func (s *Service) Usage(ctx context.Context, userID string) (Usage, error) {
	plan, err := s.Plan(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	c, err := s.store.Counter(ctx, userID, s.now())
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		TraceCount: c.TraceCount,
		TraceLimit: plan.TracesPerMonth,
		ResetDate:  c.ResetDate.Format(resetLayout),
	}, nil
}

// CanCreateTrace returns ErrLimitReached once the monthly allowance is used.
func (s *Service) CanCreateTrace(ctx context.Context, userID string) error {
	u, err := s.Usage(ctx, userID)
	if err != nil {
		return err
	}
	if u.TraceLimit == Unlimited || u.TraceCount < u.TraceLimit {
		return nil
	}
	return fmt.Errorf("%w: You've reached your monthly limit of %d traces. Upgrade to Pro for unlimited traces.", ErrLimitReached, u.TraceLimit)
}

// RecordTrace counts one stored trace against the current period.
func (s *Service) RecordTrace(ctx context.Context, userID string) error {
	c, err := s.store.Increment(ctx, userID, s.now())
	if err != nil {
		return err
	}
	telemetry.Debug("usage.trace_recorded", map[string]any{
		"user_id":     userID,
		"trace_count": c.TraceCount,
	})
	return nil
}

// HasFeature reports whether the user's plan grants feature.
func (s *Service) HasFeature(ctx context.Context, userID, feature string) (bool, error) {
	plan, err := s.Plan(ctx, userID)
	if err != nil {
		return false, err
	}
	return plan.Has(feature), nil
}

// SetPlan moves the user onto a known plan with an active status.
func (s *Service) SetPlan(ctx context.Context, userID, planName string) (Subscription, error) {
	planName = strings.ToLower(strings.TrimSpace(planName))
	if _, ok := s.plans[planName]; !ok {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownPlan, planName)
	}
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return Subscription{}, err
	}
	sub.PlanType = planName
	sub.Status = StatusActive
	sub.CancelAtPeriodEnd = false
	if planName == PlanFree {
		sub.CurrentPeriodEnd = nil
	} else {
		end := NextReset(s.now())
		sub.CurrentPeriodEnd = &end
	}
	if err := s.store.SetSubscription(ctx, userID, sub); err != nil {
		return Subscription{}, err
	}
	telemetry.Info("usage.plan_changed", map[string]any{
		"user_id": userID,
		"plan":    planName,
	})
	return sub, nil
}

package usage

import (
	"sort"
	"strings"

	"agenttrace-backend/internal/shared/config"
)

// Plan names.
const (
	PlanFree = "free"
	PlanMini = "mini"
	PlanPro  = "pro"
	PlanTeam = "team"
)

// Features gated by plan.
const (
	FeatureAI        = "ai_features"
	FeatureAPIAccess = "api_access"
)

// Unlimited marks a plan without a monthly trace cap.
const Unlimited = -1

// Plan is one row of the plan table.
type Plan struct {
	Name           string `json:"plan_type"`
	TracesPerMonth int    `json:"traces_per_month"`
	AIFeatures     bool   `json:"ai_features"`
	APIAccess      bool   `json:"api_access"`
	RetentionDays  int    `json:"retention_days"`
}

// Has reports whether the plan grants feature.
func (p Plan) Has(feature string) bool {
	switch feature {
	case FeatureAI:
		return p.AIFeatures
	case FeatureAPIAccess:
		return p.APIAccess
	default:
		return false
	}
}

// Plans maps plan name to its limits.
type Plans map[string]Plan

// DefaultPlans returns the built-in plan table.
func DefaultPlans() Plans {
	return Plans{
		PlanFree: {Name: PlanFree, TracesPerMonth: 10, RetentionDays: 30},
		PlanMini: {Name: PlanMini, TracesPerMonth: Unlimited, AIFeatures: true, APIAccess: true, RetentionDays: 30},
		PlanPro:  {Name: PlanPro, TracesPerMonth: Unlimited, AIFeatures: true, APIAccess: true, RetentionDays: 90},
		PlanTeam: {Name: PlanTeam, TracesPerMonth: Unlimited, AIFeatures: true, APIAccess: true, RetentionDays: 365},
	}
}

// PlansFromConfig layers configured rows over the defaults. Unknown names add
// new plans.
func PlansFromConfig(overrides map[string]config.PlanConfig) Plans {
	plans := DefaultPlans()
	for name, pc := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		plans[name] = Plan{
			Name:           name,
			TracesPerMonth: pc.TracesPerMonth,
			AIFeatures:     pc.AIFeatures,
			APIAccess:      pc.APIAccess,
			RetentionDays:  pc.RetentionDays,
		}
	}
	return plans
}

// Lookup returns the named plan, falling back to free.
func (p Plans) Lookup(name string) Plan {
	if plan, ok := p[strings.ToLower(name)]; ok {
		return plan
	}
	if plan, ok := p[PlanFree]; ok {
		return plan
	}
	return DefaultPlans()[PlanFree]
}

// Names lists the plan names in sorted order.
func (p Plans) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package usage

import "time"

// Subscription statuses.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// Subscription is the plan a user is on.
type Subscription struct {
	PlanType          string     `json:"plan_type"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

func defaultSubscription() Subscription {
	return Subscription{PlanType: PlanFree, Status: StatusActive}
}

// Counter is the stored monthly trace count.
type Counter struct {
	TraceCount int
	ResetDate  time.Time
}

// Usage is the caller-facing view of the current period.
type Usage struct {
	TraceCount int    `json:"trace_count"`
	TraceLimit int    `json:"trace_limit"`
	ResetDate  string `json:"reset_date"`
}

const resetLayout = "2006-01-02"

// NextReset returns the first day of the month after now, in UTC.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// rollover returns c with the count cleared when its period ended by now.
func rollover(c Counter, now time.Time) (Counter, bool) {
	if c.ResetDate.IsZero() || !now.Before(c.ResetDate) {
		return Counter{TraceCount: 0, ResetDate: NextReset(now)}, true
	}
	return c, false
}

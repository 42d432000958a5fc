package usage

import "errors"

// ErrLimitReached indicates the user exceeded their monthly trace allowance.
var ErrLimitReached = errors.New("limit reached")

// ErrUnknownPlan is returned when a plan name is not in the plan table.
var ErrUnknownPlan = errors.New("unknown plan")

package analysis

import "time"

// StepContext is the erroring step as seen by the analyzer.
type StepContext struct {
	StepType string         `json:"step_type"`
	Content  string         `json:"content"`
	Inputs   map[string]any `json:"inputs"`
	Outputs  map[string]any `json:"outputs"`
}

// PriorStep is one step preceding the erroring step.
type PriorStep struct {
	StepType string `json:"step_type"`
	Content  string `json:"content"`
}

// TraceContext carries the owning trace and the steps leading up to the error.
type TraceContext struct {
	TraceID       string      `json:"trace_id"`
	PreviousSteps []PriorStep `json:"previous_steps"`
}

// Request is one analysis request.
type Request struct {
	Error        string
	Step         StepContext
	Trace        TraceContext
	ForceRefresh bool
}

// FallbackReason tags a result that was substituted for an unusable reply.
type FallbackReason string

const (
	FallbackNone         FallbackReason = ""
	FallbackInvalidJSON  FallbackReason = "invalid_json"
	FallbackMissingField FallbackReason = "missing_field"
)

// Result is an error analysis.
type Result struct {
	Summary        string         `json:"summary"`
	RootCause      string         `json:"root_cause"`
	SuggestedFix   string         `json:"suggested_fix"`
	ModelUsed      string         `json:"model_used"`
	Cached         bool           `json:"cached"`
	CreatedAt      time.Time      `json:"created_at"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
}

// Status describes whether analysis is available.
type Status struct {
	Enabled    bool    `json:"enabled"`
	Model      *string `json:"model"`
	Configured bool    `json:"configured"`
}

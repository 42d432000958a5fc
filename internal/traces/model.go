package traces

import "time"

// Step is one canonical unit of agent activity.
type Step struct {
	ID         string         `json:"id"`
	StepType   string         `json:"step_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
	TokensUsed *int64         `json:"tokens_used,omitempty"`
	Error      string         `json:"error,omitempty"`
	Inputs     map[string]any `json:"inputs"`
	Outputs    map[string]any `json:"outputs"`
}

// Trace is a normalized agent run. Steps keep ingestion order.
type Trace struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id,omitempty"`
	Name            string         `json:"name,omitempty"`
	Description     string         `json:"description,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	Steps           []Step         `json:"steps"`
	Metadata        map[string]any `json:"metadata"`
	TotalDurationMS int64          `json:"total_duration_ms"`
	TotalTokens     int64          `json:"total_tokens"`
	ErrorCount      int            `json:"error_count"`
	IsPublic        bool           `json:"is_public"`
}

// IsGuest reports whether the trace has no owner.
func (t Trace) IsGuest() bool {
	return t.UserID == ""
}

// StepIndex returns the position of the step with the given id, or -1.
func (t Trace) StepIndex(stepID string) int {
	for i := range t.Steps {
		if t.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}

// TraceView is the outward-facing representation of a trace.
type TraceView struct {
	Trace
	ShareableURL string `json:"shareable_url"`
}

// View wraps t with its shareable path.
func (t Trace) View() TraceView {
	return TraceView{Trace: t, ShareableURL: "/trace/" + t.ID}
}

// SearchResult is one matching step.
type SearchResult struct {
	TraceID   string `json:"trace_id"`
	StepID    string `json:"step_id"`
	Snippet   string `json:"snippet"`
	TraceName string `json:"trace_name,omitempty"`
}

// Viewer identifies who is reading a trace. Both fields may be empty.
type Viewer struct {
	UserID       string
	GuestSession string
}

package traces

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultStepType = "unknown"

// fieldRule maps a canonical step field to the raw keys that may carry it,
// highest priority first.
type fieldRule struct {
	field string
	keys  []string
}

const (
	fieldID        = "id"
	fieldType      = "step_type"
	fieldContent   = "content"
	fieldDuration  = "duration_ms"
	fieldTokens    = "tokens_used"
	fieldError     = "error"
	fieldInputs    = "inputs"
	fieldOutputs   = "outputs"
	fieldTimestamp = "timestamp"
	fieldMetadata  = "metadata"
)

var stepFieldRules = []fieldRule{
	{field: fieldID, keys: []string{"id"}},
	{field: fieldType, keys: []string{"type", "step_type"}},
	{field: fieldContent, keys: []string{"content", "message"}},
	{field: fieldDuration, keys: []string{"duration_ms", "duration"}},
	{field: fieldTokens, keys: []string{"tokens_used", "tokens"}},
	{field: fieldError, keys: []string{"error", "error_message"}},
	{field: fieldInputs, keys: []string{"inputs", "input"}},
	{field: fieldOutputs, keys: []string{"outputs", "output"}},
	{field: fieldTimestamp, keys: []string{"timestamp", "time"}},
	{field: fieldMetadata, keys: []string{"metadata"}},
}

// resolveFields picks one value per canonical field. JSON null is absent.
func resolveFields(raw map[string]any) map[string]any {
	out := make(map[string]any, len(stepFieldRules))
	for _, rule := range stepFieldRules {
		for _, key := range rule.keys {
			if v, ok := raw[key]; ok && v != nil {
				out[rule.field] = v
				break
			}
		}
	}
	return out
}

// Normalizer turns loosely shaped agent logs into canonical traces.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

// NewNormalizer returns a Normalizer using the wall clock and random UUIDs.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) now() time.Time {
	if n != nil && n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

func (n *Normalizer) newID() string {
	if n != nil && n.NewID != nil {
		return n.NewID()
	}
	return uuid.NewString()
}

// Normalize canonicalizes payload. It accepts {"steps": [...]}, a bare
// sequence of steps, or a single step mapping.
func (n *Normalizer) Normalize(payload any) (Trace, error) {
	raws, err := rawSteps(payload)
	if err != nil {
		return Trace{}, err
	}

	now := n.now()
	trace := Trace{
		ID:        n.newID(),
		CreatedAt: now,
		Steps:     make([]Step, 0, len(raws)),
		Metadata:  map[string]any{},
	}

	seen := make(map[string]struct{}, len(raws))
	explicitDuration := false
	for _, raw := range raws {
		step := n.step(raw, now, seen)
		seen[step.ID] = struct{}{}

		if step.DurationMS != nil {
			explicitDuration = true
			trace.TotalDurationMS = saturatingAdd(trace.TotalDurationMS, *step.DurationMS)
		}
		if step.TokensUsed != nil {
			trace.TotalTokens = saturatingAdd(trace.TotalTokens, *step.TokensUsed)
		}
		if step.Error != "" {
			trace.ErrorCount++
		}
		trace.Steps = append(trace.Steps, step)
	}

	if !explicitDuration && len(trace.Steps) > 1 {
		first := trace.Steps[0].Timestamp
		last := trace.Steps[len(trace.Steps)-1].Timestamp
		delta := last.Sub(first).Milliseconds()
		if delta < 0 {
			delta = 0
			trace.Metadata["timestamps_out_of_order"] = true
		}
		trace.TotalDurationMS = delta
	}

	trace.Metadata["parsed_at"] = now.Format(time.RFC3339Nano)
	trace.Metadata["step_count"] = len(trace.Steps)
	return trace, nil
}

func rawSteps(payload any) ([]any, error) {
	switch p := payload.(type) {
	case map[string]any:
		switch steps := p["steps"].(type) {
		case []any:
			return steps, nil
		case []map[string]any:
			out := make([]any, len(steps))
			for i := range steps {
				out[i] = steps[i]
			}
			return out, nil
		}
		return []any{p}, nil
	case []any:
		return p, nil
	case []map[string]any:
		out := make([]any, len(p))
		for i := range p {
			out[i] = p[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected an object or an array, got %T", ErrInvalidFormat, payload)
	}
}

func (n *Normalizer) step(raw any, now time.Time, seen map[string]struct{}) Step {
	step := Step{
		StepType:  defaultStepType,
		Timestamp: now,
		Metadata:  map[string]any{},
		Inputs:    map[string]any{},
		Outputs:   map[string]any{},
	}

	m, ok := raw.(map[string]any)
	if !ok {
		step.ID = n.newID()
		step.Content = textOf(raw)
		return step
	}

	fields := resolveFields(m)

	if id, ok := fields[fieldID].(string); ok && id != "" {
		if _, dup := seen[id]; !dup {
			step.ID = id
		}
	}
	if step.ID == "" {
		step.ID = n.newID()
	}

	if v, ok := fields[fieldType]; ok {
		if s := textOf(v); s != "" {
			step.StepType = s
		}
	}
	if v, ok := fields[fieldContent]; ok {
		step.Content = textOf(v)
	}
	if v, ok := fields[fieldDuration]; ok {
		step.DurationMS = nonNegativeInt(v)
	}
	if v, ok := fields[fieldTokens]; ok {
		step.TokensUsed = nonNegativeInt(v)
	}
	if v, ok := fields[fieldError]; ok {
		step.Error = textOf(v)
	}
	if v, ok := fields[fieldInputs]; ok {
		step.Inputs = asMapping(v)
	}
	if v, ok := fields[fieldOutputs]; ok {
		step.Outputs = asMapping(v)
	}
	if v, ok := fields[fieldMetadata]; ok {
		step.Metadata = asMapping(v)
	}
	if v, ok := fields[fieldTimestamp]; ok {
		step.Timestamp = parseTimestamp(v, now)
	}
	return step
}

// asMapping wraps anything that is not a mapping as {"raw": v}.
func asMapping(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return map[string]any{"raw": v}
	}
}

// textOf renders a scalar as text. Containers become compact JSON.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, int, int64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// nonNegativeInt converts a numeric value to milliseconds or tokens. Negative
// and non-numeric values yield nil.
func nonNegativeInt(v any) *int64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= float64(math.MaxInt64) {
		return nil
	}
	out := int64(f)
	return &out
}

// saturatingAdd adds two non-negative counters, pinning at math.MaxInt64.
func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// Package sanitize redacts credential-shaped substrings from arbitrarily
// nested JSON-like values before they are stored or shown to anyone.
package sanitize

import "regexp"

// MaxDepth bounds how far Value descends into nested containers.
const MaxDepth = 64

// DepthExceeded replaces any value nested deeper than the depth bound.
const DepthExceeded = "[MAX_DEPTH_EXCEEDED]"

const replacement = "${1}: [REDACTED]"

var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)["\s]*[:=]["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)["\s]*[:=]["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(secret|token)["\s]*[:=]["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(auth[_-]?token|bearer)["\s]*[:=]["\s]*([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(private[_-]?key|privkey)["\s]*[:=]["\s]*([^"\s,}]+)`),
}

// Sanitizer applies the redaction rules in a fixed order.
type Sanitizer struct {
	patterns []*regexp.Regexp
	maxDepth int
}

// New returns a Sanitizer with the built-in rules and depth bound.
func New() *Sanitizer {
	return &Sanitizer{patterns: defaultPatterns, maxDepth: MaxDepth}
}

// WithMaxDepth returns a copy of s using a different depth bound.
func (s *Sanitizer) WithMaxDepth(depth int) *Sanitizer {
	cp := *s
	if depth > 0 {
		cp.maxDepth = depth
	}
	return &cp
}

var std = New()

// Sanitize redacts v with the default rules.
func Sanitize(v any) any {
	return std.Value(v)
}

// String redacts a single string.
func (s *Sanitizer) String(in string) string {
	out := in
	for _, re := range s.patterns {
		out = re.ReplaceAllString(out, replacement)
	}
	return out
}

// Value returns a structurally identical copy of v with every string leaf
// redacted. Mapping keys are kept as-is. The input is never mutated.
func (s *Sanitizer) Value(v any) any {
	return s.walk(v, 0)
}

func (s *Sanitizer) walk(v any, depth int) any {
	if depth > s.maxDepth {
		return DepthExceeded
	}
	switch t := v.(type) {
	case string:
		return s.String(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = s.walk(child, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = s.walk(child, depth+1)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = s.walk(child, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = s.walk(child, depth+1)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = s.walk(child, depth+1)
		}
		return out
	default:
		return v
	}
}

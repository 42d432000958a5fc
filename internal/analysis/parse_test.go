package analysis

import (
	"strings"
	"testing"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		reason  FallbackReason
		summary string
	}{
		{name: "plain", in: `{"summary":"s","root_cause":"r","suggested_fix":"f"}`, summary: "s"},
		{name: "json fence", in: "Here you go:\n```json\n{\"summary\":\"s\",\"root_cause\":\"r\",\"suggested_fix\":\"f\"}\n```", summary: "s"},
		{name: "bare fence", in: "```\n{\"summary\":\"s2\",\"root_cause\":\"r\",\"suggested_fix\":\"f\"}\n```", summary: "s2"},
		{name: "unterminated fence", in: "```json\n{\"summary\":\"s3\",\"root_cause\":\"r\",\"suggested_fix\":\"f\"}", summary: "s3"},
		{name: "not json", in: "not json", reason: FallbackInvalidJSON, summary: "Failed to parse AI response"},
		{name: "array", in: `["summary"]`, reason: FallbackInvalidJSON, summary: "Failed to parse AI response"},
		{name: "missing field", in: `{"summary":"s","root_cause":"r"}`, reason: FallbackMissingField, summary: "Error analyzing response"},
		{name: "null field", in: `{"summary":null,"root_cause":"r","suggested_fix":"f"}`, reason: FallbackMissingField, summary: "Error analyzing response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseResponse(tt.in)
			if got.reason != tt.reason {
				t.Fatalf("reason = %q, want %q", got.reason, tt.reason)
			}
			if got.fields.Summary != tt.summary {
				t.Fatalf("summary = %q, want %q", got.fields.Summary, tt.summary)
			}
			if got.fields.RootCause == "" || got.fields.SuggestedFix == "" {
				t.Fatalf("all fields must be non-empty: %+v", got.fields)
			}
		})
	}
}

func TestParseResponseNamesMissingField(t *testing.T) {
	got := parseResponse(`{"summary":"s","root_cause":"r"}`)
	if !strings.HasSuffix(got.fields.RootCause, "suggested_fix") {
		t.Fatalf("expected missing field in root cause, got %q", got.fields.RootCause)
	}
}

func TestParseResponseStringifiesNonStrings(t *testing.T) {
	got := parseResponse(`{"summary":"s","root_cause":"r","suggested_fix":["one","two"]}`)
	if got.reason != FallbackNone || got.fields.SuggestedFix != `["one","two"]` {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestBuildPromptBounds(t *testing.T) {
	prior := []PriorStep{
		{StepType: "thought", Content: "first"},
		{StepType: "action", Content: strings.Repeat("p", 300)},
		{StepType: "observation", Content: "third"},
		{Content: "fourth"},
	}
	req := buildPrompt(Request{
		Error: "KeyError: 'x'",
		Step:  StepContext{StepType: "error", Content: strings.Repeat("c", 800)},
		Trace: TraceContext{TraceID: "t", PreviousSteps: prior},
	})

	if req.System != systemPrompt || req.Temperature != 0.3 || req.MaxTokens != 500 {
		t.Fatalf("unexpected request settings %+v", req)
	}
	if strings.Contains(req.User, strings.Repeat("c", 501)) {
		t.Fatalf("content should be cut to 500 characters")
	}
	if strings.Contains(req.User, "first") {
		t.Fatalf("only the last three prior steps belong in the prompt")
	}
	if !strings.Contains(req.User, "- unknown: fourth") {
		t.Fatalf("missing prior step kind should read unknown")
	}
	if strings.Contains(req.User, strings.Repeat("p", 201)) {
		t.Fatalf("prior content should be cut to 200 characters")
	}
	if !strings.Contains(req.User, "- Inputs: None") {
		t.Fatalf("empty inputs should render as None")
	}
}

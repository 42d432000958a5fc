package analysis

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	var a, b map[string]any
	if err := json.Unmarshal([]byte(`{"query":"x","opts":{"limit":3,"deep":true}}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"opts":{"deep":true,"limit":3},"query":"x"}`), &b); err != nil {
		t.Fatal(err)
	}
	trace := TraceContext{TraceID: "t-1"}

	k1 := Fingerprint("boom", StepContext{StepType: "action", Content: "c", Inputs: a}, trace)
	k2 := Fingerprint("boom", StepContext{StepType: "action", Content: "c", Inputs: b}, trace)
	if k1 != k2 {
		t.Fatalf("expected equal keys, got %s and %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Fatalf("expected hex sha256, got %q", k1)
	}
}

func TestFingerprintChangesWithEachInput(t *testing.T) {
	base := StepContext{StepType: "action", Content: "content", Inputs: map[string]any{"a": 1}}
	trace := TraceContext{TraceID: "t-1"}
	ref := Fingerprint("boom", base, trace)

	variants := map[string]Key{
		"error":     Fingerprint("bang", base, trace),
		"step type": Fingerprint("boom", StepContext{StepType: "thought", Content: base.Content, Inputs: base.Inputs}, trace),
		"content":   Fingerprint("boom", StepContext{StepType: base.StepType, Content: "other", Inputs: base.Inputs}, trace),
		"inputs":    Fingerprint("boom", StepContext{StepType: base.StepType, Content: base.Content, Inputs: map[string]any{"a": 2}}, trace),
		"trace id":  Fingerprint("boom", base, TraceContext{TraceID: "t-2"}),
	}
	seen := map[Key]string{}
	for name, k := range variants {
		if k == ref {
			t.Fatalf("changing %s did not change the key", name)
		}
		if other, ok := seen[k]; ok {
			t.Fatalf("%s and %s collided", name, other)
		}
		seen[k] = name
	}
}

func TestFingerprintUsesFirst500Runes(t *testing.T) {
	prefix := strings.Repeat("é", 500)
	trace := TraceContext{TraceID: "t"}
	k1 := Fingerprint("e", StepContext{Content: prefix + "tail one"}, trace)
	k2 := Fingerprint("e", StepContext{Content: prefix + "tail two"}, trace)
	if k1 != k2 {
		t.Fatalf("content past 500 runes should not affect the key")
	}
}

func TestFingerprintIgnoresPreviousStepsAndOutputs(t *testing.T) {
	step := StepContext{StepType: "error", Content: "c"}
	k1 := Fingerprint("e", step, TraceContext{TraceID: "t"})
	step.Outputs = map[string]any{"x": 1}
	k2 := Fingerprint("e", step, TraceContext{TraceID: "t", PreviousSteps: []PriorStep{{StepType: "thought", Content: "p"}}})
	if k1 != k2 {
		t.Fatalf("outputs and previous steps should not feed the key")
	}
}

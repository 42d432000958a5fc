package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprintContentRunes bounds how much step content feeds the key.
const fingerprintContentRunes = 500

// Key is a cache fingerprint: a hex SHA-256 digest.
type Key string

// Fingerprint derives the cache key for an analysis request. encoding/json
// writes map keys in sorted order, so equal mappings always hash equally.
func Fingerprint(errText string, step StepContext, trace TraceContext) Key {
	inputs := step.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		inputsJSON = []byte(fmt.Sprint(inputs))
	}

	raw, _ := json.Marshal(map[string]string{
		"content":   truncateRunes(step.Content, fingerprintContentRunes),
		"error":     errText,
		"inputs":    string(inputsJSON),
		"step_type": step.StepType,
		"trace_id":  trace.TraceID,
	})
	sum := sha256.Sum256(raw)
	return Key(hex.EncodeToString(sum[:]))
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

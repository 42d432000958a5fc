package analysis

import (
	"encoding/json"
	"strings"
)

var requiredFields = []string{"summary", "root_cause", "suggested_fix"}

type parsedFields struct {
	Summary      string
	RootCause    string
	SuggestedFix string
}

// parseOutcome is either usable fields or the reason they were replaced.
type parseOutcome struct {
	fields parsedFields
	reason FallbackReason
}

func parseResponse(text string) parseOutcome {
	var obj map[string]any
	if err := json.Unmarshal([]byte(stripFences(text)), &obj); err != nil || obj == nil {
		return parseOutcome{
			fields: parsedFields{
				Summary:      "Failed to parse AI response",
				RootCause:    "The AI response could not be parsed",
				SuggestedFix: "Please try again or check the error manually",
			},
			reason: FallbackInvalidJSON,
		}
	}

	values := make([]string, len(requiredFields))
	for i, field := range requiredFields {
		v, ok := obj[field]
		if !ok || v == nil {
			return parseOutcome{
				fields: parsedFields{
					Summary:      "Error analyzing response",
					RootCause:    "Response was missing required field: " + field,
					SuggestedFix: "Please try again",
				},
				reason: FallbackMissingField,
			}
		}
		values[i] = fieldText(v)
	}
	return parseOutcome{fields: parsedFields{
		Summary:      values[0],
		RootCause:    values[1],
		SuggestedFix: values[2],
	}}
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(text, marker)
		if start < 0 {
			continue
		}
		body := text[start+len(marker):]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

func fieldText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"agenttrace-backend/internal/llm"
)

const (
	systemPrompt = "You are an expert AI debugging assistant. Analyze errors and provide clear, actionable insights."

	promptContentRunes  = 500
	priorContentRunes   = 200
	maxPriorSteps       = 3
	promptTemperature   = 0.3
	promptMaxTokens     = 500
	defaultStepTypeText = "unknown"
)

func buildPrompt(req Request) llm.CompletionRequest {
	stepType := req.Step.StepType
	if stepType == "" {
		stepType = defaultStepTypeText
	}

	inputs := "None"
	if len(req.Step.Inputs) > 0 {
		if b, err := json.MarshalIndent(req.Step.Inputs, "", "  "); err == nil {
			inputs = string(b)
		}
	}

	var prior strings.Builder
	if prev := req.Trace.PreviousSteps; len(prev) > 0 {
		if len(prev) > maxPriorSteps {
			prev = prev[len(prev)-maxPriorSteps:]
		}
		prior.WriteString("\n\nPrevious Steps Context:\n")
		for _, p := range prev {
			kind := p.StepType
			if kind == "" {
				kind = defaultStepTypeText
			}
			fmt.Fprintf(&prior, "- %s: %s\n", kind, truncateRunes(p.Content, priorContentRunes))
		}
	}

	user := fmt.Sprintf(`Analyze this AI agent error and provide a clear, actionable analysis.

Error Message:
%s

Step Context:
- Step Type: %s
- Content: %s
- Inputs: %s%s

Please provide a JSON response with the following structure:
{
  "summary": "A clear, concise error summary (1-2 sentences)",
  "root_cause": "The likely root cause of the error (1-2 sentences)",
  "suggested_fix": "Actionable steps to fix the error (2-3 numbered steps)"
}

Format your response as valid JSON only, no additional text.`,
		req.Error, stepType, truncateRunes(req.Step.Content, promptContentRunes), inputs, prior.String())

	return llm.CompletionRequest{
		System:      systemPrompt,
		User:        user,
		Temperature: promptTemperature,
		MaxTokens:   promptMaxTokens,
	}
}

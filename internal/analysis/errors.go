package analysis

import "errors"

var (
	// ErrFeatureDisabled means analysis is switched off or has no provider.
	ErrFeatureDisabled = errors.New("AI features are not enabled or the provider is not configured")
	// ErrProvider wraps a provider call that could not be completed.
	ErrProvider = errors.New("failed to analyze error")
)

package traces

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	MaxTraceBytes   = 5 << 20
	MaxFileBytes    = 10 << 20
	MaxSteps        = 1000
	MaxContentChars = 50000
)

// ValidatePayload enforces the ingestion limits the Normalizer relies on.
func ValidatePayload(payload any) error {
	switch payload.(type) {
	case map[string]any, []any:
	default:
		return fmt.Errorf("%w: expected an object or an array", ErrInvalidFormat)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(encoded) > MaxTraceBytes {
		return fmt.Errorf("%w: maximum size is %d MB", ErrPayloadTooLarge, MaxTraceBytes>>20)
	}

	raws, err := rawSteps(payload)
	if err != nil {
		return err
	}
	if len(raws) > MaxSteps {
		return fmt.Errorf("%w: maximum is %d", ErrTooManySteps, MaxSteps)
	}
	for i, raw := range raws {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		content, ok := resolveFields(m)[fieldContent].(string)
		if ok && utf8.RuneCountInString(content) > MaxContentChars {
			return fmt.Errorf("%w: step %d exceeds %d characters", ErrContentTooLong, i, MaxContentChars)
		}
	}
	return nil
}

// ValidateFile checks an uploaded file's name and size.
func ValidateFile(name string, size int64) error {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return ErrInvalidFileType
	}
	if size > MaxFileBytes {
		return fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, MaxFileBytes>>20)
	}
	return nil
}

package traces

import "errors"

var (
	ErrNotFound        = errors.New("trace not found")
	ErrInvalidFormat   = errors.New("invalid trace format")
	ErrPayloadTooLarge = errors.New("trace payload too large")
	ErrTooManySteps    = errors.New("too many steps")
	ErrContentTooLong  = errors.New("step content too long")
	ErrInvalidFileType = errors.New("only .json files are allowed")
	ErrFileTooLarge    = errors.New("file too large")
	ErrQuotaExceeded   = errors.New("trace quota exceeded")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrNoArchive       = errors.New("trace has no archived upload")
)

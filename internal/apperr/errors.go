package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrDuplicateFilename     = errors.New("duplicate filename")
	ErrRetrievalUnavailable  = errors.New("retrieval unavailable")
	ErrUnavailable           = errors.New("service unavailable")
	ErrTimeout               = errors.New("timeout")
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrTooLarge              = errors.New("too large")
	ErrRateLimited           = errors.New("rate limited")
	ErrDocumentLimitExceeded = errors.New("document limit exceeded")
)

// StageError reports a fatal failure of one pipeline stage.
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// StageFailed wraps cause as a failure of the named stage.
func StageFailed(stage string, cause error) error {
	return &StageError{Stage: stage, Cause: cause}
}

// Validation returns an ErrValidation carrying a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// FromContext maps context errors onto the taxonomy and leaves others alone.
func FromContext(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return err
	}
}

// Code returns the stable error code used in API payloads.
func Code(err error) string {
	var se *StageError
	switch {
	case errors.As(err, &se):
		return "stage_failed"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateFilename):
		return "duplicate_filename"
	case errors.Is(err, ErrDocumentLimitExceeded):
		return "document_limit_exceeded"
	case errors.Is(err, ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal_error"
	}
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	CodeRateLimited       = "rate_limited"
	CodeUnavailable       = "unavailable"
	CodeTimeout           = "timeout"
	CodeNotFound          = "not_found"
	CodePermissionDenied  = "permission_denied"
	CodeMalformedResponse = "malformed_response"
	CodeInvalidRequest    = "invalid_request"
)

// Error wraps a backend failure with a code and a retryability hint.
type Error struct {
	Code       string
	Retryable  bool
	RetryAfter time.Duration // backend supplied hint, zero when absent
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(code string, err error) *Error {
	return &Error{Code: code, Retryable: retryableCode(code), Err: err}
}

func Errorf(code, format string, args ...any) *Error {
	return NewError(code, fmt.Errorf(format, args...))
}

func retryableCode(code string) bool {
	switch code {
	case CodeRateLimited, CodeUnavailable, CodeTimeout:
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient backend failure. Context
// cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// CodeOf returns the backend code of err, or "" when err is not a backend error.
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func RetryAfterOf(err error) time.Duration {
	var be *Error
	if errors.As(err, &be) {
		return be.RetryAfter
	}
	return 0
}

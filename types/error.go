package types

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure for recovery decisions.
type Kind int

const (
	// KindTransient marks failures worth retrying (network hiccups,
	// 5xx-equivalent upstream errors).
	KindTransient Kind = iota
	// KindPermanent marks failures that retrying cannot fix (validation,
	// authorization).
	KindPermanent
	// KindTimeout is a transient specialization for deadline overruns.
	KindTimeout
	// KindRateLimit is a transient specialization for throttled requests.
	KindRateLimit
	// KindCompensation marks a failed compensating action.
	KindCompensation
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindCompensation:
		return "compensation"
	default:
		return "unknown"
	}
}

// ErrorCode identifies a failure cause across the framework.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrTargetUnavailable  ErrorCode = "TARGET_UNAVAILABLE"
	ErrCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
	ErrUnroutableInput    ErrorCode = "UNROUTABLE_INPUT"
	ErrRetryExhausted     ErrorCode = "RETRY_EXHAUSTED"
	ErrFallbackExhausted  ErrorCode = "FALLBACK_EXHAUSTED"
	ErrRotationExhausted  ErrorCode = "ROTATION_EXHAUSTED"
	ErrCompensationFailed ErrorCode = "COMPENSATION_FAILED"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// Error is a structured failure with a kind, code, and optional metadata.
type Error struct {
	Kind      Kind      `json:"kind"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Target    string    `json:"target,omitempty"`
	Retryable bool      `json:"retryable"`
	Attempts  int       `json:"attempts,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewTransient creates a retryable failure.
func NewTransient(code ErrorCode, message string) *Error {
	return &Error{Kind: KindTransient, Code: code, Message: message, Retryable: true}
}

// NewPermanent creates a non-retryable failure.
func NewPermanent(code ErrorCode, message string) *Error {
	return &Error{Kind: KindPermanent, Code: code, Message: message}
}

// NewTimeout creates a timeout failure. Timeouts are retryable.
func NewTimeout(message string) *Error {
	return &Error{Kind: KindTimeout, Code: ErrTimeout, Message: message, Retryable: true}
}

// NewRateLimit creates a rate-limit failure. Rate limits are retryable.
func NewRateLimit(message string) *Error {
	return &Error{Kind: KindRateLimit, Code: ErrRateLimited, Message: message, Retryable: true}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithTarget records which backend target produced the failure.
func (e *Error) WithTarget(target string) *Error {
	e.Target = target
	return e
}

// WithAttempts records how many attempts were made before giving up.
func (e *Error) WithAttempts(n int) *Error {
	e.Attempts = n
	return e
}

// WithRetryable overrides the retryable flag.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err should trigger a retry. Structured errors
// carry the decision themselves; context deadline overruns count as timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var c *Composite
	if errors.As(err, &c) {
		return c.Retryable()
	}
	return false
}

// IsTimeout reports whether err is a timeout failure.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRateLimit reports whether err is a rate-limit failure.
func IsRateLimit(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindRateLimit
	}
	return false
}

// IsPermanent reports whether err is a permanent failure.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindPermanent
	}
	return false
}

// GetCode extracts the error code, or "" for unstructured errors.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

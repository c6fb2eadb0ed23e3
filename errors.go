package converse

import (
	"errors"
	"fmt"
	"time"
)

// Error classes returned by Converse and Generate. Match them with errors.Is.
var (
	// ErrInvalidInput is returned for malformed turns or configuration,
	// before any network call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRemoteFailure is returned for transport or service-reported errors.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrMalformedResponse is returned when the response body lacks the
	// expected reply shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTimeout is returned when the call deadline is exceeded.
	ErrTimeout = errors.New("timeout")
)

// ErrorKind classifies an InferenceError.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota + 1
	KindRemoteFailure
	KindMalformedResponse
	KindTimeout
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindRemoteFailure:
		return ErrRemoteFailure
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown"
}

// InferenceError is the tagged error returned across the client boundary.
type InferenceError struct {
	Kind ErrorKind

	// Message is the provider's message for remote failures, verbatim.
	Message string

	// StatusCode is the HTTP status when one was observed.
	StatusCode int

	Err error
}

func (e *InferenceError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *InferenceError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// NewRemoteFailure builds a RemoteFailure carrying the provider message verbatim.
func NewRemoteFailure(message string, statusCode int, err error) *InferenceError {
	return &InferenceError{
		Kind:       KindRemoteFailure,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewMalformedResponse builds a MalformedResponse error.
func NewMalformedResponse(reason string, err error) *InferenceError {
	return &InferenceError{
		Kind:    KindMalformedResponse,
		Message: reason,
		Err:     err,
	}
}

// NewTimeout builds a Timeout error.
func NewTimeout(err error) *InferenceError {
	return &InferenceError{Kind: KindTimeout, Err: err}
}

// AsInferenceError extracts an *InferenceError from err's chain.
func AsInferenceError(err error) (*InferenceError, bool) {
	var infErr *InferenceError
	if errors.As(err, &infErr) {
		return infErr, true
	}
	return nil, false
}

// RateLimitError is returned when a rate limit is hit, locally or remotely.
// It matches ErrRemoteFailure.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Model      string
	Err        error // Underlying error from the provider
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Model, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRemoteFailure
}

// IsRateLimitError checks if an error is a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// ErrStorageNotConfigured is returned when storage operations are attempted
// without a configured storage backend.
var ErrStorageNotConfigured = errors.New("storage not configured")

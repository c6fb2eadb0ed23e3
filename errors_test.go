package converse

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInferenceError_Is(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"remote", NewRemoteFailure("Malformed input request", 400, nil), ErrRemoteFailure},
		{"malformed", NewMalformedResponse("no content", nil), ErrMalformedResponse},
		{"timeout", NewTimeout(context.DeadlineExceeded), ErrTimeout},
		{"invalid", &InferenceError{Kind: KindInvalidInput}, ErrInvalidInput},
		{"wrapped", fmt.Errorf("calling model: %w", NewRemoteFailure("boom", 0, nil)), ErrRemoteFailure},
	}

	all := []error{ErrInvalidInput, ErrRemoteFailure, ErrMalformedResponse, ErrTimeout}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, sentinel := range all {
				assert.Equal(t, sentinel == tt.want, errors.Is(tt.err, sentinel), "errors.Is(%v, %v)", tt.err, sentinel)
			}
		})
	}
}

func TestInferenceError_MessageVerbatim(t *testing.T) {
	err := NewRemoteFailure("The security token included in the request is invalid.", 403, nil)
	assert.Equal(t, "remote failure (HTTP 403): The security token included in the request is invalid.", err.Error())

	infErr, ok := AsInferenceError(fmt.Errorf("wrap: %w", err))
	assert.True(t, ok)
	assert.Equal(t, "The security token included in the request is invalid.", infErr.Message)
}

func TestInferenceError_UnwrapsCause(t *testing.T) {
	err := NewTimeout(context.DeadlineExceeded)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "timeout: context deadline exceeded", err.Error())
}

func TestRateLimitError(t *testing.T) {
	cause := errors.New("ThrottlingException")
	err := &RateLimitError{RetryAfter: time.Second, LimitType: "requests", Model: "m", Err: cause}

	assert.True(t, IsRateLimitError(fmt.Errorf("wrap: %w", err)))
	assert.True(t, errors.Is(err, ErrRemoteFailure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.False(t, IsRateLimitError(errors.New("other")))
}

package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrJobFailed, "generation failed")
	assert.Equal(t, "[JOB_FAILED] generation failed", err.Error())

	cause := errors.New("boom")
	err = NewError(ErrUpstreamRejected, "status 500").WithCause(cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestGetErrorCode(t *testing.T) {
	err := NewError(ErrWaitTimeout, "budget elapsed")
	assert.Equal(t, ErrWaitTimeout, GetErrorCode(err))

	wrapped := fmt.Errorf("while waiting: %w", err)
	assert.Equal(t, ErrWaitTimeout, GetErrorCode(wrapped))

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestHTTPStatusFor(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrMissingCredential, http.StatusUnauthorized},
		{ErrInvalidPayload, http.StatusBadRequest},
		{ErrUpstreamRejected, http.StatusBadGateway},
		{ErrUpstreamMalformed, http.StatusBadGateway},
		{ErrNoCandidateAvailable, http.StatusServiceUnavailable},
		{ErrNoChatEndpoint, http.StatusServiceUnavailable},
		{ErrIngestionFailed, http.StatusServiceUnavailable},
		{ErrJobFailed, http.StatusBadGateway},
		{ErrWaitTimeout, http.StatusGatewayTimeout},
		{ErrInternalError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatusFor(tc.code), string(tc.code))
	}
}

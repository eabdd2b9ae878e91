package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewUpstreamFetchError("app_types", fmt.Errorf("connection refused"))
	assert.Equal(t, "app_types fetch failed: connection refused", err.Error())

	plain := NewMissingCredentialsError("account id and api key are required")
	assert.Equal(t, "account id and api key are required", plain.Error())
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("running assessment: %w", NewMissingCredentialsError("missing"))

	assert.True(t, IsType(wrapped, ErrorTypeMissingCredentials))
	assert.False(t, IsType(wrapped, ErrorTypePipeline))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypePipeline))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewUpstreamFetchError("events", nil)))
	assert.False(t, IsRetryable(NewMalformedResponseError("events", "bad json")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewPipelineError("assessment failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.ErrorIs(t, Wrap(cause, "context"), cause)
}

func TestNewUpstreamStatusError_Retryable(t *testing.T) {
	assert.True(t, IsRetryable(NewUpstreamStatusError(429, nil)))
	assert.True(t, IsRetryable(NewUpstreamStatusError(503, nil)))
	assert.False(t, IsRetryable(NewUpstreamStatusError(403, nil)))

	err := NewUpstreamStatusError(404, nil)
	assert.True(t, IsType(err, ErrorTypeUpstreamFetch))
	assert.Equal(t, "upstream returned status 404", err.Error())
}

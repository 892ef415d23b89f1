package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "test-op", func(_ context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesRetryableThenSucceeds(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "test-op", func(_ context.Context) error {
		calls++
		if calls < 2 {
			return &NetworkError{Code: "ETIMEDOUT"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_ExhaustsRetriesAndReraisesOriginal(t *testing.T) {
	calls := 0
	sentinel := &NetworkError{Code: "ECONNRESET"}
	err := WithRetry(context.Background(), "test-op", func(_ context.Context) error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
	assert.ErrorIs(t, err, sentinel)
}

func TestWithRetry_RetriesOnRetryableHTTPStatus(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "test-op", func(_ context.Context) error {
		calls++
		if calls < 2 {
			return &NetworkError{Status: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&NetworkError{Code: "ECONNREFUSED"}))
	assert.True(t, isRetryable(&NetworkError{ErrorCode: "rate_limit_exceeded"}))
	assert.True(t, isRetryable(&NetworkError{Status: 429}))
	assert.False(t, isRetryable(&NetworkError{Status: 404}))
	assert.False(t, isRetryable(errors.New("plain error")))
}

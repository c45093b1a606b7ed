package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationErrors(t *testing.T) {
	for _, err := range []error{ErrAIDisabled, ErrMissingAPIKey, ErrMissingConsent, ErrUnsupportedProvider} {
		assert.True(t, IsConfigurationError(err), err.Error())
		assert.False(t, IsRetryable(err))
	}

	wrapped := NewUserError("Set your API key in settings", ErrMissingAPIKey)
	assert.True(t, IsConfigurationError(wrapped))
	assert.Contains(t, wrapped.Error(), "Set your API key")
	assert.False(t, IsConfigurationError(ErrAIUnavailable))
	assert.ErrorIs(t, ErrMalformedAnswer, ErrAIUnavailable)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("boom"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("boom"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWithRetry(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &RetryableError{Err: errors.New("flaky"), Retryable: true}
			}
			return nil
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: ErrMissingAPIKey, Retryable: false}
		}, opts)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("exhausts attempts and keeps cause", func(t *testing.T) {
		cause := fmt.Errorf("%w: status 503", ErrAIUnavailable)
		err := WithRetry(context.Background(), func() error {
			return &RetryableError{Err: cause, Retryable: true}
		}, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.ErrorIs(t, err, ErrAIUnavailable)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return &RetryableError{Err: errors.New("flaky"), Retryable: true}
		}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Second})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "url", "https://go.dev")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"url":"https://go.dev"`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to capacity", func(t *testing.T) {
		rl := newRateLimiter(10)
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			require.NoError(t, rl.wait(ctx))
		}
		assert.False(t, rl.tryAcquire(), "11th request within the minute should not get a token")
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := rl.wait(ctx)
		assert.Error(t, err)
	})

	t.Run("default rate", func(t *testing.T) {
		rl := newRateLimiter(0)
		assert.Equal(t, defaultRequestsPerMinute, rl.limiter.Burst())
	})
}

package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// defaultRequestsPerMinute applies when no rate limit is configured.
const defaultRequestsPerMinute = 60

// rateLimiter spaces out provider calls with a token bucket whose capacity
// equals one minute of requests.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter creates a limiter allowing requestsPerMinute calls.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Every(every), requestsPerMinute),
	}
}

// wait blocks until a token is available or the context is done.
func (rl *rateLimiter) wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// tryAcquire takes a token without blocking.
func (rl *rateLimiter) tryAcquire() bool {
	return rl.limiter.Allow()
}

package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Veraticus/do-one-thing/internal/common"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one system+user exchange expecting a JSON reply.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// statusError converts a non-200 provider response into an error. Rate
// limiting and server failures are retryable; other client errors are not.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, truncate(string(body), 512))
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

// transportError marks a failure to reach the provider as retryable.
func transportError(msg string, err error) error {
	return &common.RetryableError{Err: fmt.Errorf("%s: %w", msg, err), Retryable: true}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

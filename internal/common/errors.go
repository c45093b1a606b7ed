// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")
	ErrCacheIO  = errors.New("cache storage failure")

	// Configuration errors. Every one of these wraps ErrConfiguration.
	ErrConfiguration       = errors.New("configuration error")
	ErrAIDisabled          = fmt.Errorf("%w: AI classification is disabled", ErrConfiguration)
	ErrMissingAPIKey       = fmt.Errorf("%w: API key is missing", ErrConfiguration)
	ErrMissingConsent      = fmt.Errorf("%w: consent to send browsing data to the AI provider has not been given", ErrConfiguration)
	ErrUnsupportedProvider = fmt.Errorf("%w: unsupported AI provider", ErrConfiguration)

	// Classification errors.
	ErrAIUnavailable   = errors.New("AI service unavailable")
	ErrMalformedAnswer = fmt.Errorf("%w: malformed response", ErrAIUnavailable)

	// Session errors.
	ErrNoActiveSession = errors.New("no active focus session")
	ErrInvalidURL      = errors.New("invalid URL")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsConfigurationError reports whether err is a user-actionable configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if IsConfigurationError(err) || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

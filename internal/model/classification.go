// Package model defines the core domain models used throughout the application.
package model

import "time"

// VerdictSource identifies which stage of the decision pipeline produced a verdict.
type VerdictSource string

// Verdict source constants.
const (
	SourceRules VerdictSource = "rules"
	SourceCache VerdictSource = "cache"
	SourceAI    VerdictSource = "ai"
)

// ClassificationRequest is a single navigation or page-load event to classify.
type ClassificationRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Verdict is the outcome of classifying one URL against the active session.
type Verdict struct {
	Timestamp  time.Time     `json:"timestamp"`
	URL        string        `json:"url"`
	Reason     string        `json:"reason,omitempty"`
	Source     VerdictSource `json:"source"`
	Confidence int           `json:"confidence"`
	Relevant   bool          `json:"relevant"`
}

// Blocked reports whether the verdict requires the page to be blocked.
func (v Verdict) Blocked() bool {
	return !v.Relevant
}

// Expired reports whether the verdict is older than ttl at the given instant.
func (v Verdict) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(v.Timestamp) > ttl
}

// ClampConfidence bounds an opaque confidence score to the 0-100 range.
func ClampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}

package model

import (
	"fmt"
	"time"
)

// Strictness biases the AI classifier towards allowing or blocking.
type Strictness string

// Strictness levels.
const (
	StrictnessRelaxed  Strictness = "relaxed"
	StrictnessStandard Strictness = "standard"
	StrictnessStrict   Strictness = "strict"
)

// ParseStrictness converts user input into a Strictness, rejecting unknown values.
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(s) {
	case StrictnessRelaxed, StrictnessStandard, StrictnessStrict:
		return Strictness(s), nil
	case "":
		return StrictnessStandard, nil
	default:
		return "", fmt.Errorf("invalid strictness %q (want relaxed, standard or strict)", s)
	}
}

// RuleSet holds the explicit domain rules of a focus session.
type RuleSet struct {
	Strictness        Strictness `json:"strictness"`
	Keywords          []string   `json:"keywords,omitempty"`
	AllowedCategories []string   `json:"allowedCategories,omitempty"`
	BlockedCategories []string   `json:"blockedCategories,omitempty"`
	AllowedDomains    []string   `json:"allowedDomains"`
	BlockedDomains    []string   `json:"blockedDomains"`
}

// WithAllowedDomain returns a copy of the rule set with domain appended to the allow list.
func (r RuleSet) WithAllowedDomain(domain string) RuleSet {
	allowed := make([]string, 0, len(r.AllowedDomains)+1)
	allowed = append(allowed, r.AllowedDomains...)
	for _, d := range allowed {
		if d == domain {
			r.AllowedDomains = allowed
			return r
		}
	}
	r.AllowedDomains = append(allowed, domain)
	return r
}

// FocusSession is a period during which browsing is restricted to one intent.
type FocusSession struct {
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	ID           string     `json:"id"`
	Intent       string     `json:"intent"`
	Rules        RuleSet    `json:"rules"`
	BlockedCount int        `json:"blockedCount"`
	Active       bool       `json:"active"`
}

// Duration returns how long the session has run as of now, or in total once ended.
func (s FocusSession) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// Focus is what the AI stage needs to judge relevance.
type Focus struct {
	Intent     string     `json:"intent"`
	Strictness Strictness `json:"strictness"`
	Keywords   []string   `json:"keywords,omitempty"`
}

// Focus returns the AI-facing view of the session.
func (s FocusSession) Focus() Focus {
	strictness := s.Rules.Strictness
	if strictness == "" {
		strictness = StrictnessStandard
	}
	return Focus{
		Intent:     s.Intent,
		Keywords:   s.Rules.Keywords,
		Strictness: strictness,
	}
}

// IntentAnalysis is the AI's interpretation of a user's stated focus goal.
type IntentAnalysis struct {
	Intent            string   `json:"intent"`
	Keywords          []string `json:"keywords"`
	AllowedCategories []string `json:"allowedCategories"`
	BlockedCategories []string `json:"blockedCategories"`
	SuggestedWebsites []string `json:"suggestedWebsites"`
	Confidence        int      `json:"confidence"`
}

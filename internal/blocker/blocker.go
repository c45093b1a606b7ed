// Package blocker reacts to top-level navigations by redirecting tabs away
// from pages that are not relevant to the active focus session.
package blocker

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
)

// DefaultBlockedPage is where blocked tabs are sent unless configured otherwise.
const DefaultBlockedPage = "chrome-extension://onething/blocked/index.html"

// DefaultReason is shown when a verdict carries no reason.
const DefaultReason = "Not relevant to your focus goal"

// Navigation describes a navigation reported by the browser.
type Navigation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	TabID   int    `json:"tabId"`
	FrameID int    `json:"frameId"`
}

// Outcome is what HandleNavigation decided.
type Outcome struct {
	Verdict    *model.Verdict `json:"verdict,omitempty"`
	RedirectTo string         `json:"redirectTo,omitempty"`
	Skipped    bool           `json:"skipped"`
}

// Classifier produces a verdict for a navigation.
type Classifier interface {
	Classify(ctx context.Context, req model.ClassificationRequest) model.Verdict
}

// SessionCounter counts blocked navigations against the active session.
type SessionCounter interface {
	RecordBlocked(ctx context.Context) error
}

// Redirector sends a tab to another URL.
type Redirector interface {
	Redirect(ctx context.Context, tabID int, target string) error
}

// RedirectorFunc adapts a function to Redirector.
type RedirectorFunc func(ctx context.Context, tabID int, target string) error

// Redirect calls f.
func (f RedirectorFunc) Redirect(ctx context.Context, tabID int, target string) error {
	return f(ctx, tabID, target)
}

// Blocker decides and enforces navigation blocking.
type Blocker struct {
	classifier  Classifier
	sessions    SessionCounter
	redirector  Redirector
	logger      *slog.Logger
	blockedPage string
}

// New creates a blocker. An empty blockedPage uses DefaultBlockedPage; a nil
// redirector only reports the redirect target.
func New(classifier Classifier, sessions SessionCounter, redirector Redirector, blockedPage string, logger *slog.Logger) *Blocker {
	if blockedPage == "" {
		blockedPage = DefaultBlockedPage
	}
	return &Blocker{
		classifier:  classifier,
		sessions:    sessions,
		redirector:  redirector,
		blockedPage: blockedPage,
		logger:      common.LoggerOrDefault(logger),
	}
}

// HandleNavigation classifies a main-frame navigation and redirects the tab
// when the page is not relevant. Sub-frames, browser pages and the blocked
// page itself are skipped.
func (b *Blocker) HandleNavigation(ctx context.Context, nav Navigation) (Outcome, error) {
	if nav.FrameID != 0 || pattern.IsPlatformInternal(nav.URL) || strings.HasPrefix(nav.URL, b.blockedPage) {
		return Outcome{Skipped: true}, nil
	}

	verdict := b.classifier.Classify(ctx, model.ClassificationRequest{URL: nav.URL, Title: nav.Title})
	outcome := Outcome{Verdict: &verdict}
	if verdict.Relevant {
		return outcome, nil
	}

	if err := b.sessions.RecordBlocked(ctx); err != nil {
		b.logger.Warn("Failed to count blocked navigation", "url", nav.URL, "error", err)
	}

	outcome.RedirectTo = b.BlockedURL(nav.URL, verdict.Reason)
	b.logger.Info("Blocking navigation",
		"tab", nav.TabID,
		"url", pattern.NormalizeURL(nav.URL),
		"reason", verdict.Reason,
		"source", verdict.Source)

	if b.redirector != nil {
		if err := b.redirector.Redirect(ctx, nav.TabID, outcome.RedirectTo); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// BlockedURL builds the blocked-page address for rawURL.
func (b *Blocker) BlockedURL(rawURL, reason string) string {
	if reason == "" {
		reason = DefaultReason
	}
	return b.blockedPage + "?url=" + url.QueryEscape(rawURL) + "&reason=" + url.QueryEscape(reason)
}

// Package engine implements the layered decision pipeline that turns a
// navigation into a relevance verdict.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
	"github.com/Veraticus/do-one-thing/internal/telemetry"
)

// Verdict reasons produced by the rule stages.
const (
	ReasonInternalPage  = "Browser internal page"
	ReasonNoSession     = "No active focus session"
	ReasonAllowed       = "Domain in whitelist"
	ReasonBlocked       = "Domain in blacklist"
	ReasonAIUnavailable = "AI unavailable, allowing by default"
)

// FallbackConfidence is the confidence of the fail-open verdict.
const FallbackConfidence = 40

// Engine classifies requests against the active session's rules, the
// verdict cache and the AI classifier, in that order.
type Engine struct {
	classifier Classifier
	cache      VerdictCache
	stats      StatsRecorder
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	now        func() time.Time
	active     atomic.Pointer[snapshot]
	flight     singleflight.Group
	config     Config
}

// Config holds configuration options for the engine.
type Config struct {
	// Coalesce makes concurrent AI lookups for the same URL share one call.
	Coalesce bool
	// BatchWorkers bounds per-item fallback concurrency when a batch call fails.
	BatchWorkers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Coalesce:     true,
		BatchWorkers: 4,
	}
}

// snapshot is the immutable view of a session used for one classification.
type snapshot struct {
	rules *pattern.Rules
	focus model.Focus
}

// New creates an engine with the default configuration.
func New(classifier Classifier, cache VerdictCache, stats StatsRecorder, logger *slog.Logger) *Engine {
	return NewWithConfig(classifier, cache, stats, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(classifier Classifier, cache VerdictCache, stats StatsRecorder, logger *slog.Logger, config Config) *Engine {
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = DefaultConfig().BatchWorkers
	}
	return &Engine{
		classifier: classifier,
		cache:      cache,
		stats:      stats,
		logger:     common.LoggerOrDefault(logger),
		now:        time.Now,
		config:     config,
	}
}

// SetMetrics attaches telemetry instruments.
func (e *Engine) SetMetrics(m *telemetry.Metrics) {
	e.metrics = m
}

// SetSession installs the rule set of session. A nil or inactive session
// clears it, after which every request is allowed. In-flight classifications
// keep the snapshot they started with.
func (e *Engine) SetSession(session *model.FocusSession) {
	if session == nil || !session.Active {
		e.active.Store(nil)
		e.logger.Debug("Engine rule set cleared")
		return
	}

	e.active.Store(&snapshot{
		rules: pattern.CompileRules(session.Rules),
		focus: session.Focus(),
	})
	e.logger.Debug("Engine rule set installed",
		"intent", session.Intent,
		"allowed", len(session.Rules.AllowedDomains),
		"blocked", len(session.Rules.BlockedDomains),
		"strictness", session.Rules.Strictness)
}

// Active reports whether a session rule set is installed.
func (e *Engine) Active() bool {
	return e.active.Load() != nil
}

// Classify returns a verdict for req. It never fails: AI and cache errors
// resolve to an allow verdict.
func (e *Engine) Classify(ctx context.Context, req model.ClassificationRequest) model.Verdict {
	v := e.classify(ctx, req, e.active.Load())
	e.metrics.RecordVerdict(ctx, v)
	return v
}

func (e *Engine) classify(ctx context.Context, req model.ClassificationRequest, snap *snapshot) model.Verdict {
	if v, ok := e.applyRules(ctx, req, snap); ok {
		return v
	}

	domain := pattern.ExtractDomain(req.URL)

	if v, ok := e.lookupCache(ctx, req.URL); ok {
		if !v.Relevant {
			e.recordBlocked(ctx, domain)
		}
		return v
	}

	v := e.classifyAI(ctx, req, snap)
	if !v.Relevant {
		e.recordBlocked(ctx, domain)
	}
	return v
}

// applyRules runs the bypass, no-session, allow and deny stages.
func (e *Engine) applyRules(ctx context.Context, req model.ClassificationRequest, snap *snapshot) (model.Verdict, bool) {
	if pattern.IsPlatformInternal(req.URL) {
		return e.rulesVerdict(req.URL, true, ReasonInternalPage), true
	}

	if snap == nil {
		return e.rulesVerdict(req.URL, true, ReasonNoSession), true
	}

	domain := pattern.ExtractDomain(req.URL)

	if snap.rules.Allowed(domain) {
		return e.rulesVerdict(req.URL, true, ReasonAllowed), true
	}

	if snap.rules.Denied(domain) {
		e.recordBlocked(ctx, domain)
		return e.rulesVerdict(req.URL, false, ReasonBlocked), true
	}

	return model.Verdict{}, false
}

// lookupCache returns a cached verdict relabeled as coming from the cache.
func (e *Engine) lookupCache(ctx context.Context, url string) (model.Verdict, bool) {
	v, ok, err := e.cache.Get(ctx, url)
	if err != nil {
		e.logger.Warn("Cache read failed, treating as miss",
			"url", url,
			"error", err)
		return model.Verdict{}, false
	}
	if !ok {
		return model.Verdict{}, false
	}
	v.Source = model.SourceCache
	return v, true
}

// classifyAI asks the classifier and caches the answer, or the fail-open
// verdict if the classifier fails. The work is detached from ctx so an
// abandoned request still populates the cache.
func (e *Engine) classifyAI(ctx context.Context, req model.ClassificationRequest, snap *snapshot) model.Verdict {
	work := func() model.Verdict {
		detached := context.WithoutCancel(ctx)

		v, err := e.classifier.Classify(detached, req, snap.focus)
		if err != nil {
			e.logger.Warn("AI classification failed, allowing by default",
				"url", req.URL,
				"error", err)
			v = e.fallbackVerdict(req.URL)
		} else {
			v.URL = req.URL
			v.Source = model.SourceAI
			v.Confidence = model.ClampConfidence(v.Confidence)
			if v.Timestamp.IsZero() {
				v.Timestamp = e.now()
			}
		}

		if err := e.cache.Put(detached, v); err != nil {
			e.logger.Warn("Cache write failed",
				"url", req.URL,
				"error", err)
		}
		return v
	}

	if !e.config.Coalesce {
		return work()
	}

	key := string(snap.focus.Strictness) + "\x00" + snap.focus.Intent + "\x00" + req.URL
	result, _, _ := e.flight.Do(key, func() (any, error) {
		return work(), nil
	})
	v, _ := result.(model.Verdict)
	return v
}

func (e *Engine) rulesVerdict(url string, relevant bool, reason string) model.Verdict {
	return model.Verdict{
		URL:        url,
		Relevant:   relevant,
		Confidence: 100,
		Reason:     reason,
		Source:     model.SourceRules,
		Timestamp:  e.now(),
	}
}

func (e *Engine) fallbackVerdict(url string) model.Verdict {
	return model.Verdict{
		URL:        url,
		Relevant:   true,
		Confidence: FallbackConfidence,
		Reason:     ReasonAIUnavailable,
		Source:     model.SourceRules,
		Timestamp:  e.now(),
	}
}

func (e *Engine) recordBlocked(ctx context.Context, domain string) {
	e.metrics.RecordBlocked(ctx, domain)
	if e.stats == nil {
		return
	}
	if err := e.stats.IncrementBlocked(ctx, domain); err != nil {
		e.logger.Warn("Failed to record blocked domain",
			"domain", domain,
			"error", err)
	}
}

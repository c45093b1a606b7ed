// Package session manages the lifecycle of focus sessions: starting one from
// a stated goal, relaxing its rules, and recording it when it ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
	"github.com/Veraticus/do-one-thing/internal/storage"
)

// IntentAnalyzer turns a free-form focus goal into keywords and suggested sites.
type IntentAnalyzer interface {
	AnalyzeIntent(ctx context.Context, input string) (model.IntentAnalysis, error)
}

// RuleSink receives the rule set of the current session.
type RuleSink interface {
	SetSession(session *model.FocusSession)
}

// CacheInvalidator drops cached verdicts that a rule change makes stale.
type CacheInvalidator interface {
	Clear(ctx context.Context) error
	Remove(ctx context.Context, url string) error
}

// Manager owns the current focus session. All mutations are serialized.
type Manager struct {
	analyzer IntentAnalyzer
	state    *storage.State
	rules    RuleSink
	cache    CacheInvalidator
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	mu       sync.Mutex
}

// NewManager creates a session manager.
func NewManager(analyzer IntentAnalyzer, state *storage.State, rules RuleSink, cache CacheInvalidator, logger *slog.Logger) *Manager {
	return &Manager{
		analyzer: analyzer,
		state:    state,
		rules:    rules,
		cache:    cache,
		logger:   common.LoggerOrDefault(logger),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Start begins a session for intent. An already active session is ended and
// recorded first. Configuration problems with the AI service prevent the start.
func (m *Manager) Start(ctx context.Context, intent string) (*model.FocusSession, error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return nil, common.NewUserError("Please describe what you want to focus on", errors.New("empty focus goal"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, err := m.analyzer.AnalyzeIntent(ctx, intent)
	if err != nil {
		if common.IsConfigurationError(err) {
			return nil, common.NewUserError("Configure the AI service before starting a focus session", err)
		}
		return nil, fmt.Errorf("failed to analyze focus goal: %w", err)
	}

	settings, err := m.state.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if _, err := m.endLocked(ctx); err != nil && !errors.Is(err, common.ErrNoActiveSession) {
		return nil, fmt.Errorf("failed to end previous session: %w", err)
	}

	sessionIntent := analysis.Intent
	if sessionIntent == "" {
		sessionIntent = intent
	}

	allowed := make([]string, 0, len(analysis.SuggestedWebsites)+len(settings.Whitelist))
	allowed = append(allowed, analysis.SuggestedWebsites...)
	allowed = append(allowed, settings.Whitelist...)
	blocked := append([]string{}, settings.Blacklist...)

	session := &model.FocusSession{
		ID:        m.newID(),
		Intent:    sessionIntent,
		StartTime: m.now(),
		Active:    true,
		Rules: model.RuleSet{
			Keywords:          analysis.Keywords,
			AllowedCategories: analysis.AllowedCategories,
			BlockedCategories: analysis.BlockedCategories,
			AllowedDomains:    allowed,
			BlockedDomains:    blocked,
			Strictness:        settings.Strictness,
		},
	}

	if err := m.state.SetCurrentSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	// Verdicts cached under the previous goal no longer apply.
	if err := m.cache.Clear(ctx); err != nil {
		m.logger.Warn("Failed to clear verdict cache", "error", err)
	}
	m.rules.SetSession(session)

	m.logger.Info("Focus session started",
		"id", session.ID,
		"intent", session.Intent,
		"allowed", len(allowed),
		"blocked", len(blocked),
		"strictness", session.Rules.Strictness)

	return session, nil
}

// End finishes the active session, records its duration and moves it to history.
func (m *Manager) End(ctx context.Context) (*model.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endLocked(ctx)
}

func (m *Manager) endLocked(ctx context.Context) (*model.FocusSession, error) {
	session, err := m.state.CurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || !session.Active {
		return nil, common.ErrNoActiveSession
	}

	end := m.now()
	session.Active = false
	session.EndTime = &end
	duration := session.Duration(end)

	if err := m.state.RecordSessionEnd(ctx, duration); err != nil {
		return nil, fmt.Errorf("failed to update stats: %w", err)
	}
	if err := m.state.AddSession(ctx, *session); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	if err := m.state.SetCurrentSession(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to clear session: %w", err)
	}
	m.rules.SetSession(nil)

	m.logger.Info("Focus session ended",
		"id", session.ID,
		"duration", duration,
		"blocked", session.BlockedCount)

	return session, nil
}

// AllowDomain adds the domain of rawURL to the active session's allow list and
// forgets the cached verdict for rawURL.
func (m *Manager) AllowDomain(ctx context.Context, rawURL string) (*model.FocusSession, error) {
	if err := pattern.Validate(rawURL); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.active(ctx)
	if err != nil {
		return nil, err
	}

	domain := pattern.ExtractDomain(rawURL)
	session.Rules = session.Rules.WithAllowedDomain(domain)

	if err := m.state.SetCurrentSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := m.cache.Remove(ctx, rawURL); err != nil {
		m.logger.Warn("Failed to drop cached verdict", "url", rawURL, "error", err)
	}
	m.rules.SetSession(session)

	m.logger.Info("Domain allowed for session", "id", session.ID, "domain", domain)
	return session, nil
}

// RecordBlocked counts one blocked navigation against the active session.
// Without an active session it does nothing.
func (m *Manager) RecordBlocked(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.active(ctx)
	if errors.Is(err, common.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		return err
	}
	session.BlockedCount++
	return m.state.SetCurrentSession(ctx, session)
}

// Restore reinstalls a persisted active session, typically at process start.
// It returns nil when there is nothing to restore.
func (m *Manager) Restore(ctx context.Context) (*model.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.active(ctx)
	if errors.Is(err, common.ErrNoActiveSession) {
		m.rules.SetSession(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.rules.SetSession(session)
	m.logger.Info("Focus session restored", "id", session.ID, "intent", session.Intent)
	return session, nil
}

// Current returns the persisted session, active or not, or nil.
func (m *Manager) Current(ctx context.Context) (*model.FocusSession, error) {
	return m.state.CurrentSession(ctx)
}

// History returns finished sessions, newest first.
func (m *Manager) History(ctx context.Context) ([]model.FocusSession, error) {
	sessions, err := m.state.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	return sessions, nil
}

func (m *Manager) active(ctx context.Context) (*model.FocusSession, error) {
	session, err := m.state.CurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || !session.Active {
		return nil, common.ErrNoActiveSession
	}
	return session, nil
}

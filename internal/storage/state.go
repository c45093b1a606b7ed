package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/service"
)

// MaxSessionHistory is the number of finished sessions retained.
const MaxSessionHistory = 50

// State provides typed access to the persisted application state. Each key is
// read and written independently; there is no cross-key transaction.
// Read-modify-write updates are serialized within the process by mu.
type State struct {
	kv  service.KVStore
	now func() time.Time
	mu  sync.Mutex
}

// NewState wraps kv. A nil clock uses time.Now.
func NewState(kv service.KVStore, now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{kv: kv, now: now}
}

// getJSON decodes key into dst and reports whether the key existed.
func (s *State) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *State) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, raw)
}

// CurrentSession returns the persisted focus session, or nil when none exists.
func (s *State) CurrentSession(ctx context.Context) (*model.FocusSession, error) {
	var session model.FocusSession
	found, err := s.getJSON(ctx, service.KeyCurrentSession, &session)
	if err != nil || !found {
		return nil, err
	}
	return &session, nil
}

// SetCurrentSession persists session; nil removes it.
func (s *State) SetCurrentSession(ctx context.Context, session *model.FocusSession) error {
	if session == nil {
		return s.kv.Remove(ctx, service.KeyCurrentSession)
	}
	return s.setJSON(ctx, service.KeyCurrentSession, session)
}

// Stats returns the aggregate statistics, zeroed if none were recorded yet.
func (s *State) Stats(ctx context.Context) (model.Stats, error) {
	stats := model.NewStats(s.now())
	if _, err := s.getJSON(ctx, service.KeyStats, &stats); err != nil {
		return model.Stats{}, err
	}
	if stats.WebsitesBlocked == nil {
		stats.WebsitesBlocked = make(map[string]int)
	}
	return stats, nil
}

// IncrementBlocked records one blocked observation of domain.
func (s *State) IncrementBlocked(ctx context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	stats.TotalBlocked++
	stats.WebsitesBlocked[domain]++
	stats.LastUpdated = s.now()
	return s.setJSON(ctx, service.KeyStats, stats)
}

// RecordSessionEnd adds focus time and counts one completed session.
func (s *State) RecordSessionEnd(ctx context.Context, focused time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	stats.TotalFocusTime += focused
	stats.SessionsCompleted++
	stats.LastUpdated = s.now()
	return s.setJSON(ctx, service.KeyStats, stats)
}

// ResetStats zeroes all statistics.
func (s *State) ResetStats(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setJSON(ctx, service.KeyStats, model.NewStats(s.now()))
}

// Settings returns the user's settings, or the defaults.
func (s *State) Settings(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()
	if _, err := s.getJSON(ctx, service.KeySettings, &settings); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

// UpdateSettings merges update into the stored settings and returns the result.
func (s *State) UpdateSettings(ctx context.Context, update model.SettingsUpdate) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Settings(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	updated := update.Apply(current)
	if _, err := model.ParseStrictness(string(updated.Strictness)); err != nil {
		return model.Settings{}, err
	}
	if err := s.setJSON(ctx, service.KeySettings, updated); err != nil {
		return model.Settings{}, err
	}
	return updated, nil
}

// Sessions returns finished sessions, oldest first.
func (s *State) Sessions(ctx context.Context) ([]model.FocusSession, error) {
	var sessions []model.FocusSession
	if _, err := s.getJSON(ctx, service.KeySessions, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// AddSession appends a finished session, keeping the newest MaxSessionHistory.
func (s *State) AddSession(ctx context.Context, session model.FocusSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.Sessions(ctx)
	if err != nil {
		return err
	}
	sessions = append(sessions, session)
	if len(sessions) > MaxSessionHistory {
		sessions = sessions[len(sessions)-MaxSessionHistory:]
	}
	return s.setJSON(ctx, service.KeySessions, sessions)
}

// Export returns every stored document keyed by name.
func (s *State) Export(ctx context.Context) (map[string]json.RawMessage, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = json.RawMessage(raw)
	}
	return out, nil
}

// Import writes each document back under its key.
func (s *State) Import(ctx context.Context, data map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, raw := range data {
		if err := s.kv.Set(ctx, key, raw); err != nil {
			return err
		}
	}
	return nil
}

// ClearAll removes all persisted state.
func (s *State) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Clear(ctx)
}

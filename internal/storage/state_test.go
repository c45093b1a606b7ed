package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/service"
)

func newTestState(t *testing.T) (*State, *time.Time) {
	t.Helper()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewState(NewMemoryStore(), func() time.Time { return now }), &now
}

func TestState_CurrentSession(t *testing.T) {
	ctx := context.Background()
	state, now := newTestState(t)

	session, err := state.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	want := &model.FocusSession{
		ID:        "s1",
		Intent:    "Research Python decorators",
		StartTime: *now,
		Active:    true,
		Rules:     model.RuleSet{Strictness: model.StrictnessStandard, AllowedDomains: []string{"python.org"}},
	}
	require.NoError(t, state.SetCurrentSession(ctx, want))

	got, err := state.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Intent, got.Intent)
	assert.True(t, got.StartTime.Equal(want.StartTime))
	assert.Equal(t, []string{"python.org"}, got.Rules.AllowedDomains)

	require.NoError(t, state.SetCurrentSession(ctx, nil))
	got, err = state.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestState_Stats(t *testing.T) {
	ctx := context.Background()
	state, _ := newTestState(t)

	stats, err := state.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBlocked)
	assert.NotNil(t, stats.WebsitesBlocked)

	require.NoError(t, state.IncrementBlocked(ctx, "instagram.com"))
	require.NoError(t, state.IncrementBlocked(ctx, "instagram.com"))
	require.NoError(t, state.IncrementBlocked(ctx, "reddit.com"))
	require.NoError(t, state.RecordSessionEnd(ctx, 25*time.Minute))

	stats, err = state.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBlocked)
	assert.Equal(t, 2, stats.WebsitesBlocked["instagram.com"])
	assert.Equal(t, 1, stats.WebsitesBlocked["reddit.com"])
	assert.Equal(t, 25*time.Minute, stats.TotalFocusTime)
	assert.Equal(t, 1, stats.SessionsCompleted)

	require.NoError(t, state.ResetStats(ctx))
	stats, err = state.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBlocked)
	assert.Empty(t, stats.WebsitesBlocked)
}

func TestState_Settings(t *testing.T) {
	ctx := context.Background()
	state, _ := newTestState(t)

	settings, err := state.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), settings)

	strict := model.StrictnessStrict
	aiOff := false
	updated, err := state.UpdateSettings(ctx, model.SettingsUpdate{
		Strictness: &strict,
		Whitelist:  []string{"docs.python.org"},
		AIEnabled:  &aiOff,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StrictnessStrict, updated.Strictness)
	assert.Equal(t, []string{"docs.python.org"}, updated.Whitelist)
	assert.False(t, updated.AIEnabled)
	assert.True(t, updated.ShowStats)

	reloaded, err := state.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded)

	bogus := model.Strictness("paranoid")
	_, err = state.UpdateSettings(ctx, model.SettingsUpdate{Strictness: &bogus})
	assert.Error(t, err)
}

func TestState_SessionHistoryCapped(t *testing.T) {
	ctx := context.Background()
	state, now := newTestState(t)

	for i := 0; i < MaxSessionHistory+5; i++ {
		require.NoError(t, state.AddSession(ctx, model.FocusSession{
			ID:        fmt.Sprintf("s%d", i),
			StartTime: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := state.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, MaxSessionHistory)
	assert.Equal(t, "s5", sessions[0].ID)
	assert.Equal(t, fmt.Sprintf("s%d", MaxSessionHistory+4), sessions[len(sessions)-1].ID)
}

func TestState_ExportImportClear(t *testing.T) {
	ctx := context.Background()
	state, _ := newTestState(t)

	require.NoError(t, state.IncrementBlocked(ctx, "x.com"))
	require.NoError(t, state.SetCurrentSession(ctx, &model.FocusSession{ID: "s1", Active: true}))

	exported, err := state.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, exported, service.KeyStats)
	assert.Contains(t, exported, service.KeyCurrentSession)

	require.NoError(t, state.ClearAll(ctx))
	session, err := state.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, state.Import(ctx, exported))
	session, err = state.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "s1", session.ID)

	var stats model.Stats
	require.NoError(t, json.Unmarshal(exported[service.KeyStats], &stats))
	assert.Equal(t, 1, stats.TotalBlocked)
}

func TestState_DecodeError(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	require.NoError(t, kv.Set(ctx, service.KeyStats, []byte("not json")))

	state := NewState(kv, nil)
	_, err := state.Stats(ctx)
	assert.ErrorContains(t, err, "failed to decode stats")
}

func TestState_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()
	state := NewState(store, nil)

	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, state.IncrementBlocked(ctx, "instagram.com"))
			if i%10 == 0 {
				assert.NoError(t, state.RecordSessionEnd(ctx, time.Minute))
			}
		}(i)
	}
	wg.Wait()

	stats, err := state.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, stats.TotalBlocked)
	assert.Equal(t, workers, stats.WebsitesBlocked["instagram.com"])
	assert.Equal(t, workers/10, stats.SessionsCompleted)
	assert.Equal(t, time.Duration(workers/10)*time.Minute, stats.TotalFocusTime)
}

package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/do-one-thing/internal/model"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		want string
		d    time.Duration
	}{
		{d: 0, want: "0s"},
		{d: 42 * time.Second, want: "42s"},
		{d: 5*time.Minute + 3*time.Second, want: "5m 3s"},
		{d: time.Hour + 5*time.Minute + 59*time.Second, want: "1h 5m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestFormatVerdict(t *testing.T) {
	blocked := FormatVerdict(model.Verdict{
		URL:        "https://youtube.com/",
		Reason:     "Domain in blacklist",
		Source:     model.SourceRules,
		Confidence: 100,
	})
	assert.Contains(t, blocked, "block")
	assert.Contains(t, blocked, "https://youtube.com/")
	assert.Contains(t, blocked, "rules, 100%")
	assert.Contains(t, blocked, "Domain in blacklist")

	allowed := FormatVerdict(model.Verdict{URL: "https://go.dev/", Relevant: true, Source: model.SourceAI, Confidence: 85})
	assert.Contains(t, allowed, "allow")
	assert.Contains(t, allowed, "ai, 85%")
}

func TestRenderSession(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	assert.Contains(t, RenderSession(nil, now), "No active focus session")
	assert.Contains(t, RenderSession(&model.FocusSession{Active: false}, now), "No active focus session")

	out := RenderSession(&model.FocusSession{
		Intent:       "Write chapter two",
		StartTime:    now.Add(-90 * time.Second),
		Active:       true,
		BlockedCount: 4,
		Rules: model.RuleSet{
			Strictness:     model.StrictnessStrict,
			Keywords:       []string{"thesis"},
			AllowedDomains: []string{"scholar.google.com"},
		},
	}, now)
	assert.Contains(t, out, "Write chapter two")
	assert.Contains(t, out, "1m 30s")
	assert.Contains(t, out, "strict")
	assert.Contains(t, out, "scholar.google.com")
	assert.NotContains(t, out, "Denied")
}

func TestRenderStats(t *testing.T) {
	stats := model.Stats{
		TotalBlocked:      5,
		SessionsCompleted: 2,
		TotalFocusTime:    90 * time.Minute,
		WebsitesBlocked:   map[string]int{"youtube.com": 4, "reddit.com": 1},
	}
	out := RenderStats(stats, 1)
	assert.Contains(t, out, "1h 30m")
	assert.Contains(t, out, "youtube.com")
	assert.NotContains(t, out, "reddit.com")
}

func TestRenderSettings(t *testing.T) {
	out := RenderSettings(model.DefaultSettings())
	assert.Contains(t, out, "standard")
	assert.Contains(t, out, "(none)")
}

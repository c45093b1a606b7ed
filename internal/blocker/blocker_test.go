package blocker

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/do-one-thing/internal/model"
)

type stubClassifier struct {
	verdicts map[string]model.Verdict
	calls    []string
}

func (s *stubClassifier) Classify(_ context.Context, req model.ClassificationRequest) model.Verdict {
	s.calls = append(s.calls, req.URL)
	if v, ok := s.verdicts[req.URL]; ok {
		return v
	}
	return model.Verdict{URL: req.URL, Relevant: true, Confidence: 100}
}

type countingSessions struct {
	err   error
	count int
}

func (c *countingSessions) RecordBlocked(context.Context) error {
	c.count++
	return c.err
}

type redirect struct {
	target string
	tab    int
}

func TestBlocker_HandleNavigation(t *testing.T) {
	const page = "chrome-extension://abc/blocked/index.html"
	classifier := &stubClassifier{verdicts: map[string]model.Verdict{
		"https://www.youtube.com/watch?v=1": {URL: "https://www.youtube.com/watch?v=1", Reason: "Domain in blacklist"},
		"https://games.example/":            {URL: "https://games.example/"},
	}}

	tests := []struct {
		name        string
		nav         Navigation
		wantSkipped bool
		wantReason  string
	}{
		{name: "sub frame", nav: Navigation{URL: "https://www.youtube.com/watch?v=1", FrameID: 3}, wantSkipped: true},
		{name: "internal page", nav: Navigation{URL: "chrome://newtab/"}, wantSkipped: true},
		{name: "about page", nav: Navigation{URL: "about:blank"}, wantSkipped: true},
		{name: "blocked page", nav: Navigation{URL: page + "?url=x"}, wantSkipped: true},
		{name: "relevant", nav: Navigation{URL: "https://docs.python.org/3/", TabID: 7}},
		{name: "blocked with reason", nav: Navigation{URL: "https://www.youtube.com/watch?v=1", TabID: 7}, wantReason: "Domain in blacklist"},
		{name: "blocked without reason", nav: Navigation{URL: "https://games.example/", TabID: 9}, wantReason: DefaultReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &countingSessions{}
			var got []redirect
			r := RedirectorFunc(func(_ context.Context, tab int, target string) error {
				got = append(got, redirect{tab: tab, target: target})
				return nil
			})
			b := New(classifier, sessions, r, page, nil)

			outcome, err := b.HandleNavigation(context.Background(), tt.nav)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSkipped, outcome.Skipped)

			if tt.wantSkipped {
				assert.Nil(t, outcome.Verdict)
				assert.Empty(t, got)
				return
			}
			require.NotNil(t, outcome.Verdict)

			if tt.wantReason == "" {
				assert.Empty(t, outcome.RedirectTo)
				assert.Empty(t, got)
				assert.Zero(t, sessions.count)
				return
			}

			require.Len(t, got, 1)
			assert.Equal(t, tt.nav.TabID, got[0].tab)
			assert.Equal(t, outcome.RedirectTo, got[0].target)
			assert.Equal(t, 1, sessions.count)

			u, err := url.Parse(got[0].target)
			require.NoError(t, err)
			assert.Equal(t, tt.nav.URL, u.Query().Get("url"))
			assert.Equal(t, tt.wantReason, u.Query().Get("reason"))
		})
	}
}

func TestBlocker_CountFailureStillRedirects(t *testing.T) {
	classifier := &stubClassifier{verdicts: map[string]model.Verdict{
		"https://games.example/": {URL: "https://games.example/", Reason: "Games"},
	}}
	sessions := &countingSessions{err: errors.New("disk full")}
	redirected := false
	b := New(classifier, sessions, RedirectorFunc(func(context.Context, int, string) error {
		redirected = true
		return nil
	}), "", nil)

	outcome, err := b.HandleNavigation(context.Background(), Navigation{URL: "https://games.example/"})
	require.NoError(t, err)
	assert.True(t, redirected)
	assert.Contains(t, outcome.RedirectTo, DefaultBlockedPage)
}

func TestBlocker_RedirectError(t *testing.T) {
	classifier := &stubClassifier{verdicts: map[string]model.Verdict{
		"https://games.example/": {URL: "https://games.example/"},
	}}
	wantErr := errors.New("tab closed")
	b := New(classifier, &countingSessions{}, RedirectorFunc(func(context.Context, int, string) error {
		return wantErr
	}), "", nil)

	outcome, err := b.HandleNavigation(context.Background(), Navigation{URL: "https://games.example/"})
	assert.ErrorIs(t, err, wantErr)
	assert.NotEmpty(t, outcome.RedirectTo)
}

func TestBlocker_NilRedirector(t *testing.T) {
	classifier := &stubClassifier{verdicts: map[string]model.Verdict{
		"https://games.example/": {URL: "https://games.example/"},
	}}
	b := New(classifier, &countingSessions{}, nil, "", nil)

	outcome, err := b.HandleNavigation(context.Background(), Navigation{URL: "https://games.example/"})
	require.NoError(t, err)
	assert.Equal(t, b.BlockedURL("https://games.example/", ""), outcome.RedirectTo)
}

func TestBlockedURLEscapes(t *testing.T) {
	b := New(nil, nil, nil, "https://focus.local/blocked", nil)
	got := b.BlockedURL("https://x.com/a?b=c&d=e", "Off topic & noisy")
	assert.Equal(t, "https://focus.local/blocked?url=https%3A%2F%2Fx.com%2Fa%3Fb%3Dc%26d%3De&reason=Off+topic+%26+noisy", got)
}

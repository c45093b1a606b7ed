package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/do-one-thing/internal/blocker"
	"github.com/Veraticus/do-one-thing/internal/cache"
	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/engine"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/session"
	"github.com/Veraticus/do-one-thing/internal/storage"
)

type stubAnalyzer struct {
	err error
}

func (s stubAnalyzer) AnalyzeIntent(_ context.Context, input string) (model.IntentAnalysis, error) {
	if s.err != nil {
		return model.IntentAnalysis{}, s.err
	}
	return model.IntentAnalysis{
		Intent:            input,
		Keywords:          []string{"python"},
		SuggestedWebsites: []string{"docs.python.org"},
	}, nil
}

type apiEnv struct {
	server     *httptest.Server
	state      *storage.State
	classifier *engine.MockClassifier
}

func newAPIEnv(t *testing.T, analyzer session.IntentAnalyzer) *apiEnv {
	t.Helper()
	kv := storage.NewMemoryStore()
	state := storage.NewState(kv, nil)
	verdicts := cache.New(kv, cache.DefaultConfig(), nil)
	classifier := engine.NewMockClassifier()
	eng := engine.New(classifier, verdicts, state, nil)
	sessions := session.NewManager(analyzer, state, eng, verdicts, nil)
	nav := blocker.New(eng, sessions, nil, "", nil)

	s := NewServer("", "test", Deps{
		Decider:   eng,
		Sessions:  sessions,
		Navigator: nav,
		State:     state,
		Cache:     verdicts,
	}, nil)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &apiEnv{server: ts, state: state, classifier: classifier}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestServer_Health(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_SessionFlow(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})

	// Without a session everything is allowed.
	resp, body := env.do(t, http.MethodPost, "/v1/classify", classifyRequest{URL: "https://games.example/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["relevant"])
	assert.Zero(t, env.classifier.CallCount())

	resp, body = env.do(t, http.MethodPost, "/v1/session/start", startRequest{Intent: "learn python"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := body["session"].(map[string]any)
	assert.Equal(t, "learn python", sess["intent"])
	assert.Equal(t, true, sess["active"])

	resp, body = env.do(t, http.MethodPost, "/v1/classify", classifyRequest{URL: "https://docs.python.org/3/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["relevant"])
	assert.Equal(t, "rules", body["source"])

	resp, body = env.do(t, http.MethodPost, "/v1/navigate", blocker.Navigation{URL: "https://games.example/", TabID: 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["redirectTo"], blocker.DefaultBlockedPage)

	resp, body = env.do(t, http.MethodGet, "/v1/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["session"].(map[string]any)["blockedCount"])

	resp, body = env.do(t, http.MethodPost, "/v1/session/allow", allowRequest{URL: "https://games.example/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["session"].(map[string]any)["rules"].(map[string]any)["allowedDomains"], "games.example")

	resp, body = env.do(t, http.MethodPost, "/v1/classify", classifyRequest{URL: "https://games.example/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["relevant"])

	resp, body = env.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["totalBlocked"])

	resp, _ = env.do(t, http.MethodPost, "/v1/session/end", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/v1/session/end", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, common.ErrNoActiveSession.Error(), body["error"])
}

func TestServer_ClassifyBatch(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})
	resp, _ := env.do(t, http.MethodPost, "/v1/session/start", startRequest{Intent: "learn python"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/v1/classify/batch", batchRequest{Requests: []classifyRequest{
		{URL: "https://docs.python.org/3/"},
		{URL: "https://shop.example/"},
		{URL: "https://realpython.com/decorators"},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	verdicts := body["verdicts"].([]any)
	require.Len(t, verdicts, 3)
	assert.Equal(t, "https://docs.python.org/3/", verdicts[0].(map[string]any)["url"])
	assert.Equal(t, false, verdicts[1].(map[string]any)["relevant"])
	assert.Equal(t, true, verdicts[2].(map[string]any)["relevant"])
}

func TestServer_BadRequests(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "malformed json", method: http.MethodPost, path: "/v1/classify", body: "{"},
		{name: "unknown field", method: http.MethodPost, path: "/v1/classify", body: `{"link":"https://a.com"}`},
		{name: "missing url", method: http.MethodPost, path: "/v1/classify", body: `{}`},
		{name: "relative url", method: http.MethodPost, path: "/v1/classify", body: `{"url":"/foo"}`},
		{name: "bad batch item", method: http.MethodPost, path: "/v1/classify/batch", body: `{"requests":[{"url":"https://a.com"},{"url":""}]}`},
		{name: "navigate without url", method: http.MethodPost, path: "/v1/navigate", body: `{"tabId":1}`},
		{name: "empty intent", method: http.MethodPost, path: "/v1/session/start", body: `{"intent":" "}`},
		{name: "bad strictness", method: http.MethodPut, path: "/v1/settings", body: `{"strictness":"extreme"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, env.server.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServer_BatchTooLarge(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})
	items := make([]classifyRequest, MaxBatchSize+1)
	for i := range items {
		items[i] = classifyRequest{URL: "https://a.example/"}
	}
	resp, _ := env.do(t, http.MethodPost, "/v1/classify/batch", batchRequest{Requests: items})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_StartWithoutConfiguration(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{err: common.ErrMissingAPIKey})

	resp, body := env.do(t, http.MethodPost, "/v1/session/start", startRequest{Intent: "learn python"})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestServer_Settings(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})

	resp, body := env.do(t, http.MethodGet, "/v1/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "standard", body["strictness"])

	resp, body = env.do(t, http.MethodPut, "/v1/settings", map[string]any{
		"strictness": "strict",
		"blacklist":  []string{"youtube.com"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "strict", body["strictness"])
	assert.Equal(t, []any{"youtube.com"}, body["blacklist"])
	assert.Equal(t, true, body["aiEnabled"])

	settings, err := env.state.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StrictnessStrict, settings.Strictness)
}

func TestServer_ResetEndpoints(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})
	require.NoError(t, env.state.IncrementBlocked(context.Background(), "youtube.com"))

	resp, _ := env.do(t, http.MethodDelete, "/v1/stats", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	stats, err := env.state.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBlocked)

	resp, _ = env.do(t, http.MethodDelete, "/v1/cache", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	env := newAPIEnv(t, stubAnalyzer{})
	resp, err := http.Get(env.server.URL + "/v1/classify")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrMissingConsent, http.StatusPreconditionFailed},
		{common.NewUserError("configure", common.ErrAIDisabled), http.StatusPreconditionFailed},
		{common.ErrNoActiveSession, http.StatusConflict},
		{common.ErrInvalidURL, http.StatusBadRequest},
		{common.NewUserError("describe it", nil), http.StatusBadRequest},
		{common.ErrCacheIO, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

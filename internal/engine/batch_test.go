package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/do-one-thing/internal/model"
)

func urlsOf(vs []model.Verdict) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.URL
	}
	return out
}

func TestClassifyBatch_PartitionsCachedFromUncached(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.engine.SetSession(activeSession([]string{"python.org"}, nil))
	ctx := context.Background()

	require.NoError(t, env.cache.Put(ctx, model.Verdict{
		URL: "https://cached.example.com", Relevant: true, Confidence: 77, Reason: "earlier", Source: model.SourceAI, Timestamp: *env.now,
	}))

	reqs := []model.ClassificationRequest{
		req("https://docs.python.org/3/"),
		req("https://cached.example.com"),
		req("https://a.example.com/tutorial"),
		req("https://b.example.com/game"),
		req("https://tiktok.com/@someone"),
	}

	got := env.engine.ClassifyBatch(ctx, reqs)
	require.Len(t, got, len(reqs))
	assert.Equal(t, []string{
		"https://docs.python.org/3/",
		"https://cached.example.com",
		"https://a.example.com/tutorial",
		"https://b.example.com/game",
		"https://tiktok.com/@someone",
	}, urlsOf(got))

	assert.Equal(t, model.SourceRules, got[0].Source)
	assert.Equal(t, model.SourceCache, got[1].Source)
	assert.Equal(t, 77, got[1].Confidence)
	assert.Equal(t, model.SourceAI, got[2].Source)
	assert.True(t, got[2].Relevant)
	assert.Equal(t, model.SourceAI, got[3].Source)
	assert.False(t, got[3].Relevant)
	assert.Equal(t, model.SourceRules, got[4].Source)
	assert.False(t, got[4].Relevant)

	batches := env.classifier.BatchCalls()
	require.Len(t, batches, 1, "uncached requests go out in one call")
	assert.Len(t, batches[0], 2)
	assert.Zero(t, env.classifier.CallCount())

	// AI results were written back.
	v, ok, err := env.cache.Get(ctx, "https://b.example.com/game")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, v.Relevant)

	assert.ElementsMatch(t, []string{"tiktok.com", "b.example.com"}, env.stats.Blocked())
}

func TestClassifyBatch_FallbackToSingleItem(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.classifier.BatchErr = errors.New("502 bad gateway")
	env.engine.SetSession(activeSession(nil, nil))

	reqs := []model.ClassificationRequest{
		req("https://a.example.com"),
		req("https://b.example.com/shop"),
		req("https://c.example.com"),
	}

	got := env.engine.ClassifyBatch(context.Background(), reqs)
	require.Len(t, got, 3)
	assert.Equal(t, urlsOf(got), []string{"https://a.example.com", "https://b.example.com/shop", "https://c.example.com"})
	for _, v := range got {
		assert.Equal(t, model.SourceAI, v.Source)
	}
	assert.False(t, got[1].Relevant)
	assert.Equal(t, 3, env.classifier.CallCount(), "each uncached request is classified individually")
	assert.Equal(t, []string{"b.example.com"}, env.stats.Blocked())
}

func TestClassifyBatch_FallbackFailsOpenPerItem(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.classifier.BatchErr = errors.New("timeout")
	env.classifier.Err = errors.New("timeout")
	env.engine.SetSession(activeSession(nil, nil))

	got := env.engine.ClassifyBatch(context.Background(), []model.ClassificationRequest{
		req("https://a.example.com"),
		req("https://b.example.com"),
	})
	require.Len(t, got, 2)
	for _, v := range got {
		assert.True(t, v.Relevant)
		assert.Equal(t, FallbackConfidence, v.Confidence)
		assert.Equal(t, model.SourceRules, v.Source)
	}
}

func TestClassifyBatch_NoSession(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	got := env.engine.ClassifyBatch(context.Background(), []model.ClassificationRequest{
		req("https://instagram.com"),
		req("https://example.com"),
	})
	require.Len(t, got, 2)
	for _, v := range got {
		assert.True(t, v.Relevant)
		assert.Equal(t, ReasonNoSession, v.Reason)
	}
	assert.Empty(t, env.classifier.BatchCalls())
}

func TestClassifyBatch_DuplicateURLs(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.engine.SetSession(activeSession(nil, nil))

	got := env.engine.ClassifyBatch(context.Background(), []model.ClassificationRequest{
		req("https://x.example.com/meme"),
		req("https://y.example.com"),
		req("https://x.example.com/meme"),
	})
	require.Len(t, got, 3)
	assert.Equal(t, got[0], got[2])

	batches := env.classifier.BatchCalls()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2, "duplicate URL is sent once")
	assert.Equal(t, []string{"x.example.com", "x.example.com"}, env.stats.Blocked())
}

func TestClassifyBatch_Empty(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.engine.SetSession(activeSession(nil, nil))

	got := env.engine.ClassifyBatch(context.Background(), nil)
	assert.Empty(t, got)
	assert.Empty(t, env.classifier.BatchCalls())
}

// shortBatchClassifier answers fewer URLs than asked.
type shortBatchClassifier struct {
	*MockClassifier
}

func (s shortBatchClassifier) ClassifyBatch(ctx context.Context, reqs []model.ClassificationRequest, focus model.Focus) ([]model.Verdict, error) {
	all, err := s.MockClassifier.ClassifyBatch(ctx, reqs, focus)
	if err != nil || len(all) == 0 {
		return all, err
	}
	return all[:len(all)-1], nil
}

func TestClassifyBatch_IncompleteReplyFallsBack(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	e := NewWithConfig(shortBatchClassifier{env.classifier}, env.cache, env.stats, nil, DefaultConfig())
	e.SetSession(activeSession(nil, nil))

	got := e.ClassifyBatch(context.Background(), []model.ClassificationRequest{
		req("https://a.example.com"),
		req("https://b.example.com"),
	})
	require.Len(t, got, 2)
	assert.Equal(t, 2, env.classifier.CallCount())
}

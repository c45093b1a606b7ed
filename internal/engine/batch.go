package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
)

var errBatchMismatch = fmt.Errorf("%w: batch reply does not match requested URLs", common.ErrMalformedAnswer)

// ClassifyBatch returns one verdict per request, in input order. Rule stages
// and the cache are consulted per request; everything left is sent to the AI
// classifier in one call. If that call fails, each remaining request goes
// through the single-item pipeline instead.
func (e *Engine) ClassifyBatch(ctx context.Context, reqs []model.ClassificationRequest) []model.Verdict {
	snap := e.active.Load()
	verdicts := make([]model.Verdict, len(reqs))

	// pending maps a URL to the indexes of every request asking for it.
	pending := make(map[string][]int)
	var uncached []model.ClassificationRequest

	for i, req := range reqs {
		if v, ok := e.applyRules(ctx, req, snap); ok {
			verdicts[i] = v
			continue
		}

		if idxs, seen := pending[req.URL]; seen {
			pending[req.URL] = append(idxs, i)
			continue
		}

		if v, ok := e.lookupCache(ctx, req.URL); ok {
			if !v.Relevant {
				e.recordBlocked(ctx, pattern.ExtractDomain(req.URL))
			}
			verdicts[i] = v
			continue
		}

		pending[req.URL] = []int{i}
		uncached = append(uncached, req)
	}

	if len(uncached) > 0 {
		e.resolveUncached(ctx, uncached, snap, verdicts, pending)
	}

	for _, v := range verdicts {
		e.metrics.RecordVerdict(ctx, v)
	}
	return verdicts
}

func (e *Engine) resolveUncached(ctx context.Context, uncached []model.ClassificationRequest, snap *snapshot, verdicts []model.Verdict, pending map[string][]int) {
	detached := context.WithoutCancel(ctx)

	results, err := e.classifier.ClassifyBatch(detached, uncached, snap.focus)
	if err == nil {
		err = checkBatchCoverage(uncached, results)
	}

	if err != nil {
		e.logger.Warn("Batch classification failed, classifying individually",
			"count", len(uncached),
			"error", err)
		e.classifyEach(ctx, uncached, snap, verdicts, pending)
		return
	}

	now := e.now()
	for i := range results {
		results[i].Source = model.SourceAI
		results[i].Confidence = model.ClampConfidence(results[i].Confidence)
		if results[i].Timestamp.IsZero() {
			results[i].Timestamp = now
		}
	}

	if err := e.cache.PutMany(detached, results); err != nil {
		e.logger.Warn("Cache write failed",
			"count", len(results),
			"error", err)
	}

	for _, v := range results {
		for _, idx := range pending[v.URL] {
			verdicts[idx] = v
			if !v.Relevant {
				e.recordBlocked(ctx, pattern.ExtractDomain(v.URL))
			}
		}
	}
}

// classifyEach runs the single-item pipeline for each request with bounded
// concurrency. Duplicate URLs reuse the first request's verdict.
func (e *Engine) classifyEach(ctx context.Context, uncached []model.ClassificationRequest, snap *snapshot, verdicts []model.Verdict, pending map[string][]int) {
	results := make([]model.Verdict, len(uncached))

	var g errgroup.Group
	g.SetLimit(e.config.BatchWorkers)
	for i, req := range uncached {
		g.Go(func() error {
			results[i] = e.classify(ctx, req, snap)
			return nil
		})
	}
	_ = g.Wait()

	for i, req := range uncached {
		idxs := pending[req.URL]
		for n, idx := range idxs {
			verdicts[idx] = results[i]
			if n > 0 && !results[i].Relevant {
				e.recordBlocked(ctx, pattern.ExtractDomain(req.URL))
			}
		}
	}
}

// checkBatchCoverage ensures the classifier answered every URL exactly once.
func checkBatchCoverage(reqs []model.ClassificationRequest, results []model.Verdict) error {
	if len(results) != len(reqs) {
		return errBatchMismatch
	}
	want := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		want[r.URL] = struct{}{}
	}
	for _, v := range results {
		if _, ok := want[v.URL]; !ok {
			return errBatchMismatch
		}
		delete(want, v.URL)
	}
	return nil
}

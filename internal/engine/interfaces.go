package engine

import (
	"context"

	"github.com/Veraticus/do-one-thing/internal/model"
)

// Classifier defines the contract for AI relevance classification.
type Classifier interface {
	Classify(ctx context.Context, req model.ClassificationRequest, focus model.Focus) (model.Verdict, error)
	ClassifyBatch(ctx context.Context, reqs []model.ClassificationRequest, focus model.Focus) ([]model.Verdict, error)
}

// VerdictCache stores verdicts by URL. Errors are treated as misses.
type VerdictCache interface {
	Get(ctx context.Context, url string) (model.Verdict, bool, error)
	Put(ctx context.Context, verdict model.Verdict) error
	PutMany(ctx context.Context, verdicts []model.Verdict) error
}

// StatsRecorder receives one call per blocked observation.
type StatsRecorder interface {
	IncrementBlocked(ctx context.Context, domain string) error
}

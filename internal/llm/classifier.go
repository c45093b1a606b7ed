package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/telemetry"
)

// DefaultTimeout bounds one AI operation including retries.
const DefaultTimeout = 15 * time.Second

// Classifier judges URL relevance and analyzes focus goals using an LLM.
type Classifier struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	metrics     *telemetry.Metrics
	now         func() time.Time
	retryOpts   common.RetryOptions
	timeout     time.Duration
	maxTokens   int
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
	Enabled     bool
	Consent     bool
}

// Validate reports configuration problems that make AI classification
// impossible. It performs no I/O.
func (c Config) Validate() error {
	if !c.Enabled {
		return common.ErrAIDisabled
	}
	switch strings.ToLower(c.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w for %s", common.ErrMissingAPIKey, c.Provider)
	}
	if !c.Consent {
		return common.ErrMissingConsent
	}
	return nil
}

func (c Config) temperature() float64 {
	if c.Temperature == 0 {
		return 0.2
	}
	return c.Temperature
}

func (c Config) maxTokens() int {
	if c.MaxTokens == 0 {
		return 300
	}
	return c.MaxTokens
}

// NewClassifier creates a new LLM-based classifier. Configuration errors are
// returned as *common.UserError wrapping common.ErrConfiguration.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, common.NewUserError(configHint(err), err)
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wraps an existing provider client.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	retryOpts := common.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 2
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = 500 * time.Millisecond
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Classifier{
		client:      client,
		logger:      common.LoggerOrDefault(logger),
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		timeout:     timeout,
		maxTokens:   cfg.maxTokens(),
		now:         time.Now,
	}
}

// SetMetrics attaches instruments for call latency and failures.
func (c *Classifier) SetMetrics(m *telemetry.Metrics) {
	c.metrics = m
}

// Classify judges one URL against the focus goal.
func (c *Classifier) Classify(ctx context.Context, req model.ClassificationRequest, focus model.Focus) (model.Verdict, error) {
	var verdict model.Verdict

	err := c.call(ctx, "classify", CompletionRequest{
		System: classifySystemPrompt,
		Prompt: buildClassifyPrompt(req, focus),
	}, func(content string) error {
		v, err := parseVerdict(content, req.URL)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return model.Verdict{}, err
	}

	verdict.Timestamp = c.now()
	c.logger.Debug("URL classified",
		"url", req.URL,
		"relevant", verdict.Relevant,
		"confidence", verdict.Confidence)

	return verdict, nil
}

// ClassifyBatch judges every request in one provider call. The reply must
// cover every URL; otherwise the whole batch fails.
func (c *Classifier) ClassifyBatch(ctx context.Context, reqs []model.ClassificationRequest, focus model.Focus) ([]model.Verdict, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	urls := make([]string, len(reqs))
	for i, r := range reqs {
		urls[i] = r.URL
	}

	var verdicts []model.Verdict
	err := c.call(ctx, "classify_batch", CompletionRequest{
		System:    batchSystemPrompt,
		Prompt:    buildBatchPrompt(reqs, focus),
		MaxTokens: max(c.maxTokens, 80*len(reqs)),
	}, func(content string) error {
		v, err := parseBatch(content, urls)
		if err != nil {
			return err
		}
		verdicts = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := c.now()
	for i := range verdicts {
		verdicts[i].Timestamp = now
	}

	c.logger.Debug("URL batch classified", "count", len(verdicts))
	return verdicts, nil
}

// AnalyzeIntent expands a free-form focus goal into keywords, categories and
// suggested websites.
func (c *Classifier) AnalyzeIntent(ctx context.Context, input string) (model.IntentAnalysis, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return model.IntentAnalysis{}, common.NewUserError("Please describe what you want to focus on", errors.New("empty focus goal"))
	}

	var analysis model.IntentAnalysis
	err := c.call(ctx, "analyze_intent", CompletionRequest{
		System:    intentSystemPrompt,
		Prompt:    buildIntentPrompt(input),
		MaxTokens: max(c.maxTokens, 800),
	}, func(content string) error {
		a, err := parseIntent(content, input)
		if err != nil {
			return err
		}
		analysis = a
		return nil
	})
	if err != nil {
		return model.IntentAnalysis{}, err
	}

	c.logger.Info("Focus goal analyzed",
		"intent", analysis.Intent,
		"keywords", len(analysis.Keywords),
		"suggested_websites", len(analysis.SuggestedWebsites))

	return analysis, nil
}

// call runs one rate-limited, retried, time-bounded provider exchange. Any
// failure is wrapped in common.ErrAIUnavailable.
func (c *Classifier) call(ctx context.Context, op string, req CompletionRequest, parse func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		content, err := c.client.Complete(ctx, req)
		if err != nil {
			c.logger.Warn("AI request attempt failed",
				"op", op,
				"error", err)
			return err
		}

		if err := parse(content); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		return nil
	}, c.retryOpts)

	c.metrics.RecordAICall(ctx, op, time.Since(start), err)

	if err != nil {
		if errors.Is(err, common.ErrAIUnavailable) {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		return fmt.Errorf("%w: %s failed: %w", common.ErrAIUnavailable, op, err)
	}
	return nil
}

// configHint turns a configuration error into an actionable message.
func configHint(err error) string {
	switch {
	case errors.Is(err, common.ErrAIDisabled):
		return "AI classification is turned off; set llm.enabled to true"
	case errors.Is(err, common.ErrMissingAPIKey):
		return "Set your API key (llm.openai_api_key / OPENAI_API_KEY or llm.anthropic_api_key / ANTHROPIC_API_KEY)"
	case errors.Is(err, common.ErrMissingConsent):
		return "Page URLs and titles are sent to your AI provider; set llm.consent to true to allow this"
	case errors.Is(err, common.ErrUnsupportedProvider):
		return "Set llm.provider to openai or anthropic"
	default:
		return "AI classifier is not configured"
	}
}

// Unavailable stands in for the classifier when configuration prevents
// creating one. Every call returns Err without any I/O.
type Unavailable struct {
	Err error
}

// Classify returns u.Err.
func (u Unavailable) Classify(context.Context, model.ClassificationRequest, model.Focus) (model.Verdict, error) {
	return model.Verdict{}, u.Err
}

// ClassifyBatch returns u.Err.
func (u Unavailable) ClassifyBatch(context.Context, []model.ClassificationRequest, model.Focus) ([]model.Verdict, error) {
	return nil, u.Err
}

// AnalyzeIntent returns u.Err.
func (u Unavailable) AnalyzeIntent(context.Context, string) (model.IntentAnalysis, error) {
	return model.IntentAnalysis{}, u.Err
}

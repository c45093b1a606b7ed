package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/do-one-thing/internal/cache"
	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/config"
	"github.com/Veraticus/do-one-thing/internal/engine"
	"github.com/Veraticus/do-one-thing/internal/llm"
	"github.com/Veraticus/do-one-thing/internal/session"
	"github.com/Veraticus/do-one-thing/internal/storage"
	"github.com/Veraticus/do-one-thing/internal/telemetry"
)

// aiService is what the engine and the session manager need from the AI adapter.
type aiService interface {
	engine.Classifier
	session.IntentAnalyzer
}

// app is the fully wired decision engine shared by the commands.
type app struct {
	store             *storage.SQLiteStore
	state             *storage.State
	cache             *cache.Cache
	engine            *engine.Engine
	sessions          *session.Manager
	metrics           *telemetry.Metrics
	shutdownTelemetry func(context.Context) error
	aiErr             error
}

// openStore opens the database, migrating it to the latest schema when migrate is set.
func openStore(ctx context.Context, migrate bool) (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !migrate {
		return store, nil
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Database ready", "path", dbPath)
	return store, nil
}

// llmConfig builds the AI adapter configuration from viper settings.
func llmConfig() llm.Config {
	provider := strings.ToLower(viper.GetString("llm.provider"))

	cfg := llm.Config{
		Provider:    provider,
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		Timeout:     viper.GetDuration("llm.timeout"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Enabled:     viper.GetBool("llm.enabled"),
		Consent:     viper.GetBool("llm.consent"),
	}

	// Check viper first, then the provider's conventional environment variable
	switch provider {
	case "openai":
		cfg.APIKey = viper.GetString("llm.openai_api_key")
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic":
		cfg.APIKey = viper.GetString("llm.anthropic_api_key")
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	return cfg
}

// newAI creates the AI adapter. A configuration problem yields a stand-in that
// fails every call, so classification still fails open.
func newAI(cfg llm.Config, metrics *telemetry.Metrics) (aiService, error) {
	classifier, err := llm.NewClassifier(cfg, slog.Default())
	if err != nil {
		return llm.Unavailable{Err: err}, err
	}
	classifier.SetMetrics(metrics)
	return classifier, nil
}

func newApp(ctx context.Context) (*app, error) {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:  viper.GetBool("telemetry.enabled"),
		Endpoint: viper.GetString("telemetry.endpoint"),
		Insecure: viper.GetBool("telemetry.insecure"),
		Interval: viper.GetDuration("telemetry.interval"),
	}, version)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	metrics, err := telemetry.NewMetrics(telemetry.Meter())
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := openStore(ctx, true)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	state := storage.NewState(store, nil)
	verdicts := cache.New(store, cache.Config{
		TTL:          viper.GetDuration("engine.cache_ttl"),
		MaxEntries:   viper.GetInt("engine.cache_max_entries"),
		LowWatermark: viper.GetInt("engine.cache_low_watermark"),
	}, slog.Default())

	ai, aiErr := newAI(llmConfig(), metrics)
	if aiErr != nil {
		slog.Debug("AI classification unavailable, unlisted pages will be allowed", "error", aiErr)
	}

	eng := engine.NewWithConfig(ai, verdicts, state, slog.Default(), engine.Config{
		Coalesce:     viper.GetBool("engine.coalesce"),
		BatchWorkers: viper.GetInt("engine.batch_workers"),
	})
	eng.SetMetrics(metrics)

	sessions := session.NewManager(ai, state, eng, verdicts, slog.Default())
	if _, err := sessions.Restore(ctx); err != nil {
		_ = store.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	return &app{
		store:             store,
		state:             state,
		cache:             verdicts,
		engine:            eng,
		sessions:          sessions,
		metrics:           metrics,
		shutdownTelemetry: shutdown,
		aiErr:             aiErr,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
		common.LogError(err, "Failed to flush telemetry", nil)
	}
	if err := a.store.Close(); err != nil {
		common.LogError(err, "Failed to close database", nil)
	}
}

// Package telemetry records classification metrics through OpenTelemetry.
// Without an exporter configured the global no-op provider is used.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Veraticus/do-one-thing/internal/model"
)

const (
	serviceName = "onething"
	meterName   = "github.com/Veraticus/do-one-thing"
)

// Config holds OTLP exporter settings.
type Config struct {
	Endpoint string
	Interval time.Duration
	Enabled  bool
	Insecure bool
}

// Setup installs a global meter provider exporting to cfg.Endpoint. When the
// exporter is disabled it leaves the no-op provider in place. The returned
// function flushes and stops the provider.
func Setup(ctx context.Context, cfg Config, version string) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Meter returns the application meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(meterName)
}

// Metrics holds the engine's instruments. A nil *Metrics records nothing.
type Metrics struct {
	verdicts   metric.Int64Counter
	blocked    metric.Int64Counter
	aiFailures metric.Int64Counter
	aiLatency  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	verdicts, err := meter.Int64Counter(
		"onething_verdicts_total",
		metric.WithDescription("Classification verdicts by source and outcome"),
		metric.WithUnit("{verdict}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating verdicts counter: %w", err)
	}

	blocked, err := meter.Int64Counter(
		"onething_blocked_total",
		metric.WithDescription("Blocked navigations"),
		metric.WithUnit("{navigation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating blocked counter: %w", err)
	}

	aiFailures, err := meter.Int64Counter(
		"onething_ai_failures_total",
		metric.WithDescription("AI classifier calls that failed and fell back"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating AI failures counter: %w", err)
	}

	aiLatency, err := meter.Float64Histogram(
		"onething_ai_latency_seconds",
		metric.WithDescription("AI classifier call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating AI latency histogram: %w", err)
	}

	return &Metrics{
		verdicts:   verdicts,
		blocked:    blocked,
		aiFailures: aiFailures,
		aiLatency:  aiLatency,
	}, nil
}

// RecordVerdict counts one verdict returned to a caller.
func (m *Metrics) RecordVerdict(ctx context.Context, v model.Verdict) {
	if m == nil {
		return
	}
	m.verdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(v.Source)),
		attribute.Bool("relevant", v.Relevant),
	))
}

// RecordBlocked counts one blocked observation of domain.
func (m *Metrics) RecordBlocked(ctx context.Context, domain string) {
	if m == nil {
		return
	}
	m.blocked.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
}

// RecordAICall records the latency of an AI call and, if it failed, a failure.
func (m *Metrics) RecordAICall(ctx context.Context, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("op", op))
	m.aiLatency.Record(ctx, elapsed.Seconds(), opt)
	if err != nil {
		m.aiFailures.Add(ctx, 1, opt)
	}
}

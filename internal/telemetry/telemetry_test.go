package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Veraticus/do-one-thing/internal/model"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordVerdict(ctx, model.Verdict{Source: model.SourceRules, Relevant: false})
	m.RecordVerdict(ctx, model.Verdict{Source: model.SourceCache, Relevant: true})
	m.RecordBlocked(ctx, "instagram.com")
	m.RecordAICall(ctx, "classify", 200*time.Millisecond, nil)
	m.RecordAICall(ctx, "classify", time.Second, errors.New("boom"))

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["onething_verdicts_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["onething_blocked_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["onething_ai_failures_total"]))

	hist, ok := data["onething_ai_latency_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordVerdict(ctx, model.Verdict{})
		m.RecordBlocked(ctx, "x.com")
		m.RecordAICall(ctx, "classify", time.Second, errors.New("boom"))
	})
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = NewMetrics(Meter())
	assert.NoError(t, err)
}

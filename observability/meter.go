package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/chunkscribe/logger"
)

// MeterConfig configures InitMeter.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
	Interval       time.Duration
}

// InitMeter installs a global meter provider exporting over OTLP HTTP.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns the package meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Outcome values for RecordRun.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
)

// PipelineMetrics holds the pipeline's instruments.
type PipelineMetrics struct {
	runs           metric.Int64Counter
	chunks         metric.Int64Counter
	stepDuration   metric.Float64Histogram
	mergeWarnings  metric.Int64Counter
	cacheHits      metric.Int64Counter
	providerCalls  metric.Int64Counter
	providerTiming metric.Float64Histogram
}

// NewPipelineMetrics creates the instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)
	if m.runs, err = meter.Int64Counter("chunkscribe.runs.total",
		metric.WithDescription("Pipeline runs by outcome")); err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}
	if m.chunks, err = meter.Int64Counter("chunkscribe.chunks.total",
		metric.WithDescription("Chunks processed by step and status")); err != nil {
		return nil, fmt.Errorf("creating chunks counter: %w", err)
	}
	if m.stepDuration, err = meter.Float64Histogram("chunkscribe.step.duration",
		metric.WithDescription("Duration of pipeline steps"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating step duration histogram: %w", err)
	}
	if m.mergeWarnings, err = meter.Int64Counter("chunkscribe.merge.warnings.total",
		metric.WithDescription("Caption timing lines kept without re-timing")); err != nil {
		return nil, fmt.Errorf("creating merge warnings counter: %w", err)
	}
	if m.cacheHits, err = meter.Int64Counter("chunkscribe.transcription.cache.hits",
		metric.WithDescription("Chunk transcriptions served from cache")); err != nil {
		return nil, fmt.Errorf("creating cache hits counter: %w", err)
	}
	if m.providerCalls, err = meter.Int64Counter("chunkscribe.provider.calls.total",
		metric.WithDescription("Transcription backend calls by provider and status")); err != nil {
		return nil, fmt.Errorf("creating provider calls counter: %w", err)
	}
	if m.providerTiming, err = meter.Float64Histogram("chunkscribe.provider.call.duration",
		metric.WithDescription("Transcription backend call latency"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating provider duration histogram: %w", err)
	}
	return &m, nil
}

// RecordRun counts a finished run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordChunk counts one chunk passing through step.
func (m *PipelineMetrics) RecordChunk(ctx context.Context, step string, err error) {
	if m == nil {
		return
	}
	m.chunks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", status(err)),
	))
}

// RecordStep records how long step took.
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("step", step)))
}

// RecordMergeWarnings counts degraded timing lines.
func (m *PipelineMetrics) RecordMergeWarnings(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.mergeWarnings.Add(ctx, int64(n))
}

// RecordCacheHit counts a transcription served from cache.
func (m *PipelineMetrics) RecordCacheHit(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordProviderCall records one backend call.
func (m *PipelineMetrics) RecordProviderCall(ctx context.Context, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status(err)),
	))
	m.providerTiming.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

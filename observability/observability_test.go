package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestStartSpanAttributesAndError(t *testing.T) {
	rec := newRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanExport, attribute.Int(AttrChunkIndex, 2))
	SetSpanAttribute(ctx, AttrAssetID, "lecture")
	SetSpanAttribute(ctx, AttrOffsetMs, int64(900000))
	SetSpanAttribute(ctx, "custom", time.Second)
	SetSpanError(ctx, errors.New("ffmpeg exited 1"))
	SetSpanError(ctx, nil)
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != SpanExport {
		t.Errorf("name = %s", s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v", s.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrChunkIndex].AsInt64() != 2 || attrs[AttrAssetID].AsString() != "lecture" {
		t.Errorf("attributes = %v", attrs)
	}
	if attrs["custom"].AsString() != "1s" {
		t.Errorf("custom = %v", attrs["custom"])
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected one error event, got %d", len(s.Events()))
	}
}

func TestSetSpanAttributeWithoutSpan(t *testing.T) {
	SetSpanAttribute(context.Background(), AttrStep, "merging")
	SetSpanError(context.Background(), errors.New("ignored"))
}

func TestSampler(t *testing.T) {
	if sampler(1).Description() != sdktrace.AlwaysSample().Description() {
		t.Error("rate 1 should always sample")
	}
	if sampler(0).Description() != sdktrace.NeverSample().Description() {
		t.Error("rate 0 should never sample")
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, "chunkscribe", "dev", "development")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Endpoint != "localhost:4318" || c.SampleRate != 1 || c.MetricInterval != 15*time.Second {
		t.Errorf("defaults = %+v", c)
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, not an int64 sum", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPipelineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewPipelineMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.RecordRun(ctx, OutcomeDegraded)
	m.RecordChunk(ctx, "exporting", nil)
	m.RecordChunk(ctx, "exporting", nil)
	m.RecordChunk(ctx, "transcribing", errors.New("boom"))
	m.RecordStep(ctx, "merging", 20*time.Millisecond)
	m.RecordMergeWarnings(ctx, 3)
	m.RecordMergeWarnings(ctx, 0)
	m.RecordCacheHit(ctx, "openai")
	m.RecordProviderCall(ctx, "openai", time.Second, nil)

	got := collect(t, reader)
	checks := map[string]int64{
		"chunkscribe.runs.total":               1,
		"chunkscribe.chunks.total":             3,
		"chunkscribe.merge.warnings.total":     3,
		"chunkscribe.transcription.cache.hits": 1,
		"chunkscribe.provider.calls.total":     1,
	}
	for name, want := range checks {
		m, ok := got[name]
		if !ok {
			t.Errorf("metric %s not recorded", name)
			continue
		}
		if v := sumOf(t, m); v != want {
			t.Errorf("%s = %d, want %d", name, v, want)
		}
	}
	if _, ok := got["chunkscribe.step.duration"]; !ok {
		t.Error("step duration not recorded")
	}
}

func TestNilPipelineMetrics(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()
	m.RecordRun(ctx, OutcomeFailed)
	m.RecordChunk(ctx, "exporting", nil)
	m.RecordStep(ctx, "planning", time.Millisecond)
	m.RecordMergeWarnings(ctx, 1)
	m.RecordCacheHit(ctx, "whisper")
	m.RecordProviderCall(ctx, "whisper", time.Millisecond, nil)
}

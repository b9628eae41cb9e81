package provider_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/observability"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/resilience"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var errTransient = errors.New("transient failure")

type backendConfig struct{ Model string }

type fakeBackend struct {
	name      string
	calls     atomic.Int32
	failUntil int32
}

func (b *fakeBackend) Name() string                     { return b.name }
func (b *fakeBackend) IsAvailable(context.Context) bool { return true }
func (b *fakeBackend) Execute(_ context.Context, in string) (string, error) {
	if n := b.calls.Add(1); n <= b.failUntil {
		return "", errTransient
	}
	return b.name + ":" + in, nil
}

func TestRegistryCreate(t *testing.T) {
	reg := provider.NewRegistry[backendConfig, *fakeBackend]()
	reg.RegisterFactory("whisper", func(cfg backendConfig) (*fakeBackend, error) {
		return &fakeBackend{name: "whisper-" + cfg.Model}, nil
	})
	reg.RegisterFactory("openai", func(backendConfig) (*fakeBackend, error) {
		return &fakeBackend{name: "openai"}, nil
	})

	b, err := reg.Create("whisper", backendConfig{Model: "base"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != "whisper-base" {
		t.Errorf("name = %q", b.Name())
	}

	if names := reg.List(); len(names) != 2 || names[0] != "openai" || names[1] != "whisper" {
		t.Errorf("List = %v", names)
	}

	_, err = reg.Create("deepgram", backendConfig{})
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected not registered error, got %v", err)
	}
}

type tagMiddleware struct {
	inner provider.RequestResponse[string, string]
	tag   string
	order *[]string
}

func (m *tagMiddleware) Name() string                     { return m.inner.Name() }
func (m *tagMiddleware) IsAvailable(context.Context) bool { return true }
func (m *tagMiddleware) Execute(ctx context.Context, in string) (string, error) {
	*m.order = append(*m.order, m.tag+">")
	out, err := m.inner.Execute(ctx, in)
	*m.order = append(*m.order, "<"+m.tag)
	return out, err
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) provider.Middleware[string, string] {
		return func(inner provider.RequestResponse[string, string]) provider.RequestResponse[string, string] {
			return &tagMiddleware{inner: inner, tag: name, order: &order}
		}
	}
	wrapped := provider.Chain(tag("A"), nil, tag("B"))(&fakeBackend{name: "p"})
	out, err := wrapped.Execute(context.Background(), "x")
	if err != nil || out != "p:x" {
		t.Fatalf("Execute = %q, %v", out, err)
	}
	want := "A> B> <B <A"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

func TestFuncAndSinkFunc(t *testing.T) {
	rr := provider.Func("upper", func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
	if out, _ := rr.Execute(context.Background(), "vtt"); out != "VTT" || rr.Name() != "upper" {
		t.Errorf("Func: %q %q", out, rr.Name())
	}

	var got []int
	sink := provider.SinkFunc("collect", func(_ context.Context, n int) error {
		got = append(got, n)
		return nil
	})
	_ = sink.Send(context.Background(), 7)
	if len(got) != 1 || got[0] != 7 || !sink.IsAvailable(context.Background()) {
		t.Errorf("SinkFunc: %v", got)
	}
}

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestWithResilienceRetries(t *testing.T) {
	b := &fakeBackend{name: "openai", failUntil: 2}
	rr := provider.WithResilience[string, string](b, provider.ResilienceConfig{Retry: fastRetry()})

	out, err := rr.Execute(context.Background(), "chunk0")
	if err != nil || out != "openai:chunk0" {
		t.Fatalf("Execute = %q, %v", out, err)
	}
	if b.calls.Load() != 3 {
		t.Errorf("calls = %d", b.calls.Load())
	}
}

func TestWithResilienceEmptyIsPassthrough(t *testing.T) {
	b := &fakeBackend{name: "openai"}
	if rr := provider.WithResilience[string, string](b, provider.ResilienceConfig{}); rr != provider.RequestResponse[string, string](b) {
		t.Error("empty config should return the provider unchanged")
	}
}

func TestWithResilienceCircuitOpens(t *testing.T) {
	b := &fakeBackend{name: "whisper", failUntil: 100}
	rr := provider.Chain(provider.WithResilienceMiddleware[string, string](provider.ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{Name: "whisper", MaxFailures: 2, Timeout: time.Hour},
	}))(b)

	ctx := context.Background()
	_, _ = rr.Execute(ctx, "a")
	_, _ = rr.Execute(ctx, "b")
	_, err := rr.Execute(ctx, "c")
	if !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Error("cause should be ErrCircuitOpen")
	}
	if b.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", b.calls.Load())
	}
	if rr.IsAvailable(ctx) {
		t.Error("open circuit should report unavailable")
	}
}

func TestWithSinkResilience(t *testing.T) {
	var calls int
	sink := provider.SinkFunc("kafka", func(context.Context, string) error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return nil
	})
	wrapped := provider.WithSinkResilience(sink, provider.ResilienceConfig{Retry: fastRetry()})
	if err := wrapped.Send(context.Background(), "evt"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d", calls)
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)
	rr := provider.WithLogging[string, string](log)(&fakeBackend{name: "openai", failUntil: 1})

	_, _ = rr.Execute(context.Background(), "x")
	_, _ = rr.Execute(context.Background(), "x")

	out := buf.String()
	if !strings.Contains(out, "provider call failed") || !strings.Contains(out, "provider call ok") {
		t.Errorf("log output = %s", out)
	}
	if !strings.Contains(out, `"provider":"openai"`) {
		t.Errorf("missing provider field: %s", out)
	}
}

func TestWithMetricsAndTracing(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observability.NewPipelineMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	rr := provider.Chain(
		provider.WithTracing[string, string]("transcription"),
		provider.WithMetrics[string, string](m),
	)(&fakeBackend{name: "openai"})
	if out, err := rr.Execute(context.Background(), "x"); err != nil || out != "openai:x" {
		t.Fatalf("Execute = %q, %v", out, err)
	}

	if nilWrapped := provider.WithMetrics[string, string](nil)(&fakeBackend{name: "p"}); nilWrapped.Name() != "p" {
		t.Error("nil metrics should pass through")
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/kafka"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/resilience"
)

type recordingPublisher struct {
	topic  string
	events []kafka.Event
	err    error
	closed bool

	// failures makes the next n publishes fail with transient.
	failures  int
	transient error
	calls     int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev kafka.Event) error {
	p.calls++
	if p.failures > 0 {
		p.failures--
		return p.transient
	}
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestKafkaNotifierCompleted(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewKafkaNotifier(pub, "transcripts", "", nil)

	err := n.Completed(context.Background(), TranscriptCompleted{
		RunID: "r1", AssetID: "talk", Format: "vtt", MergedKey: "talk/merged_transcript.vtt",
		Chunks: 3, Captions: 40, TextLength: 1200,
	})
	if err != nil {
		t.Fatalf("Completed: %v", err)
	}

	if pub.topic != "transcripts" || len(pub.events) != 1 {
		t.Fatalf("topic=%q events=%d", pub.topic, len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != TypeTranscriptCompleted || ev.Subject != "talk" || ev.Source != "chunkscribe" {
		t.Errorf("envelope = %+v", ev)
	}

	var got TranscriptCompleted
	if err := json.Unmarshal(ev.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.MergedKey != "talk/merged_transcript.vtt" || got.Chunks != 3 || got.Captions != 40 {
		t.Errorf("payload = %+v", got)
	}

	_ = n.Close()
	if !pub.closed {
		t.Error("Close not forwarded")
	}
}

func TestKafkaNotifierFailed(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewKafkaNotifier(pub, "transcripts", "svc", nil)

	idx := 1
	if err := n.Failed(context.Background(), TranscriptFailed{RunID: "r1", AssetID: "talk", Step: "transcribing", ChunkIndex: &idx, Error: "boom"}); err != nil {
		t.Fatal(err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(pub.events[0].Data, &got); err != nil {
		t.Fatal(err)
	}
	if got["chunk_index"] != float64(1) || got["step"] != "transcribing" {
		t.Errorf("payload = %v", got)
	}
}

func TestKafkaNotifierError(t *testing.T) {
	boom := errors.New("broker down")
	n := NewKafkaNotifier(&recordingPublisher{err: boom}, "t", "", nil)
	if err := n.Completed(context.Background(), TranscriptCompleted{AssetID: "a"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestKafkaNotifierRetriesDelivery(t *testing.T) {
	retry := resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	pub := &recordingPublisher{failures: 2, transient: errors.New("leader not available")}
	n := NewKafkaNotifier(pub, "transcripts", "", nil,
		WithDelivery(provider.ResilienceConfig{Retry: &retry}))

	if err := n.Completed(context.Background(), TranscriptCompleted{AssetID: "talk"}); err != nil {
		t.Fatalf("expected delivery after retries, got %v", err)
	}
	if pub.calls != 3 || len(pub.events) != 1 {
		t.Fatalf("calls=%d events=%d, want 3 and 1", pub.calls, len(pub.events))
	}
}

func TestKafkaNotifierBreakerOpens(t *testing.T) {
	cb := resilience.CircuitBreakerConfig{Name: "events", MaxFailures: 1, Timeout: time.Hour}
	pub := &recordingPublisher{err: errors.New("broker down")}
	n := NewKafkaNotifier(pub, "transcripts", "", nil,
		WithDelivery(provider.ResilienceConfig{CircuitBreaker: &cb}))

	if err := n.Failed(context.Background(), TranscriptFailed{AssetID: "a"}); err == nil {
		t.Fatal("expected first publish to fail")
	}
	err := n.Failed(context.Background(), TranscriptFailed{AssetID: "a"})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE once the breaker is open, got %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("open breaker should skip the publisher, calls=%d", pub.calls)
	}
}

func TestDefaultDelivery(t *testing.T) {
	cfg := DefaultDelivery("transcripts")
	if cfg.Retry == nil || cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.CircuitBreaker == nil || cfg.CircuitBreaker.Name != "events:transcripts" {
		t.Fatalf("breaker = %+v", cfg.CircuitBreaker)
	}
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	if n.Completed(context.Background(), TranscriptCompleted{}) != nil || n.Failed(context.Background(), TranscriptFailed{}) != nil {
		t.Error("Nop should never fail")
	}
}

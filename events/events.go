// Package events announces finished transcripts to downstream consumers
// such as summarisers and search indexers.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/chunkscribe/kafka"
	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/resilience"
)

// Event types.
const (
	TypeTranscriptCompleted = "transcript.completed"
	TypeTranscriptFailed    = "transcript.failed"
)

// TranscriptCompleted describes a merged transcript.
type TranscriptCompleted struct {
	RunID      string `json:"run_id"`
	AssetID    string `json:"asset_id"`
	Format     string `json:"format"`
	MergedKey  string `json:"merged_key"`
	MergedURL  string `json:"merged_url,omitempty"`
	Chunks     int    `json:"chunks"`
	Captions   int    `json:"captions"`
	Warnings   int    `json:"warnings"`
	TextLength int    `json:"text_length"`
	DurationMs int64  `json:"duration_ms"`
	Degraded   bool   `json:"degraded"`
}

// TranscriptFailed describes a run that stopped.
type TranscriptFailed struct {
	RunID      string `json:"run_id"`
	AssetID    string `json:"asset_id"`
	Step       string `json:"step"`
	ChunkIndex *int   `json:"chunk_index,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error"`
}

// Notifier publishes run outcomes. Implementations must not fail the run:
// a publish error is reported to the caller, which logs it.
type Notifier interface {
	Completed(ctx context.Context, e TranscriptCompleted) error
	Failed(ctx context.Context, e TranscriptFailed) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Completed(context.Context, TranscriptCompleted) error { return nil }
func (Nop) Failed(context.Context, TranscriptFailed) error       { return nil }

// KafkaNotifier publishes events as kafka.Event envelopes keyed by asset
// ID.
type KafkaNotifier struct {
	pub      kafka.Publisher
	sink     provider.Sink[kafka.Event]
	topic    string
	source   string
	timeout  time.Duration
	delivery provider.ResilienceConfig
	log      *logger.Logger
}

// Option configures a KafkaNotifier.
type Option func(*KafkaNotifier)

// WithDelivery applies retry, breaker and rate-limit policies to every
// publish. The timeout covers all attempts of one event.
func WithDelivery(cfg provider.ResilienceConfig) Option {
	return func(n *KafkaNotifier) { n.delivery = cfg }
}

// WithTimeout bounds one event's delivery.
func WithTimeout(d time.Duration) Option {
	return func(n *KafkaNotifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewKafkaNotifier publishes to topic through pub.
func NewKafkaNotifier(pub kafka.Publisher, topic, source string, log *logger.Logger, opts ...Option) *KafkaNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	if source == "" {
		source = "chunkscribe"
	}
	n := &KafkaNotifier{
		pub:     pub,
		topic:   topic,
		source:  source,
		timeout: 15 * time.Second,
		log:     log.WithComponent("events"),
	}
	for _, opt := range opts {
		opt(n)
	}
	send := provider.SinkFunc("kafka:"+topic, func(ctx context.Context, ev kafka.Event) error {
		return pub.Publish(ctx, topic, ev)
	})
	n.sink = provider.WithSinkResilience(send, n.delivery)
	return n
}

// DefaultDelivery retries a publish three times and opens a breaker after
// five consecutive failures.
func DefaultDelivery(topic string) provider.ResilienceConfig {
	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = 200 * time.Millisecond
	retry.MaxBackoff = 2 * time.Second
	cb := resilience.DefaultCircuitBreakerConfig("events:" + topic)
	return provider.ResilienceConfig{Retry: &retry, CircuitBreaker: &cb}
}

// Completed publishes TypeTranscriptCompleted.
func (n *KafkaNotifier) Completed(ctx context.Context, e TranscriptCompleted) error {
	return n.publish(ctx, TypeTranscriptCompleted, e.AssetID, e)
}

// Failed publishes TypeTranscriptFailed.
func (n *KafkaNotifier) Failed(ctx context.Context, e TranscriptFailed) error {
	return n.publish(ctx, TypeTranscriptFailed, e.AssetID, e)
}

// Close closes the publisher.
func (n *KafkaNotifier) Close() error { return n.pub.Close() }

func (n *KafkaNotifier) publish(ctx context.Context, eventType, assetID string, data interface{}) error {
	ev, err := kafka.NewEvent(eventType, n.source, assetID, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.sink.Send(ctx, ev); err != nil {
		return fmt.Errorf("events: %s: %w", eventType, err)
	}

	n.log.Debug("event published", logger.Fields(
		"event_type", eventType,
		"event_id", ev.ID,
		logger.FieldAssetID, assetID,
	))
	return nil
}

var (
	_ Notifier = Nop{}
	_ Notifier = (*KafkaNotifier)(nil)
)

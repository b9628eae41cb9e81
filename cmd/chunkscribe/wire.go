package main

import (
	"context"
	"fmt"

	"github.com/kbukum/chunkscribe/bootstrap"
	"github.com/kbukum/chunkscribe/database"
	"github.com/kbukum/chunkscribe/events"
	"github.com/kbukum/chunkscribe/kafka"
	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/media"
	"github.com/kbukum/chunkscribe/observability"
	"github.com/kbukum/chunkscribe/orchestrator"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/redis"
	"github.com/kbukum/chunkscribe/runstore"
	"github.com/kbukum/chunkscribe/storage"
	_ "github.com/kbukum/chunkscribe/storage/local"
	_ "github.com/kbukum/chunkscribe/storage/s3"
	"github.com/kbukum/chunkscribe/transcription"
	"github.com/kbukum/chunkscribe/transcription/openai"
	"github.com/kbukum/chunkscribe/transcription/whisper"
)

type app = bootstrap.App[*AppConfig]

// infra holds the components a command registered. Fields are nil when the
// matching section is disabled.
type infra struct {
	db    *database.Component
	redis *redis.Component
	kafka *kafka.Component
}

// needs selects the optional infrastructure a command uses.
type needs struct {
	ledger bool
	cache  bool
	events bool
}

// newApp loads the config and registers the components cmd needs.
func newApp(configPath string, n needs) (*app, *infra, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	a, err := bootstrap.NewApp(cfg)
	if err != nil {
		return nil, nil, err
	}

	in := &infra{}
	if n.ledger && cfg.Database.Enabled {
		in.db = database.NewComponent(cfg.Database, a.Logger)
		if err := a.RegisterComponent(in.db); err != nil {
			return nil, nil, err
		}
	}
	if n.cache && cfg.Transcription.Cache {
		if cfg.Redis.Enabled {
			in.redis = redis.NewComponent(cfg.Redis, a.Logger)
			if err := a.RegisterComponent(in.redis); err != nil {
				return nil, nil, err
			}
		} else {
			a.Logger.Warn("transcription.cache is set but redis is disabled; caching off")
		}
	}
	if n.events && cfg.Kafka.Enabled {
		in.kafka = kafka.NewComponent(cfg.Kafka, a.Logger)
		if err := a.RegisterComponent(in.kafka); err != nil {
			return nil, nil, err
		}
	}

	var shutdownTelemetry func(context.Context) error
	a.OnStart(func(ctx context.Context) error {
		shutdown, err := observability.Setup(ctx, cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
		if err != nil {
			return fmt.Errorf("observability: %w", err)
		}
		shutdownTelemetry = shutdown
		return nil
	})
	a.OnStop(func(ctx context.Context) error {
		if shutdownTelemetry == nil {
			return nil
		}
		return shutdownTelemetry(ctx)
	})
	return a, in, nil
}

// ledger opens the run store when the database is enabled.
func (in *infra) ledger(log *logger.Logger) (*runstore.Store, error) {
	if in.db == nil || in.db.DB() == nil {
		return nil, nil
	}
	return runstore.New(in.db.DB(), log)
}

// newTranscriber builds the backend call path: tracing, metrics, logging,
// cache, then the limiter and breaker. Per-chunk retries belong to the
// orchestrator so they are stripped here.
func newTranscriber(cfg transcription.Config, cache *redis.Client, metrics *observability.PipelineMetrics, log *logger.Logger) (orchestrator.Transcriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := transcription.NewRegistry()
	openai.Register(reg)
	whisper.Register(reg)

	backend, err := reg.Create(cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}
	client := transcription.NewClient(backend, cfg.Timeout, log)

	type mw = provider.Middleware[transcription.Request, *transcription.Response]
	chain := []mw{
		provider.WithTracing[transcription.Request, *transcription.Response]("transcription"),
		provider.WithMetrics[transcription.Request, *transcription.Response](metrics),
		provider.WithLogging[transcription.Request, *transcription.Response](log),
	}
	if cache != nil {
		store := redis.NewTypedStore[transcription.Response](cache, cache.Config().KeyPrefix+":transcripts")
		chain = append(chain, transcription.WithCache(store, cache.Config().TTL, metrics, log))
	}
	res := cfg.Resilience
	res.Retry = nil
	if !res.IsEmpty() {
		chain = append(chain, provider.WithResilienceMiddleware[transcription.Request, *transcription.Response](res))
	}
	return provider.Chain(chain...)(client), nil
}

// newOrchestrator wires the pipeline from started components.
func newOrchestrator(ctx context.Context, a *app, in *infra, observer orchestrator.Observer) (*orchestrator.Orchestrator, error) {
	cfg := a.Cfg
	log := a.Logger

	metrics, err := observability.NewPipelineMetrics(observability.Meter())
	if err != nil {
		return nil, err
	}

	var cache *redis.Client
	if in.redis != nil {
		cache = in.redis.Client()
	}
	transcriber, err := newTranscriber(cfg.Transcription, cache, metrics, log)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	backend, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	deps := orchestrator.Deps{
		Loader:      media.NewLoader(media.NewProber(cfg.Media, nil), log),
		Extractor:   media.NewExtractor(cfg.Media, nil),
		Exporter:    media.NewExporter(cfg.Media, nil, cfg.Pipeline.BitrateBps),
		Transcriber: transcriber,
		Artifacts:   storage.NewArtifacts(backend),
		Metrics:     metrics,
		Observer:    observer,
		Logger:      log,
	}

	store, err := in.ledger(log)
	if err != nil {
		return nil, fmt.Errorf("run ledger: %w", err)
	}
	if store != nil {
		deps.Ledger = store
	}
	if in.kafka != nil {
		pub := kafka.NewPublisher(in.kafka.Producer())
		deps.Notifier = events.NewKafkaNotifier(pub, cfg.Kafka.Topic, cfg.Kafka.Source, log,
			events.WithDelivery(events.DefaultDelivery(cfg.Kafka.Topic)))
	}

	return orchestrator.New(cfg.Pipeline, deps)
}

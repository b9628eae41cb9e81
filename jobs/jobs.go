// Package jobs runs transcriptions asynchronously through an asynq queue
// backed by Redis: the CLI enqueues, a worker process drains.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	apperrors "github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/validation"
)

// TaskTranscribe is the task type of one pipeline run.
const TaskTranscribe = "transcript:run"

// Payload is the task body.
type Payload struct {
	Source  string `json:"source" validate:"required"`
	Format  string `json:"format,omitempty" validate:"omitempty,caption_format"`
	AssetID string `json:"asset_id,omitempty" validate:"omitempty,asset_id"`
}

// TaskID is deterministic so the same source and format are not queued
// twice while a run is pending.
func (p Payload) TaskID() string {
	id := p.AssetID
	if id == "" {
		id = p.Source
	}
	return TaskTranscribe + ":" + id + ":" + p.Format
}

// NewTask validates p and encodes it as an asynq task.
func NewTask(p Payload, opts ...asynq.Option) (*asynq.Task, error) {
	if err := validation.Validate(p); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTranscribe, data, opts...), nil
}

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context, p Payload) error

// Handler adapts a RunFunc to asynq. Errors that retrying cannot fix
// (bad payloads, invalid media, non-retryable AppErrors) skip asynq's
// redelivery.
type Handler struct {
	run RunFunc
	log *logger.Logger
}

// NewHandler wraps run.
func NewHandler(run RunFunc, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{run: run, log: log.WithComponent("jobs")}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := validation.Validate(p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	fields := logger.Fields("task_id", taskID, logger.FieldAttempt, retried+1, logger.FieldAssetID, p.AssetID)
	h.log.Info("run task started", fields)

	err := h.run(ctx, p)
	if err == nil {
		h.log.Info("run task finished", fields)
		return nil
	}

	h.log.Error("run task failed", logger.MergeWithError(fields, err))
	if !apperrors.IsRetryable(err) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// enqueuer is the part of asynq.Client the queue uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues runs.
type Client struct {
	client enqueuer
	cfg    Config
	log    *logger.Logger
}

// NewClient connects to the queue's Redis.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newClient(asynq.NewClient(redisOpt(cfg)), cfg, log), nil
}

func newClient(e enqueuer, cfg Config, log *logger.Logger) *Client {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{client: e, cfg: cfg, log: log.WithComponent("jobs")}
}

// Enqueue queues a run and returns its task ID. A run already queued for
// the same asset and format is not duplicated; its ID is returned.
func (c *Client) Enqueue(ctx context.Context, p Payload) (string, error) {
	task, err := NewTask(p,
		asynq.TaskID(p.TaskID()),
		asynq.Queue(c.cfg.Queue),
		asynq.MaxRetry(c.cfg.MaxRetry),
		asynq.Timeout(c.cfg.Timeout),
		asynq.Retention(c.cfg.Retention),
	)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if isTaskConflict(err) {
			c.log.Info("run already queued", logger.Fields("task_id", p.TaskID()))
			return p.TaskID(), nil
		}
		return "", apperrors.ServiceUnavailable("queue").WithCause(err)
	}

	c.log.Info("run enqueued", logger.Fields("task_id", info.ID, "queue", info.Queue))
	return info.ID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error { return c.client.Close() }

// isTaskConflict checks whether err reports a duplicate task ID.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	return strings.Contains(err.Error(), "task ID conflicts")
}

// Worker drains the queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker builds a worker that routes TaskTranscribe to h.
func NewWorker(cfg Config, h *Handler, log *logger.Logger) (*Worker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("jobs.worker")

	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      asynqLogger{log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Warn("task failed", logger.MergeWithError(logger.Fields("type", task.Type()), err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTranscribe, h)
	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run processes tasks until ctx is canceled, then shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start worker: %w", err)
	}
	w.log.Info("worker started")
	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("worker stopped")
	return nil
}

func redisOpt(cfg Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// asynqLogger routes asynq's internal logging through the project logger.
type asynqLogger struct{ log *logger.Logger }

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

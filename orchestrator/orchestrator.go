// Package orchestrator drives one media file through the pipeline:
// plan the chunks, export them, transcribe them, merge the captions.
//
// A run moves Planning → Exporting → Transcribing → Merging → Done and
// lands in Failed on the first error, reported as a *StepError naming the
// state and, for per-chunk work, the chunk. Artifacts already written are
// left in place so a failed run can be inspected.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/chunk"
	"github.com/kbukum/chunkscribe/database"
	"github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/events"
	"github.com/kbukum/chunkscribe/logger"
	"github.com/kbukum/chunkscribe/media"
	"github.com/kbukum/chunkscribe/merge"
	"github.com/kbukum/chunkscribe/observability"
	"github.com/kbukum/chunkscribe/pipeline"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/resilience"
	"github.com/kbukum/chunkscribe/runstore"
	"github.com/kbukum/chunkscribe/storage"
	"github.com/kbukum/chunkscribe/transcription"
	"github.com/kbukum/chunkscribe/validation"
)

// Transcriber is the call path to a transcription backend, usually a
// transcription.Client behind cache and rate-limit middleware.
type Transcriber = provider.RequestResponse[transcription.Request, *transcription.Response]

// Ledger records runs. *runstore.Store implements it.
type Ledger interface {
	Start(ctx context.Context, run *runstore.Run) error
	SetState(ctx context.Context, runID, state string) error
	SetChunkCount(ctx context.Context, runID string, n int) error
	SaveChunk(ctx context.Context, c *runstore.RunChunk) error
	Complete(ctx context.Context, runID string, c runstore.Completion) error
	Fail(ctx context.Context, runID string, f runstore.Failure) error
}

// Observer is called after every state transition.
type Observer func(ctx context.Context, run *Run, t Transition)

// Deps are the collaborators of an Orchestrator. Ledger, Notifier,
// Metrics, Observer and Logger are optional.
type Deps struct {
	Loader      *media.Loader
	Extractor   *media.Extractor
	Exporter    *media.Exporter
	Transcriber Transcriber
	Artifacts   *storage.Artifacts
	Ledger      Ledger
	Notifier    events.Notifier
	Metrics     *observability.PipelineMetrics
	Observer    Observer
	Logger      *logger.Logger
}

// Orchestrator runs the pipeline. It is safe for concurrent runs.
type Orchestrator struct {
	cfg         Config
	format      caption.Format
	loader      *media.Loader
	extractor   *media.Extractor
	exporter    *media.Exporter
	transcriber Transcriber
	artifacts   *storage.Artifacts
	ledger      Ledger
	notifier    events.Notifier
	metrics     *observability.PipelineMetrics
	observer    Observer
	log         *logger.Logger
}

// New validates cfg and wires deps. The transcriber is wrapped with
// per-chunk retries of retryable errors, with exponential backoff.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Loader == nil:
		return nil, errors.MissingField("loader")
	case deps.Exporter == nil:
		return nil, errors.MissingField("exporter")
	case deps.Transcriber == nil:
		return nil, errors.MissingField("transcriber")
	case deps.Artifacts == nil:
		return nil, errors.MissingField("artifacts")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("orchestrator")
	notifier := deps.Notifier
	if notifier == nil {
		notifier = events.Nop{}
	}
	format, _ := caption.ParseFormat(cfg.Format)

	retry := cfg.Retry
	retry.RetryIf = func(err error) bool {
		return errors.IsRetryable(err) && resilience.DefaultRetryIf(err)
	}
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		fields := logger.Fields(logger.FieldAttempt, attempt, "backoff_ms", backoff.Milliseconds())
		if app, ok := errors.AsAppError(err); ok {
			if idx, ok := app.ChunkIndex(); ok {
				fields[logger.FieldChunkIndex] = idx
			}
		}
		log.Warn("transcription failed, retrying", logger.MergeWithError(fields, err))
	}

	return &Orchestrator{
		cfg:         cfg,
		format:      format,
		loader:      deps.Loader,
		extractor:   deps.Extractor,
		exporter:    deps.Exporter,
		transcriber: provider.WithResilience(deps.Transcriber, provider.ResilienceConfig{Retry: &retry}),
		artifacts:   deps.Artifacts,
		ledger:      deps.Ledger,
		notifier:    notifier,
		metrics:     deps.Metrics,
		observer:    deps.Observer,
		log:         log,
	}, nil
}

// job is the working state of one run.
type job struct {
	run      *Run
	source   string
	format   caption.Format
	audio    string
	workDir  string
	exported []*media.AudioChunk
	docs     []chunkDoc
	res      *Result
}

type chunkDoc struct {
	Document string
	Key      string
	Cached   bool
}

type stepFunc func(ctx context.Context, j *job) error

// Run executes the pipeline for req and returns the merged transcript. A
// merge that kept unshiftable timing lines still succeeds; check
// Result.Degraded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	format := o.format
	if req.Format != "" {
		f, err := caption.ParseFormat(req.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	assetID := req.AssetID
	if assetID == "" {
		assetID = media.AssetIDFromPath(req.Source)
	}

	start := time.Now()
	j := &job{
		run:    newRun(uuid.NewString(), assetID),
		source: req.Source,
		format: format,
	}
	j.res = &Result{RunID: j.run.ID}

	ctx = logger.ContextWithRun(ctx, j.run.ID, assetID)
	ctx, span := observability.StartSpan(ctx, observability.SpanRun,
		attribute.String(observability.AttrRunID, j.run.ID),
		attribute.String(observability.AttrAssetID, assetID),
		attribute.String(observability.AttrFormat, string(format)),
	)
	defer span.End()

	o.log.WithContext(ctx).Info("run started", logger.Fields(
		logger.FieldPath, req.Source,
		logger.FieldFormat, format,
	))
	o.ledgerDo(ctx, "start", func(ctx context.Context, l Ledger) error {
		return l.Start(ctx, &runstore.Run{
			BaseModel: database.BaseModel{ID: j.run.ID},
			AssetID:   assetID,
			Source:    req.Source,
			Format:    string(format),
			State:     string(StatePlanning),
		})
	})

	steps := []struct {
		state State
		fn    stepFunc
	}{
		{StatePlanning, o.plan},
		{StateExporting, o.export},
		{StateTranscribing, o.transcribe},
		{StateMerging, o.merge},
	}
	for i, s := range steps {
		if i > 0 {
			o.transition(ctx, j.run, s.state)
		}
		if err := o.step(ctx, j, s.state, s.fn); err != nil {
			observability.SetSpanError(ctx, err)
			return nil, o.fail(ctx, j, err)
		}
	}

	o.transition(ctx, j.run, StateDone)
	j.res.Duration = time.Since(start)
	o.finish(ctx, j)
	return j.res, nil
}

// step runs fn inside a span, timing it and converting its error to a
// StepError.
func (o *Orchestrator) step(ctx context.Context, j *job, state State, fn stepFunc) error {
	if err := ctx.Err(); err != nil {
		return &StepError{RunID: j.run.ID, Step: state, ChunkIndex: NoChunk, Err: err}
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanStep,
		attribute.String(observability.AttrStep, string(state)))
	defer span.End()

	start := time.Now()
	err := fn(ctx, j)
	d := time.Since(start)

	o.metrics.RecordStep(ctx, string(state), d)
	j.res.Steps = append(j.res.Steps, StepResult{Step: state, Duration: d})

	if err != nil {
		se := stepErr(state, NoChunk, err)
		se.RunID = j.run.ID
		observability.SetSpanError(ctx, se)
		return se
	}
	o.log.WithContext(ctx).Debug("step completed", logger.Fields(
		logger.FieldStep, state,
		logger.FieldDuration, d.Milliseconds(),
	))
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, j *job) error {
	asset, err := o.loader.Load(ctx, j.source, j.run.AssetID)
	if err != nil {
		return err
	}
	j.res.Asset = asset
	j.workDir = filepath.Join(o.cfg.AudioRoot, asset.ID)
	j.audio = asset.Path

	if asset.Kind == media.KindVideo {
		if o.extractor == nil {
			return errors.Internal(fmt.Errorf("video source %s but no audio extractor configured", asset.Path))
		}
		out, err := o.extractor.ExtractAudio(ctx, asset.Path, filepath.Join(j.workDir, "source.wav"))
		if err != nil {
			return errors.New(errors.ErrCodeExport, "Extracting the audio track failed.").
				WithDetail(errors.DetailPath, asset.Path).WithCause(err)
		}
		// Chunks are cut from the extracted track, so its duration, not
		// the container's, bounds the plan.
		audioMs, err := o.loader.AudioDurationMs(ctx, out)
		if err != nil {
			return errors.New(errors.ErrCodeExport, "Reading the extracted audio duration failed.").
				WithDetail(errors.DetailPath, out).WithCause(err)
		}
		if audioMs != asset.DurationMs {
			o.log.WithContext(ctx).Warn("audio track and container durations differ", logger.Fields(
				"container_ms", asset.DurationMs,
				"audio_ms", audioMs,
			))
		}
		extracted := *asset
		extracted.DurationMs = audioMs
		asset = &extracted
		j.res.Asset = asset
		j.audio = out
	}

	plan, err := chunk.NewPlan(asset.DurationMs, o.cfg.Limits())
	if err != nil {
		return err
	}
	if err := plan.Covers(asset.DurationMs); err != nil {
		return errors.Internal(err)
	}
	j.res.Plan = plan

	o.ledgerDo(ctx, "chunk count", func(ctx context.Context, l Ledger) error {
		return l.SetChunkCount(ctx, j.run.ID, len(plan))
	})
	o.log.WithContext(ctx).Info("plan ready", logger.Fields(
		logger.FieldChunks, len(plan),
		"duration_ms", asset.DurationMs,
		"kind", asset.Kind,
	))
	return nil
}

func (o *Orchestrator) export(ctx context.Context, j *job) error {
	chunks, err := forEachChunk(ctx, o.cfg.Concurrency, j.res.Plan,
		func(ctx context.Context, spec chunk.Spec) (*media.AudioChunk, error) {
			ctx, span := observability.StartSpan(ctx, observability.SpanExport,
				attribute.Int(observability.AttrChunkIndex, spec.Index))
			defer span.End()

			c, err := o.exporter.Export(ctx, j.audio, spec, j.workDir)
			o.metrics.RecordChunk(ctx, string(StateExporting), err)
			if err != nil {
				observability.SetSpanError(ctx, err)
				return nil, &StepError{RunID: j.run.ID, Step: StateExporting, ChunkIndex: spec.Index, Err: err}
			}

			o.ledgerDo(ctx, "chunk exported", func(ctx context.Context, l Ledger) error {
				return l.SaveChunk(ctx, &runstore.RunChunk{
					RunID:      j.run.ID,
					Index:      c.Index,
					StartMs:    c.StartMs,
					DurationMs: c.DurationMs,
					AudioPath:  c.Path,
					State:      runstore.ChunkExported,
				})
			})
			o.log.WithContext(ctx).Debug("chunk exported", logger.Fields(
				logger.FieldChunkIndex, c.Index,
				"planned_ms", spec.DurationMs(),
				"actual_ms", c.DurationMs,
			))
			return c, nil
		})
	if err != nil {
		return err
	}
	j.exported = chunks
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, j *job) error {
	docs, err := forEachChunk(ctx, o.cfg.Concurrency, j.exported,
		func(ctx context.Context, c *media.AudioChunk) (chunkDoc, error) {
			ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe,
				attribute.Int(observability.AttrChunkIndex, c.Index))
			defer span.End()

			fail := func(err error) (chunkDoc, error) {
				observability.SetSpanError(ctx, err)
				o.ledgerDo(ctx, "chunk failed", func(ctx context.Context, l Ledger) error {
					return l.SaveChunk(ctx, &runstore.RunChunk{
						RunID: j.run.ID, Index: c.Index, StartMs: c.StartMs, DurationMs: c.DurationMs,
						AudioPath: c.Path, State: runstore.ChunkFailed, Error: err.Error(),
					})
				})
				return chunkDoc{}, &StepError{RunID: j.run.ID, Step: StateTranscribing, ChunkIndex: c.Index, Err: err}
			}

			resp, err := o.transcriber.Execute(ctx, transcription.Request{
				ChunkIndex: c.Index,
				AudioPath:  c.Path,
				Format:     j.format,
				Language:   o.cfg.Language,
				Prompt:     o.cfg.Prompt,
			})
			o.metrics.RecordChunk(ctx, string(StateTranscribing), err)
			if err != nil {
				return fail(err)
			}

			// Persist as soon as it arrives so a later failure keeps it.
			key, err := o.artifacts.SaveChunk(ctx, j.run.AssetID, c.Index, j.format, resp.Document)
			if err != nil {
				return fail(err)
			}

			o.ledgerDo(ctx, "chunk transcribed", func(ctx context.Context, l Ledger) error {
				return l.SaveChunk(ctx, &runstore.RunChunk{
					RunID: j.run.ID, Index: c.Index, StartMs: c.StartMs, DurationMs: c.DurationMs,
					AudioPath: c.Path, CaptionKey: key, State: runstore.ChunkTranscribed,
				})
			})
			o.log.WithContext(ctx).Debug("chunk transcribed", logger.Fields(
				logger.FieldChunkIndex, c.Index,
				logger.FieldProvider, resp.Provider,
				"cached", resp.Cached,
				"key", key,
			))
			return chunkDoc{Document: resp.Document, Key: key, Cached: resp.Cached}, nil
		})
	if err != nil {
		return err
	}
	j.docs = docs
	return nil
}

func (o *Orchestrator) merge(ctx context.Context, j *job) error {
	var opts []merge.Option
	if o.cfg.Normalize {
		opts = append(opts, merge.WithNormalize())
	}
	m := merge.New(j.format, opts...)

	for i, c := range j.exported {
		offset := m.OffsetMs()
		doc := j.docs[i]
		if err := m.Add(merge.ChunkResult{Index: c.Index, DurationMs: c.DurationMs, Document: doc.Document}); err != nil {
			return err
		}
		j.res.Chunks = append(j.res.Chunks, ChunkOutcome{
			Index:      c.Index,
			OffsetMs:   offset,
			DurationMs: c.DurationMs,
			AudioPath:  c.Path,
			CaptionKey: doc.Key,
			Cached:     doc.Cached,
		})
	}

	t := m.Result()
	key, err := o.artifacts.SaveMerged(ctx, j.run.AssetID, j.format, t.Document)
	if err != nil {
		return err
	}
	j.res.Transcript = t
	j.res.MergedKey = key
	if u, err := o.artifacts.URL(ctx, key); err == nil {
		j.res.MergedURL = u
	}

	if t.Degraded() {
		o.metrics.RecordMergeWarnings(ctx, len(t.Warnings))
		o.log.WithContext(ctx).Warn("transcript merged with unshifted timing lines",
			logger.MergeWithError(logger.Fields("warnings", len(t.Warnings)), t.DegradedError()))
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, j *job) {
	res := j.res
	t := res.Transcript

	outcome := observability.OutcomeSucceeded
	if t.Degraded() {
		outcome = observability.OutcomeDegraded
	}
	o.metrics.RecordRun(ctx, outcome)

	o.ledgerDo(ctx, "complete", func(ctx context.Context, l Ledger) error {
		return l.Complete(ctx, j.run.ID, runstore.Completion{
			MergedKey:  res.MergedKey,
			Captions:   len(t.Captions),
			Warnings:   len(t.Warnings),
			DurationMs: res.Duration.Milliseconds(),
		})
	})

	if err := o.notifier.Completed(context.WithoutCancel(ctx), events.TranscriptCompleted{
		RunID:      j.run.ID,
		AssetID:    j.run.AssetID,
		Format:     string(j.format),
		MergedKey:  res.MergedKey,
		MergedURL:  res.MergedURL,
		Chunks:     len(res.Chunks),
		Captions:   len(t.Captions),
		Warnings:   len(t.Warnings),
		TextLength: len(t.Text),
		DurationMs: t.DurationMs,
		Degraded:   t.Degraded(),
	}); err != nil {
		o.log.WithContext(ctx).Warn("completion event not published", logger.ErrorFields("notify", err))
	}

	if !o.cfg.KeepAudio && j.workDir != "" {
		if err := os.RemoveAll(j.workDir); err != nil {
			o.log.WithContext(ctx).Warn("working audio not removed", logger.ErrorFields("cleanup", err))
		}
	}

	o.log.WithContext(ctx).Info("run completed", logger.Fields(
		logger.FieldChunks, len(res.Chunks),
		"captions", len(t.Captions),
		"warnings", len(t.Warnings),
		"merged_key", res.MergedKey,
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
}

// fail moves the run to Failed and records where it stopped. Bookkeeping
// outlives ctx so a canceled run is still recorded.
func (o *Orchestrator) fail(ctx context.Context, j *job, err error) error {
	se := stepErr(j.run.State(), NoChunk, err)
	se.RunID = j.run.ID

	o.transition(ctx, j.run, StateFailed)
	o.metrics.RecordRun(ctx, observability.OutcomeFailed)

	var chunkIndex *int
	if se.HasChunk() {
		idx := se.ChunkIndex
		chunkIndex = &idx
	}
	code := string(se.Code())

	o.ledgerDo(ctx, "fail", func(ctx context.Context, l Ledger) error {
		return l.Fail(ctx, j.run.ID, runstore.Failure{Step: string(se.Step), ChunkIndex: chunkIndex, Code: code, Err: se.Err})
	})
	if nerr := o.notifier.Failed(context.WithoutCancel(ctx), events.TranscriptFailed{
		RunID:      j.run.ID,
		AssetID:    j.run.AssetID,
		Step:       string(se.Step),
		ChunkIndex: chunkIndex,
		Code:       code,
		Error:      se.Err.Error(),
	}); nerr != nil {
		o.log.WithContext(ctx).Warn("failure event not published", logger.ErrorFields("notify", nerr))
	}

	fields := logger.Fields(logger.FieldStep, se.Step, "code", code)
	if se.HasChunk() {
		fields[logger.FieldChunkIndex] = se.ChunkIndex
	}
	o.log.WithContext(ctx).Error("run failed", logger.MergeWithError(fields, se.Err))
	return se
}

func (o *Orchestrator) transition(ctx context.Context, run *Run, to State) {
	t, err := run.transition(to)
	if err != nil {
		o.log.WithContext(ctx).Error("state machine violation", logger.ErrorFields("transition", err))
		return
	}
	if o.observer != nil {
		o.observer(ctx, run, t)
	}
	o.ledgerDo(ctx, "state", func(ctx context.Context, l Ledger) error {
		return l.SetState(ctx, run.ID, string(to))
	})
}

// ledgerDo records to the ledger when one is configured. Ledger failures
// are logged and never fail the run.
func (o *Orchestrator) ledgerDo(ctx context.Context, op string, fn func(context.Context, Ledger) error) {
	if o.ledger == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), o.ledger); err != nil {
		o.log.WithContext(ctx).Warn("run ledger write failed", logger.ErrorFields("ledger "+op, err))
	}
}

// forEachChunk applies fn to items in index order: one at a time when n
// is 1, otherwise on n workers with results re-ordered. The first failure
// cancels the remaining work.
func forEachChunk[I, O any](ctx context.Context, n int, items []I, fn func(context.Context, I) (O, error)) ([]O, error) {
	src := pipeline.FromSlice(items)
	var out *pipeline.Pipeline[O]
	if n > 1 {
		out = pipeline.OrderedParallel(src, n, fn)
	} else {
		out = pipeline.Map(src, fn)
	}
	return pipeline.Collect(ctx, out)
}

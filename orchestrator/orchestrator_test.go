package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/database"
	"github.com/kbukum/chunkscribe/errors"
	"github.com/kbukum/chunkscribe/events"
	"github.com/kbukum/chunkscribe/media"
	"github.com/kbukum/chunkscribe/process"
	"github.com/kbukum/chunkscribe/provider"
	"github.com/kbukum/chunkscribe/resilience"
	"github.com/kbukum/chunkscribe/runstore"
	"github.com/kbukum/chunkscribe/storage"
	"github.com/kbukum/chunkscribe/storage/local"
	"github.com/kbukum/chunkscribe/transcription"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"filename": "%s", "format_name": "mov,mp4", "duration": "%s"}
}`

// fakeFFmpeg answers ffprobe from durations keyed by file name and writes
// an empty output file for every ffmpeg call.
type fakeFFmpeg struct {
	mu        sync.Mutex
	durations map[string]string
	exports   int
}

func (f *fakeFFmpeg) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	path := cmd.Args[len(cmd.Args)-1]
	if cmd.Binary == "ffprobe" {
		f.mu.Lock()
		d, ok := f.durations[filepath.Base(path)]
		f.mu.Unlock()
		if !ok {
			return &process.Result{ExitCode: 1}, fmt.Errorf("exit code 1")
		}
		return &process.Result{Stdout: []byte(fmt.Sprintf(probeJSON, path, d))}, nil
	}
	f.mu.Lock()
	if strings.HasPrefix(filepath.Base(path), "chunk") {
		f.exports++
	}
	f.mu.Unlock()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, err
	}
	return &process.Result{}, nil
}

func cue(text string) string {
	return "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n" + text + "\n"
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []events.TranscriptCompleted
	failed    []events.TranscriptFailed
}

func (n *recordingNotifier) Completed(_ context.Context, e events.TranscriptCompleted) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, e)
	return nil
}

func (n *recordingNotifier) Failed(_ context.Context, e events.TranscriptFailed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, e)
	return nil
}

type harness struct {
	orch     *Orchestrator
	ffmpeg   *fakeFFmpeg
	store    *runstore.Store
	files    *local.Storage
	notifier *recordingNotifier
	source   string
	audio    string
	states   []State
}

// newHarness wires a 45 minute talk.mp4 whose three 15 minute chunks come
// back 900.000, 899.500 and 900.000 seconds long.
func newHarness(t *testing.T, cfg Config, transcribe func(context.Context, transcription.Request) (*transcription.Response, error)) *harness {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ff := &fakeFFmpeg{durations: map[string]string{
		"talk.mp4":   "2700.000",
		"source.wav": "2700.000",
		"chunk0.mp3": "900.000",
		"chunk1.mp3": "899.500",
		"chunk2.mp3": "900.000",
	}}

	db, err := database.Open(context.Background(), database.Config{Enabled: true, DSN: ":memory:", LogLevel: "silent"}, nil)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := runstore.New(db, nil)
	if err != nil {
		t.Fatalf("runstore.New: %v", err)
	}

	files, err := local.NewStorage(filepath.Join(dir, "transcripts"))
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		ffmpeg:   ff,
		store:    store,
		files:    files,
		notifier: &recordingNotifier{},
		source:   source,
		audio:    filepath.Join(dir, "audio"),
	}

	cfg.AudioRoot = h.audio
	cfg.MaxChunkDuration = 20 * time.Minute
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	}

	var mu sync.Mutex
	orch, err := New(cfg, Deps{
		Loader:      media.NewLoader(media.NewProber(media.Config{}, ff), nil),
		Extractor:   media.NewExtractor(media.Config{}, ff),
		Exporter:    media.NewExporter(media.Config{}, ff, cfg.BitrateBps),
		Transcriber: provider.Func("fake", transcribe),
		Artifacts:   storage.NewArtifacts(files),
		Ledger:      store,
		Notifier:    h.notifier,
		Observer: func(_ context.Context, _ *Run, tr Transition) {
			mu.Lock()
			defer mu.Unlock()
			h.states = append(h.states, tr.To)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

func echo(_ context.Context, req transcription.Request) (*transcription.Response, error) {
	return &transcription.Response{Document: cue(fmt.Sprintf("chunk %d", req.ChunkIndex)), Provider: "fake"}, nil
}

func TestRun_ThreeChunks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, echo)

	res, err := h.orch.Run(ctx, Request{Source: h.source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Plan) != 3 {
		t.Fatalf("plan = %+v, want 3 chunks", res.Plan)
	}
	for i, spec := range res.Plan {
		if spec.DurationMs() != 900_000 {
			t.Errorf("chunk %d planned %d ms, want 900000", i, spec.DurationMs())
		}
	}

	wantOffsets := []int64{0, 900_000, 1_799_500}
	for i, c := range res.Chunks {
		if c.OffsetMs != wantOffsets[i] {
			t.Errorf("chunk %d offset = %d, want %d", i, c.OffsetMs, wantOffsets[i])
		}
		if c.CaptionKey != storage.ChunkKey("talk", i, caption.FormatVTT) {
			t.Errorf("chunk %d key = %q", i, c.CaptionKey)
		}
	}

	tr := res.Transcript
	if len(tr.Captions) != 3 {
		t.Fatalf("captions = %+v", tr.Captions)
	}
	if tr.Captions[2].StartMs != 1_800_500 || tr.Captions[2].Text != "chunk 2" {
		t.Errorf("last caption = %+v", tr.Captions[2])
	}
	if res.Degraded() {
		t.Errorf("unexpected warnings: %v", tr.Warnings)
	}

	merged, err := storage.NewArtifacts(h.files).Load(ctx, res.MergedKey)
	if err != nil {
		t.Fatalf("load merged: %v", err)
	}
	if merged != tr.Document || !strings.Contains(merged, "00:30:00.500 --> 00:30:01.500") {
		t.Errorf("merged document:\n%s", merged)
	}
	reparsed, bad := caption.ParseCues(caption.FormatVTT, merged)
	if len(bad) != 0 || fmt.Sprint(reparsed) != fmt.Sprint(tr.Captions) {
		t.Errorf("merged document cues = %+v, want %+v\n%q", reparsed, tr.Captions, merged)
	}
	if !strings.HasPrefix(res.MergedURL, "file://") {
		t.Errorf("MergedURL = %q", res.MergedURL)
	}

	wantStates := []State{StateExporting, StateTranscribing, StateMerging, StateDone}
	if fmt.Sprint(h.states) != fmt.Sprint(wantStates) {
		t.Errorf("transitions = %v, want %v", h.states, wantStates)
	}
	if len(res.Steps) != 4 {
		t.Errorf("steps = %+v", res.Steps)
	}

	run, err := h.store.Get(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.State != runstore.StateDone || run.Chunks != 3 || run.Captions != 3 || run.MergedKey != res.MergedKey {
		t.Errorf("ledger run = %+v", run)
	}
	chunks, _ := h.store.Chunks(ctx, res.RunID)
	for _, c := range chunks {
		if c.State != runstore.ChunkTranscribed || c.CaptionKey == "" {
			t.Errorf("ledger chunk = %+v", c)
		}
	}

	if len(h.notifier.completed) != 1 || h.notifier.completed[0].Chunks != 3 {
		t.Errorf("completed events = %+v", h.notifier.completed)
	}
	if _, err := os.Stat(filepath.Join(h.audio, "talk")); !os.IsNotExist(err) {
		t.Errorf("working audio not cleaned up: %v", err)
	}
}

func TestRun_PlansFromExtractedAudio(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, echo)
	h.ffmpeg.durations["source.wav"] = "2000.000"
	h.ffmpeg.durations["chunk0.mp3"] = "1000.000"
	h.ffmpeg.durations["chunk1.mp3"] = "1000.000"

	res, err := h.orch.Run(ctx, Request{Source: h.source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Plan) != 2 || res.Plan[1].EndMs != 2_000_000 {
		t.Errorf("plan = %+v, want 2 chunks ending at 2000000", res.Plan)
	}
	if res.Asset.DurationMs != 2_000_000 {
		t.Errorf("asset duration = %d", res.Asset.DurationMs)
	}
	if h.ffmpeg.exports != 2 {
		t.Errorf("exports = %d", h.ffmpeg.exports)
	}
}

func TestRun_ExtractedAudioUnreadable(t *testing.T) {
	h := newHarness(t, Config{}, echo)
	delete(h.ffmpeg.durations, "source.wav")

	_, err := h.orch.Run(context.Background(), Request{Source: h.source})
	se, ok := AsStepError(err)
	if !ok {
		t.Fatalf("err = %v, want StepError", err)
	}
	if se.Step != StatePlanning || se.HasChunk() || se.Code() != errors.ErrCodeExport {
		t.Errorf("step error = %+v code %s", se, se.Code())
	}
}

func TestRun_ParallelKeepsOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := func(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		// Later chunks finish first.
		time.Sleep(time.Duration(3-req.ChunkIndex) * 10 * time.Millisecond)
		return echo(ctx, req)
	}
	h := newHarness(t, Config{Concurrency: 3, KeepAudio: true}, slow)

	res, err := h.orch.Run(context.Background(), Request{Source: h.source, AssetID: "lecture"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, c := range res.Transcript.Captions {
		if c.Text != fmt.Sprintf("chunk %d", i) {
			t.Errorf("caption %d = %q", i, c.Text)
		}
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want > 1", peak.Load())
	}
	if _, err := os.Stat(filepath.Join(h.audio, "lecture", "chunk2.mp3")); err != nil {
		t.Errorf("KeepAudio: %v", err)
	}
}

func TestRun_TranscriptionFailure(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	failSecond := func(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
		if req.ChunkIndex == 1 {
			calls.Add(1)
			return nil, errors.ExternalServiceError("fake", fmt.Errorf("503 from upstream")).
				WithDetail(errors.DetailChunkIndex, req.ChunkIndex)
		}
		return echo(ctx, req)
	}
	h := newHarness(t, Config{Format: "srt"}, func(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
		if req.Format != caption.FormatSRT {
			return nil, fmt.Errorf("format = %s", req.Format)
		}
		return failSecond(ctx, req)
	})

	_, err := h.orch.Run(ctx, Request{Source: h.source})
	se, ok := AsStepError(err)
	if !ok {
		t.Fatalf("error = %v, want *StepError", err)
	}
	if se.Step != StateTranscribing || se.ChunkIndex != 1 || se.Code() != errors.ErrCodeExternalService {
		t.Errorf("step error = %+v (code %s)", se, se.Code())
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
	if h.states[len(h.states)-1] != StateFailed {
		t.Errorf("transitions = %v", h.states)
	}

	// The first chunk's captions and the audio stay for inspection.
	if _, err := storage.NewArtifacts(h.files).LoadChunk(ctx, "talk", 0, caption.FormatSRT); err != nil {
		t.Errorf("chunk 0 artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.audio, "talk", "chunk1.mp3")); err != nil {
		t.Errorf("chunk 1 audio: %v", err)
	}

	run, err := h.store.Get(ctx, se.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.State != runstore.StateFailed || run.Step != string(StateTranscribing) ||
		run.ChunkIndex == nil || *run.ChunkIndex != 1 || run.ErrorCode != string(errors.ErrCodeExternalService) {
		t.Errorf("ledger run = %+v", run)
	}
	if len(h.notifier.failed) != 1 || h.notifier.failed[0].ChunkIndex == nil || *h.notifier.failed[0].ChunkIndex != 1 {
		t.Errorf("failed events = %+v", h.notifier.failed)
	}
}

func TestRun_RetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	flaky := func(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
		if req.ChunkIndex == 0 && calls.Add(1) == 1 {
			return nil, errors.RateLimited()
		}
		return echo(ctx, req)
	}
	h := newHarness(t, Config{}, flaky)

	if _, err := h.orch.Run(context.Background(), Request{Source: h.source}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("chunk 0 attempts = %d, want 2", calls.Load())
	}
}

func TestRun_NonRetryableNotRetried(t *testing.T) {
	var calls atomic.Int32
	bad := func(context.Context, transcription.Request) (*transcription.Response, error) {
		calls.Add(1)
		return nil, errors.InvalidInput("audio", "rejected")
	}
	h := newHarness(t, Config{}, bad)

	_, err := h.orch.Run(context.Background(), Request{Source: h.source})
	se, ok := AsStepError(err)
	if !ok || se.ChunkIndex != 0 || se.Code() != errors.ErrCodeInvalidInput {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1", calls.Load())
	}
}

func TestRun_ExportFailure(t *testing.T) {
	h := newHarness(t, Config{}, echo)
	delete(h.ffmpeg.durations, "chunk2.mp3")

	_, err := h.orch.Run(context.Background(), Request{Source: h.source})
	se, ok := AsStepError(err)
	if !ok {
		t.Fatalf("error = %v", err)
	}
	if se.Step != StateExporting || se.ChunkIndex != 2 || se.Code() != errors.ErrCodeExport {
		t.Errorf("step error = %+v", se)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	h := newHarness(t, Config{}, echo)

	_, err := h.orch.Run(context.Background(), Request{})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty request: %v", err)
	}

	_, err = h.orch.Run(context.Background(), Request{Source: h.source, Format: "txt"})
	if err == nil {
		t.Error("expected error for unknown format")
	}

	_, err = h.orch.Run(context.Background(), Request{Source: filepath.Join(filepath.Dir(h.source), "missing.wav")})
	se, ok := AsStepError(err)
	if !ok || se.Step != StatePlanning || se.HasChunk() || se.Code() != errors.ErrCodeInvalidInput {
		t.Errorf("missing source: %v", err)
	}
	if h.ffmpeg.exports != 0 {
		t.Errorf("exports = %d, want 0", h.ffmpeg.exports)
	}
}

func TestRun_DegradedMerge(t *testing.T) {
	garbled := func(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
		if req.ChunkIndex == 1 {
			return &transcription.Response{Document: "WEBVTT\n\n00:00:xx.000 --> 00:00:02.000\nnoise\n"}, nil
		}
		return echo(ctx, req)
	}
	h := newHarness(t, Config{}, garbled)

	res, err := h.orch.Run(context.Background(), Request{Source: h.source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Degraded() || len(res.Transcript.Warnings) != 1 {
		t.Fatalf("warnings = %v", res.Transcript.Warnings)
	}
	if !strings.Contains(res.Transcript.Document, "00:00:xx.000 --> 00:00:02.000") {
		t.Error("unparseable timing line not kept verbatim")
	}
	if !h.notifier.completed[0].Degraded {
		t.Error("completion event not marked degraded")
	}
}

func TestRun_SingleChunk(t *testing.T) {
	h := newHarness(t, Config{}, echo)
	h.ffmpeg.durations["talk.mp4"] = "120.000"
	h.ffmpeg.durations["chunk0.mp3"] = "120.000"

	res, err := h.orch.Run(context.Background(), Request{Source: h.source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Plan) != 1 || res.Transcript.Document != cue("chunk 0") {
		t.Errorf("single chunk result: plan=%+v doc=%q", res.Plan, res.Transcript.Document)
	}
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(t, Config{}, echo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Run(ctx, Request{Source: h.source})
	se, ok := AsStepError(err)
	if !ok || se.Step != StatePlanning {
		t.Fatalf("error = %v", err)
	}
	run, err := h.store.Get(context.Background(), se.RunID)
	if err != nil || run.State != runstore.StateFailed {
		t.Errorf("canceled run not recorded: %v %+v", err, run)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); !errors.HasCode(err, errors.ErrCodeMissingField) {
		t.Errorf("New = %v, want MISSING_FIELD", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Format = "txt"
	cfg.Concurrency = -1
	cfg.Retry.MaxAttempts = 0
	err := cfg.Validate()
	app, ok := errors.AsAppError(err)
	if !ok || app.Code != errors.ErrCodeInvalidInput {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
	for _, field := range []string{"format", "concurrency", "retry.max_attempts"} {
		if !strings.Contains(err.Error(), field+":") {
			t.Errorf("error %q does not name %s", err, field)
		}
	}
	if strings.Contains(err.Error(), "bitrate") {
		t.Errorf("valid bitrate reported: %v", err)
	}
}

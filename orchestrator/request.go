package orchestrator

import (
	"time"

	"github.com/kbukum/chunkscribe/chunk"
	"github.com/kbukum/chunkscribe/media"
	"github.com/kbukum/chunkscribe/merge"
)

// Request asks for one media file to be transcribed.
type Request struct {
	// Source is the path of the audio or video file.
	Source string `json:"source" validate:"required"`
	// Format is "srt" or "vtt"; empty uses the configured default.
	Format string `json:"format,omitempty" validate:"omitempty,caption_format"`
	// AssetID names the artifact directory; empty derives it from Source.
	AssetID string `json:"asset_id,omitempty" validate:"omitempty,asset_id"`
}

// ChunkOutcome is what the run produced for one chunk.
type ChunkOutcome struct {
	Index int `json:"index"`
	// OffsetMs is where the chunk starts in the merged transcript: the sum
	// of the actual durations of the chunks before it.
	OffsetMs   int64  `json:"offset_ms"`
	DurationMs int64  `json:"duration_ms"`
	AudioPath  string `json:"audio_path"`
	CaptionKey string `json:"caption_key"`
	Cached     bool   `json:"cached,omitempty"`
}

// StepResult is the timing of one state.
type StepResult struct {
	Step     State         `json:"step"`
	Duration time.Duration `json:"duration"`
}

// Result describes a finished run.
type Result struct {
	RunID      string            `json:"run_id"`
	Asset      *media.Asset      `json:"asset"`
	Plan       chunk.Plan        `json:"plan"`
	Chunks     []ChunkOutcome    `json:"chunks"`
	Transcript *merge.Transcript `json:"transcript"`
	MergedKey  string            `json:"merged_key"`
	MergedURL  string            `json:"merged_url,omitempty"`
	Steps      []StepResult      `json:"steps"`
	Duration   time.Duration     `json:"duration"`
}

// Degraded reports whether the merge kept timing lines it could not shift.
func (r *Result) Degraded() bool {
	return r.Transcript != nil && r.Transcript.Degraded()
}

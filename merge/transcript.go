package merge

import (
	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/errors"
)

// Transcript is the merged output for a whole asset.
type Transcript struct {
	Format   caption.Format    `json:"format"`
	Document string            `json:"document"`
	Captions []caption.Caption `json:"captions"`
	// Text is the cue texts joined by newlines.
	Text     string    `json:"text"`
	Warnings []Warning `json:"warnings,omitempty"`
	Chunks   int       `json:"chunks"`
	// DurationMs is the sum of the chunk durations.
	DurationMs int64 `json:"duration_ms"`
}

// Degraded reports whether any timing line was kept without re-timing.
func (t *Transcript) Degraded() bool {
	return len(t.Warnings) > 0
}

// DegradedError returns a MERGE_ERROR describing the warnings, or nil for a
// clean merge. It is informational: the transcript is still usable.
func (t *Transcript) DegradedError() error {
	if !t.Degraded() {
		return nil
	}
	lines := make([]string, 0, len(t.Warnings))
	chunks := make([]int, 0, len(t.Warnings))
	seen := make(map[int]bool)
	for _, w := range t.Warnings {
		lines = append(lines, w.String())
		if !seen[w.ChunkIndex] {
			seen[w.ChunkIndex] = true
			chunks = append(chunks, w.ChunkIndex)
		}
	}
	return errors.MergeDegraded(len(t.Warnings)).
		WithDetail("chunks", chunks).
		WithDetail("warnings", lines).
		WithCause(t.Warnings[0].Err)
}

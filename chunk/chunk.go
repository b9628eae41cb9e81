// Package chunk decides how a long recording is split for transcription.
package chunk

import (
	"fmt"
	"time"

	"github.com/kbukum/chunkscribe/errors"
)

// Spec is one planned slice, [StartMs, EndMs) of the source timeline.
type Spec struct {
	Index   int   `json:"index"`
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// DurationMs is the planned length of the slice.
func (s Spec) DurationMs() int64 {
	return s.EndMs - s.StartMs
}

// Limits bound the size and length of each chunk.
type Limits struct {
	// BitrateBps is the target encoding bitrate used to predict file size.
	BitrateBps int64
	// MaxUploadBytes is the transcription service's upload limit.
	MaxUploadBytes int64
	// MaxChunkDurationMs caps each chunk's length regardless of size.
	MaxChunkDurationMs int64
}

// DefaultLimits are 128 kbps, 25 MiB and 20 minutes.
func DefaultLimits() Limits {
	return Limits{
		BitrateBps:         128_000,
		MaxUploadBytes:     25 << 20,
		MaxChunkDurationMs: (20 * time.Minute).Milliseconds(),
	}
}

// Validate rejects non-positive limits.
func (l Limits) Validate() error {
	switch {
	case l.BitrateBps <= 0:
		return errors.InvalidInput("bitrate", "must be positive")
	case l.MaxUploadBytes <= 0:
		return errors.InvalidInput("max_upload_bytes", "must be positive")
	case l.MaxChunkDurationMs <= 0:
		return errors.InvalidInput("max_chunk_duration", "must be positive")
	}
	return nil
}

// EstimateSize predicts the encoded size in bytes of durationMs of audio at
// bitrateBps.
func EstimateSize(durationMs, bitrateBps int64) int64 {
	return durationMs * bitrateBps / 8000
}

// Plan is an ordered, contiguous list of specs starting at 0.
type Plan []Spec

// NewPlan splits durationMs into chunks. When the estimated size fits in
// MaxUploadBytes the whole recording is one chunk. Otherwise it is cut into
// ceil(duration / MaxChunkDurationMs) equal parts, with the final part
// extended to durationMs so the integer-division remainder is not dropped.
func NewPlan(durationMs int64, limits Limits) (Plan, error) {
	if durationMs <= 0 {
		return nil, errors.InvalidInput("duration_ms", fmt.Sprintf("duration must be positive, got %d", durationMs))
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	if EstimateSize(durationMs, limits.BitrateBps) <= limits.MaxUploadBytes {
		return Plan{{Index: 0, StartMs: 0, EndMs: durationMs}}, nil
	}

	parts := (durationMs + limits.MaxChunkDurationMs - 1) / limits.MaxChunkDurationMs
	length := durationMs / parts

	plan := make(Plan, parts)
	for i := range plan {
		start := int64(i) * length
		plan[i] = Spec{Index: i, StartMs: start, EndMs: start + length}
	}
	plan[len(plan)-1].EndMs = durationMs
	return plan, nil
}

// Covers checks that p spans exactly [0, durationMs) with contiguous,
// non-empty, correctly indexed specs.
func (p Plan) Covers(durationMs int64) error {
	if len(p) == 0 {
		return fmt.Errorf("chunk: empty plan")
	}
	var next int64
	for i, s := range p {
		if s.Index != i {
			return fmt.Errorf("chunk: spec %d has index %d", i, s.Index)
		}
		if s.StartMs != next {
			return fmt.Errorf("chunk: spec %d starts at %d, expected %d", i, s.StartMs, next)
		}
		if s.EndMs <= s.StartMs {
			return fmt.Errorf("chunk: spec %d is empty", i)
		}
		next = s.EndMs
	}
	if next != durationMs {
		return fmt.Errorf("chunk: plan ends at %d, expected %d", next, durationMs)
	}
	return nil
}

// TotalMs is the end of the last spec.
func (p Plan) TotalMs() int64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].EndMs
}

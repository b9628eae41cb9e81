package transcription

import (
	"context"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/provider"
)

// Request asks for the captions of one chunk.
type Request struct {
	ChunkIndex int            `json:"chunk_index"`
	AudioPath  string         `json:"audio_path"`
	Format     caption.Format `json:"format"`
	// Language is an ISO-639-1 hint such as "en". Empty lets the backend detect it.
	Language string `json:"language,omitempty"`
	// Prompt biases vocabulary and style where the backend supports it.
	Prompt string `json:"prompt,omitempty"`
}

// Response is the caption document for one chunk, in the requested
// format, with timestamps relative to the chunk start.
type Response struct {
	Document string `json:"document"`
	Provider string `json:"provider"`
	Language string `json:"language,omitempty"`
	// Cached is set when the document came from the transcript cache.
	Cached bool `json:"-"`
}

// Segment is a time-aligned piece of text returned by segment-based backends.
type Segment struct {
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
	Text     string  `json:"text"`
}

// SegmentsToCaptions converts seconds-based segments to captions.
func SegmentsToCaptions(segs []Segment) []caption.Caption {
	caps := make([]caption.Caption, 0, len(segs))
	for _, s := range segs {
		caps = append(caps, caption.Caption{
			StartMs: secToMs(s.StartSec),
			EndMs:   secToMs(s.EndSec),
			Text:    s.Text,
		})
	}
	return caps
}

func secToMs(s float64) int64 {
	if s <= 0 {
		return 0
	}
	return int64(s*1000 + 0.5)
}

// Provider is implemented by every transcription backend.
type Provider interface {
	provider.Provider
	// Transcribe makes a single attempt. Errors are returned as produced by
	// the transport; Client classifies them.
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kbukum/chunkscribe/process"
)

// ProbeResult is the subset of ffprobe's JSON output the pipeline reads.
type ProbeResult struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo is ffprobe's "format" object.
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo is one entry of ffprobe's "streams" array.
type StreamInfo struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	Duration    string            `json:"duration"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

// DurationMs returns the container duration in milliseconds, falling back
// to the longest audio stream when the container does not report one.
func (r *ProbeResult) DurationMs() (int64, error) {
	if ms, ok := secondsToMs(r.Format.Duration); ok {
		return ms, nil
	}
	var longest int64
	for _, s := range r.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if ms, ok := secondsToMs(s.Duration); ok && ms > longest {
			longest = ms
		}
	}
	if longest > 0 {
		return longest, nil
	}
	return 0, fmt.Errorf("ffprobe reported no duration for %s", r.Format.Filename)
}

// AudioCodec is the codec of the first audio stream.
func (r *ProbeResult) AudioCodec() string {
	for _, s := range r.Streams {
		if s.CodecType == "audio" {
			return s.CodecName
		}
	}
	return ""
}

// HasAudio reports whether any audio stream is present.
func (r *ProbeResult) HasAudio() bool {
	return r.AudioCodec() != ""
}

// HasVideo reports whether a real video stream is present. Embedded cover
// art in audio files is reported as a video stream with attached_pic set
// and does not count.
func (r *ProbeResult) HasVideo() bool {
	for _, s := range r.Streams {
		if s.CodecType == "video" && s.Disposition["attached_pic"] == 0 {
			return true
		}
	}
	return false
}

// Container is the first name ffprobe lists for the container.
func (r *ProbeResult) Container() string {
	name, _, _ := strings.Cut(r.Format.FormatName, ",")
	return name
}

func secondsToMs(s string) (int64, bool) {
	if s == "" || s == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return int64(math.Round(v * 1000)), true
}

// Prober runs ffprobe.
type Prober struct {
	runner process.Runner
	cfg    Config
}

// NewProber creates a Prober. A nil runner uses process.ExecRunner.
func NewProber(cfg Config, runner process.Runner) *Prober {
	cfg.ApplyDefaults()
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &Prober{runner: runner, cfg: cfg}
}

// Probe inspects path.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	res, err := p.runner.Run(ctx, process.Command{
		Binary:      p.cfg.FFprobePath,
		Args:        []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path},
		GracePeriod: p.cfg.GracePeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var out ProbeResult
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return &out, nil
}

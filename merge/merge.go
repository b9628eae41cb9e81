package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/chunkscribe/caption"
	"github.com/kbukum/chunkscribe/errors"
)

// ChunkResult is the transcription of one exported chunk.
type ChunkResult struct {
	Index int `json:"index"`
	// DurationMs is the actual duration of the exported audio.
	DurationMs int64  `json:"duration_ms"`
	Document   string `json:"document"`
}

// Warning is a timing line that was kept without re-timing.
type Warning struct {
	ChunkIndex int `json:"chunk_index"`
	// Line is 1-based within the chunk's document.
	Line int    `json:"line"`
	Text string `json:"text"`
	Err  error  `json:"-"`
}

func (w Warning) String() string {
	return fmt.Sprintf("chunk %d line %d %q: %v", w.ChunkIndex, w.Line, w.Text, w.Err)
}

// Option configures a Merger.
type Option func(*Merger)

// WithNormalize drops repeated WEBVTT headers after the first chunk and
// renumbers SRT cue counters across the whole transcript. Off by default,
// in which case the output is the plain concatenation of shifted chunks.
func WithNormalize() Option {
	return func(m *Merger) { m.normalize = true }
}

// Merger accumulates chunks in index order.
type Merger struct {
	format    caption.Format
	normalize bool

	offsetMs int64
	next     int
	counter  int

	doc      strings.Builder
	captions []caption.Caption
	warnings []Warning
}

// New creates a Merger for documents in format f.
func New(f caption.Format, opts ...Option) *Merger {
	m := &Merger{format: f}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OffsetMs is the offset the next chunk will be shifted by.
func (m *Merger) OffsetMs() int64 { return m.offsetMs }

// Chunks is the number of chunks added so far.
func (m *Merger) Chunks() int { return m.next }

// Add shifts r's timing lines by the current offset, appends the result and
// advances the offset by r.DurationMs. Chunks must arrive in index order
// starting at 0.
func (m *Merger) Add(r ChunkResult) error {
	if !m.format.Valid() {
		return errors.InvalidInput("format", "unsupported caption format "+string(m.format))
	}
	if r.Index != m.next {
		return errors.InvalidInput("index", fmt.Sprintf("expected chunk %d, got %d", m.next, r.Index)).
			WithDetail(errors.DetailChunkIndex, r.Index)
	}
	if r.DurationMs < 0 {
		return errors.InvalidInput("duration_ms", "chunk duration must not be negative").
			WithDetail(errors.DetailChunkIndex, r.Index)
	}

	shifted := m.shift(r)
	caps, _ := caption.ParseCues(m.format, shifted)
	m.captions = append(m.captions, caps...)

	if strings.TrimSpace(shifted) != "" {
		m.doc.WriteString(separator(m.doc.String()))
	}
	m.doc.WriteString(shifted)

	m.offsetMs += r.DurationMs
	m.next++
	return nil
}

// shift rewrites r.Document line by line, keeping each line's terminator.
func (m *Merger) shift(r ChunkResult) string {
	lines := strings.SplitAfter(r.Document, "\n")
	var out strings.Builder
	out.Grow(len(r.Document))

	inHeader := m.normalize && r.Index > 0 && m.format == caption.FormatVTT &&
		strings.HasPrefix(strings.TrimPrefix(r.Document, "\ufeff"), caption.VTTHeader)

	for i, raw := range lines {
		if raw == "" {
			continue
		}
		content, eol := splitEOL(raw)

		if inHeader {
			if strings.TrimSpace(content) == "" {
				inHeader = false
			}
			continue
		}

		switch {
		case caption.IsTimingLine(content):
			out.WriteString(m.retime(r.Index, i+1, content))
		case m.normalize && m.format == caption.FormatSRT && isCounter(content) && nextIsTiming(lines, i):
			m.counter++
			out.WriteString(strconv.Itoa(m.counter))
		default:
			out.WriteString(content)
		}
		out.WriteString(eol)
	}
	return out.String()
}

// retime returns the shifted timing line. At offset zero a valid line is
// returned untouched so a single-chunk merge is byte-identical.
func (m *Merger) retime(chunk, lineNo int, content string) string {
	tl, err := caption.ParseTimingLine(m.format, content)
	if err != nil {
		m.warnings = append(m.warnings, Warning{ChunkIndex: chunk, Line: lineNo, Text: content, Err: err})
		return content
	}
	if m.offsetMs == 0 {
		return content
	}
	return tl.Shift(m.offsetMs).Render(m.format)
}

// separator is what doc needs so the next chunk starts after a blank
// line. Without it a chunk's header or counter would read as cue text of
// the previous chunk's last cue.
func separator(doc string) string {
	if strings.TrimSpace(doc) == "" {
		return ""
	}
	eol := "\n"
	if strings.HasSuffix(doc, "\r\n") {
		eol = "\r\n"
	}
	switch {
	case strings.HasSuffix(doc, "\n\n"), strings.HasSuffix(doc, "\n\r\n"):
		return ""
	case strings.HasSuffix(doc, "\n"):
		return eol
	default:
		return eol + eol
	}
}

func splitEOL(s string) (string, string) {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2], "\r\n"
	}
	if strings.HasSuffix(s, "\n") {
		return s[:len(s)-1], "\n"
	}
	return s, ""
}

func isCounter(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nextIsTiming(lines []string, i int) bool {
	return i+1 < len(lines) && caption.IsTimingLine(lines[i+1])
}

// Result returns the transcript merged so far.
func (m *Merger) Result() *Transcript {
	caps := make([]caption.Caption, len(m.captions))
	copy(caps, m.captions)
	warnings := make([]Warning, len(m.warnings))
	copy(warnings, m.warnings)
	return &Transcript{
		Format:     m.format,
		Document:   m.doc.String(),
		Captions:   caps,
		Text:       caption.PlainText(caps),
		Warnings:   warnings,
		Chunks:     m.next,
		DurationMs: m.offsetMs,
	}
}

// Merge adds results in order and returns the transcript.
func Merge(f caption.Format, results []ChunkResult, opts ...Option) (*Transcript, error) {
	m := New(f, opts...)
	for _, r := range results {
		if err := m.Add(r); err != nil {
			return nil, err
		}
	}
	return m.Result(), nil
}

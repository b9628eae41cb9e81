package caption

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/chunkscribe/errors"
)

// VTTHeader is the first line of every WebVTT document.
const VTTHeader = "WEBVTT"

// Caption is one cue.
type Caption struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// LineError is a timing line that could not be parsed.
type LineError struct {
	// Line is 1-based.
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// SplitLines splits doc into lines, accepting LF and CRLF endings. A trailing
// newline does not produce a final empty line.
func SplitLines(doc string) []string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.TrimSuffix(doc, "\n")
	if doc == "" {
		return nil
	}
	return strings.Split(doc, "\n")
}

// ParseCues extracts every cue from doc. A cue's text is the non-blank lines
// following its timing line up to the next blank line; SRT counters, VTT
// headers, identifiers and NOTE blocks are not cue text. Cues whose timing
// line does not parse are skipped and returned as LineErrors.
func ParseCues(f Format, doc string) ([]Caption, []LineError) {
	var (
		caps    []Caption
		bad     []LineError
		current *Caption
		text    []string
	)
	flush := func() {
		if current != nil {
			current.Text = strings.Join(text, "\n")
			caps = append(caps, *current)
		}
		current, text = nil, nil
	}

	for i, line := range SplitLines(doc) {
		switch {
		case IsTimingLine(line):
			flush()
			tl, err := ParseTimingLine(f, line)
			if err != nil {
				bad = append(bad, LineError{Line: i + 1, Text: line, Err: err})
				continue
			}
			current = &Caption{StartMs: tl.StartMs, EndMs: tl.EndMs}
		case strings.TrimSpace(line) == "":
			flush()
		case current != nil:
			text = append(text, strings.TrimRight(line, " \t"))
		}
	}
	flush()
	return caps, bad
}

// ParseDocument extracts every cue from doc and fails on the first timing
// line that does not parse.
func ParseDocument(f Format, doc string) ([]Caption, error) {
	if !f.Valid() {
		return nil, errors.InvalidInput("format", "unsupported caption format "+string(f))
	}
	caps, bad := ParseCues(f, doc)
	if len(bad) > 0 {
		return nil, errors.InvalidFormat("caption_document", string(f)).
			WithDetail("line", bad[0].Line).
			WithCause(bad[0])
	}
	return caps, nil
}

// Render builds a document from captions: numbered cues for SRT, a WEBVTT
// header for VTT. Every cue is followed by a blank line.
func Render(f Format, caps []Caption) string {
	var b strings.Builder
	if f == FormatVTT {
		b.WriteString(VTTHeader + "\n\n")
	}
	for i, c := range caps {
		if f == FormatSRT {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteByte('\n')
		}
		b.WriteString(TimingLine{StartMs: c.StartMs, EndMs: c.EndMs}.Render(f))
		b.WriteByte('\n')
		if c.Text != "" {
			b.WriteString(c.Text)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PlainText joins the cue texts with newlines.
func PlainText(caps []Caption) string {
	parts := make([]string, 0, len(caps))
	for _, c := range caps {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

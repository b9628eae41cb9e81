package caption

import (
	"strings"

	"github.com/kbukum/chunkscribe/errors"
)

// Arrow separates the start and end timestamps of a cue.
const Arrow = "-->"

// IsTimingLine reports whether line is a cue timing line.
func IsTimingLine(line string) bool {
	return strings.Contains(line, Arrow)
}

// TimingLine is a parsed cue timing line.
type TimingLine struct {
	StartMs int64
	EndMs   int64
	// Settings is whatever follows the end timestamp, e.g. "align:start
	// position:10%". Empty for SRT.
	Settings string
}

// ParseTimingLine parses "start --> end [settings]".
func ParseTimingLine(f Format, line string) (TimingLine, error) {
	left, right, ok := strings.Cut(line, Arrow)
	if !ok {
		return TimingLine{}, errors.InvalidFormat("timing_line", "start "+Arrow+" end").WithDetail("value", line)
	}

	start, err := ParseTimestamp(f, strings.TrimSpace(left))
	if err != nil {
		return TimingLine{}, err
	}

	right = strings.TrimSpace(right)
	endText, settings, _ := strings.Cut(right, " ")
	end, err := ParseTimestamp(f, endText)
	if err != nil {
		return TimingLine{}, err
	}
	if end < start {
		return TimingLine{}, errors.InvalidInput("timing_line", "cue ends before it starts").WithDetail("value", line)
	}

	return TimingLine{StartMs: start, EndMs: end, Settings: strings.TrimSpace(settings)}, nil
}

// Shift moves the cue by offsetMs.
func (t TimingLine) Shift(offsetMs int64) TimingLine {
	t.StartMs += offsetMs
	t.EndMs += offsetMs
	return t
}

// Render formats the timing line in f.
func (t TimingLine) Render(f Format) string {
	var b strings.Builder
	b.WriteString(FormatTimestamp(f, t.StartMs))
	b.WriteString(" " + Arrow + " ")
	b.WriteString(FormatTimestamp(f, t.EndMs))
	if t.Settings != "" {
		b.WriteByte(' ')
		b.WriteString(t.Settings)
	}
	return b.String()
}

package caption

import (
	"fmt"
	"strings"

	"github.com/kbukum/chunkscribe/errors"
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

// ParseTimestamp converts a timestamp in format f to milliseconds.
func ParseTimestamp(f Format, s string) (int64, error) {
	if !f.Valid() {
		return 0, errors.InvalidInput("format", "unsupported caption format "+string(f))
	}
	invalid := func() (int64, error) {
		return 0, errors.InvalidFormat("timestamp", timestampLayout(f)).WithDetail("value", s)
	}

	clock, frac, ok := strings.Cut(s, string(f.fractionSep()))
	if !ok || len(frac) != 3 {
		return invalid()
	}
	ms, ok := digits(frac)
	if !ok {
		return invalid()
	}

	fields := strings.Split(clock, ":")
	if len(fields) == 2 && f == FormatVTT {
		fields = append([]string{"00"}, fields...)
	}
	if len(fields) != 3 || len(fields[0]) < 2 || len(fields[1]) != 2 || len(fields[2]) != 2 {
		return invalid()
	}
	h, okH := digits(fields[0])
	m, okM := digits(fields[1])
	sec, okS := digits(fields[2])
	if !okH || !okM || !okS || m >= 60 || sec >= 60 {
		return invalid()
	}

	return h*msPerHour + m*msPerMinute + sec*msPerSecond + ms, nil
}

// FormatTimestamp renders ms in format f. Negative values render as zero.
func FormatTimestamp(f Format, ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / msPerHour
	ms %= msPerHour
	m := ms / msPerMinute
	ms %= msPerMinute
	s := ms / msPerSecond
	ms %= msPerSecond
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, f.fractionSep(), ms)
}

func timestampLayout(f Format) string {
	return fmt.Sprintf("HH:MM:SS%cmmm", f.fractionSep())
}

// digits parses an unsigned decimal string. Signs and spaces are rejected.
func digits(s string) (int64, bool) {
	if s == "" || len(s) > 12 {
		return 0, false
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

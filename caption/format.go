package caption

import (
	"strings"

	"github.com/kbukum/chunkscribe/errors"
)

// Format is a caption document format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// Formats lists the supported formats.
var Formats = []Format{FormatSRT, FormatVTT}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", errors.InvalidInput("format", "caption format must be srt or vtt, got "+s)
	}
	return f, nil
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatSRT || f == FormatVTT
}

// Ext is the file extension for f, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

func (f Format) String() string {
	return string(f)
}

func (f Format) fractionSep() byte {
	if f == FormatSRT {
		return ','
	}
	return '.'
}

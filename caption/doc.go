// Package caption reads and writes SRT and WebVTT caption documents.
//
// Timestamps are converted to and from integer milliseconds:
//
//	srt  HH:MM:SS,mmm
//	vtt  HH:MM:SS.mmm   (MM:SS.mmm is also accepted on input)
//
// FormatTimestamp(f, ParseTimestamp(f, t)) == t for every four-field
// timestamp t. Hours widen past two digits instead of wrapping.
//
// A timing line is any line containing "-->". ParseTimingLine splits it into
// start, end and any trailing VTT cue settings so that a cue can be shifted
// and re-rendered without losing its settings.
package caption

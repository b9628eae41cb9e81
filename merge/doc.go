// Package merge joins per-chunk caption documents into one transcript on
// the source timeline.
//
// Only timing lines (those containing "-->") are rewritten: both
// timestamps are shifted by the running offset, which is the sum of the
// actual exported durations of all earlier chunks. Every other line is
// copied verbatim. A timing line that cannot be parsed is also copied
// verbatim, unshifted, and reported as a Warning; the merge still
// succeeds but the Transcript is degraded.
//
//	m := merge.New(caption.FormatVTT)
//	for _, r := range results { // index order
//	    if err := m.Add(r); err != nil { ... }
//	}
//	t := m.Result()
//	if err := t.DegradedError(); err != nil { log.Warn(...) }
package merge

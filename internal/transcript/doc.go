// Package transcript keeps transcript timing aligned with timeline edits and
// reads and writes SRT and WebVTT subtitle files.
//
// SyncRange remaps a transcript onto a single cut [t0, t1). SyncAssembly
// remaps it onto the concatenation of several active segments. Both return a
// nil Result for a nil transcript so callers can treat a missing transcript as
// a no-op. All timestamps are rounded to milliseconds, matching the subtitle
// formats.
package transcript

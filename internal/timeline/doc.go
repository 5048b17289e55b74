// Package timeline models non-destructive edit timelines.
//
// A timeline is a set of Segments over a source media file. Deleted segments
// stay in the edit history but are excluded from composition. Active segments
// must have positive length and must not overlap once sorted by start time.
// Interval is the lighter value used for detected silence and speech ranges.
package timeline

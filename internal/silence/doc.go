// Package silence finds silent and spoken ranges in media files.
//
// Detection runs ffmpeg's silencedetect audio filter and streams its report,
// opening an interval at each silence_start and closing it at the matching
// silence_end. A silence still open when the report ends is closed at the
// probed total duration. Speech is the complement of silence with spans
// shorter than the minimum segment length folded back into silence, so the
// two lists always tile [0, totalDuration] exactly.
package silence

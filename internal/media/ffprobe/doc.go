// Package ffprobe wraps the ffprobe binary to inspect media containers.
//
// Inspect runs ffprobe with JSON output and decodes the streams and format
// sections. Result helpers expose the duration, dimensions, and stream counts
// the compositor, silence detector, and editor rely on. Client binds a binary
// path so callers can depend on the Prober interface and swap in fakes.
package ffprobe

// Package encoder runs the external transcoding engine.
//
// Callers describe a render as a Spec (inputs, a typed filter graph, output
// arguments) and receive ArtifactStats for the finished file. The FFmpeg
// implementation streams -progress output into percent callbacks, enforces a
// wall-clock ceiling, kills the subprocess on cancellation, and removes the
// partial output whenever a run fails. Tests substitute their own Encoder.
package encoder

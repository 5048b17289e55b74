// Command splicer is the command line front end for the splicer media
// pipeline.
//
// Editing commands (cut, assemble, remove-silence) run in-process against
// the shared SQLite stores and hold the same per-artifact locks as the
// daemon. Export and transcribe only queue jobs; the daemon picks them up.
// Job administration commands operate on the queue database directly, so
// they work whether or not splicerd is running.
package main

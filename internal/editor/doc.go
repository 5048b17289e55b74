// Package editor implements non-destructive edits over imported media.
//
// Every edit renders a new artifact linked to its source; the source is never
// modified. Input validation (segment bounds, overlaps, formats) happens
// synchronously before any rendering or queueing. Rendering runs under the
// source artifact's advisory lock, and the source transcript is remapped onto
// the new timeline when present. A transcript that fails to remap is dropped
// with a warning rather than failing the edit.
package editor

// Package language normalizes transcription language hints.
//
// Speech-to-text backends expect ISO 639-1 codes, while operators tend to
// write "eng", "English" or "fre". Normalize maps all of these onto the
// two-letter form and leaves auto-detection (an empty hint) alone.
package language

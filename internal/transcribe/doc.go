// Package transcribe turns audio into timed transcript segments.
//
// Providers are looked up by name through a Registry so a transcribe job can
// pick one per request. WhisperCLI shells out to the local whisper command
// and reads its JSON output; HTTPClient posts the audio to an
// OpenAI-compatible /audio/transcriptions endpoint and retries throttled or
// failed requests with exponential backoff.
package transcribe

package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"splicer/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateSilence(); err != nil {
		return err
	}
	if err := c.validateFormats(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEncoder() error {
	if c.Encoder.TimeoutSeconds <= 0 {
		return errors.New("encoder.timeout_seconds must be positive")
	}
	if c.Encoder.FrameRate <= 0 || c.Encoder.FrameRate > 120 {
		return errors.New("encoder.frame_rate must be between 1 and 120")
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	if c.Encoder.VideoCodec == "" {
		return errors.New("encoder.video_codec must be set")
	}
	if c.Encoder.AudioCodec == "" {
		return errors.New("encoder.audio_codec must be set")
	}
	return nil
}

func (c *Config) validateSilence() error {
	if c.Silence.ThresholdDB >= 0 {
		return errors.New("silence.threshold_db must be negative (dBFS)")
	}
	if c.Silence.MinSilenceSeconds <= 0 {
		return errors.New("silence.min_silence_seconds must be positive")
	}
	if c.Silence.MinSegmentSeconds < 0 {
		return errors.New("silence.min_segment_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateFormats() error {
	seen := make(map[string]struct{}, len(c.Formats))
	for _, f := range c.Formats {
		if f.Name == "" {
			return errors.New("formats entries require a name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("formats: duplicate name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("formats.%s: width and height must be positive", f.Name)
		}
		if f.Width%2 != 0 || f.Height%2 != 0 {
			return fmt.Errorf("formats.%s: width and height must be even for yuv420p output", f.Name)
		}
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.poll_interval_seconds": c.Queue.PollIntervalSeconds,
		"queue.heartbeat_interval":    c.Queue.HeartbeatInterval,
		"queue.heartbeat_timeout":     c.Queue.HeartbeatTimeout,
		"queue.max_attempts":          c.Queue.MaxAttempts,
		"queue.backoff_base_seconds":  c.Queue.BackoffBaseSeconds,
		"queue.backoff_max_seconds":   c.Queue.BackoffMaxSeconds,
	}); err != nil {
		return err
	}
	if c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must be greater than queue.heartbeat_interval")
	}
	// Delays double per attempt; the cap must not flatten the schedule before
	// the final retry or later retries would not wait longer than earlier ones.
	if c.Queue.MaxAttempts > 1 {
		largest := int64(c.Queue.BackoffBaseSeconds)
		for i := 2; i < c.Queue.MaxAttempts; i++ {
			largest *= 2
			if largest > int64(c.Queue.BackoffMaxSeconds) {
				return fmt.Errorf("queue.backoff_max_seconds (%d) must be at least %d so delays keep increasing through %d attempts",
					c.Queue.BackoffMaxSeconds, largest, c.Queue.MaxAttempts)
			}
		}
	}
	for name, lane := range map[string]Lane{
		"transcode":  c.Queue.Transcode,
		"transcribe": c.Queue.Transcribe,
		"transfer":   c.Queue.Transfer,
	} {
		if lane.Concurrency <= 0 {
			return fmt.Errorf("queue.%s.concurrency must be positive", name)
		}
		if lane.RateLimit < 0 {
			return fmt.Errorf("queue.%s.rate_limit must not be negative", name)
		}
		if lane.RateLimit > 0 && lane.RateWindowSeconds <= 0 {
			return fmt.Errorf("queue.%s.rate_window_seconds must be positive when rate_limit is set", name)
		}
		if lane.TimeoutSeconds <= 0 {
			return fmt.Errorf("queue.%s.timeout_seconds must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateTransfer() error {
	switch c.Transfer.Backend {
	case TransferBackendLocal:
		if strings.TrimSpace(c.Transfer.RemoteDir) == "" {
			return errors.New("transfer.remote_dir must be set for the local backend")
		}
	case TransferBackendSFTP:
		if c.Transfer.Host == "" {
			return errors.New("transfer.host must be set when transfer.backend is sftp")
		}
		if c.Transfer.User == "" {
			return errors.New("transfer.user must be set when transfer.backend is sftp")
		}
		if c.Transfer.Password == "" && c.Transfer.KeyFile == "" {
			return errors.New("transfer.password or transfer.key_file must be set when transfer.backend is sftp")
		}
		if c.Transfer.KnownHosts == "" && !c.Transfer.InsecureIgnoreHostKey {
			return errors.New("transfer.known_hosts must be set unless transfer.insecure_ignore_host_key is true")
		}
		if c.Transfer.RemoteDir == "" {
			return errors.New("transfer.remote_dir must be set when transfer.backend is sftp")
		}
	default:
		return fmt.Errorf("transfer.backend: unsupported value %q (use local or sftp)", c.Transfer.Backend)
	}
	if c.Transfer.TimeoutSeconds <= 0 {
		return errors.New("transfer.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.DefaultProvider {
	case "whisper", "api":
	default:
		return fmt.Errorf("transcription.default_provider: unsupported value %q (use whisper or api)", c.Transcription.DefaultProvider)
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	if _, ok := language.Normalize(c.Transcription.Language); !ok {
		return fmt.Errorf("transcription.language: unrecognized language %q (use an ISO 639-1 code such as en)", c.Transcription.Language)
	}
	if c.Transcription.DefaultProvider == "api" && c.Transcription.APIKey == "" {
		return errors.New("transcription.api_key must be set when default_provider is api (or set SPLICER_TRANSCRIBE_API_KEY)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

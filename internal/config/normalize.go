package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"splicer/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeEncoder()
	c.normalizeFormats()
	if err := c.normalizeTransfer(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	derive := func(value *string, key, leaf string) error {
		if strings.TrimSpace(*value) == "" {
			*value = filepath.Join(c.Paths.DataDir, leaf)
			return nil
		}
		expanded, err := expandPath(*value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*value = expanded
		return nil
	}
	if err := derive(&c.Paths.StagingDir, "paths.staging_dir", "uploads"); err != nil {
		return err
	}
	if err := derive(&c.Paths.WorkDir, "paths.work_dir", "renders"); err != nil {
		return err
	}
	if err := derive(&c.Paths.LogDir, "paths.log_dir", "logs"); err != nil {
		return err
	}
	if err := derive(&c.Paths.LockDir, "paths.lock_dir", "locks"); err != nil {
		return err
	}
	return derive(&c.Paths.DatabasePath, "paths.database_path", "splicer.db")
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("SPLICER_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	c.Encoder.VideoCodec = strings.TrimSpace(c.Encoder.VideoCodec)
	c.Encoder.AudioCodec = strings.TrimSpace(c.Encoder.AudioCodec)
	c.Encoder.Preset = strings.TrimSpace(c.Encoder.Preset)
}

func (c *Config) normalizeFormats() {
	if len(c.Formats) == 0 {
		c.Formats = DefaultFormats()
		return
	}
	for i := range c.Formats {
		c.Formats[i].Name = strings.ToLower(strings.TrimSpace(c.Formats[i].Name))
	}
}

func (c *Config) normalizeTransfer() error {
	c.Transfer.Backend = strings.ToLower(strings.TrimSpace(c.Transfer.Backend))
	if c.Transfer.Backend == "" {
		c.Transfer.Backend = TransferBackendLocal
	}
	c.Transfer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transfer.BaseURL), "/")
	c.Transfer.Host = strings.TrimSpace(c.Transfer.Host)
	c.Transfer.User = strings.TrimSpace(c.Transfer.User)
	if c.Transfer.Password == "" {
		if value, ok := os.LookupEnv("SPLICER_SFTP_PASSWORD"); ok {
			c.Transfer.Password = value
		}
	}
	if c.Transfer.Port == 0 {
		c.Transfer.Port = defaultTransferPort
	}
	var err error
	switch c.Transfer.Backend {
	case TransferBackendLocal:
		if strings.TrimSpace(c.Transfer.RemoteDir) == "" {
			c.Transfer.RemoteDir = filepath.Join(c.Paths.DataDir, "remote")
		}
		if c.Transfer.RemoteDir, err = expandPath(c.Transfer.RemoteDir); err != nil {
			return fmt.Errorf("transfer.remote_dir: %w", err)
		}
	case TransferBackendSFTP:
		// Remote paths are interpreted on the server and must not be expanded locally.
		c.Transfer.RemoteDir = strings.TrimSpace(c.Transfer.RemoteDir)
	}
	if c.Transfer.KeyFile, err = expandPath(strings.TrimSpace(c.Transfer.KeyFile)); err != nil {
		return fmt.Errorf("transfer.key_file: %w", err)
	}
	if strings.TrimSpace(c.Transfer.KnownHosts) == "" && c.Transfer.Backend == TransferBackendSFTP && !c.Transfer.InsecureIgnoreHostKey {
		c.Transfer.KnownHosts = "~/.ssh/known_hosts"
	}
	if c.Transfer.KnownHosts, err = expandPath(strings.TrimSpace(c.Transfer.KnownHosts)); err != nil {
		return fmt.Errorf("transfer.known_hosts: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.DefaultProvider = strings.ToLower(strings.TrimSpace(c.Transcription.DefaultProvider))
	if c.Transcription.DefaultProvider == "" {
		c.Transcription.DefaultProvider = defaultTranscribeProvider
	}
	c.Transcription.WhisperBinary = strings.TrimSpace(c.Transcription.WhisperBinary)
	c.Transcription.APIBaseURL = strings.TrimSpace(c.Transcription.APIBaseURL)
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("SPLICER_TRANSCRIBE_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if code, ok := language.Normalize(c.Transcription.Language); ok {
		c.Transcription.Language = code
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	StagingDir   string `toml:"staging_dir"`
	WorkDir      string `toml:"work_dir"`
	LogDir       string `toml:"log_dir"`
	LockDir      string `toml:"lock_dir"`
	DatabasePath string `toml:"database_path"`
}

// API contains the HTTP surface configuration.
type API struct {
	Enabled     bool   `toml:"enabled"`
	Bind        string `toml:"bind"`
	Token       string `toml:"token"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Encoder contains ffmpeg/ffprobe settings shared by the compositor and transcoder.
type Encoder struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	VideoCodec     string `toml:"video_codec"`
	AudioCodec     string `toml:"audio_codec"`
	AudioBitrate   string `toml:"audio_bitrate"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	FrameRate      int    `toml:"frame_rate"`
}

// Silence contains default silence detection parameters.
type Silence struct {
	ThresholdDB       float64 `toml:"threshold_db"`
	MinSilenceSeconds float64 `toml:"min_silence_seconds"`
	MinSegmentSeconds float64 `toml:"min_segment_seconds"`
}

// Subtitles contains burn-in styling.
type Subtitles struct {
	FontName string `toml:"font_name"`
	FontSize int    `toml:"font_size"`
	Outline  int    `toml:"outline"`
	MarginV  int    `toml:"margin_v"`
}

// Format is a named render target.
type Format struct {
	Name   string `toml:"name"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Lane configures one job type's worker pool.
type Lane struct {
	Concurrency       int `toml:"concurrency"`
	RateLimit         int `toml:"rate_limit"`
	RateWindowSeconds int `toml:"rate_window_seconds"`
	TimeoutSeconds    int `toml:"timeout_seconds"`
}

// Queue contains job queue timing and retry policy.
type Queue struct {
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	HeartbeatInterval   int  `toml:"heartbeat_interval"`
	HeartbeatTimeout    int  `toml:"heartbeat_timeout"`
	MaxAttempts         int  `toml:"max_attempts"`
	BackoffBaseSeconds  int  `toml:"backoff_base_seconds"`
	BackoffMaxSeconds   int  `toml:"backoff_max_seconds"`
	Transcode           Lane `toml:"transcode"`
	Transcribe          Lane `toml:"transcribe"`
	Transfer            Lane `toml:"transfer"`
}

// Transfer contains remote storage configuration.
type Transfer struct {
	Backend               string `toml:"backend"`
	RemoteDir             string `toml:"remote_dir"`
	BaseURL               string `toml:"base_url"`
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	User                  string `toml:"user"`
	Password              string `toml:"password"`
	KeyFile               string `toml:"key_file"`
	KnownHosts            string `toml:"known_hosts"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
}

// Transcription contains speech-to-text provider settings.
type Transcription struct {
	DefaultProvider string `toml:"default_provider"`
	WhisperBinary   string `toml:"whisper_binary"`
	WhisperModel    string `toml:"whisper_model"`
	APIBaseURL      string `toml:"api_base_url"`
	APIKey          string `toml:"api_key"`
	APIModel        string `toml:"api_model"`
	Language        string `toml:"language"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for splicer.
//
// Configuration sections by subsystem:
//   - Paths: data, upload staging, render, log, and lock directories
//   - API: HTTP bind address and bearer token
//   - Encoder: ffmpeg/ffprobe binaries, codecs, and the wall-clock ceiling
//   - Silence: default silence detection thresholds
//   - Subtitles: burn-in styling
//   - Formats: named render targets
//   - Queue: retry policy plus per job type lanes
//   - Transfer: remote storage backend
//   - Transcription: speech-to-text providers
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Encoder       Encoder       `toml:"encoder"`
	Silence       Silence       `toml:"silence"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Formats       []Format      `toml:"formats"`
	Queue         Queue         `toml:"queue"`
	Transfer      Transfer      `toml:"transfer"`
	Transcription Transcription `toml:"transcription"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Array tables replace the built-in formats rather than merging with them.
		cfg.Formats = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("splicer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
// The local transfer target is created too so first uploads do not race on it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.WorkDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dbDir := filepath.Dir(c.Paths.DatabasePath); strings.TrimSpace(c.Paths.DatabasePath) != "" {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("create database directory %q: %w", dbDir, err)
		}
	}
	if c.Transfer.Backend == TransferBackendLocal && strings.TrimSpace(c.Transfer.RemoteDir) != "" {
		if err := os.MkdirAll(c.Transfer.RemoteDir, 0o755); err != nil {
			return fmt.Errorf("create transfer directory %q: %w", c.Transfer.RemoteDir, err)
		}
	}
	return nil
}

// LaneFor returns the lane settings for a job type name.
func (c *Config) LaneFor(jobType string) (Lane, bool) {
	switch strings.ToLower(strings.TrimSpace(jobType)) {
	case "transcode":
		return c.Queue.Transcode, true
	case "transcribe":
		return c.Queue.Transcribe, true
	case "transfer":
		return c.Queue.Transfer, true
	default:
		return Lane{}, false
	}
}

// FormatByName resolves a named render target (case-insensitive).
func (c *Config) FormatByName(name string) (Format, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, f := range c.Formats {
		if strings.ToLower(f.Name) == needle {
			return f, true
		}
	}
	return Format{}, false
}

// MaxUploadBytes returns the upload size ceiling, zero when unlimited.
func (c *Config) MaxUploadBytes() int64 {
	if c.API.MaxUploadMB <= 0 {
		return 0
	}
	return int64(c.API.MaxUploadMB) << 20
}

// EncoderTimeout returns the wall-clock ceiling applied to each encoder run.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutSeconds) * time.Second
}

// BackoffBase returns the first retry delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Queue.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the retry delay ceiling.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Queue.BackoffMaxSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

package config

const (
	defaultConfigPath          = "~/.config/splicer/config.toml"
	defaultDataDir             = "~/.local/share/splicer"
	defaultAPIBind             = "127.0.0.1:7620"
	defaultMaxUploadMB         = 4096
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultEncoderTimeout      = 1800
	defaultVideoCodec          = "libx264"
	defaultAudioCodec          = "aac"
	defaultAudioBitrate        = "192k"
	defaultPreset              = "medium"
	defaultCRF                 = 20
	defaultFrameRate           = 30
	defaultSilenceThresholdDB  = -35.0
	defaultMinSilenceSeconds   = 0.8
	defaultMinSegmentSeconds   = 0.3
	defaultSubtitleFont        = "Arial"
	defaultSubtitleFontSize    = 24
	defaultSubtitleOutline     = 2
	defaultSubtitleMarginV     = 40
	defaultPollInterval        = 2
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultMaxAttempts         = 5
	defaultBackoffBaseSeconds  = 30
	defaultBackoffMaxSeconds   = 3600
	defaultTranscodeTimeout    = 2700
	defaultTranscribeTimeout   = 1800
	defaultTransferTimeout     = 900
	defaultTransferRateLimit   = 10
	defaultTransferRateWindow  = 60
	defaultTransferPort        = 22
	defaultTranscribeProvider  = "whisper"
	defaultWhisperBinary       = "whisper"
	defaultWhisperModel        = "base"
	defaultTranscriptionAPIURL = "https://api.openai.com/v1/audio/transcriptions"
	defaultTranscriptionModel  = "whisper-1"
	defaultTranscriptionTime   = 600
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	// TransferBackendLocal copies artifacts into a local or mounted directory.
	TransferBackendLocal = "local"
	// TransferBackendSFTP uploads artifacts over SFTP.
	TransferBackendSFTP = "sftp"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		API: API{
			Enabled:     true,
			Bind:        defaultAPIBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Encoder: Encoder{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultEncoderTimeout,
			VideoCodec:     defaultVideoCodec,
			AudioCodec:     defaultAudioCodec,
			AudioBitrate:   defaultAudioBitrate,
			Preset:         defaultPreset,
			CRF:            defaultCRF,
			FrameRate:      defaultFrameRate,
		},
		Silence: Silence{
			ThresholdDB:       defaultSilenceThresholdDB,
			MinSilenceSeconds: defaultMinSilenceSeconds,
			MinSegmentSeconds: defaultMinSegmentSeconds,
		},
		Subtitles: Subtitles{
			FontName: defaultSubtitleFont,
			FontSize: defaultSubtitleFontSize,
			Outline:  defaultSubtitleOutline,
			MarginV:  defaultSubtitleMarginV,
		},
		Formats: DefaultFormats(),
		Queue: Queue{
			PollIntervalSeconds: defaultPollInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			MaxAttempts:         defaultMaxAttempts,
			BackoffBaseSeconds:  defaultBackoffBaseSeconds,
			BackoffMaxSeconds:   defaultBackoffMaxSeconds,
			Transcode:           Lane{Concurrency: 1, TimeoutSeconds: defaultTranscodeTimeout},
			Transcribe:          Lane{Concurrency: 2, TimeoutSeconds: defaultTranscribeTimeout},
			Transfer: Lane{
				Concurrency:       3,
				RateLimit:         defaultTransferRateLimit,
				RateWindowSeconds: defaultTransferRateWindow,
				TimeoutSeconds:    defaultTransferTimeout,
			},
		},
		Transfer: Transfer{
			Backend:        TransferBackendLocal,
			Port:           defaultTransferPort,
			TimeoutSeconds: defaultTransferTimeout,
		},
		Transcription: Transcription{
			DefaultProvider: defaultTranscribeProvider,
			WhisperBinary:   defaultWhisperBinary,
			WhisperModel:    defaultWhisperModel,
			APIBaseURL:      defaultTranscriptionAPIURL,
			APIModel:        defaultTranscriptionModel,
			TimeoutSeconds:  defaultTranscriptionTime,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultFormats returns the built-in render targets.
func DefaultFormats() []Format {
	return []Format{
		{Name: "landscape", Width: 1920, Height: 1080},
		{Name: "portrait", Width: 1080, Height: 1920},
		{Name: "square", Width: 1080, Height: 1080},
	}
}

package deps

import (
	"strings"

	"splicer/internal/config"
)

// Requirements lists the external binaries the configured pipeline invokes.
// The whisper CLI is only required when it is the default transcription
// provider.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	whisperRequired := strings.EqualFold(cfg.Transcription.DefaultProvider, "whisper")
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Encoder.FFmpegBinary,
			Description: "Required for cutting, assembly, silence detection and transcoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Encoder.FFprobeBinary,
			Description: "Required for media inspection",
		},
		{
			Name:        "Whisper",
			Command:     cfg.Transcription.WhisperBinary,
			Description: "Used for local transcription",
			Optional:    !whisperRequired,
		},
	}
}

// CheckSystemDeps evaluates Requirements for cfg. Both the daemon and the
// CLI health command use this so the list lives in one place.
func CheckSystemDeps(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}

// MissingRequired returns the names of unavailable non-optional binaries.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

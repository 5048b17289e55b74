package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"splicer/internal/services"
	"splicer/internal/transcript"
)

// WhisperConfig configures the whisper command line provider.
type WhisperConfig struct {
	Binary   string
	Model    string
	Language string
	WorkDir  string
}

// WhisperCLI runs the openai-whisper command.
type WhisperCLI struct {
	cfg           WhisperConfig
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperCLI constructs the provider.
func NewWhisperCLI(cfg WhisperConfig) *WhisperCLI {
	if cfg.Binary == "" {
		cfg.Binary = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &WhisperCLI{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperCLI) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

func (w *WhisperCLI) Name() string { return ProviderWhisper }

// Args builds the whisper invocation for one file.
func (w *WhisperCLI) Args(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", w.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if lang := strings.TrimSpace(w.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	return args
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	if audioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "whisper", "audio path required", nil)
	}
	outputDir, err := os.MkdirTemp(w.cfg.WorkDir, "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("whisper: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	if err := w.run(ctx, w.cfg.Binary, w.Args(audioPath, outputDir)...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, services.Wrap(services.ErrToolUnavailable, "transcribe", "whisper", w.cfg.Binary, err)
		}
		return nil, services.Wrap(services.ErrProcessing, "transcribe", "whisper", "", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segs, err := LoadWhisperJSON(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "transcribe", "whisper output", "", err)
	}
	return segs, nil
}

func (w *WhisperCLI) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLine(string(output)))
	}
	return nil
}

type whisperPayload struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// LoadWhisperJSON reads the segment list whisper writes with --output_format json.
func LoadWhisperJSON(path string) ([]transcript.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSegmentsJSON(data)
}

func parseSegmentsJSON(data []byte) ([]transcript.Segment, error) {
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse transcription json: %w", err)
	}
	segs := make([]transcript.Segment, 0, len(payload.Segments))
	for _, s := range payload.Segments {
		segs = append(segs, transcript.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return normalize(segs), nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

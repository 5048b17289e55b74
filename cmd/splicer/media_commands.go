package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/daemon"
	"splicer/internal/media/ffprobe"
	"splicer/internal/records"
	"splicer/internal/silence"
	"splicer/internal/timeline"
	"splicer/internal/transcript"
)

type probeSummary struct {
	Path     string  `json:"path"`
	Format   string  `json:"format"`
	Duration float64 `json:"durationSeconds"`
	Size     int64   `json:"sizeBytes"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"frameRate"`
	Video    int     `json:"videoStreams"`
	Audio    int     `json:"audioStreams"`
}

func summarizeProbe(path string, result ffprobe.Result) probeSummary {
	w, h := result.VideoDimensions()
	return probeSummary{
		Path:     path,
		Format:   result.FormatName(),
		Duration: result.DurationSeconds(),
		Size:     result.SizeBytes(),
		Width:    w,
		Height:   h,
		FPS:      result.FrameRate(),
		Video:    result.VideoStreamCount(),
		Audio:    result.AudioStreamCount(),
	}
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a media file with ffprobe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := ffprobe.NewClient(cfg.Encoder.FFprobeBinary).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			summary := summarizeProbe(args[0], result)
			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}
			rows := [][]string{
				{"Format", orDash(summary.Format)},
				{"Duration", formatSeconds(summary.Duration) + "s"},
				{"Size", strconv.FormatInt(summary.Size, 10)},
				{"Dimensions", fmt.Sprintf("%dx%d", summary.Width, summary.Height)},
				{"Frame rate", fmt.Sprintf("%.3f", summary.FPS)},
				{"Streams", fmt.Sprintf("%d video, %d audio", summary.Video, summary.Audio)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func addSilenceFlags(cmd *cobra.Command, opts *silence.Options) {
	cmd.Flags().Float64Var(&opts.ThresholdDB, "threshold", 0, "Silence threshold in dB (default from config)")
	cmd.Flags().Float64Var(&opts.MinSilence, "min-silence", 0, "Minimum silence length in seconds (default from config)")
	cmd.Flags().Float64Var(&opts.MinSegment, "min-segment", 0, "Drop speech shorter than this many seconds (default from config)")
}

// withSilenceDefaults fills unset options from the configured thresholds.
func withSilenceDefaults(opts silence.Options, defaults silence.Options) silence.Options {
	if opts.ThresholdDB == 0 {
		opts.ThresholdDB = defaults.ThresholdDB
	}
	if opts.MinSilence == 0 {
		opts.MinSilence = defaults.MinSilence
	}
	if opts.MinSegment == 0 {
		opts.MinSegment = defaults.MinSegment
	}
	return opts
}

func newSilenceCommand(ctx *commandContext) *cobra.Command {
	var opts silence.Options
	cmd := &cobra.Command{
		Use:   "silence <file>",
		Short: "Detect silence and speech intervals in a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prober := ffprobe.NewClient(cfg.Encoder.FFprobeBinary)
			detector := silence.NewDetector(cfg.Encoder.FFmpegBinary, prober, ctx.cliLogger())
			analysis, err := detector.Detect(cmd.Context(), args[0], withSilenceDefaults(opts, silence.OptionsFromConfig(cfg.Silence)))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, analysis)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAnalysis(analysis))
			return nil
		},
	}
	addSilenceFlags(cmd, &opts)
	return cmd
}

func renderAnalysis(analysis silence.Analysis) string {
	rows := make([][]string, 0, len(analysis.Silence)+len(analysis.Speech))
	add := func(kind string, intervals []timeline.Interval) {
		for _, iv := range intervals {
			rows = append(rows, []string{kind, formatSeconds(iv.Start), formatSeconds(iv.End), formatSeconds(iv.Duration)})
		}
	}
	add("speech", analysis.Speech)
	add("silence", analysis.Silence)
	table := renderTable(
		[]string{"Kind", "Start", "End", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)
	return fmt.Sprintf("%s\nTotal duration: %ss, speech: %ss", table,
		formatSeconds(analysis.TotalDuration), formatSeconds(timeline.TotalDuration(silence.ToTimeline(analysis.Speech))))
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Copy a media file into staging and register it as a new edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if mimeType == "" {
				mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
			}
			if mimeType == "" {
				return fmt.Errorf("cannot infer MIME type of %s; pass --mime", path)
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open media: %w", err)
			}
			defer file.Close()

			return ctx.withComponents(func(c *daemon.Components) error {
				stored, err := c.Uploads.Store(cmd.Context(), file, mimeType)
				if err != nil {
					return err
				}
				edit, artifact, err := c.Editor.Import(cmd.Context(), stored.Path, mimeType)
				if err != nil {
					_ = os.Remove(stored.Path)
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"edit": edit, "artifact": artifact})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %s\n", path)
				fmt.Fprintf(out, "  Edit:     %s\n", edit.ID)
				fmt.Fprintf(out, "  Artifact: %s\n", artifact.ID)
				fmt.Fprintf(out, "  Duration: %ss\n", formatSeconds(artifact.DurationSeconds))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (inferred from the extension when omitted)")
	return cmd
}

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	var format, output, attach string
	cmd := &cobra.Command{
		Use:   "subtitles <artifact-id>",
		Short: "Print an artifact's transcript as SRT or WebVTT, or attach one from an SRT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				if attach != "" {
					return attachSubtitles(cmd, c, args[0], attach)
				}
				artifact, err := c.Records.GetArtifact(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !artifact.HasTranscript() {
					return fmt.Errorf("artifact %s has no transcript", artifact.ID)
				}
				var body string
				switch strings.ToLower(format) {
				case "srt":
					body = transcript.FormatSRT(artifact.Transcript)
				case "vtt":
					body = transcript.FormatVTT(artifact.Transcript)
				default:
					return fmt.Errorf("unknown subtitle format %q (want srt or vtt)", format)
				}
				if output == "" {
					_, err := fmt.Fprint(cmd.OutOrStdout(), body)
					return err
				}
				if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write subtitles: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "srt", "Output format (srt or vtt)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&attach, "attach", "", "Replace the artifact transcript with cues parsed from an SRT file")
	return cmd
}

func attachSubtitles(cmd *cobra.Command, c *daemon.Components, artifactID, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open subtitles: %w", err)
	}
	defer file.Close()
	cues, err := transcript.ParseSRT(file)
	if err != nil {
		return err
	}
	if len(cues) == 0 {
		return errors.New("subtitle file has no cues")
	}
	artifact, err := records.Mutate(cmd.Context(), c.Records, artifactID, func(a *records.Artifact) {
		a.Transcript = cues
		a.TranscriptText = transcript.JoinText(cues)
		a.TranscriptStatus = records.StatusCompleted
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attached %d cue(s) to %s\n", len(cues), artifact.ID)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/daemon"
	"splicer/internal/editor"
	"splicer/internal/language"
	"splicer/internal/records"
	"splicer/internal/silence"
	"splicer/internal/timeline"
)

func newCutCommand(ctx *commandContext) *cobra.Command {
	var start, end float64
	cmd := &cobra.Command{
		Use:   "cut <artifact-id>",
		Short: "Render [start, end) of an artifact into a new artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				artifact, err := c.Editor.Cut(cmd.Context(), args[0], start, end, progressPrinter(cmd.ErrOrStderr(), "cut"))
				if err != nil {
					return err
				}
				return printArtifact(ctx, cmd, "Cut", artifact)
			})
		},
	}
	cmd.Flags().Float64Var(&start, "start", 0, "Start time in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "End time in seconds")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var keep, segmentsFile string
	cmd := &cobra.Command{
		Use:   "assemble <artifact-id>",
		Short: "Concatenate the kept segments of an artifact into a new artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := loadSegments(keep, segmentsFile)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(c *daemon.Components) error {
				artifact, err := c.Editor.Assemble(cmd.Context(), args[0], segments, progressPrinter(cmd.ErrOrStderr(), "assemble"))
				if err != nil {
					return err
				}
				return printArtifact(ctx, cmd, "Assembled", artifact)
			})
		},
	}
	cmd.Flags().StringVar(&keep, "keep", "", "Comma separated ranges to keep, e.g. 0-5.5,10-20")
	cmd.Flags().StringVar(&segmentsFile, "segments", "", "JSON file holding a segment list (startTime, endTime, isDeleted)")
	return cmd
}

func newRemoveSilenceCommand(ctx *commandContext) *cobra.Command {
	var opts silence.Options
	cmd := &cobra.Command{
		Use:   "remove-silence <artifact-id>",
		Short: "Keep only the detected speech of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				if opts != (silence.Options{}) {
					opts = withSilenceDefaults(opts, silence.OptionsFromConfig(c.Config.Silence))
				}
				artifact, analysis, err := c.Editor.RemoveSilence(cmd.Context(), args[0], opts, progressPrinter(cmd.ErrOrStderr(), "remove-silence"))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"artifact": artifact, "analysis": analysis})
				}
				if err := printArtifact(ctx, cmd, "Removed silence", artifact); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  Kept %d speech interval(s), dropped %d silence interval(s)\n",
					len(analysis.Speech), len(analysis.Silence))
				return nil
			})
		},
	}
	addSilenceFlags(cmd, &opts)
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formats []string
	var burn bool
	cmd := &cobra.Command{
		Use:   "export <artifact-id>",
		Short: "Queue transcodes of an artifact into named formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				exports, err := c.Editor.Export(cmd.Context(), args[0], formats, burn)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, exports)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderExports(exports))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", []string{"landscape"}, "Target format names from [[formats]]")
	cmd.Flags().BoolVar(&burn, "burn-subtitles", false, "Burn the transcript into the video")
	return cmd
}

func renderExports(exports []editor.Export) string {
	rows := make([][]string, 0, len(exports))
	for _, e := range exports {
		rows = append(rows, []string{
			e.Artifact.Format,
			fmt.Sprintf("%dx%d", e.Artifact.Width, e.Artifact.Height),
			e.Artifact.ID,
			strconv.FormatInt(e.JobID, 10),
		})
	}
	return renderTable(
		[]string{"Format", "Size", "Artifact", "Job"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
	)
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "transcribe <artifact-id>",
		Short: "Queue transcription of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				job, err := c.Editor.Transcribe(cmd.Context(), args[0], provider)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued transcription job %d for %s (language: %s)\n",
					job.ID, args[0], language.DisplayName(c.Config.Transcription.Language))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Transcription provider (default from config)")
	return cmd
}

func printArtifact(ctx *commandContext, cmd *cobra.Command, verb string, artifact *records.Artifact) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, artifact)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s into artifact %s\n", verb, artifact.ID)
	fmt.Fprintf(out, "  Path:     %s\n", artifact.Path)
	fmt.Fprintf(out, "  Duration: %ss\n", formatSeconds(artifact.DurationSeconds))
	fmt.Fprintf(out, "  Size:     %d bytes\n", artifact.FileSizeBytes)
	return nil
}

// loadSegments reads segments from a --keep range list or a JSON file.
func loadSegments(keep, path string) ([]timeline.Segment, error) {
	switch {
	case keep != "" && path != "":
		return nil, fmt.Errorf("use either --keep or --segments, not both")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read segments: %w", err)
		}
		var segments []timeline.Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return nil, fmt.Errorf("parse segments: %w", err)
		}
		return segments, nil
	case keep != "":
		return parseRanges(keep)
	default:
		return nil, fmt.Errorf("--keep or --segments is required")
	}
}

func parseRanges(spec string) ([]timeline.Segment, error) {
	var segments []timeline.Segment
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		startText, endText, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("range %q must look like start-end", part)
		}
		start, err := strconv.ParseFloat(strings.TrimSpace(startText), 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: invalid start: %w", part, err)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(endText), 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: invalid end: %w", part, err)
		}
		segments = append(segments, timeline.NewSegment(start, end))
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no ranges in %q", spec)
	}
	return segments, nil
}

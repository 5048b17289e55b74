package encoder

import (
	"context"
	"time"

	"splicer/internal/filtergraph"
)

// ProgressFunc receives monotonically increasing percentages in [0, 100].
type ProgressFunc func(percent float64)

// Spec describes one ffmpeg invocation.
type Spec struct {
	Inputs    []string
	InputArgs []string
	// Graph is passed via -filter_complex; its exposed pads are mapped
	// unless Maps overrides them.
	Graph *filtergraph.Graph
	// VideoFilter is passed via -vf when Graph is nil.
	VideoFilter *filtergraph.Chain
	Maps        []string
	OutputArgs  []string
	Output      string
	// ExpectedDuration in seconds drives percent progress.
	ExpectedDuration float64
	Timeout          time.Duration
}

// ArtifactStats describes a rendered file.
type ArtifactStats struct {
	Path            string  `json:"path"`
	SizeBytes       int64   `json:"fileSizeBytes"`
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Format          string  `json:"format"`
}

// Encoder renders a Spec into an output file.
type Encoder interface {
	Run(ctx context.Context, spec Spec, progress ProgressFunc) (ArtifactStats, error)
}

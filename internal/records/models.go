package records

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"splicer/internal/timeline"
	"splicer/internal/transcript"
)

// Status is the processing state of an artifact.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus normalizes a status label.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return s, true
	}
	return "", false
}

// ErrNotFound is returned for unknown artifact or edit ids.
var ErrNotFound = errors.New("record not found")

// Artifact is one media file produced or imported by splicer.
type Artifact struct {
	ID               string               `json:"id"`
	EditID           string               `json:"editId"`
	SourceArtifactID string               `json:"sourceArtifactId,omitempty"`
	Path             string               `json:"path"`
	MimeType         string               `json:"mimeType"`
	FileSizeBytes    int64                `json:"fileSizeBytes"`
	DurationSeconds  float64              `json:"durationSeconds"`
	Width            int                  `json:"width"`
	Height           int                  `json:"height"`
	Format           string               `json:"format,omitempty"`
	Status           Status               `json:"status"`
	TransferStatus   Status               `json:"transferStatus,omitempty"`
	Progress         int                  `json:"progress"`
	RemoteURL        string               `json:"remoteUrl,omitempty"`
	Error            string               `json:"error,omitempty"`
	Transcript       []transcript.Segment `json:"transcript,omitempty"`
	TranscriptText   string               `json:"transcriptText,omitempty"`
	TranscriptStatus Status               `json:"transcriptStatus,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// HasTranscript reports whether timed transcript entries are attached.
func (a *Artifact) HasTranscript() bool {
	return a != nil && len(a.Transcript) > 0
}

// Edit tracks the lineage of one uploaded source.
type Edit struct {
	ID                 string             `json:"id"`
	OriginalArtifactID string             `json:"originalArtifactId"`
	CurrentArtifactID  string             `json:"currentArtifactId"`
	Segments           []timeline.Segment `json:"segments,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// ArtifactFilter narrows ListArtifacts. Zero values match everything.
type ArtifactFilter struct {
	EditID           string
	SourceArtifactID string
	Status           Status
}

func (f ArtifactFilter) matches(a *Artifact) bool {
	if f.EditID != "" && a.EditID != f.EditID {
		return false
	}
	if f.SourceArtifactID != "" && a.SourceArtifactID != f.SourceArtifactID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Type identifies a job handler.
type Type string

const (
	TypeTranscode  Type = "transcode"
	TypeTranscribe Type = "transcribe"
	TypeTransfer   Type = "transfer"
)

// AllTypes lists the known job types in lane order.
func AllTypes() []Type {
	return []Type{TypeTranscode, TypeTranscribe, TypeTransfer}
}

// ParseType normalizes a job type name.
func ParseType(value string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// State is a job lifecycle state.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// AllStates lists states in lifecycle order.
func AllStates() []State {
	return []State{StateWaiting, StateActive, StateCompleted, StateFailed}
}

// ParseState normalizes a state name.
func ParseState(value string) (State, bool) {
	s := State(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllStates() {
		if s == known {
			return s, true
		}
	}
	return "", false
}

var (
	// ErrNotRemovable is returned when removing a job that is not waiting.
	ErrNotRemovable = errors.New("job is not waiting")
	// ErrNotActive is returned when a worker touches a job it no longer owns.
	ErrNotActive = errors.New("job is not active")
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
)

// Job is one persisted unit of work.
type Job struct {
	ID              int64           `json:"id"`
	Type            Type            `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	State           State           `json:"state"`
	Progress        int             `json:"progress"`
	Attempts        int             `json:"attempts"`
	MaxAttempts     int             `json:"maxAttempts"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	ErrorKind       string          `json:"errorKind,omitempty"`
	ArtifactID      string          `json:"artifactId,omitempty"`
	RunAt           time.Time       `json:"runAt"`
	OwnerID         string          `json:"ownerId,omitempty"`
	CancelRequested bool            `json:"cancelRequested"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	FinishedAt      *time.Time      `json:"finishedAt,omitempty"`
	LastHeartbeat   *time.Time      `json:"lastHeartbeat,omitempty"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if j == nil || len(j.Payload) == 0 {
		return fmt.Errorf("job has no payload")
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Finished reports whether the job is in a terminal state.
func (j *Job) Finished() bool {
	return j.State == StateCompleted || j.State == StateFailed
}

// TranscodePayload renders an artifact into one target format.
type TranscodePayload struct {
	ExportID         string `json:"exportId"`
	SourceArtifactID string `json:"sourceArtifactId"`
	TargetFormat     string `json:"targetFormat"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	BurnSubtitles    bool   `json:"burnSubtitles"`
}

// TranscribePayload transcribes an artifact's audio.
type TranscribePayload struct {
	ArtifactID string `json:"artifactId"`
	AudioPath  string `json:"audioPath"`
	Provider   string `json:"provider"`
}

// TransferPayload moves a finished artifact to remote storage.
type TransferPayload struct {
	ArtifactID string `json:"artifactId"`
	LocalPath  string `json:"localPath"`
	Filename   string `json:"filename"`
}

// Outcome describes what Fail did with a job.
type Outcome struct {
	Terminal bool
	Delay    time.Duration
	Attempts int
}

// Backoff computes exponential retry delays.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns Base * 2^(attempt-1), capped at Max when Max is positive.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Types      []Type
	States     []State
	ArtifactID string
	Limit      int
}

// Counts maps states to job counts.
type Counts map[State]int

// Total sums all states.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// DatabaseHealth describes the queue database for diagnostics.
type DatabaseHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	TableExists      bool   `json:"tableExists"`
	SchemaVersion    int    `json:"schemaVersion"`
	Error            string `json:"error,omitempty"`
}

// Percent clamps a fractional percentage to a whole number in [0, 100].
func Percent(p float64) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	if p >= 100 {
		return 100
	}
	return int(math.Round(p))
}

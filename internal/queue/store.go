package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"splicer/internal/config"
	"splicer/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current jobs schema version. Bump this when the schema changes.
const schemaVersion = 2

const jobColumns = "id, type, payload, state, progress, attempts, max_attempts, result, error_message, error_kind, artifact_id, run_at, owner_id, cancel_requested, created_at, updated_at, started_at, finished_at, last_heartbeat"

// Store manages job persistence backed by SQLite.
type Store struct {
	db          *sql.DB
	path        string
	maxAttempts int
	now         func() time.Time
}

// Open initializes or connects to the jobs table in the configured database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Paths.DatabasePath, cfg.Queue.MaxAttempts)
}

// OpenPath opens the jobs table at an explicit database path.
func OpenPath(path string, maxAttempts int) (*Store, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.InitSchema(context.Background(), db, "queue", schemaVersion, schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Store{db: db, path: path, maxAttempts: maxAttempts, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock overrides the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) timestamp() string {
	return sqlitedb.FormatTime(s.now())
}

// EnqueueOption customizes a new job.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	artifactID  string
	maxAttempts int
	delay       time.Duration
}

// WithArtifact records the artifact the job operates on.
func WithArtifact(id string) EnqueueOption {
	return func(o *enqueueOptions) { o.artifactID = id }
}

// WithMaxAttempts overrides the attempt ceiling for one job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxAttempts = n }
}

// WithDelay defers the first run.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = d }
}

// Enqueue inserts a waiting job.
func (s *Store) Enqueue(ctx context.Context, typ Type, payload any, opts ...EnqueueOption) (*Job, error) {
	if _, ok := ParseType(string(typ)); !ok {
		return nil, fmt.Errorf("enqueue: unknown job type %q", typ)
	}
	o := enqueueOptions{maxAttempts: s.maxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue: encode payload: %w", err)
	}

	now := s.now()
	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO jobs (type, payload, state, progress, attempts, max_attempts, artifact_id, run_at, created_at, updated_at)
         VALUES (?, ?, ?, 0, 0, ?, ?, ?, ?, ?)`,
		typ, string(raw), StateWaiting, o.maxAttempts, sqlitedb.NullableString(o.artifactID),
		sqlitedb.FormatTime(now.Add(o.delay)), sqlitedb.FormatTime(now), sqlitedb.FormatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", typ, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: last insert id: %w", typ, err)
	}
	return s.Get(ctx, id)
}

// Get returns a job by id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(sqlitedb.EnsureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs matching filter, oldest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	var args []any
	if len(filter.Types) > 0 {
		query += ` AND type IN (` + sqlitedb.Placeholders(len(filter.Types)) + `)`
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	if len(filter.States) > 0 {
		query += ` AND state IN (` + sqlitedb.Placeholders(len(filter.States)) + `)`
		for _, st := range filter.States {
			args = append(args, st)
		}
	}
	if filter.ArtifactID != "" {
		query += ` AND artifact_id = ?`
		args = append(args, filter.ArtifactID)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(sqlitedb.EnsureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

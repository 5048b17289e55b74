package records

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"splicer/internal/services"
	"splicer/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 2

const artifactColumns = "id, edit_id, source_artifact_id, path, mime_type, file_size_bytes, duration_seconds, width, height, format, status, transfer_status, progress, remote_url, error_message, transcript, transcript_text, transcript_status, created_at, updated_at"

// SQLiteRepository stores records in the shared splicer database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the record tables at path, creating them on first use.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.InitSchema(context.Background(), db, "records", schemaVersion, schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	row := r.db.QueryRowContext(sqlitedb.EnsureContext(ctx), `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistenceErr("get artifact", err)
	}
	return a, nil
}

func (r *SQLiteRepository) CreateArtifact(ctx context.Context, a *Artifact) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	now := r.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	transcriptJSON, err := encodeJSON(a.Transcript)
	if err != nil {
		return persistenceErr("encode transcript", err)
	}
	_, err = sqlitedb.Exec(ctx, r.db,
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES (`+sqlitedb.Placeholders(20)+`)`,
		a.ID, a.EditID, sqlitedb.NullableString(a.SourceArtifactID), a.Path, a.MimeType,
		a.FileSizeBytes, a.DurationSeconds, a.Width, a.Height, sqlitedb.NullableString(a.Format),
		string(a.Status), sqlitedb.NullableString(string(a.TransferStatus)), a.Progress,
		sqlitedb.NullableString(a.RemoteURL), sqlitedb.NullableString(a.Error),
		transcriptJSON, sqlitedb.NullableString(a.TranscriptText), sqlitedb.NullableString(string(a.TranscriptStatus)),
		sqlitedb.FormatTime(now), sqlitedb.FormatTime(now),
	)
	if err != nil {
		return persistenceErr("create artifact", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateArtifact(ctx context.Context, a *Artifact) error {
	a.UpdatedAt = r.now().UTC()
	transcriptJSON, err := encodeJSON(a.Transcript)
	if err != nil {
		return persistenceErr("encode transcript", err)
	}
	res, err := sqlitedb.Exec(ctx, r.db,
		`UPDATE artifacts SET edit_id = ?, source_artifact_id = ?, path = ?, mime_type = ?,
            file_size_bytes = ?, duration_seconds = ?, width = ?, height = ?, format = ?,
            status = ?, transfer_status = ?, progress = ?, remote_url = ?, error_message = ?,
            transcript = ?, transcript_text = ?, transcript_status = ?, updated_at = ?
         WHERE id = ?`,
		a.EditID, sqlitedb.NullableString(a.SourceArtifactID), a.Path, a.MimeType,
		a.FileSizeBytes, a.DurationSeconds, a.Width, a.Height, sqlitedb.NullableString(a.Format),
		string(a.Status), sqlitedb.NullableString(string(a.TransferStatus)), a.Progress,
		sqlitedb.NullableString(a.RemoteURL), sqlitedb.NullableString(a.Error),
		transcriptJSON, sqlitedb.NullableString(a.TranscriptText), sqlitedb.NullableString(string(a.TranscriptStatus)),
		sqlitedb.FormatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return persistenceErr("update artifact", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("artifact %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE 1 = 1`
	var args []any
	if filter.EditID != "" {
		query += ` AND edit_id = ?`
		args = append(args, filter.EditID)
	}
	if filter.SourceArtifactID != "" {
		query += ` AND source_artifact_id = ?`
		args = append(args, filter.SourceArtifactID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(sqlitedb.EnsureContext(ctx), query, args...)
	if err != nil {
		return nil, persistenceErr("list artifacts", err)
	}
	defer rows.Close()
	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, persistenceErr("scan artifact", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list artifacts", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetEdit(ctx context.Context, id string) (*Edit, error) {
	var (
		e                      Edit
		segments               sql.NullString
		createdRaw, updatedRaw string
	)
	err := r.db.QueryRowContext(sqlitedb.EnsureContext(ctx),
		`SELECT id, original_artifact_id, current_artifact_id, segments, created_at, updated_at FROM edits WHERE id = ?`, id,
	).Scan(&e.ID, &e.OriginalArtifactID, &e.CurrentArtifactID, &segments, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistenceErr("get edit", err)
	}
	if segments.Valid && segments.String != "" {
		if err := json.Unmarshal([]byte(segments.String), &e.Segments); err != nil {
			return nil, persistenceErr("decode edit segments", err)
		}
	}
	e.CreatedAt, _ = sqlitedb.ParseTime(createdRaw)
	e.UpdatedAt, _ = sqlitedb.ParseTime(updatedRaw)
	return &e, nil
}

func (r *SQLiteRepository) CreateEdit(ctx context.Context, e *Edit) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	now := r.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	segments, err := encodeJSON(e.Segments)
	if err != nil {
		return persistenceErr("encode edit segments", err)
	}
	_, err = sqlitedb.Exec(ctx, r.db,
		`INSERT INTO edits (id, original_artifact_id, current_artifact_id, segments, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.OriginalArtifactID, e.CurrentArtifactID, segments, sqlitedb.FormatTime(now), sqlitedb.FormatTime(now),
	)
	if err != nil {
		return persistenceErr("create edit", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateEdit(ctx context.Context, e *Edit) error {
	e.UpdatedAt = r.now().UTC()
	segments, err := encodeJSON(e.Segments)
	if err != nil {
		return persistenceErr("encode edit segments", err)
	}
	res, err := sqlitedb.Exec(ctx, r.db,
		`UPDATE edits SET original_artifact_id = ?, current_artifact_id = ?, segments = ?, updated_at = ? WHERE id = ?`,
		e.OriginalArtifactID, e.CurrentArtifactID, segments, sqlitedb.FormatTime(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return persistenceErr("update edit", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("edit %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*Artifact, error) {
	var (
		a                                           Artifact
		source, format, transferStatus, remoteURL   sql.NullString
		errorMessage, transcriptRaw, transcriptText sql.NullString
		transcriptStatus                            sql.NullString
		status, createdRaw, updatedRaw              string
	)
	if err := scanner.Scan(
		&a.ID, &a.EditID, &source, &a.Path, &a.MimeType, &a.FileSizeBytes, &a.DurationSeconds,
		&a.Width, &a.Height, &format, &status, &transferStatus, &a.Progress, &remoteURL,
		&errorMessage, &transcriptRaw, &transcriptText, &transcriptStatus, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	a.SourceArtifactID = source.String
	a.Format = format.String
	a.Status = Status(status)
	a.TransferStatus = Status(transferStatus.String)
	a.RemoteURL = remoteURL.String
	a.Error = errorMessage.String
	a.TranscriptText = transcriptText.String
	a.TranscriptStatus = Status(transcriptStatus.String)
	if transcriptRaw.Valid && transcriptRaw.String != "" {
		if err := json.Unmarshal([]byte(transcriptRaw.String), &a.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	a.CreatedAt, _ = sqlitedb.ParseTime(createdRaw)
	a.UpdatedAt, _ = sqlitedb.ParseTime(updatedRaw)
	return &a, nil
}

func encodeJSON[T any](values []T) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func persistenceErr(operation string, err error) error {
	return services.Wrap(services.ErrPersistence, "records", operation, "", err)
}

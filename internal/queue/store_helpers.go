package queue

import (
	"database/sql"
	"encoding/json"
	"time"

	"splicer/internal/sqlitedb"
)

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		typ             string
		payload         string
		state           string
		progress        int
		attempts        int
		maxAttempts     int
		result          sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		artifactID      sql.NullString
		runAtRaw        string
		ownerID         sql.NullString
		cancelRequested int
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
		heartbeatRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id, &typ, &payload, &state, &progress, &attempts, &maxAttempts,
		&result, &errorMessage, &errorKind, &artifactID, &runAtRaw, &ownerID,
		&cancelRequested, &createdRaw, &updatedRaw, &startedRaw, &finishedRaw, &heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Type:            Type(typ),
		Payload:         json.RawMessage(payload),
		State:           State(state),
		Progress:        progress,
		Attempts:        attempts,
		MaxAttempts:     maxAttempts,
		Error:           errorMessage.String,
		ErrorKind:       errorKind.String,
		ArtifactID:      artifactID.String,
		OwnerID:         ownerID.String,
		CancelRequested: cancelRequested != 0,
	}
	if result.Valid && result.String != "" {
		job.Result = json.RawMessage(result.String)
	}
	if t, err := sqlitedb.ParseTime(runAtRaw); err == nil {
		job.RunAt = t
	}
	if t, err := sqlitedb.ParseTime(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := sqlitedb.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	job.StartedAt = optionalTime(startedRaw)
	job.FinishedAt = optionalTime(finishedRaw)
	job.LastHeartbeat = optionalTime(heartbeatRaw)
	return job, nil
}

func optionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := sqlitedb.ParseTime(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

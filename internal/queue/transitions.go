package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"splicer/internal/services"
	"splicer/internal/sqlitedb"
)

// Claim moves the oldest runnable waiting job of typ to active and returns it.
// It returns nil when nothing is runnable.
func (s *Store) Claim(ctx context.Context, typ Type, owner string) (*Job, error) {
	var claimed int64
	now := s.timestamp()
	err := sqlitedb.InTx(ctx, s.db, func(tx *sql.Tx) error {
		claimed = 0
		row := tx.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE type = ? AND state = ? AND run_at <= ? ORDER BY id LIMIT 1`,
			typ, StateWaiting, now,
		)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, attempts = attempts + 1, owner_id = ?, progress = 0,
                cancel_requested = 0, started_at = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND state = ?`,
			StateActive, sqlitedb.NullableString(owner), now, now, now, id, StateWaiting,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			claimed = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s job: %w", typ, err)
	}
	if claimed == 0 {
		return nil, nil
	}
	return s.Get(ctx, claimed)
}

// UpdateProgress persists a progress percentage for an active job, rounded
// to a whole percent.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64) error {
	_, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ? AND state = ?`,
		Percent(percent), s.timestamp(), id, StateActive,
	)
	if err != nil {
		return fmt.Errorf("update progress for job %d: %w", id, err)
	}
	return nil
}

// UpdateHeartbeat refreshes the heartbeat of an active job and reports
// whether cancellation has been requested.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) (bool, error) {
	now := s.timestamp()
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND state = ?`,
		now, now, id, StateActive,
	)
	if err != nil {
		return false, fmt.Errorf("update heartbeat for job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrNotActive
	}
	var cancel int
	row := s.db.QueryRowContext(sqlitedb.EnsureContext(ctx), `SELECT cancel_requested FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&cancel); err != nil {
		return false, fmt.Errorf("read cancel flag for job %d: %w", id, err)
	}
	return cancel != 0, nil
}

// Complete marks an active job completed and stores its result.
func (s *Store) Complete(ctx context.Context, id int64, result any) error {
	var encoded any
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode result for job %d: %w", id, err)
		}
		encoded = string(raw)
	}
	now := s.timestamp()
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET state = ?, progress = 100, result = ?, error_message = NULL, error_kind = NULL,
            owner_id = NULL, finished_at = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		StateCompleted, encoded, now, now, id, StateActive,
	)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotActive
	}
	return nil
}

// Fail records a handler failure. Retryable failures below the attempt
// ceiling go back to waiting with an exponential delay; everything else is
// terminal.
func (s *Store) Fail(ctx context.Context, id int64, cause error, backoff Backoff, retryable bool) (Outcome, error) {
	var out Outcome
	message := services.Details(cause)
	kind := services.Kind(cause)
	now := s.now()
	stamp := sqlitedb.FormatTime(now)

	err := sqlitedb.InTx(ctx, s.db, func(tx *sql.Tx) error {
		out = Outcome{}
		var attempts, maxAttempts int
		var state string
		row := tx.QueryRowContext(ctx, `SELECT attempts, max_attempts, state FROM jobs WHERE id = ?`, id)
		if err := row.Scan(&attempts, &maxAttempts, &state); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrJobNotFound
			}
			return err
		}
		if State(state) != StateActive {
			return ErrNotActive
		}
		out.Attempts = attempts
		if !retryable || attempts >= maxAttempts {
			out.Terminal = true
			_, err := tx.ExecContext(ctx,
				`UPDATE jobs SET state = ?, error_message = ?, error_kind = ?, owner_id = NULL,
                    finished_at = ?, updated_at = ?
                 WHERE id = ?`,
				StateFailed, message, sqlitedb.NullableString(kind), stamp, stamp, id,
			)
			return err
		}
		out.Delay = backoff.Delay(attempts)
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, error_message = ?, error_kind = ?, owner_id = NULL,
                progress = 0, run_at = ?, updated_at = ?
             WHERE id = ?`,
			StateWaiting, message, sqlitedb.NullableString(kind), sqlitedb.FormatTime(now.Add(out.Delay)), stamp, id,
		)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("fail job %d: %w", id, err)
	}
	return out, nil
}

// Release returns an active job to waiting without consuming an attempt.
// Used when the pool shuts down mid-run.
func (s *Store) Release(ctx context.Context, id int64) error {
	now := s.timestamp()
	_, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET state = ?, attempts = MAX(attempts - 1, 0), owner_id = NULL, progress = 0,
            run_at = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		StateWaiting, now, now, id, StateActive,
	)
	if err != nil {
		return fmt.Errorf("release job %d: %w", id, err)
	}
	return nil
}

// Remove deletes a waiting job. Jobs in any other state are left untouched.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := sqlitedb.Exec(ctx, s.db, `DELETE FROM jobs WHERE id = ? AND state = ?`, id, StateWaiting)
	if err != nil {
		return fmt.Errorf("remove job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}
	return ErrNotRemovable
}

// RequestCancel flags an active job for cancellation. The owning worker
// observes the flag on its next heartbeat.
func (s *Store) RequestCancel(ctx context.Context, id int64) error {
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND state = ?`,
		s.timestamp(), id, StateActive,
	)
	if err != nil {
		return fmt.Errorf("request cancel for job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		job, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrJobNotFound
		}
		return ErrNotActive
	}
	return nil
}

// MarkCancelled terminates an active job as failed with kind cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id int64) error {
	now := s.timestamp()
	_, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET state = ?, error_message = ?, error_kind = ?, owner_id = NULL,
            finished_at = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		StateFailed, "cancelled by operator", services.Kind(services.ErrCancelled), now, now, id, StateActive,
	)
	if err != nil {
		return fmt.Errorf("mark job %d cancelled: %w", id, err)
	}
	return nil
}

// Retry moves failed jobs back to waiting with a fresh attempt budget.
// With no ids every failed job is retried. It returns the number of jobs moved.
func (s *Store) Retry(ctx context.Context, ids ...int64) (int64, error) {
	now := s.timestamp()
	query := `UPDATE jobs SET state = ?, attempts = 0, progress = 0, error_message = NULL, error_kind = NULL,
        cancel_requested = 0, finished_at = NULL, run_at = ?, updated_at = ?
     WHERE state = ?`
	args := []any{StateWaiting, now, now, StateFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + sqlitedb.Placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := sqlitedb.Exec(ctx, s.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale handles active jobs whose heartbeat is older than cutoff.
// Jobs with attempts left return to waiting; exhausted ones fail.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := s.timestamp()
	stale := sqlitedb.FormatTime(cutoff)
	var total int64
	err := sqlitedb.InTx(ctx, s.db, func(tx *sql.Tx) error {
		total = 0
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, error_message = ?, error_kind = ?, owner_id = NULL,
                finished_at = ?, updated_at = ?
             WHERE state = ? AND last_heartbeat < ? AND attempts >= max_attempts`,
			StateFailed, "worker heartbeat lost", services.Kind(services.ErrTimeout), now, now, StateActive, stale,
		)
		if err != nil {
			return err
		}
		failed, _ := res.RowsAffected()
		res, err = tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, error_message = ?, owner_id = NULL, progress = 0,
                run_at = ?, updated_at = ?
             WHERE state = ? AND last_heartbeat < ?`,
			StateWaiting, "worker heartbeat lost", now, now, StateActive, stale,
		)
		if err != nil {
			return err
		}
		requeued, _ := res.RowsAffected()
		total = failed + requeued
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return total, nil
}

// ResetActive returns every active job to waiting. Called at daemon startup,
// when no worker can own an active job.
func (s *Store) ResetActive(ctx context.Context) (int64, error) {
	now := s.timestamp()
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE jobs SET state = ?, attempts = MAX(attempts - 1, 0), owner_id = NULL, progress = 0,
            run_at = ?, updated_at = ?
         WHERE state = ?`,
		StateWaiting, now, now, StateActive,
	)
	if err != nil {
		return 0, fmt.Errorf("reset active jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearFinished deletes completed and failed jobs finished before cutoff.
func (s *Store) ClearFinished(ctx context.Context, before time.Time) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db,
		`DELETE FROM jobs WHERE state IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		StateCompleted, StateFailed, sqlitedb.FormatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}

package queue

import (
	"context"
	"fmt"
	"os"

	"splicer/internal/sqlitedb"
)

// Stats returns job counts grouped by type and state.
func (s *Store) Stats(ctx context.Context) (map[Type]Counts, error) {
	rows, err := s.db.QueryContext(sqlitedb.EnsureContext(ctx),
		`SELECT type, state, COUNT(*) FROM jobs GROUP BY type, state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Type]Counts, len(AllTypes()))
	for _, t := range AllTypes() {
		stats[t] = Counts{}
	}
	for rows.Next() {
		var (
			typ, state string
			count      int
		)
		if err := rows.Scan(&typ, &state, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		counts, ok := stats[Type(typ)]
		if !ok {
			counts = Counts{}
			stats[Type(typ)] = counts
		}
		counts[State(state)] = count
	}
	return stats, rows.Err()
}

// CheckHealth inspects the database for diagnostics. Problems are reported in
// the result rather than as an error.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{DBPath: s.path}
	if _, err := os.Stat(s.path); err == nil {
		health.DatabaseExists = true
	} else {
		health.Error = err.Error()
		return health
	}

	ctx = sqlitedb.EnsureContext(ctx)
	if err := s.db.PingContext(ctx); err != nil {
		health.Error = fmt.Sprintf("ping: %v", err)
		return health
	}
	health.DatabaseReadable = true

	exists, err := sqlitedb.TableExists(ctx, s.db, "jobs")
	if err != nil {
		health.Error = fmt.Sprintf("inspect tables: %v", err)
		return health
	}
	health.TableExists = exists

	var version int
	if err := s.db.QueryRowContext(ctx,
		`SELECT version FROM schema_version WHERE component = 'queue'`).Scan(&version); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health
	}
	health.SchemaVersion = version
	return health
}

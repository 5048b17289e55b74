package testsupport

import (
	"testing"

	"splicer/internal/config"
	"splicer/internal/queue"
	"splicer/internal/records"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRecords opens the SQLite record repository on the test database.
func MustOpenRecords(t testing.TB, cfg *config.Config) *records.SQLiteRepository {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	repo, err := records.OpenSQLite(cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("records.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

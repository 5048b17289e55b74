// Package locks provides per-artifact advisory locks backed by flock(2).
//
// Every job or edit that reads or writes an artifact holds that artifact's
// lock for its whole duration. Locks live as files under the configured lock
// directory so the CLI and the daemon exclude each other as well as
// concurrent workers inside one process.
package locks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	"splicer/internal/services"
)

const defaultRetryDelay = 100 * time.Millisecond

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Manager hands out artifact locks rooted at a directory.
type Manager struct {
	dir        string
	retryDelay time.Duration
}

// NewManager returns a manager storing lock files in dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, retryDelay: defaultRetryDelay}
}

// Lock is a held artifact lock.
type Lock struct {
	key  string
	lock *flock.Flock
}

// Key returns the lock key.
func (l *Lock) Key() string { return l.key }

// Unlock releases the lock. It is safe to call on a nil lock.
func (l *Lock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// Path returns the lock file used for key.
func (m *Manager) Path(key string) string {
	return filepath.Join(m.dir, unsafeKey.ReplaceAllString(key, "_")+".lock")
}

// Acquire blocks until the lock for key is held or ctx ends.
func (m *Manager) Acquire(ctx context.Context, key string) (*Lock, error) {
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "locks", "acquire", "empty lock key", nil)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(m.Path(key))
	ok, err := fl.TryLockContext(ctx, m.retryDelay)
	if err != nil || !ok {
		_ = fl.Close()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, services.Wrap(services.ErrCancelled, "locks", "acquire", key, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "locks", "acquire", key, err)
		}
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTimeout, "locks", "acquire", key, nil)
	}
	return &Lock{key: key, lock: fl}, nil
}

// TryAcquire takes the lock only if it is free. It returns nil when the lock
// is held elsewhere.
func (m *Manager) TryAcquire(key string) (*Lock, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(m.Path(key))
	ok, err := fl.TryLock()
	if err != nil || !ok {
		_ = fl.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{key: key, lock: fl}, nil
}

// AcquireAll takes locks for every key in sorted order, releasing any held
// locks if one acquisition fails.
func (m *Manager) AcquireAll(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupeSorted(keys)
	held := make([]*Lock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock()
		}
	}
	for _, key := range sorted {
		l, err := m.Acquire(ctx, key)
		if err != nil {
			release()
			return func() {}, err
		}
		held = append(held, l)
	}
	return release, nil
}

// ArtifactKey is the lock key for an artifact id.
func ArtifactKey(artifactID string) string {
	return "artifact-" + artifactID
}

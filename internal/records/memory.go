package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Repository. Values are copied on the way in and
// out so callers cannot alias stored records.
type Memory struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
	edits     map[string]Edit
	now       func() time.Time
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		artifacts: make(map[string]Artifact),
		edits:     make(map[string]Edit),
		now:       time.Now,
	}
}

func (m *Memory) GetArtifact(_ context.Context, id string) (*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	return cloneArtifact(a), nil
}

func (m *Memory) CreateArtifact(_ context.Context, a *Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = NewID()
	}
	if _, exists := m.artifacts[a.ID]; exists {
		return fmt.Errorf("artifact %s already exists", a.ID)
	}
	now := m.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Status == "" {
		a.Status = StatusPending
	}
	m.artifacts[a.ID] = *cloneArtifact(*a)
	return nil
}

func (m *Memory) UpdateArtifact(_ context.Context, a *Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.artifacts[a.ID]
	if !ok {
		return fmt.Errorf("artifact %s: %w", a.ID, ErrNotFound)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = m.now().UTC()
	m.artifacts[a.ID] = *cloneArtifact(*a)
	return nil
}

func (m *Memory) ListArtifacts(_ context.Context, filter ArtifactFilter) ([]*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Artifact
	for _, a := range m.artifacts {
		if filter.matches(&a) {
			out = append(out, cloneArtifact(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetEdit(_ context.Context, id string) (*Edit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edits[id]
	if !ok {
		return nil, fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}
	return cloneEdit(e), nil
}

func (m *Memory) CreateEdit(_ context.Context, e *Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = NewID()
	}
	if _, exists := m.edits[e.ID]; exists {
		return fmt.Errorf("edit %s already exists", e.ID)
	}
	now := m.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	m.edits[e.ID] = *cloneEdit(*e)
	return nil
}

func (m *Memory) UpdateEdit(_ context.Context, e *Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.edits[e.ID]
	if !ok {
		return fmt.Errorf("edit %s: %w", e.ID, ErrNotFound)
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = m.now().UTC()
	m.edits[e.ID] = *cloneEdit(*e)
	return nil
}

func cloneArtifact(a Artifact) *Artifact {
	out := a
	if a.Transcript != nil {
		out.Transcript = append(out.Transcript[:0:0], a.Transcript...)
	}
	return &out
}

func cloneEdit(e Edit) *Edit {
	out := e
	if e.Segments != nil {
		out.Segments = append(out.Segments[:0:0], e.Segments...)
	}
	return &out
}

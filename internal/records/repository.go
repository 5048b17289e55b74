package records

import "context"

// Repository is the record store used by the editor and job handlers.
type Repository interface {
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	CreateArtifact(ctx context.Context, a *Artifact) error
	UpdateArtifact(ctx context.Context, a *Artifact) error
	ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error)

	GetEdit(ctx context.Context, id string) (*Edit, error)
	CreateEdit(ctx context.Context, e *Edit) error
	UpdateEdit(ctx context.Context, e *Edit) error
}

// Mutate loads an artifact, applies fn, and stores the result. It is the
// read-modify-write helper handlers use for status transitions.
func Mutate(ctx context.Context, repo Repository, id string, fn func(*Artifact)) (*Artifact, error) {
	artifact, err := repo.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(artifact)
	if err := repo.UpdateArtifact(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

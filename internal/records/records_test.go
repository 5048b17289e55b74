package records_test

import (
	"context"
	"errors"
	"testing"

	"splicer/internal/records"
	"splicer/internal/testsupport"
	"splicer/internal/timeline"
	"splicer/internal/transcript"
)

func repositories(t *testing.T) map[string]records.Repository {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return map[string]records.Repository{
		"memory": records.NewMemory(),
		"sqlite": testsupport.MustOpenRecords(t, cfg),
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			edit := &records.Edit{}
			if err := repo.CreateEdit(ctx, edit); err != nil {
				t.Fatalf("CreateEdit: %v", err)
			}
			art := &records.Artifact{
				EditID:          edit.ID,
				Path:            "/data/uploads/a.mp4",
				MimeType:        "video/mp4",
				FileSizeBytes:   2048,
				DurationSeconds: 60,
				Width:           1920,
				Height:          1080,
				Transcript:      []transcript.Segment{{Start: 1, End: 2, Text: "hi"}},
				TranscriptText:  "hi",
			}
			if err := repo.CreateArtifact(ctx, art); err != nil {
				t.Fatalf("CreateArtifact: %v", err)
			}
			if art.ID == "" || art.Status != records.StatusPending {
				t.Fatalf("created artifact = %+v", art)
			}

			got, err := repo.GetArtifact(ctx, art.ID)
			if err != nil {
				t.Fatalf("GetArtifact: %v", err)
			}
			if got.Path != art.Path || got.Width != 1920 || len(got.Transcript) != 1 || got.Transcript[0].Text != "hi" {
				t.Fatalf("artifact = %+v", got)
			}

			updated, err := records.Mutate(ctx, repo, art.ID, func(a *records.Artifact) {
				a.Status = records.StatusCompleted
				a.RemoteURL = "https://example.test/a.mp4"
			})
			if err != nil {
				t.Fatalf("Mutate: %v", err)
			}
			if updated.Status != records.StatusCompleted {
				t.Fatalf("status = %s", updated.Status)
			}
			got, _ = repo.GetArtifact(ctx, art.ID)
			if got.RemoteURL != "https://example.test/a.mp4" {
				t.Fatalf("remote url = %q", got.RemoteURL)
			}

			if _, err := repo.GetArtifact(ctx, "missing"); !errors.Is(err, records.ErrNotFound) {
				t.Fatalf("missing artifact err = %v", err)
			}
			if err := repo.UpdateArtifact(ctx, &records.Artifact{ID: "missing"}); !errors.Is(err, records.ErrNotFound) {
				t.Fatalf("update missing err = %v", err)
			}
		})
	}
}

func TestListArtifactsByLineage(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			source := &records.Artifact{EditID: "e1", Path: "src.mp4"}
			if err := repo.CreateArtifact(ctx, source); err != nil {
				t.Fatalf("CreateArtifact: %v", err)
			}
			for _, f := range []string{"landscape", "portrait"} {
				child := &records.Artifact{EditID: "e1", SourceArtifactID: source.ID, Path: f + ".mp4", Format: f}
				if err := repo.CreateArtifact(ctx, child); err != nil {
					t.Fatalf("CreateArtifact: %v", err)
				}
			}
			children, err := repo.ListArtifacts(ctx, records.ArtifactFilter{SourceArtifactID: source.ID})
			if err != nil {
				t.Fatalf("ListArtifacts: %v", err)
			}
			if len(children) != 2 {
				t.Fatalf("children = %d, want 2", len(children))
			}
			all, _ := repo.ListArtifacts(ctx, records.ArtifactFilter{EditID: "e1"})
			if len(all) != 3 {
				t.Fatalf("edit artifacts = %d, want 3", len(all))
			}
		})
	}
}

func TestEditSegmentsPersist(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			edit := &records.Edit{OriginalArtifactID: "a1", CurrentArtifactID: "a1"}
			if err := repo.CreateEdit(ctx, edit); err != nil {
				t.Fatalf("CreateEdit: %v", err)
			}
			edit.Segments = []timeline.Segment{
				{ID: "s1", StartTime: 0, EndTime: 10},
				{ID: "s2", StartTime: 20, EndTime: 30, IsDeleted: true},
			}
			edit.CurrentArtifactID = "a2"
			if err := repo.UpdateEdit(ctx, edit); err != nil {
				t.Fatalf("UpdateEdit: %v", err)
			}
			got, err := repo.GetEdit(ctx, edit.ID)
			if err != nil {
				t.Fatalf("GetEdit: %v", err)
			}
			if got.CurrentArtifactID != "a2" || len(got.Segments) != 2 || !got.Segments[1].IsDeleted {
				t.Fatalf("edit = %+v", got)
			}
			if _, err := repo.GetEdit(ctx, "nope"); !errors.Is(err, records.ErrNotFound) {
				t.Fatalf("missing edit err = %v", err)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := records.ParseStatus(" completed "); !ok || s != records.StatusCompleted {
		t.Fatalf("ParseStatus = %q, %v", s, ok)
	}
	if _, ok := records.ParseStatus("done"); ok {
		t.Fatal("expected unknown status")
	}
}

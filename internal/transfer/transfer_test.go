package transfer_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/testsupport"
	"splicer/internal/transfer"
)

type fixture struct {
	repo      *records.Memory
	remoteDir string
	local     string
	artifact  *records.Artifact
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	local := filepath.Join(base, "renders", "clip.mp4")
	testsupport.WriteFile(t, local, 4096)

	repo := records.NewMemory()
	art := &records.Artifact{EditID: "e1", Path: local, FileSizeBytes: 4096, Status: records.StatusCompleted}
	if err := repo.CreateArtifact(context.Background(), art); err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}
	return fixture{repo: repo, remoteDir: filepath.Join(base, "remote"), local: local, artifact: art}
}

func (f fixture) localFactory() transfer.StoreFactory {
	return func(context.Context) (transfer.RemoteStore, error) {
		return transfer.NewLocalStore(f.remoteDir, "https://cdn.example.test/media"), nil
	}
}

func (f fixture) payload() queue.TransferPayload {
	return queue.TransferPayload{ArtifactID: f.artifact.ID, LocalPath: f.local, Filename: "clip.mp4"}
}

func TestTransferUploadsAndDeletesLocal(t *testing.T) {
	f := newFixture(t)
	w := transfer.NewWorker(f.localFactory(), f.repo, logging.NewNop())

	var last float64
	res, err := w.Transfer(context.Background(), f.payload(), func(p float64) { last = p })
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if res.URL != "https://cdn.example.test/media/clip.mp4" || res.Bytes != 4096 {
		t.Fatalf("result = %+v", res)
	}
	if last != 100 {
		t.Fatalf("final progress = %v, want 100", last)
	}
	if _, err := os.Stat(f.local); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("local copy still present: %v", err)
	}
	info, err := os.Stat(filepath.Join(f.remoteDir, "clip.mp4"))
	if err != nil || info.Size() != 4096 {
		t.Fatalf("remote copy = %v, %v", info, err)
	}
	got, _ := f.repo.GetArtifact(context.Background(), f.artifact.ID)
	if got.TransferStatus != records.StatusCompleted || got.RemoteURL != res.URL {
		t.Fatalf("artifact = %+v", got)
	}
}

func TestTransferRerunIsNoop(t *testing.T) {
	f := newFixture(t)
	calls := 0
	factory := func(ctx context.Context) (transfer.RemoteStore, error) {
		calls++
		return f.localFactory()(ctx)
	}
	w := transfer.NewWorker(factory, f.repo, logging.NewNop())

	first, err := w.Transfer(context.Background(), f.payload(), nil)
	if err != nil {
		t.Fatalf("first Transfer: %v", err)
	}
	second, err := w.Transfer(context.Background(), f.payload(), nil)
	if err != nil {
		t.Fatalf("second Transfer: %v", err)
	}
	if second.URL != first.URL || !second.Skipped {
		t.Fatalf("second result = %+v, want skipped with %q", second, first.URL)
	}
	if calls != 1 {
		t.Fatalf("store opened %d times, want 1", calls)
	}
	entries, _ := os.ReadDir(f.remoteDir)
	if len(entries) != 1 {
		t.Fatalf("remote entries = %d, want 1", len(entries))
	}
}

func TestTransferRecoversAfterLostRecordUpdate(t *testing.T) {
	f := newFixture(t)
	w := transfer.NewWorker(f.localFactory(), f.repo, logging.NewNop())
	if err := os.MkdirAll(f.remoteDir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(f.local)
	if err := os.WriteFile(filepath.Join(f.remoteDir, "clip.mp4"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	_ = os.Remove(f.local)

	res, err := w.Transfer(context.Background(), f.payload(), nil)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !res.Skipped || res.URL == "" {
		t.Fatalf("result = %+v", res)
	}
}

type failingStore struct {
	transfer.RemoteStore
}

func (failingStore) Put(context.Context, string, io.Reader, transfer.ProgressFunc) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestTransferFailurePreservesLocalCopy(t *testing.T) {
	f := newFixture(t)
	factory := func(ctx context.Context) (transfer.RemoteStore, error) {
		return failingStore{RemoteStore: transfer.NewLocalStore(f.remoteDir, "")}, nil
	}
	w := transfer.NewWorker(factory, f.repo, logging.NewNop())

	_, err := w.Transfer(context.Background(), f.payload(), nil)
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("err = %v, want transfer failure", err)
	}
	if !services.Retryable(err) {
		t.Fatal("transfer failure should be retryable")
	}
	if _, err := os.Stat(f.local); err != nil {
		t.Fatalf("local copy removed on failure: %v", err)
	}
	got, _ := f.repo.GetArtifact(context.Background(), f.artifact.ID)
	if got.TransferStatus != records.StatusFailed || got.Error == "" {
		t.Fatalf("artifact = %+v", got)
	}
}

func TestTransferRejectsUnsafeFilename(t *testing.T) {
	f := newFixture(t)
	w := transfer.NewWorker(f.localFactory(), f.repo, logging.NewNop())
	p := f.payload()
	p.Filename = "../escape.mp4"
	if _, err := w.Transfer(context.Background(), p, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestNewStoreSelectsBackend(t *testing.T) {
	store, err := transfer.NewStore(config.Transfer{Backend: config.TransferBackendLocal, RemoteDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore local: %v", err)
	}
	if _, ok := store.(*transfer.LocalStore); !ok {
		t.Fatalf("store = %T", store)
	}
	if _, err := transfer.NewStore(config.Transfer{Backend: "s3"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("unknown backend err = %v", err)
	}
	if _, err := transfer.ClientConfig(config.Transfer{Backend: config.TransferBackendSFTP, User: "u", Password: "p"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing known_hosts err = %v", err)
	}
	cc, err := transfer.ClientConfig(config.Transfer{User: "u", Password: "p", InsecureIgnoreHostKey: true, TimeoutSeconds: 5})
	if err != nil || cc.User != "u" || len(cc.Auth) != 1 {
		t.Fatalf("ClientConfig = %+v, %v", cc, err)
	}
}

package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"splicer/internal/config"
	"splicer/internal/jobs"
	"splicer/internal/locks"
	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/testsupport"
	"splicer/internal/transcode"
	"splicer/internal/transcribe"
	"splicer/internal/transcript"
	"splicer/internal/transfer"
)

type fixture struct {
	cfg   *config.Config
	store *queue.Store
	repo  *records.Memory
	enc   *testsupport.FakeEncoder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return &fixture{
		cfg:   cfg,
		store: testsupport.MustOpenStore(t, cfg),
		repo:  records.NewMemory(),
		enc:   &testsupport.FakeEncoder{Width: 1080, Height: 1920},
	}
}

func (f *fixture) transcodeHandler() *jobs.TranscodeHandler {
	prober := testsupport.FakeProber{Result: testsupport.MediaResult("10.0", 1920, 1080)}
	tc := transcode.New(f.enc, prober, f.cfg, logging.NewNop())
	return jobs.NewTranscodeHandler(f.cfg, tc, f.repo, f.store, logging.NewNop())
}

func (f *fixture) createArtifact(t *testing.T, a *records.Artifact) *records.Artifact {
	t.Helper()
	if err := f.repo.CreateArtifact(context.Background(), a); err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}
	return a
}

func (f *fixture) enqueueTranscode(t *testing.T, payload queue.TranscodePayload) *queue.Job {
	t.Helper()
	job, err := f.store.Enqueue(context.Background(), queue.TypeTranscode, payload, queue.WithArtifact(payload.ExportID))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func (f *fixture) exportSetup(t *testing.T, withTranscript bool) (*records.Artifact, *records.Artifact) {
	t.Helper()
	sourcePath := filepath.Join(f.cfg.Paths.WorkDir, "source.mp4")
	testsupport.WriteFile(t, sourcePath, 64)
	source := &records.Artifact{EditID: "e1", Path: sourcePath, DurationSeconds: 10, Status: records.StatusCompleted}
	if withTranscript {
		source.Transcript = []transcript.Segment{{Start: 1, End: 2, Text: "hello"}}
		source.TranscriptText = "hello"
	}
	f.createArtifact(t, source)
	export := f.createArtifact(t, &records.Artifact{EditID: "e1", SourceArtifactID: source.ID, Format: "portrait"})
	return source, export
}

func noProgress(float64) {}

func TestTranscodeHandlerRendersExportAndQueuesTransfer(t *testing.T) {
	f := newFixture(t)
	source, export := f.exportSetup(t, true)
	h := f.transcodeHandler()
	job := f.enqueueTranscode(t, queue.TranscodePayload{
		ExportID: export.ID, SourceArtifactID: source.ID, TargetFormat: "portrait",
		Width: 1080, Height: 1920, BurnSubtitles: true,
	})

	keys, err := h.LockKeys(job)
	if err != nil {
		t.Fatalf("LockKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != locks.ArtifactKey(source.ID) || keys[1] != locks.ArtifactKey(export.ID) {
		t.Fatalf("unexpected lock keys %v", keys)
	}

	var seen []float64
	out, err := h.Handle(context.Background(), job, func(p float64) { seen = append(seen, p) })
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	result := out.(jobs.TranscodeResult)
	if result.TransferJobID == 0 {
		t.Fatal("expected transfer job to be queued")
	}
	if len(seen) == 0 || seen[len(seen)-1] != 100 {
		t.Fatalf("expected progress ending at 100, got %v", seen)
	}
	vf := f.enc.LastSpec().VideoFilter
	if vf == nil || !strings.Contains(vf.String(), "subtitles=") {
		t.Fatalf("expected burned subtitles in filter chain, got %v", vf)
	}

	got, err := f.repo.GetArtifact(context.Background(), export.ID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if got.Status != records.StatusCompleted || got.Progress != 100 {
		t.Fatalf("unexpected export state %s progress %v", got.Status, got.Progress)
	}
	if got.Path != jobs.ExportPath(f.cfg.Paths.WorkDir, export.ID) {
		t.Fatalf("unexpected export path %s", got.Path)
	}
	if got.TransferStatus != records.StatusPending {
		t.Fatalf("expected pending transfer status, got %s", got.TransferStatus)
	}
	if !got.HasTranscript() {
		t.Fatal("expected transcript carried onto the export")
	}

	transferJob, err := f.store.Get(context.Background(), result.TransferJobID)
	if err != nil {
		t.Fatalf("Get transfer job: %v", err)
	}
	var payload queue.TransferPayload
	if err := json.Unmarshal(transferJob.Payload, &payload); err != nil {
		t.Fatalf("decode transfer payload: %v", err)
	}
	if payload.ArtifactID != export.ID || payload.LocalPath != got.Path || payload.Filename != jobs.RemoteName(got) {
		t.Fatalf("unexpected transfer payload %+v", payload)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(got.Path), export.ID+".srt")); !os.IsNotExist(err) {
		t.Fatalf("expected temporary subtitle file to be removed, stat err %v", err)
	}
}

func TestTranscodeHandlerRerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	source, export := f.exportSetup(t, false)
	h := f.transcodeHandler()
	job := f.enqueueTranscode(t, queue.TranscodePayload{
		ExportID: export.ID, SourceArtifactID: source.ID, TargetFormat: "square", Width: 1080, Height: 1080,
	})

	first, err := h.Handle(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	second, err := h.Handle(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if f.enc.Calls() != 1 {
		t.Fatalf("expected a single render, got %d", f.enc.Calls())
	}
	if first.(jobs.TranscodeResult).TransferJobID != second.(jobs.TranscodeResult).TransferJobID {
		t.Fatal("expected rerun to reuse the queued transfer")
	}
	transfers, err := f.store.List(context.Background(), queue.Filter{Types: []queue.Type{queue.TypeTransfer}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected exactly one transfer job, got %d", len(transfers))
	}
}

func TestTranscodeHandlerFailureUpdatesExportStatus(t *testing.T) {
	f := newFixture(t)
	f.enc.Err = services.Wrap(services.ErrProcessing, "ffmpeg", "run", "exit status 1", nil)
	source, export := f.exportSetup(t, false)
	h := f.transcodeHandler()
	job := f.enqueueTranscode(t, queue.TranscodePayload{
		ExportID: export.ID, SourceArtifactID: source.ID, TargetFormat: "square", Width: 1080, Height: 1080,
	})

	_, err := h.Handle(context.Background(), job, noProgress)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
	if _, statErr := os.Stat(jobs.ExportPath(f.cfg.Paths.WorkDir, export.ID)); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output to be removed")
	}

	h.OnFailure(context.Background(), job, err, queue.Outcome{Terminal: false, Attempts: 1})
	got, _ := f.repo.GetArtifact(context.Background(), export.ID)
	if got.Status != records.StatusPending || got.Error == "" {
		t.Fatalf("expected pending with error after retryable failure, got %s %q", got.Status, got.Error)
	}

	h.OnFailure(context.Background(), job, err, queue.Outcome{Terminal: true, Attempts: 5})
	got, _ = f.repo.GetArtifact(context.Background(), export.ID)
	if got.Status != records.StatusFailed {
		t.Fatalf("expected failed after terminal failure, got %s", got.Status)
	}
}

func TestTranscodeHandlerRejectsOddDimensions(t *testing.T) {
	f := newFixture(t)
	source, export := f.exportSetup(t, false)
	h := f.transcodeHandler()
	job := f.enqueueTranscode(t, queue.TranscodePayload{
		ExportID: export.ID, SourceArtifactID: source.ID, TargetFormat: "odd", Width: 1081, Height: 1080,
	})
	_, err := h.Handle(context.Background(), job, noProgress)
	if !errors.Is(err, services.ErrValidation) || services.Retryable(err) {
		t.Fatalf("expected terminal validation error, got %v", err)
	}
}

type fakeProvider struct {
	segs []transcript.Segment
	err  error
}

func (p fakeProvider) Name() string { return "fake" }

func (p fakeProvider) Transcribe(context.Context, string) ([]transcript.Segment, error) {
	return p.segs, p.err
}

func TestTranscribeHandlerStoresClampedTranscript(t *testing.T) {
	f := newFixture(t)
	reg := transcribe.NewRegistry("fake")
	reg.Register(fakeProvider{segs: []transcript.Segment{
		{Start: 0.5, End: 3, Text: "first"},
		{Start: 8, End: 10.2, Text: "second"},
	}})
	artifact := f.createArtifact(t, &records.Artifact{EditID: "e1", Path: "/media/a.mp4", DurationSeconds: 10})
	h := jobs.NewTranscribeHandler(reg, f.repo, logging.NewNop())
	job, err := f.store.Enqueue(context.Background(), queue.TypeTranscribe, queue.TranscribePayload{ArtifactID: artifact.ID})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	out, err := h.Handle(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res := out.(jobs.TranscribeResult); res.Segments != 2 || res.Provider != "fake" {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := f.repo.GetArtifact(context.Background(), artifact.ID)
	if got.TranscriptStatus != records.StatusCompleted {
		t.Fatalf("expected completed transcript status, got %s", got.TranscriptStatus)
	}
	if got.Transcript[1].End != 10 {
		t.Fatalf("expected overrun clamped to 10, got %v", got.Transcript[1].End)
	}
	if got.TranscriptText != "first second" {
		t.Fatalf("unexpected transcript text %q", got.TranscriptText)
	}
}

func TestTranscribeHandlerUnknownProviderIsTerminal(t *testing.T) {
	f := newFixture(t)
	h := jobs.NewTranscribeHandler(transcribe.NewRegistry("fake"), f.repo, logging.NewNop())
	artifact := f.createArtifact(t, &records.Artifact{EditID: "e1", Path: "/media/a.mp4"})
	job, err := f.store.Enqueue(context.Background(), queue.TypeTranscribe, queue.TranscribePayload{ArtifactID: artifact.ID, Provider: "nope"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	_, err = h.Handle(context.Background(), job, noProgress)
	if !errors.Is(err, services.ErrValidation) || services.Retryable(err) {
		t.Fatalf("expected terminal validation error, got %v", err)
	}
	if health := h.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy without a default provider")
	}
}

func TestTransferHandlerUploadsAndRecordsURL(t *testing.T) {
	f := newFixture(t)
	if err := f.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	local := filepath.Join(f.cfg.Paths.WorkDir, "exports", "out.mp4")
	testsupport.WriteFile(t, local, 128)
	artifact := f.createArtifact(t, &records.Artifact{EditID: "e1", Path: local, FileSizeBytes: 128, Status: records.StatusCompleted})

	open := func(context.Context) (transfer.RemoteStore, error) { return transfer.NewStore(f.cfg.Transfer) }
	h := jobs.NewTransferHandler(transfer.NewWorker(open, f.repo, logging.NewNop()))
	job, err := f.store.Enqueue(context.Background(), queue.TypeTransfer,
		queue.TransferPayload{ArtifactID: artifact.ID, LocalPath: local, Filename: "out.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	keys, err := h.LockKeys(job)
	if err != nil || len(keys) != 1 || keys[0] != locks.ArtifactKey(artifact.ID) {
		t.Fatalf("unexpected lock keys %v (%v)", keys, err)
	}

	out, err := h.Handle(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	res := out.(transfer.Result)
	if res.URL == "" {
		t.Fatal("expected remote url")
	}
	got, _ := f.repo.GetArtifact(context.Background(), artifact.ID)
	if got.RemoteURL != res.URL || got.TransferStatus != records.StatusCompleted {
		t.Fatalf("unexpected artifact after transfer %+v", got)
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Fatal("expected local copy removed after confirmed upload")
	}
}

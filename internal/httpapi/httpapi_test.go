package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"splicer/internal/httpapi"
	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/testsupport"
	"splicer/internal/transcript"
	"splicer/internal/upload"
	"splicer/internal/workflow"
)

type fixture struct {
	repo    *records.Memory
	store   *queue.Store
	handler http.Handler
	dir     string
}

type stubStatus struct{}

func (stubStatus) Status(context.Context) workflow.StatusSummary {
	return workflow.StatusSummary{Running: true}
}

type stubImporter struct {
	err  error
	path string
}

func (s *stubImporter) Import(_ context.Context, path, mimeType string) (*records.Edit, *records.Artifact, error) {
	s.path = path
	if s.err != nil {
		return nil, nil, s.err
	}
	artifact := &records.Artifact{ID: "imported", Path: path, MimeType: mimeType, Status: records.StatusCompleted}
	return &records.Edit{ID: "edit-1", OriginalArtifactID: artifact.ID, CurrentArtifactID: artifact.ID}, artifact, nil
}

func newFixture(t *testing.T, token string, importer httpapi.Importer) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{
		repo:  records.NewMemory(),
		store: testsupport.MustOpenStore(t, cfg),
		dir:   t.TempDir(),
	}
	deps := httpapi.Deps{
		Records: f.repo,
		Jobs:    f.store,
		Status:  stubStatus{},
		Token:   token,
		Logger:  logging.NewNop(),
	}
	if importer != nil {
		deps.Uploader = upload.NewStore(cfg.Paths.StagingDir, logging.NewNop())
		deps.Importer = importer
	}
	f.handler = httpapi.New(deps).Handler()
	return f
}

func (f *fixture) addArtifact(t *testing.T, a *records.Artifact) {
	t.Helper()
	if err := f.repo.CreateArtifact(context.Background(), a); err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) mediaFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestMediaStreamingHonoursRanges(t *testing.T) {
	f := newFixture(t, "", nil)
	f.addArtifact(t, &records.Artifact{
		ID: "a1", Path: f.mediaFile(t, "0123456789"), MimeType: "video/mp4", Status: records.StatusCompleted,
	})

	full := f.do(t, http.MethodGet, "/api/media/a1", nil, nil)
	if full.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", full.Code)
	}
	if full.Header().Get("Content-Length") != "10" || full.Header().Get("Accept-Ranges") != "bytes" {
		t.Fatalf("unexpected headers %v", full.Header())
	}
	if full.Header().Get("Content-Type") != "video/mp4" {
		t.Fatalf("unexpected content type %q", full.Header().Get("Content-Type"))
	}

	partial := f.do(t, http.MethodGet, "/api/media/a1", nil, map[string]string{"Range": "bytes=2-5"})
	if partial.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", partial.Code)
	}
	if got := partial.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Fatalf("Content-Range = %q", got)
	}
	if partial.Body.String() != "2345" {
		t.Fatalf("body = %q", partial.Body.String())
	}
}

func TestMediaRejectsUnknownAndUnfinishedArtifacts(t *testing.T) {
	f := newFixture(t, "", nil)
	f.addArtifact(t, &records.Artifact{ID: "pending", Status: records.StatusPending})

	if w := f.do(t, http.MethodGet, "/api/media/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown artifact, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/media/pending", nil, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending artifact, got %d", w.Code)
	}
}

func TestSubtitlesRenderBothFormats(t *testing.T) {
	f := newFixture(t, "", nil)
	f.addArtifact(t, &records.Artifact{
		ID:         "a1",
		Status:     records.StatusCompleted,
		Transcript: []transcript.Segment{{Start: 1, End: 2.5, Text: "hello"}},
	})
	f.addArtifact(t, &records.Artifact{ID: "silent", Status: records.StatusCompleted})

	srt := f.do(t, http.MethodGet, "/api/media/a1/subtitles.srt", nil, nil)
	if srt.Code != http.StatusOK || !strings.Contains(srt.Body.String(), "00:00:01,000 --> 00:00:02,500") {
		t.Fatalf("unexpected srt response %d %q", srt.Code, srt.Body.String())
	}
	vtt := f.do(t, http.MethodGet, "/api/media/a1/subtitles.vtt", nil, nil)
	if vtt.Code != http.StatusOK || !strings.HasPrefix(vtt.Body.String(), "WEBVTT\n\n") {
		t.Fatalf("unexpected vtt response %d %q", vtt.Code, vtt.Body.String())
	}
	if !strings.HasPrefix(vtt.Header().Get("Content-Type"), "text/vtt") {
		t.Fatalf("unexpected vtt content type %q", vtt.Header().Get("Content-Type"))
	}
	if w := f.do(t, http.MethodGet, "/api/media/silent/subtitles.srt", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without transcript, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/media/a1/subtitles.ass", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected unmatched route for unknown format, got %d", w.Code)
	}
}

func TestBearerTokenGuardsAPIButNotMetrics(t *testing.T) {
	f := newFixture(t, "secret", nil)

	if w := f.do(t, http.MethodGet, "/api/status", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/status", nil, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/api/status", nil, map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var summary workflow.StatusSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil || !summary.Running {
		t.Fatalf("unexpected status body %q: %v", w.Body.String(), err)
	}
	metrics := f.do(t, http.MethodGet, "/metrics", nil, nil)
	if metrics.Code != http.StatusOK || !strings.Contains(metrics.Body.String(), "splicer_http_requests_total") {
		t.Fatalf("unexpected metrics response %d", metrics.Code)
	}
}

func TestJobAdministration(t *testing.T) {
	f := newFixture(t, "", nil)
	ctx := context.Background()
	waiting, err := f.store.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{ArtifactID: "a1", LocalPath: "/tmp/a1.mp4", Filename: "a1.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	running, err := f.store.Enqueue(ctx, queue.TypeTranscribe, queue.TranscribePayload{ArtifactID: "a2", AudioPath: "/tmp/a2.m4a"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := f.store.Claim(ctx, queue.TypeTranscribe, "test"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	list := f.do(t, http.MethodGet, "/api/jobs?type=transfer", nil, nil)
	var listed struct {
		Jobs []*queue.Job `json:"jobs"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Jobs) != 1 || listed.Jobs[0].ID != waiting.ID {
		t.Fatalf("unexpected filtered list %+v", listed.Jobs)
	}
	if w := f.do(t, http.MethodGet, "/api/jobs?state=bogus", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", w.Code)
	}

	show := f.do(t, http.MethodGet, "/api/jobs/"+strconv.FormatInt(running.ID, 10), nil, nil)
	var job queue.Job
	if err := json.Unmarshal(show.Body.Bytes(), &job); err != nil || job.State != queue.StateActive {
		t.Fatalf("unexpected job %+v: %v", job, err)
	}
	if w := f.do(t, http.MethodGet, "/api/jobs/9999", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", w.Code)
	}

	if w := f.do(t, http.MethodDelete, "/api/jobs/"+strconv.FormatInt(waiting.ID, 10), nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected waiting job removal, got %d", w.Code)
	}
	if got, _ := f.store.Get(ctx, waiting.ID); got != nil {
		t.Fatalf("expected waiting job deleted, got %+v", got)
	}

	if w := f.do(t, http.MethodDelete, "/api/jobs/"+strconv.FormatInt(running.ID, 10), nil, nil); w.Code != http.StatusAccepted {
		t.Fatalf("expected cancel request for active job, got %d", w.Code)
	}
	active, _ := f.store.Get(ctx, running.ID)
	if active == nil || !active.CancelRequested || active.State != queue.StateActive {
		t.Fatalf("expected active job flagged for cancel, got %+v", active)
	}

	retryPath := "/api/jobs/" + strconv.FormatInt(running.ID, 10) + "/retry"
	if w := f.do(t, http.MethodPost, retryPath, nil, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 retrying an active job, got %d", w.Code)
	}
	if err := f.store.MarkCancelled(ctx, running.ID); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	if w := f.do(t, http.MethodPost, retryPath, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected retry of failed job, got %d", w.Code)
	}
	retried, _ := f.store.Get(ctx, running.ID)
	if retried.State != queue.StateWaiting || retried.Attempts != 0 {
		t.Fatalf("unexpected retried job %+v", retried)
	}
}

func TestUploadImportsStoredMedia(t *testing.T) {
	importer := &stubImporter{}
	f := newFixture(t, "", importer)

	w := f.do(t, http.MethodPost, "/api/media", strings.NewReader("video-bytes"), map[string]string{"Content-Type": "video/mp4"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if filepath.Ext(importer.path) != ".mp4" {
		t.Fatalf("unexpected stored path %q", importer.path)
	}
	data, err := os.ReadFile(importer.path)
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("stored upload mismatch %q: %v", data, err)
	}

	if w := f.do(t, http.MethodPost, "/api/media", strings.NewReader("hello"), map[string]string{"Content-Type": "text/plain"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-media upload, got %d", w.Code)
	}
}

func TestUploadRemovesFileWhenImportFails(t *testing.T) {
	importer := &stubImporter{err: services.Wrap(services.ErrProbeFailure, "editor", "import", "not media", errors.New("bad header"))}
	f := newFixture(t, "", importer)

	w := f.do(t, http.MethodPost, "/api/media", strings.NewReader("garbage"), map[string]string{"Content-Type": "video/mp4"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if _, err := os.Stat(importer.path); !os.IsNotExist(err) {
		t.Fatalf("expected rejected upload removed, stat err = %v", err)
	}
}

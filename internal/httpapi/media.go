package httpapi

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"splicer/internal/logging"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/transcript"
)

type uploadResponse struct {
	Edit     *records.Edit     `json:"edit"`
	Artifact *records.Artifact `json:"artifact"`
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	artifact, ok := s.loadArtifact(w, r)
	if !ok {
		return
	}
	if artifact.Status != records.StatusCompleted || artifact.Path == "" {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("artifact %s is %s", artifact.ID, artifact.Status))
		return
	}
	file, err := os.Open(artifact.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "media file no longer available locally")
			return
		}
		s.writeServiceError(w, r, services.Wrap(services.ErrPersistence, "api", "open media", artifact.Path, err))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrPersistence, "api", "stat media", artifact.Path, err))
		return
	}
	if artifact.MimeType != "" {
		w.Header().Set("Content-Type", artifact.MimeType)
	}
	// ServeContent answers Range requests with 206 and Content-Range and
	// everything else with 200 and the full length.
	http.ServeContent(w, r, filepath.Base(artifact.Path), info.ModTime(), file)
}

func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	artifact, ok := s.loadArtifact(w, r)
	if !ok {
		return
	}
	if !artifact.HasTranscript() {
		s.writeError(w, http.StatusNotFound, "artifact has no transcript")
		return
	}
	format := mux.Vars(r)["format"]
	var body, contentType string
	switch format {
	case "vtt":
		body, contentType = transcript.FormatVTT(artifact.Transcript), "text/vtt; charset=utf-8"
	default:
		body, contentType = transcript.FormatSRT(artifact.Transcript), "application/x-subrip; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.ID+"."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mimeType := r.Header.Get("Content-Type")
	stored, err := s.deps.Uploader.Store(ctx, r.Body, mimeType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	edit, artifact, err := s.deps.Importer.Import(ctx, stored.Path, stored.MimeType)
	if err != nil {
		if rmErr := os.Remove(stored.Path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("failed to remove rejected upload",
				logging.String("path", stored.Path),
				logging.Error(rmErr),
			)
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, uploadResponse{Edit: edit, Artifact: artifact})
}

func (s *Server) loadArtifact(w http.ResponseWriter, r *http.Request) (*records.Artifact, bool) {
	if s.deps.Records == nil {
		s.writeError(w, http.StatusNotFound, "artifact not found")
		return nil, false
	}
	artifact, err := s.deps.Records.GetArtifact(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return artifact, true
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/upload"
	"splicer/internal/workflow"
)

// JobStore is the subset of the queue the API administers.
type JobStore interface {
	Get(ctx context.Context, id int64) (*queue.Job, error)
	List(ctx context.Context, filter queue.Filter) ([]*queue.Job, error)
	Remove(ctx context.Context, id int64) error
	RequestCancel(ctx context.Context, id int64) error
	Retry(ctx context.Context, ids ...int64) (int64, error)
}

// StatusProvider reports worker pool diagnostics.
type StatusProvider interface {
	Status(ctx context.Context) workflow.StatusSummary
}

// Uploader persists request bodies.
type Uploader interface {
	Store(ctx context.Context, r io.Reader, mimeType string) (upload.Stored, error)
}

// Importer registers stored media as a new edit.
type Importer interface {
	Import(ctx context.Context, path, mimeType string) (*records.Edit, *records.Artifact, error)
}

// Deps collects the collaborators the server routes to. Uploader and
// Importer are optional; without them POST /api/media is not registered.
type Deps struct {
	Records  records.Repository
	Jobs     JobStore
	Status   StatusProvider
	Uploader Uploader
	Importer Importer
	Token    string
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	logger *slog.Logger
	router *mux.Router

	listener net.Listener
	server   *http.Server
}

// New builds a Server and its routes.
func New(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "api-server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware(s.deps.Token))
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	if s.deps.Uploader != nil && s.deps.Importer != nil {
		api.HandleFunc("/media", s.handleUpload).Methods(http.MethodPost)
	}
	api.HandleFunc("/media/{id}", s.handleMedia).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/media/{id}/subtitles.{format:srt|vtt}", s.handleSubtitles).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}", s.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}", s.handleDeleteJob).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/{id:[0-9]+}/retry", s.handleRetryJob).Methods(http.MethodPost)
	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on bind and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		s.writeJSON(w, http.StatusOK, workflow.StatusSummary{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Status.Status(r.Context()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, records.ErrNotFound), errors.Is(err, queue.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidSegment), errors.Is(err, services.ErrNoActiveSegments):
		status = http.StatusBadRequest
	case errors.Is(err, queue.ErrNotRemovable), errors.Is(err, queue.ErrNotActive):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("api request failed",
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, map[string]string{
		"error": strings.TrimSpace(err.Error()),
		"kind":  services.Kind(err),
	})
}

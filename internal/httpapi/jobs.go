package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"splicer/internal/queue"
)

type jobListResponse struct {
	Jobs []*queue.Job `json:"jobs"`
}

type jobActionResponse struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.deps.Jobs.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*queue.Job{}
	}
	s.writeJSON(w, http.StatusOK, jobListResponse{Jobs: jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.deps.Jobs.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleDeleteJob removes waiting jobs outright and flags active ones for
// cancellation. Finished jobs cannot be deleted.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	err := s.deps.Jobs.Remove(ctx, id)
	if err == nil {
		s.writeJSON(w, http.StatusOK, jobActionResponse{ID: id, Action: "removed"})
		return
	}
	if !errors.Is(err, queue.ErrNotRemovable) {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Jobs.RequestCancel(ctx, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, jobActionResponse{ID: id, Action: "cancel_requested"})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	n, err := s.deps.Jobs.Retry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if n == 0 {
		job, err := s.deps.Jobs.Get(r.Context(), id)
		switch {
		case err != nil:
			s.writeServiceError(w, r, err)
		case job == nil:
			s.writeError(w, http.StatusNotFound, "job not found")
		default:
			s.writeError(w, http.StatusConflict, fmt.Sprintf("job %d is %s, only failed jobs can be retried", id, job.State))
		}
		return
	}
	s.writeJSON(w, http.StatusOK, jobActionResponse{ID: id, Action: "retried"})
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func parseJobFilter(r *http.Request) (queue.Filter, error) {
	query := r.URL.Query()
	var filter queue.Filter
	for _, value := range query["type"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		typ, ok := queue.ParseType(value)
		if !ok {
			return filter, fmt.Errorf("unknown job type %q", value)
		}
		filter.Types = append(filter.Types, typ)
	}
	for _, value := range query["state"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		state, ok := queue.ParseState(value)
		if !ok {
			return filter, fmt.Errorf("unknown job state %q", value)
		}
		filter.States = append(filter.States, state)
	}
	filter.ArtifactID = strings.TrimSpace(query.Get("artifact"))
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

package api

import (
	"errors"
	"net/http"

	"github.com/lexia-ai/lexia/internal/store"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 100
)

// handleListJobs returns the caller's jobs, newest first, with optional
// status and job_type filters and limit/offset pagination.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	cred := credentialFrom(r)
	q := r.URL.Query()

	f := store.JobFilter{
		Principal: cred.Principal,
		Limit:     defaultJobLimit,
	}

	if v := q.Get("status"); v != "" {
		status := store.JobStatus(v)
		if !status.IsValid() {
			badRequest(w, "validation_error", "status", "unknown status "+v)
			return
		}
		f.Status = status
	}
	if v := q.Get("job_type"); v != "" {
		jobType := store.JobType(v)
		if !jobType.IsValid() {
			badRequest(w, "validation_error", "job_type", "unknown job type "+v)
			return
		}
		f.Type = jobType
	}
	if v := q.Get("limit"); v != "" {
		n := formInt(v)
		if n <= 0 || n > maxJobLimit {
			badRequest(w, "validation_error", "limit", "limit must be between 1 and 100")
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n := formInt(v)
		if n < 0 {
			badRequest(w, "validation_error", "offset", "offset must not be negative")
			return
		}
		f.Offset = n
	}

	jobs, err := s.store.ListJobs(r.Context(), f)
	if err != nil {
		s.log.Error("list jobs failed", "error", err)
		serverError(w)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, newJobView(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   views,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// handleGetJob serves the full job view.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

// handleCancelJob cancels a pending or queued job. Jobs already picked up by
// a worker run to completion; cancelling them is a 400, not a race.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}

	if err := s.dispatcher.Cancel(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrConflict) {
			badRequest(w, "job_not_cancellable", "",
				"only pending or queued jobs can be cancelled")
			return
		}
		s.log.Error("cancel job failed", "error", err, "job_id", job.ID)
		serverError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedJob resolves the path id to a job owned by the caller, writing the
// appropriate error response otherwise. Foreign jobs answer the same 404 as
// unknown ids.
func (s *Server) ownedJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	id := r.PathValue("id")
	if err := requireUUID(id, "id"); err != nil {
		s.writeValidationError(w, err)
		return nil, false
	}
	cred := credentialFrom(r)

	job, err := s.store.Job(r.Context(), id)
	if err != nil || job.Principal != cred.Principal {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Error("job lookup failed", "error", err)
			serverError(w)
			return nil, false
		}
		notFound(w, "job_not_found", "job not found")
		return nil, false
	}
	return job, true
}

package api

import (
	"errors"
	"net/http"

	"github.com/lexia-ai/lexia/internal/dispatch"
	"github.com/lexia-ai/lexia/internal/store"
)

// handleCreateDiarization accepts an async diarization-only job.
func (s *Server) handleCreateDiarization(w http.ResponseWriter, r *http.Request) {
	src, err := parseAudioSource(r, s.maxUploadMB)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}
	defer src.Close()

	webhookURL, err := parseWebhookURL(r.FormValue("webhook_url"))
	if err != nil {
		s.writeValidationError(w, err)
		return
	}

	cred := credentialFrom(r)
	numSpeakers := formInt(r.FormValue("num_speakers"))
	minSpeakers := formInt(r.FormValue("min_speakers"))
	maxSpeakers := formInt(r.FormValue("max_speakers"))

	sub := dispatch.Submission{
		Type:         store.JobTypeDiarization,
		Principal:    cred.Principal,
		CredentialID: cred.ID,
		WebhookURL:   webhookURL,
		Params:       map[string]any{},
		AudioURL:     src.AudioURL,
		NumSpeakers:  numSpeakers,
		MinSpeakers:  minSpeakers,
		MaxSpeakers:  maxSpeakers,
	}
	for k, v := range map[string]int{
		"num_speakers": numSpeakers,
		"min_speakers": minSpeakers,
		"max_speakers": maxSpeakers,
	} {
		if v > 0 {
			sub.Params[k] = v
		}
	}

	if src.File != nil {
		key, err := s.storeUpload(r, src, "diarizations")
		if err != nil {
			s.log.Error("audio upload failed", "error", err)
			serverError(w)
			return
		}
		sub.BlobKey = key
	} else {
		sub.Params["audio_url"] = src.AudioURL
	}

	job, err := s.dispatcher.Submit(r.Context(), sub)
	if err != nil {
		s.log.Error("submit diarization failed", "error", err, "job_id", jobID(job))
		serverError(w)
		return
	}

	writeJSON(w, http.StatusAccepted, createJobResponse{
		ID:        job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// handleGetDiarization serves a diarization job by id. Jobs of any other
// type answer the same 404 as unknown ids, so the endpoint never leaks what
// an id refers to.
func (s *Server) handleGetDiarization(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := requireUUID(id, "id"); err != nil {
		s.writeValidationError(w, err)
		return
	}
	cred := credentialFrom(r)

	job, err := s.store.Job(r.Context(), id)
	if err != nil || job.Principal != cred.Principal || job.Type != store.JobTypeDiarization {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Error("job lookup failed", "error", err)
			serverError(w)
			return
		}
		notFound(w, "job_not_found", "diarization job not found")
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexia-ai/lexia/internal/dispatch"
	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/pkg/blob"
)

// createJobResponse is the 202 body for async submissions.
type createJobResponse struct {
	ID        string          `json:"id"`
	Status    store.JobStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	AudioURL  string          `json:"audio_url,omitempty"`
}

// handleCreateTranscription accepts an async transcription job: multipart
// audio upload or audio_url, optional language and diarization flags.
// Responds 202 with the job id; results are fetched by polling.
func (s *Server) handleCreateTranscription(w http.ResponseWriter, r *http.Request) {
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
	language := strings.TrimSpace(r.FormValue("language_code"))
	speakerLabels := formBool(r.FormValue("speaker_labels"))
	speakersExpected := formInt(r.FormValue("speakers_expected"))

	jobType := store.JobTypeTranscription
	if speakerLabels {
		jobType = store.JobTypeCombined
	}

	sub := dispatch.Submission{
		Type:         jobType,
		Principal:    cred.Principal,
		CredentialID: cred.ID,
		WebhookURL:   webhookURL,
		Params: map[string]any{
			"language_code":  language,
			"speaker_labels": speakerLabels,
		},
		AudioURL:      src.AudioURL,
		Language:      language,
		SpeakerLabels: speakerLabels,
		NumSpeakers:   speakersExpected,
	}
	if speakersExpected > 0 {
		sub.Params["speakers_expected"] = speakersExpected
	}

	if src.File != nil {
		key, err := s.storeUpload(r, src, "transcriptions")
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
		s.log.Error("submit transcription failed", "error", err, "job_id", jobID(job))
		serverError(w)
		return
	}

	writeJSON(w, http.StatusAccepted, createJobResponse{
		ID:        job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		AudioURL:  src.AudioURL,
	})
}

// handleGetTranscription serves the full transcription view. Foreign and
// unknown ids are indistinguishable.
func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := requireUUID(id, "id"); err != nil {
		s.writeValidationError(w, err)
		return
	}
	cred := credentialFrom(r)

	tr, err := s.store.Transcription(r.Context(), id)
	if err != nil || tr.Principal != cred.Principal {
		s.transcriptionNotFound(w, err)
		return
	}

	job, err := s.store.Job(r.Context(), tr.JobID)
	if err != nil {
		s.log.Error("job lookup for transcription failed", "error", err, "job_id", tr.JobID)
		serverError(w)
		return
	}
	writeJSON(w, http.StatusOK, newTranscriptionView(tr, job))
}

// handleDeleteTranscription removes the row and, best-effort, its audio
// blob. Blob failures are logged but never block the delete.
func (s *Server) handleDeleteTranscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := requireUUID(id, "id"); err != nil {
		s.writeValidationError(w, err)
		return
	}
	cred := credentialFrom(r)

	tr, err := s.store.Transcription(r.Context(), id)
	if err != nil || tr.Principal != cred.Principal {
		s.transcriptionNotFound(w, err)
		return
	}

	if tr.AudioKey != "" {
		if err := s.blobs.Delete(r.Context(), tr.AudioKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
			s.log.Warn("audio blob delete failed", "key", tr.AudioKey, "error", err)
		}
	}
	if err := s.store.DeleteTranscription(r.Context(), id); err != nil {
		s.transcriptionNotFound(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeUpload streams the uploaded file into the blob store under a
// generated key.
func (s *Server) storeUpload(r *http.Request, src *audioSource, prefix string) (string, error) {
	key := blob.GenerateKey(src.Filename, prefix)
	contentType := mime.TypeByExtension(filepath.Ext(src.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Put(r.Context(), key, src.File, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Server) transcriptionNotFound(w http.ResponseWriter, err error) {
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("transcription lookup failed", "error", err)
		serverError(w)
		return
	}
	notFound(w, "transcription_not_found", "transcription not found")
}

// jobID is nil-safe for logging around Submit failures.
func jobID(j *store.Job) string {
	if j == nil {
		return ""
	}
	return j.ID
}

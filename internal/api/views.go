package api

import (
	"encoding/json"
	"time"

	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/pkg/types"
)

// jobProgress is shown while a job is moving; omitted at percent 0.
type jobProgress struct {
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// jobError mirrors the stored failure fields.
type jobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// jobView is the public shape of a job. Timestamps are RFC3339; durations
// inside Result are integer milliseconds.
type jobView struct {
	ID          string          `json:"id"`
	Type        store.JobType   `json:"job_type"`
	Status      store.JobStatus `json:"status"`
	Progress    *jobProgress    `json:"progress,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	ResultURL   string          `json:"result_url,omitempty"`
	Error       *jobError       `json:"error,omitempty"`
	WebhookURL  string          `json:"webhook_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func newJobView(j *store.Job) jobView {
	v := jobView{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		Result:      j.Result,
		ResultURL:   j.ResultURL,
		WebhookURL:  j.WebhookURL,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.ProgressPercent > 0 {
		v.Progress = &jobProgress{Percent: j.ProgressPercent, Message: j.ProgressMessage}
	}
	if j.Status == store.StatusFailed {
		v.Error = &jobError{Code: j.ErrorCode, Message: j.ErrorMessage}
	}
	return v
}

// transcriptionView is the public shape of a transcription resource,
// including speaker fields when diarization ran. All offsets are integer
// milliseconds.
type transcriptionView struct {
	ID     string          `json:"id"`
	JobID  string          `json:"job_id"`
	Status store.JobStatus `json:"status"`

	AudioURL      string `json:"audio_url,omitempty"`
	LanguageCode  string `json:"language_code,omitempty"`
	SpeakerLabels bool   `json:"speaker_labels"`

	Text     string          `json:"text"`
	Words    []types.Word    `json:"words,omitempty"`
	Segments []types.Segment `json:"segments,omitempty"`

	DetectedLanguage   string  `json:"detected_language,omitempty"`
	LanguageConfidence float64 `json:"language_confidence,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`

	Speakers            []types.Speaker         `json:"speakers,omitempty"`
	Utterances          []types.Utterance       `json:"utterances,omitempty"`
	DiarizationSegments []types.SpeakerSegment  `json:"diarization_segments,omitempty"`
	DiarizationStats    *types.DiarizationStats `json:"diarization_stats,omitempty"`

	Error *jobError `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newTranscriptionView(t *store.Transcription, j *store.Job) transcriptionView {
	v := transcriptionView{
		ID:                  t.ID,
		JobID:               t.JobID,
		AudioURL:            t.AudioURL,
		LanguageCode:        t.LanguageCode,
		SpeakerLabels:       t.SpeakerLabels,
		Text:                t.Text,
		Words:               t.Words,
		Segments:            t.Segments,
		DetectedLanguage:    t.DetectedLanguage,
		LanguageConfidence:  t.LanguageConfidence,
		Confidence:          t.Confidence,
		Speakers:            t.Speakers,
		Utterances:          t.Utterances,
		DiarizationSegments: t.DiarizationSegments,
		DiarizationStats:    t.DiarizationStats,
		CreatedAt:           t.CreatedAt,
		CompletedAt:         t.CompletedAt,
	}
	if j != nil {
		v.Status = j.Status
		if j.Status == store.StatusFailed {
			v.Error = &jobError{Code: j.ErrorCode, Message: j.ErrorMessage}
		}
	}
	return v
}

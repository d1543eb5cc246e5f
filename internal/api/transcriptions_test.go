package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/pkg/types"
)

// seedTranscription creates a completed transcription with its job.
func seedTranscription(t *testing.T, f *fixture, principal, audioKey string) *store.Transcription {
	t.Helper()
	ctx := context.Background()

	job := &store.Job{
		ID:        uuid.NewString(),
		Type:      store.JobTypeTranscription,
		Status:    store.StatusPending,
		Principal: principal,
		CreatedAt: time.Now().UTC(),
	}
	tr := &store.Transcription{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		AudioKey:  audioKey,
		CreatedAt: job.CreatedAt,
		Principal: principal,
	}
	if err := f.store.CreateJobWithTranscription(ctx, job, tr); err != nil {
		t.Fatalf("create job+transcription: %v", err)
	}
	if err := f.store.SetQueueHandle(ctx, job.ID, uuid.NewString()); err != nil {
		t.Fatalf("set queue handle: %v", err)
	}
	if err := f.store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := f.store.SetTranscriptionResult(ctx, tr.ID, &store.TranscriptionResult{
		Text: "hello world",
		Words: []types.Word{
			{Text: "hello", StartMS: 0, EndMS: 350, Confidence: 0.95},
			{Text: "world", StartMS: 350, EndMS: 700, Confidence: 0.93},
		},
		DetectedLanguage: "en",
		Confidence:       0.94,
	}); err != nil {
		t.Fatalf("set transcription result: %v", err)
	}
	if err := f.store.SetResult(ctx, job.ID, json.RawMessage(`{"transcription_id":"`+tr.ID+`"}`),
		"/v1/transcriptions/"+tr.ID); err != nil {
		t.Fatalf("set job result: %v", err)
	}
	return tr
}

func TestGetTranscriptionView(t *testing.T) {
	f := newFixture(t)
	tr := seedTranscription(t, f, "tester", "")

	rec := f.do(f.authed(httptest.NewRequest("GET", "/v1/transcriptions/"+tr.ID, nil), f.token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var view transcriptionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want completed", view.Status)
	}
	if view.Text != "hello world" {
		t.Errorf("Text = %q", view.Text)
	}
	if len(view.Words) != 2 || view.Words[1].StartMS != 350 {
		t.Errorf("Words = %+v", view.Words)
	}
	if view.DetectedLanguage != "en" {
		t.Errorf("DetectedLanguage = %q, want en", view.DetectedLanguage)
	}
}

func TestGetTranscriptionOwnershipHiding(t *testing.T) {
	f := newFixture(t)
	tr := seedTranscription(t, f, "tester", "")
	_, otherToken := f.issue(t, "other", "rival", 0)

	foreign := f.do(f.authed(httptest.NewRequest("GET", "/v1/transcriptions/"+tr.ID, nil), otherToken))
	fabricated := f.do(f.authed(httptest.NewRequest("GET", "/v1/transcriptions/"+uuid.NewString(), nil), otherToken))

	if foreign.Code != http.StatusNotFound || fabricated.Code != http.StatusNotFound {
		t.Fatalf("status = %d/%d, want 404/404", foreign.Code, fabricated.Code)
	}
	if foreign.Body.String() != fabricated.Body.String() {
		t.Errorf("foreign body %q != fabricated body %q", foreign.Body.String(), fabricated.Body.String())
	}
}

func TestDeleteTranscriptionRemovesBlob(t *testing.T) {
	f := newFixture(t)
	f.blobs.Seed("transcriptions/2026/08/26/audio.wav", []byte("RIFF"))
	tr := seedTranscription(t, f, "tester", "transcriptions/2026/08/26/audio.wav")

	rec := f.do(f.authed(httptest.NewRequest("DELETE", "/v1/transcriptions/"+tr.ID, nil), f.token))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	if _, ok := f.blobs.Object(tr.AudioKey); ok {
		t.Error("audio blob still present after delete")
	}
	if _, err := f.store.Transcription(context.Background(), tr.ID); err == nil {
		t.Error("transcription row still present after delete")
	}
}

func TestDeleteTranscriptionSurvivesMissingBlob(t *testing.T) {
	f := newFixture(t)
	tr := seedTranscription(t, f, "tester", "transcriptions/gone.wav")

	// The blob was never stored; delete must still remove the row.
	rec := f.do(f.authed(httptest.NewRequest("DELETE", "/v1/transcriptions/"+tr.ID, nil), f.token))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, err := f.store.Transcription(context.Background(), tr.ID); err == nil {
		t.Error("transcription row still present after delete")
	}
}

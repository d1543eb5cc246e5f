package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/internal/store/postgres"
	"github.com/lexia-ai/lexia/pkg/types"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if LEXIA_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LEXIA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEXIA_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	// Use a bare pool to drop leftovers from a previous run.
	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS transcriptions CASCADE",
		"DROP TABLE IF EXISTS jobs CASCADE",
		"DROP TABLE IF EXISTS credentials CASCADE",
	} {
		if _, err := cleanPool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}

	st, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestCredentialRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cred := &store.Credential{
		ID:          "cred-1",
		KeyHash:     "abc123",
		Name:        "ci key",
		Principal:   "acme",
		Permissions: []string{"transcribe", "diarize"},
		Quota:       60,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := st.CreateCredential(ctx, cred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	got, err := st.CredentialByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("CredentialByHash: %v", err)
	}
	if got.ID != cred.ID || got.Principal != cred.Principal || got.Quota != cred.Quota {
		t.Errorf("CredentialByHash = %+v, want %+v", got, cred)
	}
	if len(got.Permissions) != 2 || got.Permissions[0] != "transcribe" {
		t.Errorf("Permissions = %v, want [transcribe diarize]", got.Permissions)
	}
	if got.LastUsedAt != nil || got.ExpiresAt != nil {
		t.Errorf("nullable timestamps = %v/%v, want nil/nil", got.LastUsedAt, got.ExpiresAt)
	}

	changed, err := st.RevokeCredential(ctx, "cred-1")
	if err != nil || !changed {
		t.Fatalf("RevokeCredential = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = st.RevokeCredential(ctx, "cred-1")
	if err != nil || changed {
		t.Fatalf("RevokeCredential repeat = (%v, %v), want (false, nil)", changed, err)
	}
	if _, err := st.RevokeCredential(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RevokeCredential missing err = %v, want ErrNotFound", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &store.Job{
		ID:        "job-1",
		Type:      store.JobTypeTranscription,
		Status:    store.StatusPending,
		Params:    map[string]any{"language_code": "en"},
		Principal: "acme",
		CreatedAt: time.Now().UTC(),
	}
	tr := &store.Transcription{
		ID:        "tr-1",
		JobID:     "job-1",
		AudioURL:  "https://cdn.example/a.wav",
		Principal: "acme",
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateJobWithTranscription(ctx, job, tr); err != nil {
		t.Fatalf("CreateJobWithTranscription: %v", err)
	}

	if err := st.SetQueueHandle(ctx, "job-1", "task-1"); err != nil {
		t.Fatalf("SetQueueHandle: %v", err)
	}
	if err := st.SetQueueHandle(ctx, "job-1", "task-2"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("SetQueueHandle repeat err = %v, want ErrConflict", err)
	}
	if err := st.MarkProcessing(ctx, "job-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	if err := st.UpdateProgress(ctx, "job-1", 60, "Processing results"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := st.UpdateProgress(ctx, "job-1", 20, "Transcribing audio"); err != nil {
		t.Fatalf("UpdateProgress regress: %v", err)
	}
	j, err := st.Job(ctx, "job-1")
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if j.ProgressPercent != 60 || j.ProgressMessage != "Processing results" {
		t.Errorf("progress = %d %q, want 60 %q", j.ProgressPercent, j.ProgressMessage, "Processing results")
	}

	if err := st.SetResult(ctx, "job-1", []byte(`{"text":"hi"}`), "/v1/transcriptions/tr-1"); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	j, err = st.Job(ctx, "job-1")
	if err != nil {
		t.Fatalf("Job after result: %v", err)
	}
	if j.Status != store.StatusCompleted || j.ProgressPercent != 100 {
		t.Errorf("after SetResult status=%q progress=%d, want completed/100", j.Status, j.ProgressPercent)
	}
	if j.CompletedAt == nil || j.StartedAt == nil {
		t.Error("StartedAt and CompletedAt should be set")
	}
	if err := st.MarkFailed(ctx, "job-1", "INTERNAL", "late failure"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("MarkFailed on completed err = %v, want ErrConflict", err)
	}
}

func TestCancelDropsQueuedTask(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &store.Job{
		ID:        "job-1",
		Type:      store.JobTypeDiarization,
		Status:    store.StatusPending,
		Principal: "acme",
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := st.SetQueueHandle(ctx, "job-1", "task-1"); err != nil {
		t.Fatalf("SetQueueHandle: %v", err)
	}
	if err := st.CancelJob(ctx, "job-1"); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if err := st.MarkProcessing(ctx, "job-1"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("MarkProcessing on cancelled err = %v, want ErrConflict", err)
	}
}

func TestPendingWebhooksOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, spec := range []struct {
		id  string
		at  time.Time
		url string
	}{
		{"late", base.Add(time.Hour), "https://hook.example/1"},
		{"early", base, "https://hook.example/2"},
		{"nohook", base, ""},
	} {
		j := &store.Job{
			ID:         spec.id,
			Type:       store.JobTypeTranscription,
			Status:     store.StatusPending,
			Principal:  "acme",
			WebhookURL: spec.url,
			CreatedAt:  spec.at,
		}
		if err := st.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob(%s): %v", spec.id, err)
		}
		if err := st.SetQueueHandle(ctx, spec.id, "t"); err != nil {
			t.Fatalf("SetQueueHandle(%s): %v", spec.id, err)
		}
		if err := st.MarkProcessing(ctx, spec.id); err != nil {
			t.Fatalf("MarkProcessing(%s): %v", spec.id, err)
		}
		if err := st.SetResult(ctx, spec.id, []byte(`{}`), ""); err != nil {
			t.Fatalf("SetResult(%s): %v", spec.id, err)
		}
	}

	got, err := st.PendingWebhooks(ctx, 50)
	if err != nil {
		t.Fatalf("PendingWebhooks: %v", err)
	}
	if len(got) != 2 || got[0].ID != "early" || got[1].ID != "late" {
		t.Fatalf("PendingWebhooks = %v, want [early late]", got)
	}
	if err := st.MarkWebhookDelivered(ctx, "early"); err != nil {
		t.Fatalf("MarkWebhookDelivered: %v", err)
	}
	got, err = st.PendingWebhooks(ctx, 50)
	if err != nil {
		t.Fatalf("PendingWebhooks after delivery: %v", err)
	}
	if len(got) != 1 || got[0].ID != "late" {
		t.Errorf("PendingWebhooks after delivery = %v, want [late]", got)
	}
}

func TestTranscriptionResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &store.Job{
		ID:        "job-1",
		Type:      store.JobTypeCombined,
		Status:    store.StatusPending,
		Principal: "acme",
		CreatedAt: time.Now().UTC(),
	}
	tr := &store.Transcription{
		ID:            "tr-1",
		JobID:         "job-1",
		AudioKey:      "audio/2026/01/01/abc.wav",
		SpeakerLabels: true,
		Principal:     "acme",
		CreatedAt:     time.Now().UTC(),
	}
	if err := st.CreateJobWithTranscription(ctx, job, tr); err != nil {
		t.Fatalf("CreateJobWithTranscription: %v", err)
	}

	if err := st.SetTranscriptionResult(ctx, "tr-1", &store.TranscriptionResult{
		Text: "bonjour le monde",
		Words: []types.Word{
			{Text: "bonjour", StartMS: 0, EndMS: 400, Confidence: 0.98},
			{Text: "le", StartMS: 400, EndMS: 500, Confidence: 0.99},
			{Text: "monde", StartMS: 500, EndMS: 900, Confidence: 0.97},
		},
		DetectedLanguage:   "fr",
		LanguageConfidence: 0.99,
		Confidence:         0.98,
	}); err != nil {
		t.Fatalf("SetTranscriptionResult: %v", err)
	}

	if err := st.SetDiarizationResult(ctx, "tr-1", &store.DiarizationResult{
		Speakers: []types.Speaker{{ID: "A", TotalDurationMS: 900, NumSegments: 1, Percentage: 100}},
		Utterances: []types.Utterance{
			{Speaker: "A", Text: "bonjour le monde", StartMS: 0, EndMS: 900},
		},
		DiarizationSegments: []types.SpeakerSegment{
			{Speaker: "A", StartMS: 0, EndMS: 900},
		},
	}); err != nil {
		t.Fatalf("SetDiarizationResult: %v", err)
	}

	got, err := st.TranscriptionByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("TranscriptionByJobID: %v", err)
	}
	if got.Text != "bonjour le monde" {
		t.Errorf("Text = %q, want %q", got.Text, "bonjour le monde")
	}
	if len(got.Words) != 3 || got.Words[2].EndMS != 900 {
		t.Errorf("Words = %v, want 3 words ending at 900ms", got.Words)
	}
	if len(got.Utterances) != 1 || got.Utterances[0].Speaker != "A" {
		t.Errorf("Utterances = %v, want one utterance by A", got.Utterances)
	}
	if got.DiarizationStats != nil {
		t.Errorf("DiarizationStats = %v, want nil when never set", got.DiarizationStats)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set after transcription result")
	}

	if err := st.DeleteTranscription(ctx, "tr-1"); err != nil {
		t.Fatalf("DeleteTranscription: %v", err)
	}
	if _, err := st.Transcription(ctx, "tr-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Transcription after delete err = %v, want ErrNotFound", err)
	}
}

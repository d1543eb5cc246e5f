package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lexia-ai/lexia/internal/store"
)

const transcriptionColumns = `id, job_id, audio_url, audio_key, language_code,
	speaker_labels, text, words, segments, detected_language,
	language_confidence, confidence, speakers, utterances,
	diarization_segments, diarization_stats, error_message,
	created_at, completed_at, principal`

const insertTranscriptionSQL = `
	INSERT INTO transcriptions
	    (id, job_id, audio_url, audio_key, language_code, speaker_labels, created_at, principal)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func insertTranscriptionArgs(t *store.Transcription) []any {
	return []any{
		t.ID,
		t.JobID,
		t.AudioURL,
		t.AudioKey,
		t.LanguageCode,
		t.SpeakerLabels,
		t.CreatedAt,
		t.Principal,
	}
}

// Transcription implements [store.TranscriptionStore].
func (s *Store) Transcription(ctx context.Context, id string) (*store.Transcription, error) {
	const q = `
		SELECT ` + transcriptionColumns + `
		FROM   transcriptions
		WHERE  id = $1`

	return s.queryTranscription(ctx, q, id)
}

// TranscriptionByJobID implements [store.TranscriptionStore].
func (s *Store) TranscriptionByJobID(ctx context.Context, jobID string) (*store.Transcription, error) {
	const q = `
		SELECT ` + transcriptionColumns + `
		FROM   transcriptions
		WHERE  job_id = $1`

	return s.queryTranscription(ctx, q, jobID)
}

func (s *Store) queryTranscription(ctx context.Context, q string, arg any) (*store.Transcription, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("transcription store: query: %w", err)
	}
	t, err := pgx.CollectOneRow(rows, scanTranscription)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transcription store: scan: %w", err)
	}
	return &t, nil
}

// SetTranscriptionResult implements [store.TranscriptionStore].
func (s *Store) SetTranscriptionResult(ctx context.Context, id string, r *store.TranscriptionResult) error {
	const q = `
		UPDATE transcriptions
		SET    text                = $2,
		       words               = $3,
		       segments            = $4,
		       detected_language   = $5,
		       language_confidence = $6,
		       confidence          = $7,
		       completed_at        = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q,
		id,
		r.Text,
		r.Words,
		r.Segments,
		r.DetectedLanguage,
		r.LanguageConfidence,
		r.Confidence,
	)
	if err != nil {
		return fmt.Errorf("transcription store: set result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetDiarizationResult implements [store.TranscriptionStore].
func (s *Store) SetDiarizationResult(ctx context.Context, id string, r *store.DiarizationResult) error {
	const q = `
		UPDATE transcriptions
		SET    speakers             = $2,
		       utterances           = $3,
		       diarization_segments = $4,
		       diarization_stats    = $5
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q,
		id,
		r.Speakers,
		r.Utterances,
		r.DiarizationSegments,
		r.DiarizationStats,
	)
	if err != nil {
		return fmt.Errorf("transcription store: set diarization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTranscription implements [store.TranscriptionStore].
func (s *Store) DeleteTranscription(ctx context.Context, id string) error {
	const q = `DELETE FROM transcriptions WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("transcription store: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanTranscription(row pgx.CollectableRow) (store.Transcription, error) {
	var t store.Transcription
	err := row.Scan(
		&t.ID,
		&t.JobID,
		&t.AudioURL,
		&t.AudioKey,
		&t.LanguageCode,
		&t.SpeakerLabels,
		&t.Text,
		&t.Words,
		&t.Segments,
		&t.DetectedLanguage,
		&t.LanguageConfidence,
		&t.Confidence,
		&t.Speakers,
		&t.Utterances,
		&t.DiarizationSegments,
		&t.DiarizationStats,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.CompletedAt,
		&t.Principal,
	)
	return t, err
}

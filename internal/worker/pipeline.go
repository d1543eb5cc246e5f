package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lexia-ai/lexia/internal/align"
	"github.com/lexia-ai/lexia/internal/queue"
	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	"github.com/lexia-ai/lexia/pkg/types"
)

// Progress milestones reported while a job runs. Percentages are fixed;
// clients poll these to render progress.
const (
	progressDownload   = 10
	progressTranscribe = 20
	progressResults    = 60
	progressDiarize    = 70

	msgDownload   = "Downloading audio"
	msgTranscribe = "Transcribing audio"
	msgResults    = "Processing results"
	msgDiarize    = "Diarizing speakers"
)

// runTranscription executes a transcription (or transcription+diarization)
// job end to end.
func (p *Pool) runTranscription(ctx context.Context, task *queue.Task) error {
	tr, err := p.store.TranscriptionByJobID(ctx, task.JobID)
	if err != nil {
		return &taskError{code: codeInternal, permanent: true,
			err: fmt.Errorf("load transcription row: %w", err)}
	}

	p.progress(ctx, task.JobID, progressDownload, msgDownload)
	audioPath, cleanup, err := p.fetchAudio(ctx, task)
	if err != nil {
		return err
	}
	defer cleanup()

	p.progress(ctx, task.JobID, progressTranscribe, msgTranscribe)
	sttStart := time.Now()
	res, err := p.stt.Transcribe(ctx, stt.TranscribeRequest{
		AudioPath:      audioPath,
		Language:       task.Language,
		WordTimestamps: true,
	})
	if err != nil {
		p.metrics.RecordBackendError(ctx, p.stt.Name(), "stt")
		return &taskError{code: codeSTTError,
			err: fmt.Errorf("transcribe: %w", err)}
	}
	p.metrics.RecordSTTDuration(ctx, p.stt.Name(), time.Since(sttStart))

	p.progress(ctx, task.JobID, progressResults, msgResults)
	words := convertWords(res.Words)
	segments := convertSegments(res.Segments)
	sttResult := &store.TranscriptionResult{
		Text:               res.Text,
		Words:              words,
		Segments:           segments,
		DetectedLanguage:   res.Language,
		LanguageConfidence: res.LanguageConfidence,
		Confidence:         meanConfidence(words, segments),
	}
	if err := p.store.SetTranscriptionResult(ctx, tr.ID, sttResult); err != nil {
		return &taskError{code: codeInternal, err: fmt.Errorf("persist transcription: %w", err)}
	}

	if task.SpeakerLabels || task.Type == store.JobTypeCombined {
		if err := p.runSpeakerLabels(ctx, task, tr.ID, res.Text, words); err != nil {
			return err
		}
	}

	resultURL := "/v1/transcriptions/" + tr.ID
	payload, err := json.Marshal(map[string]any{
		"transcription_id":  tr.ID,
		"text":              res.Text,
		"detected_language": res.Language,
		"duration":          secToMS(res.Duration),
	})
	if err != nil {
		return &taskError{code: codeInternal, permanent: true,
			err: fmt.Errorf("marshal result: %w", err)}
	}
	if err := p.store.SetResult(ctx, task.JobID, payload, resultURL); err != nil {
		return &taskError{code: codeInternal, err: fmt.Errorf("complete job: %w", err)}
	}
	return nil
}

// runSpeakerLabels runs diarization and alignment for a transcription job
// that requested speaker labels.
func (p *Pool) runSpeakerLabels(ctx context.Context, task *queue.Task, trID, text string, words []types.Word) error {
	if p.diar == nil {
		return &taskError{code: codeDiarizationError, permanent: true,
			err: fmt.Errorf("no diarization backend configured")}
	}

	p.progress(ctx, task.JobID, progressDiarize, msgDiarize)

	// Diarize against the original source; re-downloading beats holding the
	// temp file across the long transcription call.
	audioPath, cleanup, err := p.fetchAudio(ctx, task)
	if err != nil {
		return err
	}
	defer cleanup()

	diarStart := time.Now()
	res, err := p.diar.Diarize(ctx, diarization.DiarizeRequest{
		AudioPath:   audioPath,
		NumSpeakers: task.NumSpeakers,
		MinSpeakers: task.MinSpeakers,
		MaxSpeakers: task.MaxSpeakers,
	})
	if err != nil {
		p.metrics.RecordBackendError(ctx, p.diar.Name(), "diarization")
		return &taskError{code: codeDiarizationError, err: fmt.Errorf("diarize: %w", err)}
	}
	p.metrics.RecordDiarizationDuration(ctx, p.diar.Name(), time.Since(diarStart))

	segments := align.Relabel(res.Segments)
	utterances := align.Align(text, words, segments, align.Options{})
	stats := diarizationStats(res, segments)

	if err := p.store.SetDiarizationResult(ctx, trID, &store.DiarizationResult{
		Speakers:            align.SpeakerStats(segments),
		Utterances:          utterances,
		DiarizationSegments: segments,
		DiarizationStats:    stats,
	}); err != nil {
		return &taskError{code: codeInternal, err: fmt.Errorf("persist diarization: %w", err)}
	}
	return nil
}

// runDiarization executes a diarization-only job.
func (p *Pool) runDiarization(ctx context.Context, task *queue.Task) error {
	if p.diar == nil {
		return &taskError{code: codeDiarizationError, permanent: true,
			err: fmt.Errorf("no diarization backend configured")}
	}

	p.progress(ctx, task.JobID, progressDownload, msgDownload)
	audioPath, cleanup, err := p.fetchAudio(ctx, task)
	if err != nil {
		return err
	}
	defer cleanup()

	p.progress(ctx, task.JobID, progressDiarize, msgDiarize)
	diarStart := time.Now()
	res, err := p.diar.Diarize(ctx, diarization.DiarizeRequest{
		AudioPath:   audioPath,
		NumSpeakers: task.NumSpeakers,
		MinSpeakers: task.MinSpeakers,
		MaxSpeakers: task.MaxSpeakers,
	})
	if err != nil {
		p.metrics.RecordBackendError(ctx, p.diar.Name(), "diarization")
		return &taskError{code: codeDiarizationError, err: fmt.Errorf("diarize: %w", err)}
	}
	p.metrics.RecordDiarizationDuration(ctx, p.diar.Name(), time.Since(diarStart))

	p.progress(ctx, task.JobID, progressResults, msgResults)
	segments := align.Relabel(res.Segments)
	overlaps := align.DetectOverlaps(segments)

	payload, err := json.Marshal(map[string]any{
		"speakers": align.SpeakerStats(segments),
		"segments": segments,
		"overlaps": overlaps,
		"stats":    diarizationStats(res, segments),
		"rttm":     align.RTTM(segments, task.JobID),
	})
	if err != nil {
		return &taskError{code: codeInternal, permanent: true,
			err: fmt.Errorf("marshal result: %w", err)}
	}
	if err := p.store.SetResult(ctx, task.JobID, payload, ""); err != nil {
		return &taskError{code: codeInternal, err: fmt.Errorf("complete job: %w", err)}
	}
	return nil
}

// progress reports a milestone; failures are logged, never fatal.
func (p *Pool) progress(ctx context.Context, jobID string, percent int, message string) {
	if err := p.store.UpdateProgress(ctx, jobID, percent, message); err != nil {
		p.log.Warn("progress update failed",
			"job_id", jobID, "percent", percent, "error", err)
	}
}

// fetchAudio materialises the task's audio to a local temp file. The caller
// must invoke cleanup when done.
func (p *Pool) fetchAudio(ctx context.Context, task *queue.Task) (path string, cleanup func(), err error) {
	var src io.ReadCloser
	var name string

	switch {
	case task.BlobKey != "":
		rc, err := p.blobs.Get(ctx, task.BlobKey)
		if err != nil {
			return "", nil, &taskError{code: codeInternal,
				err: fmt.Errorf("fetch blob %s: %w", task.BlobKey, err)}
		}
		src, name = rc, task.BlobKey
	case task.AudioURL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.AudioURL, nil)
		if err != nil {
			return "", nil, &taskError{code: codeInternal, permanent: true,
				err: fmt.Errorf("build download request: %w", err)}
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return "", nil, &taskError{code: codeInternal,
				err: fmt.Errorf("download audio: %w", err)}
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", nil, &taskError{code: codeInternal,
				permanent: resp.StatusCode >= 400 && resp.StatusCode < 500,
				err:       fmt.Errorf("download audio: source returned %d", resp.StatusCode)}
		}
		src, name = resp.Body, task.AudioURL
	default:
		return "", nil, &taskError{code: codeInternal, permanent: true,
			err: fmt.Errorf("task has neither blob key nor audio url")}
	}
	defer src.Close()

	f, err := os.CreateTemp("", "lexia-audio-*"+filepath.Ext(name))
	if err != nil {
		return "", nil, &taskError{code: codeInternal, err: fmt.Errorf("create temp file: %w", err)}
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, &taskError{code: codeInternal,
			err: fmt.Errorf("write temp audio: %w", err)}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, &taskError{code: codeInternal, err: fmt.Errorf("close temp audio: %w", err)}
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// ── seconds → milliseconds conversion ────────────────────────────────────────

func secToMS(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

func convertWords(in []stt.Word) []types.Word {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Word, len(in))
	for i, w := range in {
		out[i] = types.Word{
			Text:       w.Text,
			StartMS:    secToMS(w.Start),
			EndMS:      secToMS(w.End),
			Confidence: w.Confidence,
		}
	}
	return out
}

func convertSegments(in []stt.Segment) []types.Segment {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Segment, len(in))
	for i, s := range in {
		out[i] = types.Segment{
			ID:         s.ID,
			Text:       s.Text,
			StartMS:    secToMS(s.Start),
			EndMS:      secToMS(s.End),
			Confidence: s.Confidence,
		}
	}
	return out
}

// meanConfidence averages word confidences, falling back to segment
// confidences when the backend produced no word timing.
func meanConfidence(words []types.Word, segments []types.Segment) float64 {
	if len(words) > 0 {
		var sum float64
		for _, w := range words {
			sum += w.Confidence
		}
		return sum / float64(len(words))
	}
	if len(segments) > 0 {
		var sum float64
		for _, s := range segments {
			sum += s.Confidence
		}
		return sum / float64(len(segments))
	}
	return 0
}

func diarizationStats(res *diarization.Result, segments []types.SpeakerSegment) *types.DiarizationStats {
	overlaps := align.DetectOverlaps(segments)
	return &types.DiarizationStats{
		Version:           types.StatsVersion,
		Model:             res.Model,
		AudioDurationMS:   secToMS(res.Duration),
		NumSpeakers:       len(align.SpeakerSet(segments)),
		NumSegments:       len(segments),
		NumOverlaps:       len(overlaps),
		OverlapDurationMS: align.TotalOverlapMS(overlaps),
		ProcessingTimeMS:  secToMS(res.ProcessingTime),
	}
}

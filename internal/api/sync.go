package api

import (
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexia-ai/lexia/internal/align"
	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	"github.com/lexia-ai/lexia/pkg/types"
)

// syncTranscriptionResponse is the blocking endpoint's body. Nothing is
// persisted; the id exists only so callers can correlate logs.
type syncTranscriptionResponse struct {
	ID                 string          `json:"id"`
	Text               string          `json:"text"`
	Words              []types.Word    `json:"words,omitempty"`
	Segments           []types.Segment `json:"segments,omitempty"`
	DetectedLanguage   string          `json:"detected_language,omitempty"`
	LanguageConfidence float64         `json:"language_confidence,omitempty"`
	Confidence         float64         `json:"confidence,omitempty"`
	DurationMS         int64           `json:"duration_ms"`
	CreatedAt          time.Time       `json:"created_at"`
}

// handleSyncTranscription transcribes short audio inline: upload only, the
// tighter sync size cap, response written when inference finishes.
func (s *Server) handleSyncTranscription(w http.ResponseWriter, r *http.Request) {
	src, err := parseAudioSource(r, s.maxSyncMB)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}
	defer src.Close()
	if src.File == nil {
		badRequest(w, "missing_audio_source", "audio",
			"sync endpoints require an uploaded audio file")
		return
	}

	path, cleanup, err := s.spoolUpload(src)
	if err != nil {
		s.log.Error("spool sync upload failed", "error", err)
		serverError(w)
		return
	}
	defer cleanup()

	res, err := s.stt.Transcribe(r.Context(), stt.TranscribeRequest{
		AudioPath:      path,
		Language:       strings.TrimSpace(r.FormValue("language_code")),
		WordTimestamps: true,
	})
	if err != nil {
		s.log.Error("sync transcription failed", "error", err, "backend", s.stt.Name())
		s.metrics.RecordBackendError(r.Context(), s.stt.Name(), "transcribe")
		writeError(w, http.StatusBadGateway, errTypeServer, "stt_service_error", "",
			"speech-to-text backend failed")
		return
	}

	words := wordsToMS(res.Words)
	segments := segmentsToMS(res.Segments)
	writeJSON(w, http.StatusOK, syncTranscriptionResponse{
		ID:                 uuid.NewString(),
		Text:               res.Text,
		Words:              words,
		Segments:           segments,
		DetectedLanguage:   res.Language,
		LanguageConfidence: res.LanguageConfidence,
		Confidence:         meanWordConfidence(words),
		DurationMS:         msFromSec(res.Duration),
		CreatedAt:          time.Now().UTC(),
	})
}

// syncDiarizationResponse mirrors the async diarization result payload.
type syncDiarizationResponse struct {
	ID        string                 `json:"id"`
	Speakers  []types.Speaker        `json:"speakers"`
	Segments  []types.SpeakerSegment `json:"segments"`
	Overlaps  []types.OverlapSegment `json:"overlaps"`
	Stats     types.DiarizationStats `json:"stats"`
	RTTM      string                 `json:"rttm"`
	CreatedAt time.Time              `json:"created_at"`
}

// handleSyncDiarization diarizes short audio inline.
func (s *Server) handleSyncDiarization(w http.ResponseWriter, r *http.Request) {
	src, err := parseAudioSource(r, s.maxSyncMB)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}
	defer src.Close()
	if src.File == nil {
		badRequest(w, "missing_audio_source", "audio",
			"sync endpoints require an uploaded audio file")
		return
	}

	path, cleanup, err := s.spoolUpload(src)
	if err != nil {
		s.log.Error("spool sync upload failed", "error", err)
		serverError(w)
		return
	}
	defer cleanup()

	res, err := s.diarizer.Diarize(r.Context(), diarization.DiarizeRequest{
		AudioPath:   path,
		NumSpeakers: formInt(r.FormValue("num_speakers")),
		MinSpeakers: formInt(r.FormValue("min_speakers")),
		MaxSpeakers: formInt(r.FormValue("max_speakers")),
	})
	if err != nil {
		s.log.Error("sync diarization failed", "error", err, "backend", s.diarizer.Name())
		s.metrics.RecordBackendError(r.Context(), s.diarizer.Name(), "diarize")
		writeError(w, http.StatusBadGateway, errTypeServer, "diarization_service_error", "",
			"diarization backend failed")
		return
	}

	id := uuid.NewString()
	segments := align.Relabel(res.Segments)
	overlaps := align.DetectOverlaps(segments)
	writeJSON(w, http.StatusOK, syncDiarizationResponse{
		ID:       id,
		Speakers: align.SpeakerStats(segments),
		Segments: segments,
		Overlaps: overlaps,
		Stats: types.DiarizationStats{
			Version:           types.StatsVersion,
			Model:             res.Model,
			AudioDurationMS:   msFromSec(res.Duration),
			NumSpeakers:       len(align.SpeakerSet(segments)),
			NumSegments:       len(segments),
			NumOverlaps:       len(overlaps),
			OverlapDurationMS: align.TotalOverlapMS(overlaps),
			ProcessingTimeMS:  msFromSec(res.ProcessingTime),
		},
		RTTM:      align.RTTM(segments, id),
		CreatedAt: time.Now().UTC(),
	})
}

// spoolUpload copies the multipart file to a temp path the backends can
// read. The cleanup func removes it.
func (s *Server) spoolUpload(src *audioSource) (string, func(), error) {
	f, err := os.CreateTemp("", "lexia-sync-*"+filepath.Ext(src.Filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(f, src.File); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

// msFromSec converts a backend's float seconds to wire milliseconds.
func msFromSec(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

func wordsToMS(in []stt.Word) []types.Word {
	out := make([]types.Word, len(in))
	for i, w := range in {
		out[i] = types.Word{
			Text:       w.Text,
			StartMS:    msFromSec(w.Start),
			EndMS:      msFromSec(w.End),
			Confidence: w.Confidence,
		}
	}
	return out
}

func segmentsToMS(in []stt.Segment) []types.Segment {
	out := make([]types.Segment, len(in))
	for i, seg := range in {
		out[i] = types.Segment{
			ID:         seg.ID,
			Text:       seg.Text,
			StartMS:    msFromSec(seg.Start),
			EndMS:      msFromSec(seg.End),
			Confidence: seg.Confidence,
		}
	}
	return out
}

func meanWordConfidence(words []types.Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

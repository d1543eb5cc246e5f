// Package types defines the shared value types used across all Lexia packages.
//
// These types form the lingua franca between the API surface, the job store,
// the worker pipelines, and the alignment engine. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
//
// All times are integer milliseconds. Compute backends report float seconds
// internally; the worker boundary converts before anything reaches these
// types. The single exception is RTTM output, which is seconds by external
// convention.
package types

// Word is a single recognised word with its timing and confidence.
type Word struct {
	// Text is the word as transcribed, including any attached punctuation.
	Text string `json:"text"`

	// StartMS is the word onset in milliseconds from the start of the audio.
	StartMS int64 `json:"start"`

	// EndMS is the word offset in milliseconds. Always ≥ StartMS.
	EndMS int64 `json:"end"`

	// Confidence is the recognition confidence (0.0–1.0).
	Confidence float64 `json:"confidence"`

	// Speaker is the public speaker label ("A", "B", …) once diarization has
	// been applied. Empty when speaker labels were not requested or not yet
	// assigned.
	Speaker string `json:"speaker,omitempty"`
}

// Segment is a contiguous stretch of transcribed speech as reported by the
// STT backend. Segments carry no speaker attribution; see SpeakerSegment.
type Segment struct {
	// ID is the backend-assigned segment index.
	ID int `json:"id"`

	// Text is the transcribed content of the segment.
	Text string `json:"text"`

	// StartMS / EndMS bound the segment in milliseconds.
	StartMS int64 `json:"start"`
	EndMS   int64 `json:"end"`

	// Confidence is the backend's confidence for the segment (0.0–1.0).
	Confidence float64 `json:"confidence"`
}

// SpeakerSegment is a contiguous time interval attributed to one speaker by
// the diarization backend. Speaker holds the public letter label after
// relabeling ("A", "B", …); raw backend identifiers never leave the worker.
type SpeakerSegment struct {
	Speaker string `json:"speaker"`

	StartMS int64 `json:"start"`
	EndMS   int64 `json:"end"`

	// Confidence is the diarization confidence for this interval (0.0–1.0).
	Confidence float64 `json:"confidence"`
}

// Utterance pairs a speaker segment with the transcript text spoken in that
// interval. Utterances are produced exclusively by the alignment engine.
type Utterance struct {
	Speaker string `json:"speaker"`

	StartMS int64 `json:"start"`
	EndMS   int64 `json:"end"`

	// Text is the aligned transcript text for the interval. May be empty when
	// no words overlap the segment.
	Text string `json:"text"`

	// Confidence is inherited from the underlying speaker segment.
	Confidence float64 `json:"confidence"`

	// Words lists the individual words assigned to this utterance when word
	// timestamps were available (precise alignment only).
	Words []Word `json:"words,omitempty"`
}

// OverlapSegment marks an interval during which two or more distinct
// speakers were talking at once.
type OverlapSegment struct {
	// Speakers holds the sorted public labels of the overlapping speakers.
	// Always ≥ 2 entries, all distinct.
	Speakers []string `json:"speakers"`

	StartMS int64 `json:"start"`
	EndMS   int64 `json:"end"`

	// DurationMS = EndMS − StartMS.
	DurationMS int64 `json:"duration"`
}

// Speaker summarises one speaker's share of a diarized recording.
type Speaker struct {
	// ID is the public letter label ("A", "B", …).
	ID string `json:"id"`

	// TotalDurationMS is the summed duration of all segments attributed to
	// this speaker.
	TotalDurationMS int64 `json:"total_duration"`

	// NumSegments is the number of segments attributed to this speaker.
	NumSegments int `json:"num_segments"`

	// AvgSegmentDurationMS = TotalDurationMS / NumSegments (integer division).
	AvgSegmentDurationMS int64 `json:"avg_segment_duration"`

	// Percentage is this speaker's share of total speaking time, rounded to
	// two decimals. Percentages across all speakers sum to 100 ± 0.05.
	Percentage float64 `json:"percentage"`
}

// DiarizationStats captures summary metadata for a diarization result.
type DiarizationStats struct {
	// Version identifies the stats schema. Currently "1.0".
	Version string `json:"version"`

	// Model is the diarization model that produced the result.
	Model string `json:"model"`

	// AudioDurationMS is the total duration of the analysed audio.
	AudioDurationMS int64 `json:"audio_duration"`

	NumSpeakers int `json:"num_speakers"`
	NumSegments int `json:"num_segments"`

	// NumOverlaps counts detected overlap intervals; OverlapDurationMS sums
	// their lengths.
	NumOverlaps       int   `json:"num_overlaps"`
	OverlapDurationMS int64 `json:"overlap_duration"`

	// ProcessingTimeMS is how long the diarization backend took.
	ProcessingTimeMS int64 `json:"processing_time"`
}

// StatsVersion is the current DiarizationStats schema version.
const StatsVersion = "1.0"

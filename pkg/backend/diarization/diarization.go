// Package diarization defines the Backend interface for speaker-diarization
// compute services.
//
// A diarization backend answers one question: who spoke when. It returns raw
// speaker turns with backend-native labels (e.g., "SPEAKER_00"); relabeling to
// the public letter labels and all downstream alignment work happens in the
// worker, never in a backend.
//
// Like the stt package, backends report times as float seconds. Conversion to
// integer milliseconds is the worker's job.
//
// Implementations must be safe for concurrent use.
package diarization

import "context"

// DiarizeRequest describes one diarization call.
type DiarizeRequest struct {
	// AudioPath is the local filesystem path of the audio to analyse.
	AudioPath string

	// NumSpeakers fixes the exact speaker count when the caller knows it.
	// Zero lets the backend estimate.
	NumSpeakers int

	// MinSpeakers / MaxSpeakers bound the backend's speaker-count search when
	// NumSpeakers is zero. Zero means unbounded.
	MinSpeakers int
	MaxSpeakers int

	// MinSegmentSec drops detected turns shorter than this many seconds.
	// Zero keeps everything.
	MinSegmentSec float64

	// MergeGapsSec merges consecutive same-speaker turns separated by less
	// than this many seconds. Zero disables merging.
	MergeGapsSec float64
}

// Backend is the abstraction over any speaker-diarization engine.
type Backend interface {
	// Diarize runs speaker diarization over the audio at req.AudioPath.
	// Long-running: implementations apply their own generous timeout on top
	// of ctx.
	Diarize(ctx context.Context, req DiarizeRequest) (*Result, error)

	// Health reports whether the backend can currently serve requests.
	Health(ctx context.Context) error

	// Name identifies the backend implementation (e.g., "pyannote").
	Name() string
}

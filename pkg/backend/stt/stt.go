// Package stt defines the Backend interface for speech-to-text compute
// services.
//
// An STT backend wraps a transcription engine (a remote Whisper-compatible
// service, the OpenAI audio API, or an in-process whisper.cpp model) and
// exposes a uniform batch interface: one audio file in, one Result out. The
// worker owns the call; backends never touch job state.
//
// Backends report times as float seconds — the convention of the underlying
// engines. Conversion to the public millisecond domain happens at the worker
// boundary, never inside a backend.
//
// Implementations must be safe for concurrent use. A single backend value is
// shared by all worker goroutines in a process.
package stt

import "context"

// TranscribeRequest describes one transcription call.
type TranscribeRequest struct {
	// AudioPath is the local filesystem path of the audio to transcribe. The
	// worker materialises blobs to a temp file before calling the backend.
	AudioPath string

	// Language is the ISO 639-1 code to transcribe in (e.g., "fr").
	// Empty lets the backend auto-detect.
	Language string

	// WordTimestamps requests per-word timing in the result. Backends that
	// cannot produce word timing return Result.Words == nil, and alignment
	// falls back to the proportional path.
	WordTimestamps bool
}

// Backend is the abstraction over any speech-to-text engine.
type Backend interface {
	// Transcribe runs speech recognition over the audio at req.AudioPath and
	// returns the full result. Long-running: implementations apply their own
	// generous timeout on top of ctx.
	Transcribe(ctx context.Context, req TranscribeRequest) (*Result, error)

	// Health reports whether the backend can currently serve requests.
	// Used by the /health endpoint and the worker's circuit breaker probes.
	Health(ctx context.Context) error

	// Name identifies the backend implementation (e.g., "whisper", "openai").
	Name() string
}

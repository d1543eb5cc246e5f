package diarization

// Result is the complete output of one diarization call. All times are float
// seconds from the start of the audio.
type Result struct {
	// Segments are the detected speaker turns in chronological order.
	// Speaker labels are backend-native (e.g., "SPEAKER_00"); the worker
	// relabels them to letters.
	Segments []Segment `json:"segments"`

	// NumSpeakers is the number of distinct speakers the backend detected.
	NumSpeakers int `json:"num_speakers"`

	// Duration is the audio length in seconds as measured by the engine.
	Duration float64 `json:"duration"`

	// ProcessingTime is how long the backend spent on the call, in seconds.
	ProcessingTime float64 `json:"processing_time"`

	// Model identifies the diarization model that produced the result.
	Model string `json:"model"`
}

// Segment is one speaker turn with seconds-domain timing.
type Segment struct {
	// Speaker is the backend-native label for the turn.
	Speaker string `json:"speaker"`

	Start float64 `json:"start"`
	End   float64 `json:"end"`

	Confidence float64 `json:"confidence"`
}

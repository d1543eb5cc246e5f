package stt

// Result is the complete output of one transcription call. All times are
// float seconds from the start of the audio.
type Result struct {
	// Text is the full transcript.
	Text string `json:"text"`

	// Segments are the engine's phrase-level chunks, in order.
	Segments []Segment `json:"segments"`

	// Words carries per-word timing when requested and supported; nil
	// otherwise.
	Words []Word `json:"words"`

	// Language is the detected (or requested) ISO 639-1 language code.
	Language string `json:"language"`

	// LanguageConfidence is the detection confidence (0.0–1.0). Zero when the
	// language was fixed by the request.
	LanguageConfidence float64 `json:"language_confidence"`

	// Duration is the audio length in seconds as measured by the engine.
	Duration float64 `json:"duration"`
}

// Segment is a phrase-level chunk of the transcript.
type Segment struct {
	ID         int     `json:"id"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`

	// Words are the segment's words when word timing was requested.
	Words []Word `json:"words,omitempty"`
}

// Word is a single recognised word with seconds-domain timing.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

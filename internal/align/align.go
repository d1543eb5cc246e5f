// Package align merges speech-to-text output with speaker-diarization output
// into speaker-attributed utterances.
//
// The package is pure computation over the millisecond-domain value types in
// pkg/types: no I/O, no clocks, no randomness. Given the same inputs it
// always produces the same outputs, which is what makes job results
// reproducible across worker restarts and retries.
//
// Two alignment paths exist. When word timestamps are available each
// diarization segment collects the words whose intervals overlap it (precise
// path). Without word timing the transcript is split on whitespace and
// tokens are distributed across segments in proportion to segment duration
// (proportional path).
package align

import (
	"slices"
	"strings"

	"github.com/lexia-ai/lexia/pkg/types"
)

// Options tunes segment pre-processing before alignment.
type Options struct {
	// MergeGapsMS coalesces consecutive same-speaker segments separated by a
	// gap of at most this many milliseconds. Zero disables merging.
	MergeGapsMS int64

	// MinSegmentMS drops segments shorter than this many milliseconds before
	// alignment. Zero keeps everything.
	MinSegmentMS int64
}

// Align produces one utterance per diarization segment, attributing
// transcript text to speakers.
//
// text is the full transcript; words carries per-word timing when the STT
// backend produced it (nil or empty selects the proportional path). segments
// are the relabeled diarization segments. The returned utterances preserve
// segment order and timing exactly: Σ(U.end−U.start) = Σ(S.end−S.start).
func Align(text string, words []types.Word, segments []types.SpeakerSegment, opts Options) []types.Utterance {
	segs := prepare(segments, opts)
	if len(segs) == 0 {
		return []types.Utterance{}
	}
	if len(words) > 0 {
		return alignPrecise(words, segs)
	}
	return alignProportional(text, segs)
}

// prepare sorts segments by start time (stable) and applies the minimum
// duration filter and gap merging from opts.
func prepare(segments []types.SpeakerSegment, opts Options) []types.SpeakerSegment {
	segs := slices.Clone(segments)
	slices.SortStableFunc(segs, func(a, b types.SpeakerSegment) int {
		switch {
		case a.StartMS < b.StartMS:
			return -1
		case a.StartMS > b.StartMS:
			return 1
		}
		return 0
	})

	if opts.MinSegmentMS > 0 {
		segs = slices.DeleteFunc(segs, func(s types.SpeakerSegment) bool {
			return s.EndMS-s.StartMS < opts.MinSegmentMS
		})
	}
	if opts.MergeGapsMS > 0 {
		segs = mergeGaps(segs, opts.MergeGapsMS)
	}
	return segs
}

// mergeGaps coalesces consecutive same-speaker segments whose gap is at most
// maxGapMS. The merged segment spans both and carries the lower confidence.
// Input must be sorted by start time.
func mergeGaps(segs []types.SpeakerSegment, maxGapMS int64) []types.SpeakerSegment {
	if len(segs) == 0 {
		return segs
	}
	merged := make([]types.SpeakerSegment, 0, len(segs))
	cur := segs[0]
	for _, s := range segs[1:] {
		if s.Speaker == cur.Speaker && s.StartMS-cur.EndMS <= maxGapMS {
			if s.EndMS > cur.EndMS {
				cur.EndMS = s.EndMS
			}
			if s.Confidence < cur.Confidence {
				cur.Confidence = s.Confidence
			}
			continue
		}
		merged = append(merged, cur)
		cur = s
	}
	return append(merged, cur)
}

// alignPrecise assigns each segment the words whose intervals overlap it.
// A word straddling a segment boundary joins every segment it overlaps;
// zero-duration segments collect no words.
func alignPrecise(words []types.Word, segs []types.SpeakerSegment) []types.Utterance {
	utterances := make([]types.Utterance, 0, len(segs))
	for _, s := range segs {
		var (
			parts    []string
			assigned []types.Word
		)
		for _, w := range words {
			if w.StartMS < s.EndMS && w.EndMS > s.StartMS {
				parts = append(parts, w.Text)
				attributed := w
				attributed.Speaker = s.Speaker
				assigned = append(assigned, attributed)
			}
		}
		utterances = append(utterances, types.Utterance{
			Speaker:    s.Speaker,
			StartMS:    s.StartMS,
			EndMS:      s.EndMS,
			Text:       strings.TrimSpace(strings.Join(parts, " ")),
			Confidence: s.Confidence,
			Words:      assigned,
		})
	}
	return utterances
}

// alignProportional splits text into whitespace tokens and deals them out
// across segments in proportion to segment duration. Each segment gets at
// least one token while tokens remain; leftovers after the last segment are
// appended to the final utterance so no token is ever dropped.
func alignProportional(text string, segs []types.SpeakerSegment) []types.Utterance {
	tokens := strings.Fields(text)

	var totalDur int64
	for _, s := range segs {
		totalDur += s.EndMS - s.StartMS
	}

	utterances := make([]types.Utterance, 0, len(segs))
	if len(tokens) == 0 || totalDur <= 0 {
		// Nothing to distribute; preserve segment timing with empty text.
		for _, s := range segs {
			utterances = append(utterances, types.Utterance{
				Speaker:    s.Speaker,
				StartMS:    s.StartMS,
				EndMS:      s.EndMS,
				Confidence: s.Confidence,
			})
		}
		return utterances
	}

	cursor := 0
	n := int64(len(tokens))
	for _, s := range segs {
		share := int((s.EndMS - s.StartMS) * n / totalDur)
		if share < 1 {
			share = 1
		}
		if cursor+share > len(tokens) {
			share = len(tokens) - cursor
		}
		utterances = append(utterances, types.Utterance{
			Speaker:    s.Speaker,
			StartMS:    s.StartMS,
			EndMS:      s.EndMS,
			Text:       strings.Join(tokens[cursor:cursor+share], " "),
			Confidence: s.Confidence,
		})
		cursor += share
	}

	// Leftover tokens ride along with the last utterance.
	if cursor < len(tokens) {
		last := &utterances[len(utterances)-1]
		rest := strings.Join(tokens[cursor:], " ")
		if last.Text == "" {
			last.Text = rest
		} else {
			last.Text += " " + rest
		}
	}
	return utterances
}

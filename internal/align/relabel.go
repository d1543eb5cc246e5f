package align

import (
	"slices"

	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/types"
)

// Relabel converts backend-native speaker labels to the public letter labels
// "A", "B", … in first-appearance order: segments are scanned sorted by start
// time and each novel raw label is assigned the next letter. The returned
// segments are in the scan order with times converted from float seconds to
// integer milliseconds.
//
// The mapping is deterministic — the same segment list always yields the
// same letters — and must be applied uniformly across utterances, overlaps,
// and speaker statistics, which is why callers relabel once, up front.
func Relabel(raw []diarization.Segment) []types.SpeakerSegment {
	sorted := slices.Clone(raw)
	slices.SortStableFunc(sorted, func(a, b diarization.Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})

	mapping := make(map[string]string)
	out := make([]types.SpeakerSegment, 0, len(sorted))
	for _, s := range sorted {
		label, ok := mapping[s.Speaker]
		if !ok {
			label = letterLabel(len(mapping))
			mapping[s.Speaker] = label
		}
		out = append(out, types.SpeakerSegment{
			Speaker:    label,
			StartMS:    int64(s.Start * 1000),
			EndMS:      int64(s.End * 1000),
			Confidence: s.Confidence,
		})
	}
	return out
}

// letterLabel returns the label for the index-th distinct speaker:
// A–Z for the first 26, then AA, AB, … in spreadsheet-column style.
func letterLabel(index int) string {
	label := ""
	n := index
	for {
		label = string(rune('A'+n%26)) + label
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return label
}

// SpeakerSet returns the distinct speaker labels present in segments, in
// first-appearance order.
func SpeakerSet(segments []types.SpeakerSegment) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range segments {
		if !seen[s.Speaker] {
			seen[s.Speaker] = true
			out = append(out, s.Speaker)
		}
	}
	return out
}

package align

import (
	"slices"

	"github.com/lexia-ai/lexia/pkg/types"
)

// DetectOverlaps finds intervals where two distinct speakers talk at once.
// For every unordered pair of segments with different speakers, the clipped
// intersection [max(starts), min(ends)) is emitted when non-empty. Speaker
// labels within an overlap are sorted so the pair is canonical regardless of
// segment order.
func DetectOverlaps(segments []types.SpeakerSegment) []types.OverlapSegment {
	overlaps := []types.OverlapSegment{}
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			a, b := segments[i], segments[j]
			if a.Speaker == b.Speaker {
				continue
			}
			start := max(a.StartMS, b.StartMS)
			end := min(a.EndMS, b.EndMS)
			if start >= end {
				continue
			}
			speakers := []string{a.Speaker, b.Speaker}
			slices.Sort(speakers)
			overlaps = append(overlaps, types.OverlapSegment{
				Speakers:   speakers,
				StartMS:    start,
				EndMS:      end,
				DurationMS: end - start,
			})
		}
	}
	return overlaps
}

// TotalOverlapMS sums the durations of all detected overlaps.
func TotalOverlapMS(overlaps []types.OverlapSegment) int64 {
	var total int64
	for _, o := range overlaps {
		total += o.DurationMS
	}
	return total
}

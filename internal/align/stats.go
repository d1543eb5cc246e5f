package align

import (
	"math"
	"slices"

	"github.com/lexia-ai/lexia/pkg/types"
)

// SpeakerStats computes per-speaker speaking-time statistics from relabeled
// segments. Speakers are returned in label order (A, B, …). Percentages are
// rounded to two decimals, so their sum may drift from 100 by up to 0.05.
func SpeakerStats(segments []types.SpeakerSegment) []types.Speaker {
	type acc struct {
		total int64
		count int
	}
	byLabel := make(map[string]*acc)
	var totalAll int64
	for _, s := range segments {
		a := byLabel[s.Speaker]
		if a == nil {
			a = &acc{}
			byLabel[s.Speaker] = a
		}
		dur := s.EndMS - s.StartMS
		a.total += dur
		a.count++
		totalAll += dur
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	// Letter labels sort correctly as strings up to Z; longer labels (AA…)
	// sort after all single letters because of the length tie-break.
	slices.SortFunc(labels, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return slices.Compare([]byte(a), []byte(b))
	})

	speakers := make([]types.Speaker, 0, len(labels))
	for _, l := range labels {
		a := byLabel[l]
		var pct float64
		if totalAll > 0 {
			pct = round2(float64(a.total) / float64(totalAll) * 100)
		}
		speakers = append(speakers, types.Speaker{
			ID:                   l,
			TotalDurationMS:      a.total,
			NumSegments:          a.count,
			AvgSegmentDurationMS: a.total / int64(a.count),
			Percentage:           pct,
		})
	}
	return speakers
}

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

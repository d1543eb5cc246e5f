package align

import (
	"math"
	"testing"

	"github.com/lexia-ai/lexia/pkg/types"
)

func TestSpeakerStats(t *testing.T) {
	segs := []types.SpeakerSegment{
		seg("A", 0, 3000, 1.0),
		seg("B", 3000, 4000, 1.0),
		seg("A", 4000, 6000, 1.0),
	}

	got := SpeakerStats(segs)

	if len(got) != 2 {
		t.Fatalf("len(speakers) = %d, want 2", len(got))
	}
	a := got[0]
	if a.ID != "A" || a.TotalDurationMS != 5000 || a.NumSegments != 2 {
		t.Errorf("speaker A = %+v, want 5000ms over 2 segments", a)
	}
	if a.AvgSegmentDurationMS != 2500 {
		t.Errorf("A.AvgSegmentDurationMS = %d, want 2500", a.AvgSegmentDurationMS)
	}
	if math.Abs(a.Percentage-83.33) > 0.001 {
		t.Errorf("A.Percentage = %v, want 83.33", a.Percentage)
	}
	b := got[1]
	if b.ID != "B" || b.TotalDurationMS != 1000 {
		t.Errorf("speaker B = %+v, want 1000ms", b)
	}
}

func TestSpeakerStatsPercentagesSumToHundred(t *testing.T) {
	tests := []struct {
		name string
		segs []types.SpeakerSegment
	}{
		{
			name: "thirds",
			segs: []types.SpeakerSegment{
				seg("A", 0, 1000, 1), seg("B", 1000, 2000, 1), seg("C", 2000, 3000, 1),
			},
		},
		{
			name: "uneven",
			segs: []types.SpeakerSegment{
				seg("A", 0, 333, 1), seg("B", 333, 1000, 1), seg("C", 1000, 1001, 1),
			},
		},
		{
			name: "single speaker",
			segs: []types.SpeakerSegment{seg("A", 0, 12345, 1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sum float64
			for _, sp := range SpeakerStats(tt.segs) {
				sum += sp.Percentage
			}
			// 2-decimal rounding may drift the sum by up to 0.05.
			if math.Abs(sum-100) > 0.05 {
				t.Errorf("Σ percentages = %v, want 100 ± 0.05", sum)
			}
		})
	}
}

func TestSpeakerStatsEmpty(t *testing.T) {
	if got := SpeakerStats(nil); len(got) != 0 {
		t.Errorf("SpeakerStats(nil) = %v, want empty", got)
	}
}

package align

import (
	"reflect"
	"testing"

	"github.com/lexia-ai/lexia/pkg/backend/diarization"
)

func rawSeg(speaker string, start, end float64) diarization.Segment {
	return diarization.Segment{Speaker: speaker, Start: start, End: end, Confidence: 1.0}
}

func TestRelabelFirstAppearanceOrder(t *testing.T) {
	raw := []diarization.Segment{
		rawSeg("SPEAKER_07", 0.0, 1.5),
		rawSeg("SPEAKER_02", 1.5, 3.0),
		rawSeg("SPEAKER_07", 3.0, 4.0),
	}

	got := Relabel(raw)

	wantLabels := []string{"A", "B", "A"}
	for i, s := range got {
		if s.Speaker != wantLabels[i] {
			t.Errorf("segment[%d].Speaker = %q, want %q", i, s.Speaker, wantLabels[i])
		}
	}
}

func TestRelabelConvertsToMilliseconds(t *testing.T) {
	got := Relabel([]diarization.Segment{rawSeg("SPEAKER_00", 1.234, 5.678)})

	if got[0].StartMS != 1234 || got[0].EndMS != 5678 {
		t.Errorf("segment timing = [%d, %d], want [1234, 5678]", got[0].StartMS, got[0].EndMS)
	}
}

func TestRelabelSortsByStartBeforeAssigning(t *testing.T) {
	// SPEAKER_03 appears first in the slice but second in time: the earliest
	// speaker gets "A" regardless of input order.
	raw := []diarization.Segment{
		rawSeg("SPEAKER_03", 5.0, 6.0),
		rawSeg("SPEAKER_01", 0.0, 1.0),
	}

	got := Relabel(raw)

	if got[0].Speaker != "A" || got[0].StartMS != 0 {
		t.Errorf("first segment = %+v, want speaker A at 0", got[0])
	}
	if got[1].Speaker != "B" {
		t.Errorf("second segment speaker = %q, want B", got[1].Speaker)
	}
}

func TestRelabelStable(t *testing.T) {
	raw := []diarization.Segment{
		rawSeg("x", 0.0, 1.0),
		rawSeg("y", 1.0, 2.0),
		rawSeg("z", 2.0, 3.0),
		rawSeg("y", 3.0, 4.0),
	}

	first := Relabel(raw)
	second := Relabel(raw)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("relabeling is not stable:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestLetterLabelBeyondZ(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
	}
	for _, tt := range tests {
		if got := letterLabel(tt.index); got != tt.want {
			t.Errorf("letterLabel(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestSpeakerSet(t *testing.T) {
	segs := Relabel([]diarization.Segment{
		rawSeg("SPEAKER_00", 0.0, 1.0),
		rawSeg("SPEAKER_01", 1.0, 2.0),
		rawSeg("SPEAKER_00", 2.0, 3.0),
	})

	got := SpeakerSet(segs)
	want := []string{"A", "B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SpeakerSet = %v, want %v", got, want)
	}
}

package align

import (
	"strings"
	"testing"

	"github.com/lexia-ai/lexia/pkg/types"
)

func seg(speaker string, start, end int64, conf float64) types.SpeakerSegment {
	return types.SpeakerSegment{Speaker: speaker, StartMS: start, EndMS: end, Confidence: conf}
}

func word(text string, start, end int64, conf float64) types.Word {
	return types.Word{Text: text, StartMS: start, EndMS: end, Confidence: conf}
}

func TestAlignPreciseSingleSegment(t *testing.T) {
	words := []types.Word{
		word("Bonjour,", 0, 472, 0.9),
		word("bienvenue", 472, 944, 0.9),
	}
	segs := []types.SpeakerSegment{seg("A", 0, 25040, 1.0)}

	got := Align("Bonjour, bienvenue", words, segs, Options{})

	if len(got) != 1 {
		t.Fatalf("len(utterances) = %d, want 1", len(got))
	}
	u := got[0]
	if u.Speaker != "A" || u.StartMS != 0 || u.EndMS != 25040 {
		t.Errorf("utterance = %+v, want speaker A spanning [0, 25040]", u)
	}
	if u.Text != "Bonjour, bienvenue" {
		t.Errorf("Text = %q, want %q", u.Text, "Bonjour, bienvenue")
	}
	if u.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", u.Confidence)
	}
	if len(u.Words) != 2 || u.Words[0].Speaker != "A" {
		t.Errorf("Words = %+v, want both words attributed to A", u.Words)
	}
}

func TestAlignPreciseStraddlingWord(t *testing.T) {
	// The middle word spans the boundary between the two segments and must
	// appear in both utterances.
	words := []types.Word{
		word("one", 0, 900, 0.9),
		word("two", 900, 1100, 0.9),
		word("three", 1100, 2000, 0.9),
	}
	segs := []types.SpeakerSegment{
		seg("A", 0, 1000, 1.0),
		seg("B", 1000, 2000, 1.0),
	}

	got := Align("one two three", words, segs, Options{})

	if len(got) != 2 {
		t.Fatalf("len(utterances) = %d, want 2", len(got))
	}
	if got[0].Text != "one two" {
		t.Errorf("utterance A text = %q, want %q", got[0].Text, "one two")
	}
	if got[1].Text != "two three" {
		t.Errorf("utterance B text = %q, want %q", got[1].Text, "two three")
	}
}

func TestAlignPreciseZeroDurationSegment(t *testing.T) {
	words := []types.Word{word("hello", 0, 500, 0.9)}
	segs := []types.SpeakerSegment{
		seg("A", 0, 500, 1.0),
		seg("B", 500, 500, 0.8),
	}

	got := Align("hello", words, segs, Options{})

	if len(got) != 2 {
		t.Fatalf("len(utterances) = %d, want 2", len(got))
	}
	if got[1].Text != "" {
		t.Errorf("zero-duration utterance text = %q, want empty", got[1].Text)
	}
	if got[1].StartMS != 500 || got[1].EndMS != 500 {
		t.Errorf("zero-duration utterance timing = [%d, %d], want preserved [500, 500]",
			got[1].StartMS, got[1].EndMS)
	}
}

func TestAlignProportional(t *testing.T) {
	// A covers 25% of the speaking time → ⌊0.25·4⌋ = 1 token. B takes the
	// remaining three.
	segs := []types.SpeakerSegment{
		seg("A", 0, 1000, 1.0),
		seg("B", 1000, 3000, 1.0),
	}

	got := Align("un deux trois quatre", nil, segs, Options{})

	if len(got) != 2 {
		t.Fatalf("len(utterances) = %d, want 2", len(got))
	}
	if got[0].Text != "un" {
		t.Errorf("utterance A text = %q, want %q", got[0].Text, "un")
	}
	if got[1].Text != "deux trois quatre" {
		t.Errorf("utterance B text = %q, want %q", got[1].Text, "deux trois quatre")
	}
}

func TestAlignProportionalConservesTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		segs []types.SpeakerSegment
	}{
		{
			name: "even split",
			text: "a b c d e f",
			segs: []types.SpeakerSegment{seg("A", 0, 1000, 1), seg("B", 1000, 2000, 1)},
		},
		{
			name: "tiny segment still gets one token",
			text: "a b c d e f g h",
			segs: []types.SpeakerSegment{seg("A", 0, 10, 1), seg("B", 10, 5000, 1)},
		},
		{
			name: "more segments than tokens",
			text: "only two",
			segs: []types.SpeakerSegment{
				seg("A", 0, 1000, 1), seg("B", 1000, 2000, 1), seg("C", 2000, 3000, 1),
			},
		},
		{
			name: "leftovers append to last",
			text: "t1 t2 t3 t4 t5 t6 t7",
			segs: []types.SpeakerSegment{seg("A", 0, 1000, 1), seg("B", 1000, 2000, 1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Align(tt.text, nil, tt.segs, Options{})

			var assigned int
			for _, u := range got {
				assigned += len(strings.Fields(u.Text))
			}
			want := len(strings.Fields(tt.text))
			if assigned != want {
				t.Errorf("assigned tokens = %d, want %d (conservation)", assigned, want)
			}
			if len(got) != len(tt.segs) {
				t.Errorf("len(utterances) = %d, want %d", len(got), len(tt.segs))
			}
		})
	}
}

func TestAlignProportionalEmptyTranscript(t *testing.T) {
	segs := []types.SpeakerSegment{seg("A", 0, 1000, 0.7), seg("B", 1000, 2000, 0.8)}

	got := Align("", nil, segs, Options{})

	if len(got) != 2 {
		t.Fatalf("len(utterances) = %d, want |S| = 2", len(got))
	}
	for i, u := range got {
		if u.Text != "" {
			t.Errorf("utterance[%d].Text = %q, want empty", i, u.Text)
		}
		if u.StartMS != segs[i].StartMS || u.EndMS != segs[i].EndMS {
			t.Errorf("utterance[%d] timing = [%d, %d], want segment timing preserved",
				i, u.StartMS, u.EndMS)
		}
	}
}

func TestAlignDurationPreserved(t *testing.T) {
	words := []types.Word{
		word("x", 100, 200, 0.5),
		word("y", 1500, 1700, 0.5),
	}
	segs := []types.SpeakerSegment{
		seg("B", 1200, 2000, 0.9),
		seg("A", 0, 1200, 0.8),
	}

	got := Align("x y", words, segs, Options{})

	var sumU, sumS int64
	for _, u := range got {
		if u.StartMS > u.EndMS {
			t.Errorf("utterance start %d > end %d", u.StartMS, u.EndMS)
		}
		sumU += u.EndMS - u.StartMS
	}
	for _, s := range segs {
		sumS += s.EndMS - s.StartMS
	}
	if sumU != sumS {
		t.Errorf("Σ utterance duration = %d, want Σ segment duration = %d", sumU, sumS)
	}
	// Segments must have been sorted: A first.
	if got[0].Speaker != "A" {
		t.Errorf("first utterance speaker = %q, want A (sorted by start)", got[0].Speaker)
	}
}

func TestAlignNoSegments(t *testing.T) {
	got := Align("some text", nil, nil, Options{})
	if len(got) != 0 {
		t.Errorf("len(utterances) = %d, want 0", len(got))
	}
}

func TestMergeGaps(t *testing.T) {
	segs := []types.SpeakerSegment{
		seg("A", 0, 1000, 0.9),
		seg("A", 1200, 2000, 0.7),  // 200ms gap, same speaker → merged
		seg("B", 2100, 3000, 1.0),  // different speaker → kept
		seg("B", 3600, 4000, 0.95), // 600ms gap → kept separate
	}

	got := Align("a b c d", nil, segs, Options{MergeGapsMS: 500})

	if len(got) != 3 {
		t.Fatalf("len(utterances) = %d, want 3 after merging", len(got))
	}
	first := got[0]
	if first.StartMS != 0 || first.EndMS != 2000 {
		t.Errorf("merged segment spans [%d, %d], want [0, 2000]", first.StartMS, first.EndMS)
	}
	if first.Confidence != 0.7 {
		t.Errorf("merged confidence = %v, want min 0.7", first.Confidence)
	}
}

func TestMinSegmentFilter(t *testing.T) {
	segs := []types.SpeakerSegment{
		seg("A", 0, 50, 1.0), // 50ms — dropped
		seg("B", 100, 2000, 1.0),
	}

	got := Align("hello world", nil, segs, Options{MinSegmentMS: 100})

	if len(got) != 1 {
		t.Fatalf("len(utterances) = %d, want 1 after filtering", len(got))
	}
	if got[0].Speaker != "B" {
		t.Errorf("surviving speaker = %q, want B", got[0].Speaker)
	}
}

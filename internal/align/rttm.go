package align

import (
	"fmt"
	"strings"

	"github.com/lexia-ai/lexia/pkg/types"
)

// RTTM renders segments in Rich Transcription Time Marked format:
//
//	SPEAKER <audio_id> 1 <start> <duration> <NA> <NA> <speaker> <NA> <NA>
//
// RTTM is the single place Lexia emits times in seconds rather than
// milliseconds; the external convention is float seconds with three
// decimals.
func RTTM(segments []types.SpeakerSegment, audioID string) string {
	if audioID == "" {
		audioID = "audio"
	}
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		startSec := float64(s.StartMS) / 1000.0
		durSec := float64(s.EndMS-s.StartMS) / 1000.0
		lines = append(lines, fmt.Sprintf("SPEAKER %s 1 %.3f %.3f <NA> <NA> %s <NA> <NA>",
			audioID, startSec, durSec, s.Speaker))
	}
	return strings.Join(lines, "\n")
}

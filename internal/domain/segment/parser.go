package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// markerRe matches either directive in a single left-to-right scan.
// Submatch layout: 1-2 voice marker and identifier, 3-4 pause marker
// and duration.
var markerRe = regexp.MustCompile(
	`(?i)(\[voice\s+([^\]]+)\]\s*:)|(\[pause\s*(\d+(?:\.\d+)?)\s*(?:s|sec|seconds)?\])`,
)

// Parse scans text and returns its segments in source order. Text
// between markers is trimmed and dropped when blank; markers never
// produce text segments. Blank input yields an empty sequence.
func Parse(text string) []Segment {
	segments := make([]Segment, 0, 8)
	last := 0

	for _, m := range markerRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			if before := strings.TrimSpace(text[last:m[0]]); before != "" {
				segments = append(segments, TextSegment{Content: before})
			}
		}
		switch {
		case m[2] >= 0:
			name := strings.TrimSpace(text[m[4]:m[5]])
			segments = append(segments, VoiceSegment{Name: name})
		case m[6] >= 0:
			seconds, err := strconv.ParseFloat(text[m[8]:m[9]], 64)
			if err == nil {
				segments = append(segments, PauseSegment{Seconds: seconds})
			}
		}
		last = m[1]
	}

	if tail := strings.TrimSpace(text[last:]); tail != "" {
		segments = append(segments, TextSegment{Content: tail})
	}

	return segments
}

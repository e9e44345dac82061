package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultCharsPerLine is the line width used for SRT cues of Latin text.
const DefaultCharsPerLine = 42

// Break points for wrapping cue text, in addition to spaces.
var punctuation = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, ';': {}, ':': {}, ',': {},
	')': {}, ']': {}, '}': {}, '-': {}, '…': {},
	'。': {}, '！': {}, '？': {}, '；': {}, '：': {},
	'，': {}, '、': {}, '》': {}, '」': {}, '】': {}, '）': {},
}

func isPunctuation(r rune) bool {
	_, ok := punctuation[r]
	return ok
}

// SRT renders one subtitle cue per transcribed segment, timed by the
// segment's position in the source. Failed segments leave a gap.
func (r *Result) SRT(maxCPL int) string {
	if maxCPL <= 0 {
		maxCPL = DefaultCharsPerLine
	}

	var sb strings.Builder
	n := 0
	for _, seg := range r.Segments {
		text := strings.TrimSpace(seg.Text)
		if !seg.OK() || text == "" {
			continue
		}
		if n > 0 {
			sb.WriteByte('\n')
		}
		n++
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n",
			n,
			formatSRTTime(seg.Start),
			formatSRTTime(seg.Start+seg.Duration),
			wrapText(text, maxCPL))
	}
	return sb.String()
}

// formatSRTTime formats an offset as HH:MM:SS,mmm.
func formatSRTTime(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

// wrapText breaks text into lines of at most maxCPL runes, preferring
// spaces and punctuation as break points.
func wrapText(text string, maxCPL int) string {
	text = strings.TrimSpace(text)
	var lines []string
	for utf8.RuneCountInString(text) > maxCPL {
		runes := []rune(text)
		pos := findSplitPosition(text, maxCPL)
		lines = append(lines, strings.TrimSpace(string(runes[:pos])))
		text = strings.TrimSpace(string(runes[pos:]))
	}
	if text != "" {
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// findSplitPosition returns the rune index at which to break text so the
// first part is at most maxLen runes.
func findSplitPosition(text string, maxLen int) int {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return len(runes)
	}

	searchEnd := min(maxLen+1, len(runes))

	bestPos := -1
	for i := searchEnd - 1; i > 0; i-- {
		r := runes[i]
		if r == ' ' {
			bestPos = i
			break
		}
		if isPunctuation(r) && i+1 <= maxLen {
			bestPos = i + 1
			break
		}
	}

	if bestPos <= 0 {
		bestPos = maxLen
	}
	return bestPos
}

package storyboard

import (
	"strings"
	"unicode"

	"storyboarder/internal/transcript"
)

// Partition cuts a normalized transcript into clip plan entries. Rows must be
// sorted and contiguous (see transcript.Normalize). The result is
// deterministic for a given input.
//
// Seconds accumulate into a window until either the latest non-empty text
// ends a sentence and the window holds at least MinClipSeconds, or the
// window reaches MaxClipSeconds. A full window is split after the latest
// second (other than the first) that contains a sentence boundary, leaving
// the remainder to start the next window. A trailing window is flushed as is
// and a one-second final clip is rebalanced against its predecessor.
func Partition(rows []transcript.Row) []PlanEntry {
	if len(rows) == 0 {
		return []PlanEntry{}
	}

	var windows [][2]int // half-open index ranges into rows
	start := 0
	for i := range rows {
		size := i - start + 1
		if size >= MinClipSeconds && endsSentence(lastText(rows[start:i+1])) {
			windows = append(windows, [2]int{start, i + 1})
			start = i + 1
			continue
		}
		if size == MaxClipSeconds {
			cut := i + 1
			for p := MaxClipSeconds - 2; p >= 1; p-- {
				if hasSentenceBoundary(rows[start+p].Text) {
					cut = start + p + 1
					break
				}
			}
			windows = append(windows, [2]int{start, cut})
			start = cut
		}
	}
	if start < len(rows) {
		windows = append(windows, [2]int{start, len(rows)})
	}

	windows = rebalanceTail(windows)

	plan := make([]PlanEntry, 0, len(windows))
	for _, w := range windows {
		first := rows[w[0]].Second
		end := rows[w[1]-1].Second + 1
		plan = append(plan, PlanEntry{
			Start:    first,
			End:      end,
			Verbatim: transcript.TextBetween(rows, first, end),
		})
	}
	return plan
}

// rebalanceTail removes a one-second final window by borrowing a second from
// a predecessor that can spare one, or by merging into it.
func rebalanceTail(windows [][2]int) [][2]int {
	n := len(windows)
	if n < 2 || windows[n-1][1]-windows[n-1][0] != 1 {
		return windows
	}
	prev := windows[n-2]
	if prev[1]-prev[0] >= MinClipSeconds+1 {
		windows[n-2][1]--
		windows[n-1][0]--
		return windows
	}
	windows[n-2][1] = windows[n-1][1]
	return windows[:n-1]
}

func lastText(rows []transcript.Row) string {
	for i := len(rows) - 1; i >= 0; i-- {
		if text := strings.TrimSpace(rows[i].Text); text != "" {
			return text
		}
	}
	return ""
}

// endsSentence reports whether text ends in terminal punctuation, ignoring
// trailing closing quotes and brackets.
func endsSentence(text string) bool {
	text = strings.TrimRightFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || isCloser(r)
	})
	if text == "" {
		return false
	}
	return isTerminal(rune(text[len(text)-1]))
}

// hasSentenceBoundary reports whether text contains terminal punctuation
// followed by whitespace or the end of the text.
func hasSentenceBoundary(text string) bool {
	runes := []rune(text)
	for i, r := range runes {
		if !isTerminal(r) {
			continue
		}
		j := i + 1
		for j < len(runes) && isCloser(runes[j]) {
			j++
		}
		if j == len(runes) || unicode.IsSpace(runes[j]) {
			return true
		}
	}
	return false
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

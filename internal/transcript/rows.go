package transcript

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Row is one second of transcript text. Normalized transcripts hold exactly
// one Row per second between the first and last second.
type Row struct {
	Second int    `json:"timestamp" yaml:"timestamp"`
	Text   string `json:"text" yaml:"text"`
}

// RawRow is an unparsed caller row.
type RawRow struct {
	Timestamp Timestamp `json:"timestamp" yaml:"timestamp"`
	Text      string    `json:"text" yaml:"text"`
}

// Word is a single word-level transcription token.
type Word struct {
	Start float64 `json:"start" yaml:"start"`
	Text  string  `json:"text" yaml:"text"`
}

// ParseRows parses every timestamp and returns the normalized transcript.
// The first malformed timestamp aborts parsing.
func ParseRows(raw []RawRow) ([]Row, error) {
	rows := make([]Row, 0, len(raw))
	for i, r := range raw {
		second, err := r.Timestamp.Seconds()
		if err != nil {
			return nil, fmt.Errorf("transcript row %d: %w", i, err)
		}
		rows = append(rows, Row{Second: second, Text: r.Text})
	}
	return Normalize(rows), nil
}

// FromWords buckets words by the floored second of their start time.
func FromWords(words []Word) []Row {
	rows := make([]Row, 0, len(words))
	for _, w := range words {
		if math.IsNaN(w.Start) || w.Start < 0 || w.Start >= MaxSeconds+1 {
			continue
		}
		rows = append(rows, Row{Second: int(math.Floor(w.Start)), Text: w.Text})
	}
	return Normalize(rows)
}

// Normalize sorts rows, joins text that shares a second with single spaces,
// and inserts empty rows for missing seconds so the result is contiguous.
// Rows outside [0, MaxSeconds] are dropped.
func Normalize(rows []Row) []Row {
	sorted := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Second >= 0 && r.Second <= MaxSeconds {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return []Row{}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Second < sorted[j].Second })

	first := sorted[0].Second
	last := sorted[len(sorted)-1].Second
	out := make([]Row, last-first+1)
	for i := range out {
		out[i].Second = first + i
	}
	for _, r := range sorted {
		text := CleanText(r.Text)
		if text == "" {
			continue
		}
		slot := &out[r.Second-first]
		if slot.Text == "" {
			slot.Text = text
		} else {
			slot.Text = slot.Text + " " + text
		}
	}
	return out
}

// CleanText NFC-normalizes text and collapses runs of whitespace.
func CleanText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// TextBetween joins the text of every row whose second lies in [start, end).
func TextBetween(rows []Row, start, end int) string {
	parts := make([]string, 0, end-start)
	for _, r := range rows {
		if r.Second < start || r.Second >= end {
			continue
		}
		if r.Text != "" {
			parts = append(parts, r.Text)
		}
	}
	return CleanText(strings.Join(parts, " "))
}

// Bounds reports the first and last second of a normalized transcript.
func Bounds(rows []Row) (first, last int, ok bool) {
	if len(rows) == 0 {
		return 0, 0, false
	}
	return rows[0].Second, rows[len(rows)-1].Second, true
}

// Raw converts parsed rows back into caller rows with whole-second
// timestamps.
func Raw(rows []Row) []RawRow {
	out := make([]RawRow, len(rows))
	for i, r := range rows {
		out[i] = RawRow{Timestamp: NewTimestamp(r.Second), Text: r.Text}
	}
	return out
}

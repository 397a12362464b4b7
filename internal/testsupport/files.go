package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TranscriptRow mirrors the caller transcript format.
type TranscriptRow struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// WriteTranscript writes rows as a JSON transcript file and returns its path.
func WriteTranscript(t testing.TB, dir, name string, rows []TranscriptRow) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		t.Fatalf("marshal transcript: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// StormTranscript is a short two-clip transcript used across packages.
func StormTranscript() []TranscriptRow {
	return []TranscriptRow{
		{Timestamp: "00:00:00", Text: "The storm"},
		{Timestamp: "00:00:01", Text: "arrived."},
		{Timestamp: "00:00:02", Text: "Waves"},
		{Timestamp: "00:00:03", Text: "rose"},
		{Timestamp: "00:00:04", Text: "high."},
	}
}

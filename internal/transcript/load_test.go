package transcript

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeJSONRowArray(t *testing.T) {
	rows, err := Decode(strings.NewReader(`[{"timestamp":"00:00:01","text":"hi"},{"timestamp":3,"text":"there."}]`), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Row{{1, "hi"}, {2, ""}, {3, "there."}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v", rows)
	}
}

func TestDecodeJSONWordsDocument(t *testing.T) {
	rows, err := Decode(strings.NewReader(`{"words":[{"start":0.2,"text":"a"},{"start":1.9,"text":"b"}]}`), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Row{{0, "a"}, {1, "b"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v", rows)
	}
}

func TestDecodeYAML(t *testing.T) {
	doc := "rows:\n  - timestamp: 00:00:02\n    text: second\n  - timestamp: 0\n    text: first\n"
	rows, err := Decode(strings.NewReader(doc), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Row{{0, "first"}, {1, ""}, {2, "second"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v", rows)
	}
}

func TestDecodeYAMLSequence(t *testing.T) {
	doc := "- timestamp: 5\n  text: only\n"
	rows, err := Decode(strings.NewReader(doc), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Second != 5 {
		t.Fatalf("rows = %#v", rows)
	}
}

func TestDecodeRejectsEmptyDocument(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"title":"x"}`), FormatJSON); err == nil {
		t.Fatal("expected error for document without rows")
	}
}

func TestLoadInfersFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.yml")
	if err := os.WriteFile(path, []byte("- timestamp: \"00:00:01\"\n  text: hey\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 || rows[0].Text != "hey" {
		t.Fatalf("rows = %#v", rows)
	}
}

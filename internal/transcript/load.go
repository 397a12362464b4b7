package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a transcript file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the encoding from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type document struct {
	Rows  []RawRow `json:"rows" yaml:"rows"`
	Words []Word   `json:"words" yaml:"words"`
}

// Load reads and normalizes a transcript file.
func Load(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()
	rows, err := Decode(file, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("transcript %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// Decode parses a transcript document. Accepted shapes are a bare array of
// {timestamp, text} rows, an object with a "rows" array, or an object with a
// "words" array of {start, text} tokens.
func Decode(r io.Reader, format Format) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Row{}, nil
	}

	var (
		raw []RawRow
		doc document
	)
	switch format {
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Content[0].Decode(&raw); err != nil {
				return nil, fmt.Errorf("decode rows: %w", err)
			}
			return ParseRows(raw)
		}
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	case FormatJSON, "":
		if data[0] == '[' {
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("decode rows: %w", err)
			}
			return ParseRows(raw)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported transcript format %q", format)
	}

	switch {
	case len(doc.Rows) > 0:
		return ParseRows(doc.Rows)
	case len(doc.Words) > 0:
		return FromWords(doc.Words), nil
	default:
		return nil, errors.New("transcript has no rows or words")
	}
}

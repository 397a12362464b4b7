package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTimestamp marks timestamps that are neither raw seconds nor HH:MM:SS.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// MaxSeconds is the latest accepted timestamp, 99:59:59.
const MaxSeconds = 99*3600 + 59*60 + 59

// ParseTimestamp converts raw seconds ("12", "12.9") or clock strings
// ("00:01:05", "01:05", "00:01:05,500") into whole seconds. Fractions are
// floored to the 1 Hz grid.
func ParseTimestamp(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTimestamp)
	}
	if !strings.Contains(trimmed, ":") {
		seconds, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
		}
		if seconds < 0 {
			return 0, fmt.Errorf("%w: %q is negative", ErrInvalidTimestamp, value)
		}
		if seconds >= MaxSeconds+1 {
			return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidTimestamp, value, FormatTimestamp(MaxSeconds))
		}
		return int(math.Floor(seconds)), nil
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q (want HH:MM:SS)", ErrInvalidTimestamp, value)
	}
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	hours, err := parseClockField(parts[0], 99)
	if err != nil {
		return 0, fmt.Errorf("%w: %q hours: %v", ErrInvalidTimestamp, value, err)
	}
	minutes, err := parseClockField(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q minutes: %v", ErrInvalidTimestamp, value, err)
	}
	secField := strings.Replace(parts[2], ",", ".", 1)
	if whole, _, found := strings.Cut(secField, "."); found {
		secField = whole
	}
	seconds, err := parseClockField(secField, 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q seconds: %v", ErrInvalidTimestamp, value, err)
	}
	return hours*3600 + minutes*60 + seconds, nil
}

func parseClockField(field string, maxValue int) (int, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, errors.New("empty field")
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("unexpected character %q", r)
		}
	}
	value, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if value > maxValue {
		return 0, fmt.Errorf("%d exceeds %d", value, maxValue)
	}
	return value, nil
}

// FormatTimestamp renders whole seconds as HH:MM:SS.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// Timestamp is a caller-supplied timestamp that decodes from either a number
// of seconds or an HH:MM:SS string.
type Timestamp struct {
	raw string
}

// NewTimestamp wraps whole seconds.
func NewTimestamp(seconds int) Timestamp {
	return Timestamp{raw: strconv.Itoa(seconds)}
}

// TimestampString wraps an unparsed value such as "00:00:12".
func TimestampString(value string) Timestamp {
	return Timestamp{raw: value}
}

// Seconds parses the wrapped value.
func (t Timestamp) Seconds() (int, error) {
	return ParseTimestamp(t.raw)
}

func (t Timestamp) String() string {
	return t.raw
}

// UnmarshalJSON accepts numbers and strings.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("%w: missing value", ErrInvalidTimestamp)
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		t.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	t.raw = n.String()
	return nil
}

// MarshalJSON emits whole seconds when the value parses, else the raw string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if seconds, err := t.Seconds(); err == nil {
		return []byte(strconv.Itoa(seconds)), nil
	}
	return json.Marshal(t.raw)
}

// UnmarshalYAML accepts scalar nodes of any tag.
func (t *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected scalar", ErrInvalidTimestamp, node.Line)
	}
	t.raw = node.Value
	return nil
}

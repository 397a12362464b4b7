package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const jobColumns = "id, status, source, animation_style, setting, focal_points_json, transcript_json, result_json, error_message, attempts, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             string
		statusStr      string
		source         sql.NullString
		animationStyle sql.NullString
		setting        sql.NullString
		focalPoints    sql.NullString
		transcript     sql.NullString
		result         sql.NullString
		errorMessage   sql.NullString
		attempts       sql.NullInt64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&source,
		&animationStyle,
		&setting,
		&focalPoints,
		&transcript,
		&result,
		&errorMessage,
		&attempts,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Status:         Status(statusStr),
		Source:         source.String,
		AnimationStyle: animationStyle.String,
		Setting:        setting.String,
		TranscriptJSON: rawJSON(transcript),
		ResultJSON:     rawJSON(result),
		ErrorMessage:   errorMessage.String,
		Attempts:       int(attempts.Int64),
	}
	if focalPoints.Valid && focalPoints.String != "" {
		_ = json.Unmarshal([]byte(focalPoints.String), &job.FocalPoints)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func rawJSON(value sql.NullString) json.RawMessage {
	if !value.Valid || value.String == "" {
		return nil
	}
	return json.RawMessage(value.String)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableJSON(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		return string(raw), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

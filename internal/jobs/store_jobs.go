package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by transitions on a job that does not exist.
var ErrNotFound = errors.New("job not found")

// Create inserts a pending job and returns it.
func (s *Store) Create(ctx context.Context, req NewJob) (*Job, error) {
	id := uuid.NewString()
	timestamp := s.timestamp()

	focal, err := nullableJSON(req.FocalPoints)
	if err != nil {
		return nil, fmt.Errorf("marshal focal points: %w", err)
	}
	transcript, err := nullableJSON(req.Transcript)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, status, source, animation_style, setting, focal_points_json,
            transcript_json, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id,
		StatusPending,
		nullableString(req.Source),
		nullableString(strings.TrimSpace(req.AnimationStyle)),
		nullableString(strings.TrimSpace(req.Setting)),
		focal,
		transcript,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a job by identifier. A missing job yields nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(opts.Statuses)+1)
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Remove deletes a job. It reports whether a job was removed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

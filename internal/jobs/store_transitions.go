package jobs

import (
	"context"
	"fmt"
)

// MarkGenerating moves a pending job into generation. It returns
// ErrNotFound when the job is missing or no longer pending.
func (s *Store) MarkGenerating(ctx context.Context, id string) error {
	return s.transition(ctx, "mark generating", id,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusGenerating, s.timestamp(), id, StatusPending,
	)
}

// RecordAttempt stores the number of attempts made so far.
func (s *Store) RecordAttempt(ctx context.Context, id string, attempts int) error {
	return s.transition(ctx, "record attempt", id,
		`UPDATE jobs SET attempts = ?, updated_at = ? WHERE id = ?`,
		attempts, s.timestamp(), id,
	)
}

// Complete stores the validated storyboard and marks the job completed.
func (s *Store) Complete(ctx context.Context, id string, result any, attempts int) error {
	payload, err := nullableJSON(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.transition(ctx, "complete job", id,
		`UPDATE jobs SET status = ?, result_json = ?, error_message = NULL, attempts = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted, payload, attempts, s.timestamp(), id,
	)
}

// Fail marks the job failed or invalid with message. Any other status is
// stored as StatusFailed.
func (s *Store) Fail(ctx context.Context, id string, status Status, message string, attempts int) error {
	if status != StatusInvalid {
		status = StatusFailed
	}
	return s.transition(ctx, "fail job", id,
		`UPDATE jobs SET status = ?, error_message = ?, attempts = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), attempts, s.timestamp(), id,
	)
}

// ResetStuckGenerating fails jobs left generating by a previous process.
func (s *Store) ResetStuckGenerating(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE status IN (?, ?)`,
		StatusFailed, InterruptedReason, s.timestamp(), StatusPending, StatusGenerating,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) transition(ctx context.Context, op, id, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}

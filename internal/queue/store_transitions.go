package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UpdateHeartbeat stamps the submission's heartbeat so the watchdog knows the
// stage is still alive.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE submissions SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields and refreshes the
// heartbeat, so frequent painter and encoder callbacks double as liveness.
func (s *Store) UpdateProgress(ctx context.Context, sub *Submission) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE submissions
         SET progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(sub.ProgressStage),
		sub.ProgressPercent,
		nullableString(sub.ProgressMessage),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		sub.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	hb := now
	sub.LastHeartbeat = &hb
	sub.UpdatedAt = now
	return nil
}

// ReclaimStaleProcessing rolls submissions whose heartbeat predates the cutoff
// back to the status preceding their interrupted stage, so the stage re-runs
// from a clean boundary. Returns the number of reclaimed submissions.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.rollbackProcessing(ctx, "last_heartbeat IS NOT NULL AND last_heartbeat < ?", cutoff.UTC().Format(time.RFC3339Nano))
}

// ResetStuckProcessing rolls back every in-flight submission regardless of
// heartbeat age. Used at daemon startup to recover from an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	return s.rollbackProcessing(ctx, "")
}

func (s *Store) rollbackProcessing(ctx context.Context, extraCondition string, extraArgs ...any) (int64, error) {
	var caseExpr strings.Builder
	caseExpr.WriteString("CASE status")
	statusArgs := make([]any, 0, len(stageRollbackTransitions)*3)
	inPlaceholders := make([]string, 0, len(stageRollbackTransitions))
	for _, transition := range stageRollbackTransitions {
		caseExpr.WriteString(" WHEN ? THEN ?")
		statusArgs = append(statusArgs, transition.from, transition.to)
		inPlaceholders = append(inPlaceholders, "?")
	}
	caseExpr.WriteString(" ELSE status END")

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE submissions
        SET status = ` + caseExpr.String() + `,
            last_heartbeat = NULL,
            progress_message = 'Interrupted, waiting to resume',
            updated_at = ?
        WHERE status IN (` + strings.Join(inPlaceholders, ",") + `)`

	args := make([]any, 0, len(statusArgs)*2+2)
	args = append(args, statusArgs...)
	args = append(args, now)
	for _, transition := range stageRollbackTransitions {
		args = append(args, transition.from)
	}
	if extraCondition != "" {
		query += " AND " + extraCondition
		args = append(args, extraArgs...)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("rollback processing submissions: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed returns failed submissions to pending. With no ids every failed
// submission is retried; otherwise only the listed ones. Returns the number of
// submissions reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE submissions
        SET status = ?, error_message = NULL, last_heartbeat = NULL,
            progress_stage = NULL, progress_percent = 0,
            progress_message = 'Queued for retry', updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, now, StatusFailed}

	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed submissions: %w", err)
	}
	return res.RowsAffected()
}

// FailProcessing marks every in-flight submission as failed with the given
// reason. Called during daemon shutdown so nothing is left claiming the
// studio.
func (s *Store) FailProcessing(ctx context.Context, reason string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	inPlaceholders := make([]string, 0, len(processingStatuses))
	args := []any{StatusFailed, reason, reason, now}
	for status := range processingStatuses {
		inPlaceholders = append(inPlaceholders, "?")
		args = append(args, status)
	}

	query := `UPDATE submissions
        SET status = ?, error_message = ?, last_heartbeat = NULL,
            progress_message = ?, updated_at = ?
        WHERE status IN (` + strings.Join(inPlaceholders, ",") + `)`

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("fail processing submissions: %w", err)
	}
	return res.RowsAffected()
}

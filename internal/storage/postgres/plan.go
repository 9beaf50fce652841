package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"socialflow/internal/domain"
)

type PlanStore struct {
	db *sqlx.DB
}

func NewPlanStore(db *sqlx.DB) *PlanStore {
	return &PlanStore{db: db}
}

const planColumns = `id, content_id, platform, target_at, status, attempts,
	next_attempt_at, native_post_id, last_error, created_at, updated_at`

// Insert creates a Pending entry. A partial unique index on content_id
// over non-terminal rows enforces the one-live-entry-per-item invariant;
// a conflicting insert is rejected, never merged.
func (s *PlanStore) Insert(ctx context.Context, entry *domain.PublishPlanEntry) error {
	query := `
		INSERT INTO publish_plan (content_id, platform, target_at, status, attempts)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (content_id) WHERE status NOT IN ('published', 'failed') DO NOTHING
		RETURNING id`

	rows, err := executor(ctx, s.db).QueryxContext(ctx, query,
		entry.ContentID, entry.Platform, entry.TargetAt, entry.Status)
	if err != nil {
		return fmt.Errorf("insert plan entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.ErrInvalidTransition
	}
	if err := rows.Scan(&entry.ID); err != nil {
		return err
	}
	return rows.Err()
}

// Due returns entries ready for dispatch: Pending past their target, or
// Retrying past their backoff deadline. Ordered by target time so the
// plan is consumed in timestamp order.
func (s *PlanStore) Due(ctx context.Context, now time.Time, limit int) ([]domain.PublishPlanEntry, error) {
	var entries []domain.PublishPlanEntry
	query := `
		SELECT ` + planColumns + `
		FROM publish_plan
		WHERE (status = 'pending' AND target_at <= $1)
		   OR (status = 'retrying' AND next_attempt_at <= $1)
		ORDER BY target_at, id
		LIMIT $2`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &entries, query, now, limit); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListActiveBetween returns every non-failed entry targeted inside the
// window. The scheduling engine treats these as occupied slots.
func (s *PlanStore) ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.PublishPlanEntry, error) {
	var entries []domain.PublishPlanEntry
	query := `
		SELECT ` + planColumns + `
		FROM publish_plan
		WHERE status <> 'failed' AND target_at >= $1 AND target_at < $2
		ORDER BY target_at, id`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &entries, query, from, to); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListBetween returns all entries targeted inside the window, for
// analytics folds.
func (s *PlanStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.PublishPlanEntry, error) {
	var entries []domain.PublishPlanEntry
	query := `
		SELECT ` + planColumns + `
		FROM publish_plan
		WHERE target_at >= $1 AND target_at < $2
		ORDER BY target_at, id`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &entries, query, from, to); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PlanStore) MarkInFlight(ctx context.Context, id int64) error {
	query := `
		UPDATE publish_plan
		SET status = 'in_flight', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'retrying')`

	return s.guardedUpdate(ctx, query, id)
}

func (s *PlanStore) MarkRetrying(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE publish_plan
		SET status = 'retrying', attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = now()
		WHERE id = $1 AND status = 'in_flight'`

	return s.guardedUpdate(ctx, query, id, attempts, nextAttemptAt, lastError)
}

// MarkPublished records the platform-native post id and the terminal
// status in one statement, so no reader can observe Published without
// the outcome.
func (s *PlanStore) MarkPublished(ctx context.Context, id int64, nativePostID string) error {
	query := `
		UPDATE publish_plan
		SET status = 'published', native_post_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'in_flight'`

	return s.guardedUpdate(ctx, query, id, nativePostID)
}

func (s *PlanStore) MarkFailed(ctx context.Context, id int64, attempts int, lastError string) error {
	query := `
		UPDATE publish_plan
		SET status = 'failed', attempts = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = 'in_flight'`

	return s.guardedUpdate(ctx, query, id, attempts, lastError)
}

// ReconcileInFlight demotes entries abandoned mid-flight by a previous
// process to Retrying, due immediately.
func (s *PlanStore) ReconcileInFlight(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE publish_plan
		SET status = 'retrying', next_attempt_at = $1, updated_at = now()
		WHERE status = 'in_flight'`

	res, err := executor(ctx, s.db).ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PlanStore) guardedUpdate(ctx context.Context, query string, args ...any) error {
	res, err := executor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

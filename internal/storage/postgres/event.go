package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"socialflow/internal/domain"
)

type EventStore struct {
	db *sqlx.DB
}

func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, platform, native_id, kind, author, body,
	observed_at, status, created_at, updated_at`

// Insert persists a newly sighted event. The (platform, native_id)
// unique constraint is the dedup boundary: a duplicate sighting is a
// no-op and Insert reports false.
func (s *EventStore) Insert(ctx context.Context, ev *domain.EngagementEvent) (bool, error) {
	query := `
		INSERT INTO engagement_events (platform, native_id, kind, author, body, observed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (platform, native_id) DO NOTHING
		RETURNING id`

	err := executor(ctx, s.db).QueryRowxContext(ctx, query,
		ev.Platform, ev.NativeID, ev.Kind, ev.Author, ev.Body, ev.ObservedAt, ev.Status,
	).Scan(&ev.ID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return true, nil
}

func (s *EventStore) ListByStatus(ctx context.Context, pl string, status domain.EventStatus, limit int) ([]domain.EngagementEvent, error) {
	var events []domain.EngagementEvent
	query := `
		SELECT ` + eventColumns + `
		FROM engagement_events
		WHERE platform = $1 AND status = $2
		ORDER BY observed_at, id
		LIMIT $3`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &events, query, pl, status, limit); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventStore) ListObservedBetween(ctx context.Context, from, to time.Time) ([]domain.EngagementEvent, error) {
	var events []domain.EngagementEvent
	query := `
		SELECT ` + eventColumns + `
		FROM engagement_events
		WHERE observed_at >= $1 AND observed_at < $2
		ORDER BY observed_at, id`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &events, query, from, to); err != nil {
		return nil, err
	}
	return events, nil
}

// LatestObservedAt returns the high-water mark for a platform, or the
// zero time when no events exist yet.
func (s *EventStore) LatestObservedAt(ctx context.Context, pl string) (time.Time, error) {
	var latest sql.NullTime
	query := `SELECT max(observed_at) FROM engagement_events WHERE platform = $1`

	if err := executor(ctx, s.db).QueryRowxContext(ctx, query, pl).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

// UpdateStatus moves an event forward along its lifecycle. The guard
// rejects backward or repeated transitions.
func (s *EventStore) UpdateStatus(ctx context.Context, id int64, from, to domain.EventStatus) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}

	query := `
		UPDATE engagement_events
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`

	res, err := executor(ctx, s.db).ExecContext(ctx, query, id, from, to)
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

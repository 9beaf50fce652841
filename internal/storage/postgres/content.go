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

type ContentStore struct {
	db *sqlx.DB
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) Insert(ctx context.Context, item *domain.ContentItem) error {
	query := `
		INSERT INTO content_items (id, body, pillar, platform, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		item.ID,
		item.Body,
		item.Pillar,
		item.Platform,
		item.Status,
		item.ScheduledAt,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}
	return nil
}

func (s *ContentStore) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	query := `
		SELECT id, body, pillar, platform, status, scheduled_at, created_at, updated_at
		FROM content_items
		WHERE id = $1`

	err := sqlx.GetContext(ctx, executor(ctx, s.db), &item, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByStatus returns items in creation order, oldest first, so the
// scheduling engine's tie-breaks stay deterministic.
func (s *ContentStore) ListByStatus(ctx context.Context, status domain.ContentStatus) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	query := `
		SELECT id, body, pillar, platform, status, scheduled_at, created_at, updated_at
		FROM content_items
		WHERE status = $1
		ORDER BY created_at, id`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &items, query, status); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkScheduled assigns platform and timestamp to a Draft item. The
// status guard makes repeated scheduling runs idempotent: anything no
// longer Draft is left alone.
func (s *ContentStore) MarkScheduled(ctx context.Context, id, platform string, at time.Time) error {
	query := `
		UPDATE content_items
		SET status = $2, platform = $3, scheduled_at = $4, updated_at = now()
		WHERE id = $1 AND status = $5`

	return s.guardedUpdate(ctx, query, id, domain.ContentScheduled, platform, at, domain.ContentDraft)
}

func (s *ContentStore) MarkPublished(ctx context.Context, id string) error {
	query := `
		UPDATE content_items
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`

	return s.guardedUpdate(ctx, query, id, domain.ContentPublished, domain.ContentScheduled)
}

func (s *ContentStore) MarkFailed(ctx context.Context, id string) error {
	query := `
		UPDATE content_items
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`

	return s.guardedUpdate(ctx, query, id, domain.ContentFailed, domain.ContentScheduled)
}

func (s *ContentStore) guardedUpdate(ctx context.Context, query string, args ...any) error {
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

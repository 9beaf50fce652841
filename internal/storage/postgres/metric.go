package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"socialflow/internal/domain"
)

type MetricStore struct {
	db *sqlx.DB
}

func NewMetricStore(db *sqlx.DB) *MetricStore {
	return &MetricStore{db: db}
}

// Upsert replaces the whole bucket. Snapshots are recomputed from the
// logs, so the last write always carries the full truth for its key.
func (s *MetricStore) Upsert(ctx context.Context, snap *domain.MetricSnapshot) error {
	query := `
		INSERT INTO metric_snapshots (
			platform, day, published, failed, comments, direct_messages,
			responses, escalations, engagement_rate, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (platform, day) DO UPDATE SET
			published = EXCLUDED.published,
			failed = EXCLUDED.failed,
			comments = EXCLUDED.comments,
			direct_messages = EXCLUDED.direct_messages,
			responses = EXCLUDED.responses,
			escalations = EXCLUDED.escalations,
			engagement_rate = EXCLUDED.engagement_rate,
			computed_at = EXCLUDED.computed_at`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		snap.Platform,
		snap.Day,
		snap.Published,
		snap.Failed,
		snap.Comments,
		snap.DirectMessages,
		snap.Responses,
		snap.Escalations,
		snap.EngagementRate,
		snap.ComputedAt,
	)
	return err
}

func (s *MetricStore) Get(ctx context.Context, pl string, day time.Time) (*domain.MetricSnapshot, error) {
	var snap domain.MetricSnapshot
	query := `
		SELECT platform, day, published, failed, comments, direct_messages,
			responses, escalations, engagement_rate, computed_at
		FROM metric_snapshots
		WHERE platform = $1 AND day = $2`

	err := sqlx.GetContext(ctx, executor(ctx, s.db), &snap, query, pl, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MetricStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.MetricSnapshot, error) {
	var snaps []domain.MetricSnapshot
	query := `
		SELECT platform, day, published, failed, comments, direct_messages,
			responses, escalations, engagement_rate, computed_at
		FROM metric_snapshots
		WHERE day >= $1 AND day < $2
		ORDER BY day, platform`

	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &snaps, query, from, to); err != nil {
		return nil, err
	}
	return snaps, nil
}

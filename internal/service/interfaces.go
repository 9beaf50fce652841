package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"socialflow/internal/domain"
)

type ContentStore interface {
	Insert(ctx context.Context, item *domain.ContentItem) error
	GetByID(ctx context.Context, id string) (*domain.ContentItem, error)
	ListByStatus(ctx context.Context, status domain.ContentStatus) ([]domain.ContentItem, error)
	MarkScheduled(ctx context.Context, id, platform string, at time.Time) error
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

type PlanStore interface {
	Insert(ctx context.Context, entry *domain.PublishPlanEntry) error
	Due(ctx context.Context, now time.Time, limit int) ([]domain.PublishPlanEntry, error)
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.PublishPlanEntry, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.PublishPlanEntry, error)
	MarkInFlight(ctx context.Context, id int64) error
	MarkRetrying(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkPublished(ctx context.Context, id int64, nativePostID string) error
	MarkFailed(ctx context.Context, id int64, attempts int, lastError string) error
	ReconcileInFlight(ctx context.Context, now time.Time) (int64, error)
}

type EventStore interface {
	Insert(ctx context.Context, ev *domain.EngagementEvent) (bool, error)
	ListByStatus(ctx context.Context, platform string, status domain.EventStatus, limit int) ([]domain.EngagementEvent, error)
	ListObservedBetween(ctx context.Context, from, to time.Time) ([]domain.EngagementEvent, error)
	LatestObservedAt(ctx context.Context, platform string) (time.Time, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.EventStatus) error
}

type MetricStore interface {
	Upsert(ctx context.Context, snap *domain.MetricSnapshot) error
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.MetricSnapshot, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier fans outcomes and escalations out to the operator-facing
// message bus. Delivery is best effort; a failed notification never
// rolls back the state transition it describes.
type Notifier interface {
	PublishOutcome(ctx context.Context, entry *domain.PublishPlanEntry) error
	Escalate(ctx context.Context, ev *domain.EngagementEvent) error
	Close() error
}

// Generator is the external generation provider boundary: a single
// request/response call producing a content body.
type Generator interface {
	GenerateBody(ctx context.Context, pillar domain.Pillar, topic string) (string, error)
}

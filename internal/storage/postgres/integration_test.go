//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"socialflow/internal/domain"
	"socialflow/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_content_items.up.sql"),
			filepath.Join(migrationsPath, "002_create_publish_plan.up.sql"),
			filepath.Join(migrationsPath, "003_create_engagement_events.up.sql"),
			filepath.Join(migrationsPath, "004_create_metric_snapshots.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM metric_snapshots")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM engagement_events")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM publish_plan")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM content_items")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) insertDraft(id string) *domain.ContentItem {
	item := &domain.ContentItem{
		ID:        id,
		Body:      "test body",
		Pillar:    domain.PillarEducational,
		Status:    domain.ContentDraft,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(NewContentStore(s.db).Insert(s.ctx, item))
	return item
}

func (s *PostgresIntegrationSuite) TestContentStore_Lifecycle() {
	store := NewContentStore(s.db)
	item := s.insertDraft("c1")

	got, err := store.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(item.Body, got.Body)
	s.Equal(domain.ContentDraft, got.Status)

	at := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	s.NoError(store.MarkScheduled(s.ctx, "c1", "instagram", at))

	got, err = store.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(domain.ContentScheduled, got.Status)
	s.Equal("instagram", *got.Platform)
	s.True(got.ScheduledAt.Equal(at))

	s.NoError(store.MarkPublished(s.ctx, "c1"))

	// Terminal: no further transitions.
	s.ErrorIs(store.MarkFailed(s.ctx, "c1"), domain.ErrInvalidTransition)
	s.ErrorIs(store.MarkScheduled(s.ctx, "c1", "instagram", at), domain.ErrInvalidTransition)
}

func (s *PostgresIntegrationSuite) TestContentStore_GetByID_NotFound() {
	_, err := NewContentStore(s.db).GetByID(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestContentStore_MarkScheduledOnlyTouchesDrafts() {
	store := NewContentStore(s.db)
	s.insertDraft("c1")

	at := time.Now().UTC().Add(time.Hour)
	s.NoError(store.MarkScheduled(s.ctx, "c1", "instagram", at))

	// A second pass over the same item is a no-op with an explicit error.
	s.ErrorIs(store.MarkScheduled(s.ctx, "c1", "linkedin", at.Add(time.Hour)), domain.ErrInvalidTransition)

	got, err := store.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal("instagram", *got.Platform)
}

func (s *PostgresIntegrationSuite) TestPlanStore_OneLiveEntryPerItem() {
	store := NewPlanStore(s.db)
	s.insertDraft("c1")

	target := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	first := &domain.PublishPlanEntry{ContentID: "c1", Platform: "instagram", TargetAt: target, Status: domain.PlanPending}
	s.Require().NoError(store.Insert(s.ctx, first))
	s.NotZero(first.ID)

	// A second live entry for the same item violates the partial unique
	// index and is rejected.
	second := &domain.PublishPlanEntry{ContentID: "c1", Platform: "linkedin", TargetAt: target.Add(time.Hour), Status: domain.PlanPending}
	s.ErrorIs(store.Insert(s.ctx, second), domain.ErrInvalidTransition)

	// After the first entry terminates, a fresh one is allowed.
	s.Require().NoError(store.MarkInFlight(s.ctx, first.ID))
	s.Require().NoError(store.MarkFailed(s.ctx, first.ID, 1, "status 401"))
	s.NoError(store.Insert(s.ctx, second))
}

func (s *PostgresIntegrationSuite) TestPlanStore_DueOrdering() {
	store := NewPlanStore(s.db)
	s.insertDraft("c1")
	s.insertDraft("c2")
	s.insertDraft("c3")

	now := time.Now().UTC().Truncate(time.Microsecond)

	late := &domain.PublishPlanEntry{ContentID: "c2", Platform: "instagram", TargetAt: now.Add(-time.Minute), Status: domain.PlanPending}
	early := &domain.PublishPlanEntry{ContentID: "c1", Platform: "instagram", TargetAt: now.Add(-time.Hour), Status: domain.PlanPending}
	future := &domain.PublishPlanEntry{ContentID: "c3", Platform: "instagram", TargetAt: now.Add(time.Hour), Status: domain.PlanPending}
	for _, e := range []*domain.PublishPlanEntry{late, early, future} {
		s.Require().NoError(store.Insert(s.ctx, e))
	}

	due, err := store.Due(s.ctx, now, 50)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal("c1", due[0].ContentID)
	s.Equal("c2", due[1].ContentID)
}

func (s *PostgresIntegrationSuite) TestPlanStore_RetryingDueAfterBackoff() {
	store := NewPlanStore(s.db)
	s.insertDraft("c1")

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.PublishPlanEntry{ContentID: "c1", Platform: "instagram", TargetAt: now.Add(-time.Hour), Status: domain.PlanPending}
	s.Require().NoError(store.Insert(s.ctx, entry))

	s.Require().NoError(store.MarkInFlight(s.ctx, entry.ID))
	s.Require().NoError(store.MarkRetrying(s.ctx, entry.ID, 1, now.Add(10*time.Minute), "status 503"))

	// Not due until the backoff deadline passes.
	due, err := store.Due(s.ctx, now, 50)
	s.Require().NoError(err)
	s.Empty(due)

	due, err = store.Due(s.ctx, now.Add(11*time.Minute), 50)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(domain.PlanRetrying, due[0].Status)
	s.Equal(1, due[0].Attempts)
	s.Equal("status 503", *due[0].LastError)
}

func (s *PostgresIntegrationSuite) TestPlanStore_MarkPublishedIsAtomic() {
	store := NewPlanStore(s.db)
	s.insertDraft("c1")

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.PublishPlanEntry{ContentID: "c1", Platform: "instagram", TargetAt: now, Status: domain.PlanPending}
	s.Require().NoError(store.Insert(s.ctx, entry))

	// Published is only reachable from InFlight.
	s.ErrorIs(store.MarkPublished(s.ctx, entry.ID, "native-1"), domain.ErrInvalidTransition)

	s.Require().NoError(store.MarkInFlight(s.ctx, entry.ID))
	s.Require().NoError(store.MarkPublished(s.ctx, entry.ID, "native-1"))

	listed, err := store.ListBetween(s.ctx, now.Add(-time.Minute), now.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(domain.PlanPublished, listed[0].Status)
	s.Equal("native-1", *listed[0].NativePostID)
}

func (s *PostgresIntegrationSuite) TestPlanStore_ReconcileInFlight() {
	store := NewPlanStore(s.db)
	s.insertDraft("c1")

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.PublishPlanEntry{ContentID: "c1", Platform: "instagram", TargetAt: now.Add(-time.Hour), Status: domain.PlanPending}
	s.Require().NoError(store.Insert(s.ctx, entry))
	s.Require().NoError(store.MarkInFlight(s.ctx, entry.ID))

	n, err := store.ReconcileInFlight(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	due, err := store.Due(s.ctx, now, 50)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(domain.PlanRetrying, due[0].Status)
}

func (s *PostgresIntegrationSuite) TestEventStore_DedupByNativeID() {
	store := NewEventStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	ev := &domain.EngagementEvent{
		Platform:   "instagram",
		NativeID:   "c123",
		Kind:       domain.KindComment,
		Author:     "dana",
		Body:       "love it",
		ObservedAt: now,
		Status:     domain.EventNew,
	}

	inserted, err := store.Insert(s.ctx, ev)
	s.Require().NoError(err)
	s.True(inserted)
	s.NotZero(ev.ID)

	// Same native id seen again in an overlapping poll window.
	dup := &domain.EngagementEvent{
		Platform:   "instagram",
		NativeID:   "c123",
		Kind:       domain.KindComment,
		Author:     "dana",
		Body:       "love it",
		ObservedAt: now.Add(time.Minute),
		Status:     domain.EventNew,
	}
	inserted, err = store.Insert(s.ctx, dup)
	s.Require().NoError(err)
	s.False(inserted)

	// Same native id on another platform is a distinct event.
	other := &domain.EngagementEvent{
		Platform:   "linkedin",
		NativeID:   "c123",
		Kind:       domain.KindComment,
		ObservedAt: now,
		Status:     domain.EventNew,
	}
	inserted, err = store.Insert(s.ctx, other)
	s.Require().NoError(err)
	s.True(inserted)
}

func (s *PostgresIntegrationSuite) TestEventStore_LatestObservedAt() {
	store := NewEventStore(s.db)

	latest, err := store.LatestObservedAt(s.ctx, "instagram")
	s.Require().NoError(err)
	s.True(latest.IsZero())

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i, id := range []string{"a", "b", "c"} {
		_, err := store.Insert(s.ctx, &domain.EngagementEvent{
			Platform:   "instagram",
			NativeID:   id,
			Kind:       domain.KindComment,
			ObservedAt: now.Add(time.Duration(i) * time.Minute),
			Status:     domain.EventNew,
		})
		s.Require().NoError(err)
	}

	latest, err = store.LatestObservedAt(s.ctx, "instagram")
	s.Require().NoError(err)
	s.True(latest.Equal(now.Add(2 * time.Minute)))
}

func (s *PostgresIntegrationSuite) TestEventStore_UpdateStatusGuarded() {
	store := NewEventStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	ev := &domain.EngagementEvent{
		Platform:   "instagram",
		NativeID:   "c200",
		Kind:       domain.KindComment,
		ObservedAt: now,
		Status:     domain.EventNew,
	}
	_, err := store.Insert(s.ctx, ev)
	s.Require().NoError(err)

	s.NoError(store.UpdateStatus(s.ctx, ev.ID, domain.EventNew, domain.EventClassified))
	s.NoError(store.UpdateStatus(s.ctx, ev.ID, domain.EventClassified, domain.EventResponded))

	// Responded is terminal; further moves are rejected before any SQL runs.
	s.ErrorIs(store.UpdateStatus(s.ctx, ev.ID, domain.EventResponded, domain.EventClassified), domain.ErrInvalidTransition)

	// Stale precondition: the row is no longer New.
	s.ErrorIs(store.UpdateStatus(s.ctx, ev.ID, domain.EventNew, domain.EventIgnored), domain.ErrInvalidTransition)
}

func (s *PostgresIntegrationSuite) TestMetricStore_UpsertReplacesBucket() {
	store := NewMetricStore(s.db)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC().Truncate(time.Microsecond)

	snap := &domain.MetricSnapshot{
		Platform: "instagram", Day: day,
		Published: 2, Comments: 3, DirectMessages: 1,
		Responses: 2, EngagementRate: 0.5, ComputedAt: now,
	}
	s.Require().NoError(store.Upsert(s.ctx, snap))

	// A later rebuild overwrites the whole bucket.
	snap.Published = 3
	snap.Responses = 3
	snap.EngagementRate = 0.75
	s.Require().NoError(store.Upsert(s.ctx, snap))

	got, err := store.Get(s.ctx, "instagram", day)
	s.Require().NoError(err)
	s.Equal(3, got.Published)
	s.Equal(3, got.Responses)
	s.InDelta(0.75, got.EngagementRate, 1e-9)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollsBackOnError() {
	tm := NewTransactionManager(s.db)
	content := NewContentStore(s.db)
	plans := NewPlanStore(s.db)
	s.insertDraft("c1")

	target := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if err := content.MarkScheduled(txCtx, "c1", "instagram", target); err != nil {
			return err
		}
		entry := &domain.PublishPlanEntry{ContentID: "c1", Platform: "instagram", TargetAt: target, Status: domain.PlanPending}
		if err := plans.Insert(txCtx, entry); err != nil {
			return err
		}
		return domain.ErrInvalidTransition // force rollback
	})
	s.Error(err)

	// Neither write survived.
	got, err := content.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(domain.ContentDraft, got.Status)

	entries, err := plans.ListBetween(s.ctx, target.Add(-time.Minute), target.Add(time.Minute))
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *PostgresIntegrationSuite) TestContentStore_NullableFields() {
	store := NewContentStore(s.db)

	item := &domain.ContentItem{
		ID:        "c9",
		Body:      "pinned draft",
		Pillar:    domain.PillarPromotional,
		Platform:  utils.Ptr("linkedin"),
		Status:    domain.ContentDraft,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(store.Insert(s.ctx, item))

	got, err := store.GetByID(s.ctx, "c9")
	s.Require().NoError(err)
	s.Equal("linkedin", *got.Platform)
	s.Nil(got.ScheduledAt)
}

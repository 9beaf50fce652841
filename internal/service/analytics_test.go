package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"socialflow/internal/domain"
	"socialflow/internal/service/mocks"
)

type AnalyticsServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	plans   *mocks.MockPlanStore
	events  *mocks.MockEventStore
	metrics *mocks.MockMetricStore

	service *AnalyticsService
	from    time.Time
	to      time.Time
	now     time.Time
}

func (s *AnalyticsServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.plans = mocks.NewMockPlanStore(s.ctrl)
	s.events = mocks.NewMockEventStore(s.ctrl)
	s.metrics = mocks.NewMockMetricStore(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.service = NewAnalyticsService(s.plans, s.events, s.metrics, logger)

	s.from = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.to = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	s.now = time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)
}

func (s *AnalyticsServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestAnalyticsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceTestSuite))
}

func (s *AnalyticsServiceTestSuite) sampleEntries() []domain.PublishPlanEntry {
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	return []domain.PublishPlanEntry{
		{ID: 1, Platform: "instagram", TargetAt: day1, Status: domain.PlanPublished},
		{ID: 2, Platform: "instagram", TargetAt: day1.Add(3 * time.Hour), Status: domain.PlanPublished},
		{ID: 3, Platform: "instagram", TargetAt: day2, Status: domain.PlanFailed},
		{ID: 4, Platform: "linkedin", TargetAt: day1, Status: domain.PlanPublished},
		// Pending entries are not aggregated.
		{ID: 5, Platform: "instagram", TargetAt: day2, Status: domain.PlanPending},
	}
}

func (s *AnalyticsServiceTestSuite) sampleEvents() []domain.EngagementEvent {
	day1 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return []domain.EngagementEvent{
		{ID: 1, Platform: "instagram", Kind: domain.KindComment, ObservedAt: day1, Status: domain.EventResponded},
		{ID: 2, Platform: "instagram", Kind: domain.KindComment, ObservedAt: day1.Add(time.Hour), Status: domain.EventIgnored},
		{ID: 3, Platform: "instagram", Kind: domain.KindDirectMessage, ObservedAt: day1.Add(2 * time.Hour), Status: domain.EventResponded},
		{ID: 4, Platform: "instagram", Kind: domain.KindComment, ObservedAt: day1.Add(3 * time.Hour), Status: domain.EventEscalated},
	}
}

func (s *AnalyticsServiceTestSuite) TestRebuild_FoldsLogsIntoBuckets() {
	ctx := context.Background()

	s.plans.EXPECT().ListBetween(ctx, s.from, s.to).Return(s.sampleEntries(), nil)
	s.events.EXPECT().ListObservedBetween(ctx, s.from, s.to).Return(s.sampleEvents(), nil)

	var upserts []domain.MetricSnapshot
	s.metrics.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, snap *domain.MetricSnapshot) error {
			upserts = append(upserts, *snap)
			return nil
		},
	).Times(3)

	report, err := s.service.Rebuild(ctx, s.from, s.to, s.now)

	s.NoError(err)
	s.Equal(3, report.Buckets)
	s.Equal(3, report.Published)
	s.Equal(1, report.Failed)
	s.Equal(4, report.Events)
	s.Equal(2, report.Responses)

	// Buckets arrive ordered by day then platform.
	s.Equal("instagram", upserts[0].Platform)
	s.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), upserts[0].Day)
	s.Equal("linkedin", upserts[1].Platform)
	s.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), upserts[2].Day)

	ig := upserts[0]
	s.Equal(2, ig.Published)
	s.Equal(3, ig.Comments)
	s.Equal(1, ig.DirectMessages)
	s.Equal(2, ig.Responses)
	s.Equal(1, ig.Escalations)
	s.InDelta(0.5, ig.EngagementRate, 1e-9)
	s.Equal(s.now, ig.ComputedAt)

	// The failed-only day has no engagement and a zero rate.
	s.Equal(1, upserts[2].Failed)
	s.InDelta(0.0, upserts[2].EngagementRate, 1e-9)
}

func (s *AnalyticsServiceTestSuite) TestRebuild_DeterministicAcrossRuns() {
	ctx := context.Background()

	collect := func(entries []domain.PublishPlanEntry, events []domain.EngagementEvent) []domain.MetricSnapshot {
		s.plans.EXPECT().ListBetween(ctx, s.from, s.to).Return(entries, nil)
		s.events.EXPECT().ListObservedBetween(ctx, s.from, s.to).Return(events, nil)

		var upserts []domain.MetricSnapshot
		s.metrics.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, snap *domain.MetricSnapshot) error {
				upserts = append(upserts, *snap)
				return nil
			},
		).Times(3)

		_, err := s.service.Rebuild(ctx, s.from, s.to, s.now)
		s.NoError(err)
		return upserts
	}

	first := collect(s.sampleEntries(), s.sampleEvents())

	// Same logs in reverse arrival order: late events change nothing.
	entries := s.sampleEntries()
	events := s.sampleEvents()
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	second := collect(entries, events)

	s.Equal(first, second)
}

func (s *AnalyticsServiceTestSuite) TestRebuild_EmptyWindow() {
	ctx := context.Background()

	s.plans.EXPECT().ListBetween(ctx, s.from, s.to).Return(nil, nil)
	s.events.EXPECT().ListObservedBetween(ctx, s.from, s.to).Return(nil, nil)

	report, err := s.service.Rebuild(ctx, s.from, s.to, s.now)

	s.NoError(err)
	s.Equal(0, report.Buckets)
}

func (s *AnalyticsServiceTestSuite) TestSnapshots_ReadsStoredBuckets() {
	ctx := context.Background()

	stored := []domain.MetricSnapshot{
		{Platform: "instagram", Day: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Published: 2},
		{Platform: "linkedin", Day: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Published: 1},
	}

	s.metrics.EXPECT().ListBetween(ctx, s.from, s.to).Return(stored, nil)

	snaps, err := s.service.Snapshots(ctx, s.from, s.to)

	s.NoError(err)
	s.Equal(stored, snaps)
}

func (s *AnalyticsServiceTestSuite) TestSnapshots_StoreError() {
	ctx := context.Background()

	s.metrics.EXPECT().ListBetween(ctx, s.from, s.to).Return(nil, assert.AnError)

	_, err := s.service.Snapshots(ctx, s.from, s.to)

	s.ErrorIs(err, assert.AnError)
}

func TestDayStartUTC(t *testing.T) {
	in := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))
	got := dayStartUTC(in)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("dayStartUTC(%v) = %v, want %v", in, got, want)
	}
}

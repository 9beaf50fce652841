package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"socialflow/internal/domain"
)

// AnalyticsService folds the plan and event logs into per-day metric
// snapshots. The fold is pure: every bucket in range is recomputed from
// scratch, so out-of-order arrivals and repeated runs converge on the
// same aggregates.
type AnalyticsService struct {
	plans   PlanStore
	events  EventStore
	metrics MetricStore
	logger  *slog.Logger
}

func NewAnalyticsService(plans PlanStore, events EventStore, metrics MetricStore, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{
		plans:   plans,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *AnalyticsService) Rebuild(ctx context.Context, from, to, now time.Time) (*domain.RebuildReport, error) {
	startTime := time.Now()

	entries, err := s.plans.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list plan entries: %w", err)
	}
	events, err := s.events.ListObservedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	report := &domain.RebuildReport{}
	buckets := make(map[domain.BucketKey]*domain.MetricSnapshot)

	bucket := func(pl string, t time.Time) *domain.MetricSnapshot {
		key := domain.BucketKey{Platform: pl, Day: dayStartUTC(t)}
		b, ok := buckets[key]
		if !ok {
			b = &domain.MetricSnapshot{Platform: key.Platform, Day: key.Day, ComputedAt: now}
			buckets[key] = b
		}
		return b
	}

	for _, e := range entries {
		switch e.Status {
		case domain.PlanPublished:
			bucket(e.Platform, e.TargetAt).Published++
			report.Published++
		case domain.PlanFailed:
			bucket(e.Platform, e.TargetAt).Failed++
			report.Failed++
		}
	}

	for _, ev := range events {
		b := bucket(ev.Platform, ev.ObservedAt)
		switch ev.Kind {
		case domain.KindDirectMessage:
			b.DirectMessages++
		default:
			b.Comments++
		}
		switch ev.Status {
		case domain.EventResponded:
			b.Responses++
			report.Responses++
		case domain.EventEscalated:
			b.Escalations++
		}
		report.Events++
	}

	keys := make([]domain.BucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].Day.Equal(keys[j].Day) {
			return keys[i].Day.Before(keys[j].Day)
		}
		return keys[i].Platform < keys[j].Platform
	})

	for _, key := range keys {
		b := buckets[key]
		total := b.Comments + b.DirectMessages
		if total > 0 {
			b.EngagementRate = float64(b.Responses) / float64(total)
		}
		if err := s.metrics.Upsert(ctx, b); err != nil {
			return nil, fmt.Errorf("upsert snapshot %s/%s: %w", key.Platform, key.Day.Format("2006-01-02"), err)
		}
		report.Buckets++
	}

	report.Duration = time.Since(startTime)

	s.logger.Info("analytics rebuild completed",
		"buckets", report.Buckets,
		"published", report.Published,
		"failed", report.Failed,
		"events", report.Events,
		"responses", report.Responses,
		"duration", report.Duration,
	)

	return report, nil
}

// Snapshots returns the stored buckets inside the window, ordered by day
// then platform.
func (s *AnalyticsService) Snapshots(ctx context.Context, from, to time.Time) ([]domain.MetricSnapshot, error) {
	snaps, err := s.metrics.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

func dayStartUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

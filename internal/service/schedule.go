package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"socialflow/internal/config"
	"socialflow/internal/domain"
)

// ScheduleService assigns Draft content items to platform slots inside a
// rolling horizon. A single run is the only writer of the plan; only
// Draft items are touched, so re-running over a partially scheduled set
// changes nothing that is already Scheduled or Published.
type ScheduleService struct {
	content ContentStore
	plans   PlanStore
	tx      TransactionManager
	windows map[string]domain.CadenceWindow
	targets map[domain.Pillar]float64
	horizon int
	logger  *slog.Logger
}

func NewScheduleService(
	content ContentStore,
	plans PlanStore,
	tx TransactionManager,
	windows map[string]domain.CadenceWindow,
	cfg config.SchedulingConfig,
	logger *slog.Logger,
) *ScheduleService {
	targets := make(map[domain.Pillar]float64, len(cfg.PillarTargets))
	var total float64
	for _, share := range cfg.PillarTargets {
		total += share
	}
	for name, share := range cfg.PillarTargets {
		targets[domain.Pillar(name)] = share / total
	}

	return &ScheduleService{
		content: content,
		plans:   plans,
		tx:      tx,
		windows: windows,
		targets: targets,
		horizon: cfg.HorizonDays,
		logger:  logger,
	}
}

// slot is one feasible (platform, time) bucket candidate.
type slot struct {
	at       time.Time
	platform string
}

func (s *ScheduleService) Run(ctx context.Context, now time.Time) (*domain.ScheduleReport, error) {
	startTime := time.Now()

	drafts, err := s.content.ListByStatus(ctx, domain.ContentDraft)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	report := &domain.ScheduleReport{Drafts: len(drafts)}
	if len(drafts) == 0 {
		report.Duration = time.Since(startTime)
		return report, nil
	}

	// The store already orders by creation time; sort again so the
	// tie-break holds regardless of the backing implementation.
	sort.SliceStable(drafts, func(i, j int) bool {
		if !drafts[i].CreatedAt.Equal(drafts[j].CreatedAt) {
			return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
		}
		return drafts[i].ID < drafts[j].ID
	})

	horizonEnd := dayStart(now).AddDate(0, 0, s.horizon)

	occupied, err := s.loadOccupied(ctx, now, horizonEnd)
	if err != nil {
		return nil, err
	}

	counts, total, err := s.loadPillarCounts(ctx, now, horizonEnd)
	if err != nil {
		return nil, err
	}

	slots := s.candidateSlots(now, horizonEnd)

	s.logger.Info("starting scheduling pass",
		"drafts", len(drafts),
		"horizon_days", s.horizon,
		"candidate_slots", len(slots),
	)

	remaining := drafts
	for len(remaining) > 0 {
		idx := s.pickNext(remaining, counts, total)
		item := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		at, pl, ok := s.findSlot(&item, slots, occupied)
		if !ok {
			// Capacity exhausted for this item. Reported, never dropped.
			report.Capacity++
			report.Unscheduled = append(report.Unscheduled, item.ID)
			s.logger.Warn("no feasible slot within horizon", "content_id", item.ID, "pillar", item.Pillar)
			continue
		}

		err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.content.MarkScheduled(txCtx, item.ID, pl, at); err != nil {
				return fmt.Errorf("mark scheduled: %w", err)
			}
			entry := &domain.PublishPlanEntry{
				ContentID: item.ID,
				Platform:  pl,
				TargetAt:  at,
				Status:    domain.PlanPending,
			}
			if err := s.plans.Insert(txCtx, entry); err != nil {
				return fmt.Errorf("insert plan entry: %w", err)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// The item moved out of Draft under us, or a live
				// entry already exists. Leave it alone.
				s.logger.Warn("skipping conflicting item", "content_id", item.ID, "error", err)
			} else {
				s.logger.Error("failed to persist assignment", "content_id", item.ID, "error", err)
			}
			report.Errors++
			continue
		}

		occupied[pl] = insertSorted(occupied[pl], at)
		counts[item.Pillar]++
		total++
		report.Scheduled++

		s.logger.Debug("scheduled item",
			"content_id", item.ID,
			"pillar", item.Pillar,
			"platform", pl,
			"target_at", at,
		)
	}

	report.Duration = time.Since(startTime)

	s.logger.Info("scheduling pass completed",
		"scheduled", report.Scheduled,
		"capacity_exhausted", report.Capacity,
		"errors", report.Errors,
		"duration", report.Duration,
	)

	return report, nil
}

// loadOccupied collects existing non-failed plan entries around the
// horizon. Entries up to 24h before now still count against rolling caps.
func (s *ScheduleService) loadOccupied(ctx context.Context, now, horizonEnd time.Time) (map[string][]time.Time, error) {
	entries, err := s.plans.ListActiveBetween(ctx, now.Add(-24*time.Hour), horizonEnd.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list active plan entries: %w", err)
	}

	occupied := make(map[string][]time.Time)
	for _, e := range entries {
		occupied[e.Platform] = append(occupied[e.Platform], e.TargetAt)
	}
	for pl := range occupied {
		times := occupied[pl]
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		occupied[pl] = times
	}
	return occupied, nil
}

// loadPillarCounts seeds the realized pillar distribution with items
// already scheduled inside the horizon, so a re-run keeps converging
// toward the targets instead of starting from zero.
func (s *ScheduleService) loadPillarCounts(ctx context.Context, now, horizonEnd time.Time) (map[domain.Pillar]int, int, error) {
	scheduled, err := s.content.ListByStatus(ctx, domain.ContentScheduled)
	if err != nil {
		return nil, 0, fmt.Errorf("list scheduled items: %w", err)
	}

	counts := make(map[domain.Pillar]int)
	total := 0
	for _, item := range scheduled {
		if item.ScheduledAt == nil || item.ScheduledAt.Before(now) || !item.ScheduledAt.Before(horizonEnd) {
			continue
		}
		counts[item.Pillar]++
		total++
	}
	return counts, total, nil
}

// candidateSlots enumerates every allowed (platform, hour) bucket in the
// horizon, ordered by time then platform name for determinism.
func (s *ScheduleService) candidateSlots(now, horizonEnd time.Time) []slot {
	var slots []slot

	base := dayStart(now)
	for d := 0; ; d++ {
		day := base.AddDate(0, 0, d)
		if !day.Before(horizonEnd) {
			break
		}
		for pl, window := range s.windows {
			if window.Blackout(day) {
				continue
			}
			for _, hour := range window.AllowedHours {
				at := day.Add(time.Duration(hour) * time.Hour)
				if at.Before(now) || !at.Before(horizonEnd) {
					continue
				}
				slots = append(slots, slot{at: at, platform: pl})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].at.Equal(slots[j].at) {
			return slots[i].at.Before(slots[j].at)
		}
		return slots[i].platform < slots[j].platform
	})
	return slots
}

// pickNext selects the draft whose pillar is currently most
// under-represented relative to the targets; ties fall back to the fixed
// pillar order, and the drafts slice is already oldest-first.
func (s *ScheduleService) pickNext(remaining []domain.ContentItem, counts map[domain.Pillar]int, total int) int {
	available := make(map[domain.Pillar]bool)
	for _, item := range remaining {
		available[item.Pillar] = true
	}

	var chosen domain.Pillar
	best := 0.0
	found := false
	for _, p := range domain.Pillars {
		if !available[p] {
			continue
		}
		realized := 0.0
		if total > 0 {
			realized = float64(counts[p]) / float64(total)
		}
		deficit := s.targets[p] - realized
		if !found || deficit > best {
			chosen = p
			best = deficit
			found = true
		}
	}

	for i, item := range remaining {
		if item.Pillar == chosen {
			return i
		}
	}
	return 0
}

// findSlot returns the earliest feasible slot for the item. An item with
// a preassigned platform is confined to that platform's slots.
func (s *ScheduleService) findSlot(item *domain.ContentItem, slots []slot, occupied map[string][]time.Time) (time.Time, string, bool) {
	for _, c := range slots {
		if item.Platform != nil && *item.Platform != c.platform {
			continue
		}
		window, ok := s.windows[c.platform]
		if !ok {
			continue
		}
		if s.feasible(c.at, occupied[c.platform], window) {
			return c.at, c.platform, true
		}
	}
	return time.Time{}, "", false
}

func (s *ScheduleService) feasible(at time.Time, occ []time.Time, window domain.CadenceWindow) bool {
	for _, o := range occ {
		if o.Equal(at) {
			return false
		}
		gap := at.Sub(o)
		if gap < 0 {
			gap = -gap
		}
		if gap < window.MinSpacing {
			return false
		}
	}
	return !violatesRollingCap(at, occ, window.MaxPerDay)
}

// violatesRollingCap reports whether placing a post at t would push any
// 24h window containing t past the cap.
func violatesRollingCap(t time.Time, occ []time.Time, cap int) bool {
	if cap <= 0 {
		return false
	}

	var pts []time.Time
	for _, o := range occ {
		if o.After(t.Add(-24*time.Hour)) && o.Before(t.Add(24*time.Hour)) {
			pts = append(pts, o)
		}
	}
	pts = append(pts, t)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Before(pts[j]) })

	for i := range pts {
		end := pts[i].Add(24 * time.Hour)
		count := 0
		contains := false
		for _, p := range pts {
			if !p.Before(pts[i]) && p.Before(end) {
				count++
				if p.Equal(t) {
					contains = true
				}
			}
		}
		if contains && count > cap {
			return true
		}
	}
	return false
}

func insertSorted(times []time.Time, t time.Time) []time.Time {
	i := sort.Search(len(times), func(i int) bool { return times[i].After(t) })
	times = append(times, time.Time{})
	copy(times[i+1:], times[i:])
	times[i] = t
	return times
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

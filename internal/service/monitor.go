package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"socialflow/internal/config"
	"socialflow/internal/domain"
	"socialflow/internal/platform"
)

// classifyBatch bounds how many New events one cycle classifies.
const classifyBatch = 500

// MonitorService runs the engagement poll cycle: fetch, dedup against
// the event log, classify, respond within the platform's outbound
// budget. The log is the source of truth for dedup, so a restarted
// monitor never double-processes an event.
type MonitorService struct {
	events    EventStore
	adapters  *platform.Registry
	notifier  Notifier
	cfg       config.MonitorConfig
	platforms map[string]config.PlatformConfig
	limiters  map[string]*rate.Limiter
	logger    *slog.Logger
}

func NewMonitorService(
	events EventStore,
	adapters *platform.Registry,
	notifier Notifier,
	cfg config.MonitorConfig,
	platforms map[string]config.PlatformConfig,
	logger *slog.Logger,
) *MonitorService {
	limiters := make(map[string]*rate.Limiter, len(platforms))
	for name, p := range platforms {
		limiters[name] = rate.NewLimiter(rate.Limit(p.ResponsesPerSecond), 1)
	}
	return &MonitorService{
		events:    events,
		adapters:  adapters,
		notifier:  notifier,
		cfg:       cfg,
		platforms: platforms,
		limiters:  limiters,
		logger:    logger,
	}
}

func (s *MonitorService) RunCycle(ctx context.Context, pl string, now time.Time) (*domain.MonitorReport, error) {
	startTime := time.Now()
	logger := s.logger.With("platform", pl)
	report := &domain.MonitorReport{Platform: pl}

	adapter, err := s.adapters.Get(pl)
	if err != nil {
		return report, err
	}

	since, err := s.events.LatestObservedAt(ctx, pl)
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}
	if since.IsZero() {
		since = now.Add(-s.cfg.Lookback)
	}

	fetched, err := adapter.FetchRecentEvents(ctx, since)
	if err != nil {
		// Unreachable platform skips the cycle; the next one retries
		// independently.
		logger.Warn("poll failed, skipping cycle", "error", err)
		report.Skipped = true
		report.Duration = time.Since(startTime)
		return report, nil
	}
	report.Fetched = len(fetched)

	for i := range fetched {
		ev := &fetched[i]
		ev.Platform = pl
		ev.Status = domain.EventNew

		inserted, err := s.events.Insert(ctx, ev)
		if err != nil {
			logger.Error("failed to persist event", "native_id", ev.NativeID, "error", err)
			report.Errors++
			continue
		}
		if !inserted {
			report.Duplicates++
			continue
		}
		report.New++
	}

	if err := s.classifyNew(ctx, pl, report, logger); err != nil {
		return nil, err
	}

	if err := s.respond(ctx, adapter, pl, report, logger); err != nil {
		return nil, err
	}

	report.Duration = time.Since(startTime)

	logger.Info("monitor cycle completed",
		"fetched", report.Fetched,
		"new", report.New,
		"duplicates", report.Duplicates,
		"responded", report.Responded,
		"deferred", report.Deferred,
		"ignored", report.Ignored,
		"escalated", report.Escalated,
		"errors", report.Errors,
		"duration", report.Duration,
	)

	return report, nil
}

// classifyNew also picks up events left New by an interrupted cycle.
func (s *MonitorService) classifyNew(ctx context.Context, pl string, report *domain.MonitorReport, logger *slog.Logger) error {
	newEvents, err := s.events.ListByStatus(ctx, pl, domain.EventNew, classifyBatch)
	if err != nil {
		return fmt.Errorf("list new events: %w", err)
	}

	for i := range newEvents {
		ev := &newEvents[i]
		target := s.classify(ev)

		if err := s.events.UpdateStatus(ctx, ev.ID, domain.EventNew, target); err != nil {
			logger.Error("failed to update event status", "native_id", ev.NativeID, "error", err)
			report.Errors++
			continue
		}

		switch target {
		case domain.EventEscalated:
			report.Escalated++
			logger.Warn("escalating event", "native_id", ev.NativeID, "author", ev.Author)
			s.notifyEscalation(ctx, ev, logger)
		case domain.EventClassified:
			report.Classified++
		default:
			report.Ignored++
		}
	}
	return nil
}

// classify decides the next status for a freshly observed event.
// Risk keywords always win: those events are never auto-responded.
func (s *MonitorService) classify(ev *domain.EngagementEvent) domain.EventStatus {
	body := strings.ToLower(ev.Body)

	for _, kw := range s.cfg.RiskKeywords {
		if strings.Contains(body, kw) {
			return domain.EventEscalated
		}
	}

	if ev.Kind == domain.KindDirectMessage {
		return domain.EventClassified
	}
	if strings.Contains(body, "?") {
		return domain.EventClassified
	}
	for _, kw := range s.cfg.RespondKeywords {
		if strings.Contains(body, kw) {
			return domain.EventClassified
		}
	}
	return domain.EventIgnored
}

// respond dispatches templated replies for Classified events, bounded by
// the per-cycle budget. Events beyond the budget, and events whose send
// failed transiently, stay Classified for the next cycle.
func (s *MonitorService) respond(ctx context.Context, adapter platform.Adapter, pl string, report *domain.MonitorReport, logger *slog.Logger) error {
	pcfg := s.platforms[pl]

	classified, err := s.events.ListByStatus(ctx, pl, domain.EventClassified, pcfg.MaxResponsesPerCycle)
	if err != nil {
		return fmt.Errorf("list classified events: %w", err)
	}

	for i := range classified {
		ev := &classified[i]

		if lim := s.limiters[pl]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		text := s.renderResponse(ev)
		err := adapter.SendResponse(ctx, ev.NativeID, text)
		switch {
		case err == nil:
			if err := s.events.UpdateStatus(ctx, ev.ID, domain.EventClassified, domain.EventResponded); err != nil {
				logger.Error("failed to mark event responded", "native_id", ev.NativeID, "error", err)
				report.Errors++
				continue
			}
			report.Responded++
		case platform.IsTransient(err):
			logger.Warn("response deferred", "native_id", ev.NativeID, "error", err)
			report.Deferred++
		default:
			logger.Warn("permanent response failure, escalating", "native_id", ev.NativeID, "error", err)
			if err := s.events.UpdateStatus(ctx, ev.ID, domain.EventClassified, domain.EventEscalated); err != nil {
				logger.Error("failed to escalate event", "native_id", ev.NativeID, "error", err)
				report.Errors++
				continue
			}
			report.Escalated++
			s.notifyEscalation(ctx, ev, logger)
		}
	}
	return nil
}

func (s *MonitorService) renderResponse(ev *domain.EngagementEvent) string {
	tmpl := s.cfg.Templates.Comment
	if ev.Kind == domain.KindDirectMessage {
		tmpl = s.cfg.Templates.DirectMessage
	}
	name := ev.Author
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(tmpl, "{name}", name)
}

func (s *MonitorService) notifyEscalation(ctx context.Context, ev *domain.EngagementEvent, logger *slog.Logger) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Escalate(ctx, ev); err != nil {
		logger.Warn("escalation notification failed", "native_id", ev.NativeID, "error", err)
	}
}

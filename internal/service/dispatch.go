package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"socialflow/internal/config"
	"socialflow/internal/domain"
	"socialflow/internal/platform"
)

// DispatchService consumes due plan entries in timestamp order and
// executes them against the platform adapters. Per-entry failures never
// abort the pass; only a fatal adapter misconfiguration does.
type DispatchService struct {
	plans    PlanStore
	content  ContentStore
	adapters *platform.Registry
	notifier Notifier
	tx       TransactionManager
	cfg      config.DispatchConfig
	logger   *slog.Logger
}

func NewDispatchService(
	plans PlanStore,
	content ContentStore,
	adapters *platform.Registry,
	notifier Notifier,
	tx TransactionManager,
	cfg config.DispatchConfig,
	logger *slog.Logger,
) *DispatchService {
	return &DispatchService{
		plans:    plans,
		content:  content,
		adapters: adapters,
		notifier: notifier,
		tx:       tx,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *DispatchService) Run(ctx context.Context, now time.Time) (*domain.DispatchReport, error) {
	startTime := time.Now()

	// Entries abandoned InFlight by a previous process become Retrying,
	// due immediately.
	reconciled, err := s.plans.ReconcileInFlight(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("reconcile in-flight entries: %w", err)
	}
	if reconciled > 0 {
		s.logger.Warn("reconciled abandoned in-flight entries", "count", reconciled)
	}

	entries, err := s.plans.Due(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load due entries: %w", err)
	}

	report := &domain.DispatchReport{Due: len(entries)}

	for i := range entries {
		entry := &entries[i]

		adapter, err := s.adapters.Get(entry.Platform)
		if err != nil {
			// Misconfiguration: abort the pass, prior commits stay.
			report.Duration = time.Since(startTime)
			return report, err
		}

		if err := s.dispatchOne(ctx, adapter, entry, now, report); err != nil {
			report.Duration = time.Since(startTime)
			return report, err
		}
	}

	report.Duration = time.Since(startTime)

	s.logger.Info("dispatch pass completed",
		"due", report.Due,
		"published", report.Published,
		"retrying", report.Retrying,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)

	return report, nil
}

// dispatchOne executes a single due entry. A returned error is fatal and
// aborts the whole pass; per-entry failures are absorbed into the report.
func (s *DispatchService) dispatchOne(ctx context.Context, adapter platform.Adapter, entry *domain.PublishPlanEntry, now time.Time, report *domain.DispatchReport) error {
	logger := s.logger.With("entry_id", entry.ID, "content_id", entry.ContentID, "platform", entry.Platform)

	if err := s.plans.MarkInFlight(ctx, entry.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Another worker claimed it between the query and now.
			report.Skipped++
			return nil
		}
		logger.Error("failed to claim entry", "error", err)
		report.Skipped++
		return nil
	}

	item, err := s.content.GetByID(ctx, entry.ContentID)
	if err != nil {
		logger.Error("plan entry references unavailable item", "error", err)
		s.failEntry(ctx, entry, entry.Attempts, err.Error(), logger)
		report.Failed++
		return nil
	}

	nativeID, err := adapter.Publish(ctx, item)
	switch {
	case err == nil:
		txErr := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.plans.MarkPublished(txCtx, entry.ID, nativeID); err != nil {
				return fmt.Errorf("mark plan published: %w", err)
			}
			if err := s.content.MarkPublished(txCtx, item.ID); err != nil {
				return fmt.Errorf("mark item published: %w", err)
			}
			return nil
		})
		if txErr != nil {
			// The post went out but the outcome write failed; the entry
			// stays InFlight and reconciliation picks it up next pass.
			logger.Error("failed to record publish outcome", "native_post_id", nativeID, "error", txErr)
			report.Skipped++
			return nil
		}
		entry.Status = domain.PlanPublished
		entry.NativePostID = &nativeID
		report.Published++
		logger.Info("published", "native_post_id", nativeID)

		if s.notifier != nil {
			if err := s.notifier.PublishOutcome(ctx, entry); err != nil {
				logger.Warn("outcome notification failed", "error", err)
			}
		}

	case platform.IsFatal(err):
		// Misconfiguration surfacing mid-publish: abort the pass. The
		// entry stays InFlight and reconciliation demotes it next pass.
		logger.Error("adapter reported fatal error during publish", "error", err)
		return err

	case platform.IsTransient(err):
		s.retryEntry(ctx, entry, now, err.Error(), logger, report)

	default:
		// Permanent (auth/validation) or unclassified: terminal, no retry.
		logger.Warn("permanent publish failure", "error", err)
		s.failEntry(ctx, entry, entry.Attempts+1, err.Error(), logger)
		report.Failed++
	}
	return nil
}

func (s *DispatchService) retryEntry(ctx context.Context, entry *domain.PublishPlanEntry, now time.Time, reason string, logger *slog.Logger, report *domain.DispatchReport) {
	attempts := entry.Attempts + 1
	if attempts >= s.cfg.MaxAttempts {
		logger.Warn("retry budget exhausted", "attempts", attempts)
		s.failEntry(ctx, entry, attempts, reason, logger)
		report.Failed++
		return
	}

	next := now.Add(s.backoff(entry.Attempts))
	if err := s.plans.MarkRetrying(ctx, entry.ID, attempts, next, reason); err != nil {
		logger.Error("failed to mark entry retrying", "error", err)
		report.Skipped++
		return
	}
	report.Retrying++
	logger.Info("transient publish failure, will retry", "attempts", attempts, "next_attempt_at", next)
}

func (s *DispatchService) failEntry(ctx context.Context, entry *domain.PublishPlanEntry, attempts int, reason string, logger *slog.Logger) {
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.plans.MarkFailed(txCtx, entry.ID, attempts, reason); err != nil {
			return fmt.Errorf("mark plan failed: %w", err)
		}
		if err := s.content.MarkFailed(txCtx, entry.ContentID); err != nil {
			return fmt.Errorf("mark item failed: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to record terminal failure", "error", err)
	}
}

// backoff computes base × 2^attempts, capped at the configured maximum.
func (s *DispatchService) backoff(attempts int) time.Duration {
	if attempts > 20 {
		attempts = 20
	}
	d := s.cfg.BaseBackoff * time.Duration(1<<attempts)
	if d > s.cfg.MaxBackoff || d <= 0 {
		d = s.cfg.MaxBackoff
	}
	return d
}

package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"socialflow/internal/config"
	"socialflow/internal/domain"
)

// Dispatcher executes one dispatcher pass.
type Dispatcher interface {
	Run(ctx context.Context, now time.Time) (*domain.DispatchReport, error)
}

// Monitor executes one engagement poll cycle for one platform.
type Monitor interface {
	RunCycle(ctx context.Context, platform string, now time.Time) (*domain.MonitorReport, error)
}

// cycleTimeout bounds a single pass so a hung adapter call cannot block
// shutdown indefinitely.
const cycleTimeout = 5 * time.Minute

// Worker runs the dispatcher loop and one monitor loop per platform.
// Loops are independent: a failing cycle is logged and the next tick
// retries; only context cancellation stops them.
type Worker struct {
	dispatcher Dispatcher
	monitor    Monitor
	platforms  map[string]config.PlatformConfig
	logger     *slog.Logger
}

func New(dispatcher Dispatcher, monitor Monitor, platforms map[string]config.PlatformConfig, logger *slog.Logger) *Worker {
	return &Worker{
		dispatcher: dispatcher,
		monitor:    monitor,
		platforms:  platforms,
		logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	dispatchInterval := minDispatchInterval(w.platforms)

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.dispatchLoop(ctx, dispatchInterval)
	}()

	for name, p := range w.platforms {
		wg.Add(1)
		go func(name string, interval time.Duration) {
			defer wg.Done()
			w.monitorLoop(ctx, name, interval)
		}(name, p.PollInterval)
	}

	w.logger.Info("worker started",
		"platforms", len(w.platforms),
		"dispatch_interval", dispatchInterval,
	)

	<-ctx.Done()
	wg.Wait()
	w.logger.Info("worker stopped")
	return ctx.Err()
}

// minDispatchInterval picks the tightest configured dispatch interval so
// the single dispatcher loop keeps up with the most demanding platform.
// Unset intervals are ignored; one minute is the fallback when nothing is
// configured.
func minDispatchInterval(platforms map[string]config.PlatformConfig) time.Duration {
	var interval time.Duration
	for _, p := range platforms {
		if p.DispatchInterval <= 0 {
			continue
		}
		if interval == 0 || p.DispatchInterval < interval {
			interval = p.DispatchInterval
		}
	}
	if interval == 0 {
		interval = time.Minute
	}
	return interval
}

func (w *Worker) dispatchLoop(ctx context.Context, interval time.Duration) {
	w.runDispatch(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runDispatch(ctx)
		}
	}
}

func (w *Worker) runDispatch(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	if _, err := w.dispatcher.Run(cycleCtx, time.Now()); err != nil {
		w.logger.Error("dispatch pass failed", "error", err)
	}
}

func (w *Worker) monitorLoop(ctx context.Context, platform string, interval time.Duration) {
	w.runMonitor(ctx, platform)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runMonitor(ctx, platform)
		}
	}
}

func (w *Worker) runMonitor(ctx context.Context, platform string) {
	cycleCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	if _, err := w.monitor.RunCycle(cycleCtx, platform, time.Now()); err != nil {
		w.logger.Error("monitor cycle failed", "platform", platform, "error", err)
	}
}

package worker

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"socialflow/internal/config"
	"socialflow/internal/domain"
)

type countingDispatcher struct {
	runs atomic.Int32
}

func (d *countingDispatcher) Run(ctx context.Context, now time.Time) (*domain.DispatchReport, error) {
	d.runs.Add(1)
	return &domain.DispatchReport{}, nil
}

type countingMonitor struct {
	runs atomic.Int32
}

func (m *countingMonitor) RunCycle(ctx context.Context, platform string, now time.Time) (*domain.MonitorReport, error) {
	m.runs.Add(1)
	return &domain.MonitorReport{Platform: platform}, nil
}

func TestMinDispatchInterval(t *testing.T) {
	tests := []struct {
		name      string
		platforms map[string]config.PlatformConfig
		want      time.Duration
	}{
		{
			// A single platform keeps exactly what it configured, even
			// above the one-minute fallback.
			name:      "single above fallback",
			platforms: map[string]config.PlatformConfig{"a": {DispatchInterval: 10 * time.Minute}},
			want:      10 * time.Minute,
		},
		{
			name: "minimum across platforms",
			platforms: map[string]config.PlatformConfig{
				"a": {DispatchInterval: 10 * time.Minute},
				"b": {DispatchInterval: 2 * time.Minute},
			},
			want: 2 * time.Minute,
		},
		{
			name:      "below fallback",
			platforms: map[string]config.PlatformConfig{"a": {DispatchInterval: 15 * time.Second}},
			want:      15 * time.Second,
		},
		{
			name:      "unset falls back",
			platforms: map[string]config.PlatformConfig{"a": {}},
			want:      time.Minute,
		},
		{
			name:      "no platforms falls back",
			platforms: map[string]config.PlatformConfig{},
			want:      time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, minDispatchInterval(tt.platforms))
		})
	}
}

func TestWorker_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	dispatcher := &countingDispatcher{}
	monitor := &countingMonitor{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	platforms := map[string]config.PlatformConfig{
		"instagram": {PollInterval: time.Hour, DispatchInterval: time.Hour},
		"linkedin":  {PollInterval: time.Hour, DispatchInterval: time.Hour},
	}

	w := New(dispatcher, monitor, platforms, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	// Each loop fires once before its first tick.
	assert.Eventually(t, func() bool {
		return dispatcher.runs.Load() >= 1 && monitor.runs.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_TicksOnInterval(t *testing.T) {
	dispatcher := &countingDispatcher{}
	monitor := &countingMonitor{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	platforms := map[string]config.PlatformConfig{
		"instagram": {PollInterval: 20 * time.Millisecond, DispatchInterval: 20 * time.Millisecond},
	}

	w := New(dispatcher, monitor, platforms, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		return dispatcher.runs.Load() >= 3 && monitor.runs.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"

	"socialflow/internal/config"
	"socialflow/internal/domain"
	"socialflow/internal/generator"
	"socialflow/internal/notifier"
	"socialflow/internal/platform"
	"socialflow/internal/platform/buffer"
	"socialflow/internal/service"
	"socialflow/internal/storage/postgres"
	"socialflow/internal/worker"
)

// Exit codes: 0 all work done, 3 completed with leftover (capacity or
// retrying items, non-fatal), 1 fatal configuration/connectivity error.
const exitPartial = 3

func main() {
	app := &cli.App{
		Name:  "socialflow",
		Usage: "content calendar scheduling and engagement automation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yaml",
				Usage: "path to config file",
			},
		},
		Commands: []*cli.Command{
			scheduleCommand(),
			dispatchCommand(),
			monitorCommand(),
			reportCommand(),
			generateCommand(),
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env carries everything a command needs, wired once per invocation.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	content  *postgres.ContentStore
	plans    *postgres.PlanStore
	events   *postgres.EventStore
	metrics  *postgres.MetricStore
	tx       *postgres.TransactionManager
	registry *platform.Registry
}

func setup(c *cli.Context) (*env, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	registry := platform.NewRegistry()
	for name, p := range cfg.Platforms {
		registry.Register(name, buffer.New(buffer.Config{
			Platform:    name,
			BaseURL:     p.BaseURL,
			ProfileID:   p.ProfileID,
			AccessToken: p.AccessToken,
			Timeout:     p.Timeout,
		}, logger))
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		content:  postgres.NewContentStore(db),
		plans:    postgres.NewPlanStore(db),
		events:   postgres.NewEventStore(db),
		metrics:  postgres.NewMetricStore(db),
		tx:       postgres.NewTransactionManager(db),
		registry: registry,
	}, nil
}

func (e *env) close() {
	e.db.Close()
}

func (e *env) notifier() (*notifier.RabbitMQ, error) {
	return notifier.NewRabbitMQ(notifier.Config{
		URL:             e.cfg.RabbitMQ.URL,
		Exchange:        e.cfg.RabbitMQ.Exchange,
		OutcomeQueue:    e.cfg.RabbitMQ.Queues.Outcomes,
		EscalationQueue: e.cfg.RabbitMQ.Queues.Escalations,
	}, e.logger)
}

func (e *env) windows() map[string]domain.CadenceWindow {
	windows := make(map[string]domain.CadenceWindow, len(e.cfg.Platforms))
	for name, p := range e.cfg.Platforms {
		windows[name] = p.Cadence.Window()
	}
	return windows
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "run one scheduling pass over Draft items",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()

			svc := service.NewScheduleService(e.content, e.plans, e.tx, e.windows(), e.cfg.Scheduling, e.logger)
			report, err := svc.Run(c.Context, time.Now())
			if err != nil {
				return err
			}

			if report.Capacity > 0 {
				return cli.Exit(fmt.Sprintf("scheduled %d, capacity exhausted for %d items: %v",
					report.Scheduled, report.Capacity, report.Unscheduled), exitPartial)
			}
			return nil
		},
	}
}

func dispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "run one dispatcher pass over due plan entries",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.notifier()
			if err != nil {
				return err
			}
			defer n.Close()

			svc := service.NewDispatchService(e.plans, e.content, e.registry, n, e.tx, e.cfg.Dispatch, e.logger)
			report, err := svc.Run(c.Context, time.Now())
			if err != nil {
				return err
			}

			if report.Retrying > 0 || report.Failed > 0 {
				return cli.Exit(fmt.Sprintf("published %d, retrying %d, failed %d",
					report.Published, report.Retrying, report.Failed), exitPartial)
			}
			return nil
		},
	}
}

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "run one engagement monitor cycle per platform",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.notifier()
			if err != nil {
				return err
			}
			defer n.Close()

			svc := service.NewMonitorService(e.events, e.registry, n, e.cfg.Monitor, e.cfg.Platforms, e.logger)

			partial := false
			for name := range e.cfg.Platforms {
				report, err := svc.RunCycle(c.Context, name, time.Now())
				if err != nil {
					return err
				}
				if report.Skipped || report.Deferred > 0 {
					partial = true
				}
			}

			if partial {
				return cli.Exit("completed with skipped cycles or deferred responses", exitPartial)
			}
			return nil
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "rebuild metric snapshots from the plan and event logs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Value: 30,
				Usage: "window size in days, ending now",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()

			now := time.Now()
			from := now.AddDate(0, 0, -c.Int("days"))

			svc := service.NewAnalyticsService(e.plans, e.events, e.metrics, e.logger)
			if _, err := svc.Rebuild(c.Context, from, now, now); err != nil {
				return err
			}

			snaps, err := svc.Snapshots(c.Context, from, now)
			if err != nil {
				return err
			}
			for _, snap := range snaps {
				e.logger.Info("snapshot",
					"day", snap.Day.Format("2006-01-02"),
					"platform", snap.Platform,
					"published", snap.Published,
					"failed", snap.Failed,
					"comments", snap.Comments,
					"direct_messages", snap.DirectMessages,
					"responses", snap.Responses,
					"escalations", snap.Escalations,
					"engagement_rate", snap.EngagementRate,
				)
			}
			return nil
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "create Draft items through the generation provider",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pillar", Required: true, Usage: "content pillar tag"},
			&cli.StringFlag{Name: "topic", Required: true, Usage: "topic to write about"},
			&cli.StringFlag{Name: "platform", Usage: "pin the draft to one platform"},
			&cli.IntFlag{Name: "count", Value: 1, Usage: "number of drafts"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()

			pillar, err := domain.ParsePillar(c.String("pillar"))
			if err != nil {
				return err
			}
			var pl *string
			if v := c.String("platform"); v != "" {
				if _, err := e.registry.Get(v); err != nil {
					return err
				}
				pl = &v
			}

			gen := generator.NewOpenAI(generator.Config{
				APIKey:     e.cfg.OpenAI.APIKey,
				Model:      e.cfg.OpenAI.Model,
				BrandVoice: e.cfg.OpenAI.BrandVoice,
			}, e.logger)

			created := 0
			for i := 0; i < c.Int("count"); i++ {
				body, err := gen.GenerateBody(c.Context, pillar, c.String("topic"))
				if err != nil {
					e.logger.Error("draft failed to materialize", "error", err)
					continue
				}
				item := &domain.ContentItem{
					ID:        uuid.NewString(),
					Body:      body,
					Pillar:    pillar,
					Platform:  pl,
					Status:    domain.ContentDraft,
					CreatedAt: time.Now().UTC(),
				}
				if err := e.content.Insert(c.Context, item); err != nil {
					return fmt.Errorf("insert draft: %w", err)
				}
				created++
			}

			e.logger.Info("drafts created", "requested", c.Int("count"), "created", created)
			if created < c.Int("count") {
				return cli.Exit(fmt.Sprintf("created %d of %d drafts", created, c.Int("count")), exitPartial)
			}
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the dispatcher and monitor loops until interrupted",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.notifier()
			if err != nil {
				return err
			}
			defer n.Close()

			dispatch := service.NewDispatchService(e.plans, e.content, e.registry, n, e.tx, e.cfg.Dispatch, e.logger)
			monitor := service.NewMonitorService(e.events, e.registry, n, e.cfg.Monitor, e.cfg.Platforms, e.logger)

			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w := worker.New(dispatch, monitor, e.cfg.Platforms, e.logger)
			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

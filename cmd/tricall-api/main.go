package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/tricall/pkg/cmd"
	"github.com/dukex/tricall/pkg/engines"
	"github.com/dukex/tricall/pkg/engines/remote"
	"github.com/dukex/tricall/pkg/engines/rulebased"
	"github.com/dukex/tricall/pkg/intake/queue"
	"github.com/dukex/tricall/pkg/log"
	"github.com/dukex/tricall/pkg/otelhelper"
	"github.com/dukex/tricall/pkg/retention"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "tricall-api",
		Usage:                 "Run call transcripts through the decision pipeline",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "engine-url",
				Usage:   "Base URL of the remote analysis engine; the built-in rule engine is used when empty",
				Sources: cli.EnvVars("ENGINE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for queued run requests; the queue intake is disabled when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "stage-timeout",
				Usage:   "Timeout for each pipeline stage call",
				Value:   60 * time.Second,
				Sources: cli.EnvVars("STAGE_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "retention-max-age",
				Usage:   "Delete terminal runs older than this; retention is disabled when zero",
				Sources: cli.EnvVars("RETENTION_MAX_AGE"),
			},
			&cli.StringFlag{
				Name:    "retention-cron",
				Usage:   "Cron schedule for the retention sweep",
				Value:   "@hourly",
				Sources: cli.EnvVars("RETENTION_CRON"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Tricall API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var engine engines.Engine
			var classifier engines.Classifier

			if engineURL := command.String("engine-url"); engineURL != "" {
				remoteEngine := remote.NewEngine(engineURL, command.Duration("stage-timeout"))
				engine = remoteEngine
				classifier = remoteEngine

				logger.InfoContext(ctx, "Using remote engine", "url", engineURL)
			} else {
				ruleEngine := rulebased.NewEngine()
				engine = ruleEngine
				classifier = ruleEngine

				logger.InfoContext(ctx, "Using built-in rule engine")
			}

			var tracer trace.Tracer

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "tricall-api")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without tracing", "error", err)
				}
			}

			api := NewAPI(
				logger,
				persistence,
				engine,
				classifier,
				eventBus,
				tracer,
				command.Duration("stage-timeout"),
			)

			if redisURL := command.String("redis-url"); redisURL != "" {
				intake := queue.NewIntake(redisURL, "", api.Orchestrator().StartRun, logger)
				if err := intake.Start(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to start queue intake", "error", err)

					return err
				}

				defer func() {
					if err := intake.Stop(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to stop queue intake", "error", err)
					}
				}()
			}

			if maxAge := command.Duration("retention-max-age"); maxAge > 0 {
				sweeper, err := retention.NewSweeper(persistence, maxAge, command.String("retention-cron"), logger)
				if err != nil {
					return err
				}

				if err := sweeper.Start(ctx); err != nil {
					return err
				}

				defer sweeper.Stop()
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

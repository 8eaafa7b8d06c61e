// Package main provides the Tricall API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/tricall/pkg/approval"
	"github.com/dukex/tricall/pkg/engines"
	"github.com/dukex/tricall/pkg/eventbus"
	"github.com/dukex/tricall/pkg/execution"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/dukex/tricall/pkg/pipeline"
	"github.com/dukex/tricall/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	engine       engines.Engine
	classifier   engines.Classifier
	eventBus     eventbus.EventBus
	tracer       trace.Tracer
	stageTimeout time.Duration
	validate     *validator.Validate

	orchestrator *pipeline.Orchestrator
	gate         *approval.Gate
	tracker      *execution.Tracker
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	engine engines.Engine,
	classifier engines.Classifier,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	stageTimeout time.Duration,
) *API {
	return &API{
		logger:       logger,
		persistence:  p,
		engine:       engine,
		classifier:   classifier,
		eventBus:     eventBus,
		tracer:       tracer,
		stageTimeout: stageTimeout,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) Orchestrator() *pipeline.Orchestrator {
	if a.orchestrator == nil {
		a.buildPipeline()
	}

	return a.orchestrator
}

func (a *API) buildPipeline() {
	a.gate = approval.NewGate(a.persistence, a.eventBus, a.logger)
	registry := execution.DefaultRegistry(a.logger)
	a.tracker = execution.NewTracker(a.persistence, registry, a.eventBus, a.logger)

	a.orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		Persistence:  a.persistence,
		Engine:       a.engine,
		Classifier:   a.classifier,
		Gate:         a.gate,
		Tracker:      a.tracker,
		EventBus:     a.eventBus,
		Tracer:       a.tracer,
		Logger:       a.logger,
		StageTimeout: a.stageTimeout,
	})
}

func (a *API) App() *fiber.App {
	orchestrator := a.Orchestrator()
	handlers := web.NewAPIHandlers(orchestrator, a.gate, a.tracker, a.persistence, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Tricall API")
	})

	runs := app.Group("/runs")
	runs.Post("/", handlers.StartRun)
	runs.Get("/:id/status", handlers.GetRunStatus)
	runs.Post("/:id/cancel", handlers.CancelRun)

	workflows := app.Group("/workflows")
	workflows.Post("/:id/approve", handlers.ApproveWorkflow)
	workflows.Post("/:id/reject", handlers.RejectWorkflow)
	workflows.Post("/:id/steps/:n/execute", handlers.ExecuteStep)

	app.Get("/executions/hierarchical", handlers.GetHierarchicalExecutions)

	transcripts := app.Group("/transcripts")
	transcripts.Post("/", handlers.CreateTranscript)
	transcripts.Get("/", handlers.GetTranscripts)
	transcripts.Get("/:id", handlers.GetTranscript)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

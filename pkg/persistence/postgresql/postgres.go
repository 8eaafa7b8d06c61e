// Package postgresql provides PostgreSQL persistence for pipeline entities.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/tricall/pkg/persistence"
	"github.com/dukex/tricall/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	transcripts *TranscriptRepository
	analyses    *AnalysisRepository
	plans       *PlanRepository
	workflows   *WorkflowRepository
	runs        *RunRepository
}

// NewPersistence connects, runs migrations and returns the persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		transcripts: NewTranscriptRepository(database),
		analyses:    NewAnalysisRepository(database),
		plans:       NewPlanRepository(database),
		workflows:   NewWorkflowRepository(database),
		runs:        NewRunRepository(database),
	}, nil
}

func (p *Persistence) Transcripts() persistence.TranscriptRepository { return p.transcripts }
func (p *Persistence) Analyses() persistence.AnalysisRepository      { return p.analyses }
func (p *Persistence) Plans() persistence.PlanRepository             { return p.plans }
func (p *Persistence) Workflows() persistence.WorkflowRepository     { return p.workflows }
func (p *Persistence) Runs() persistence.RunRepository               { return p.runs }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

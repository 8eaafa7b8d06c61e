// Package retention prunes terminal runs and their derived entities on a cron
// schedule so the store stays bounded.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// Sweeper deletes runs that reached a terminal status longer than maxAge ago,
// together with the analyses, plans and workflows produced for them.
// Transcripts are inputs, not pipeline output, and are never deleted.
type Sweeper struct {
	persistence persistence.Persistence
	maxAge      time.Duration
	cronExpr    string
	cron        *cron.Cron
	logger      *slog.Logger
}

func NewSweeper(p persistence.Persistence, maxAge time.Duration, cronExpr string, logger *slog.Logger) (*Sweeper, error) {
	if maxAge <= 0 {
		return nil, errors.New("retention max age must be positive")
	}

	if cronExpr == "" {
		cronExpr = "@hourly"
	}

	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return &Sweeper{
		persistence: p,
		maxAge:      maxAge,
		cronExpr:    cronExpr,
		logger: logger.With(
			"module", "retention_sweeper",
			"cron", cronExpr,
			"max_age", maxAge.String(),
		),
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.cronExpr, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Retention sweeper started")

	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep performs one pass and returns how many runs were removed. A failure on
// one run's lineage is logged and skipped; remaining runs are still swept.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)

	expired, err := s.persistence.Runs().ListTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired runs: %w", err)
	}

	removed := 0

	for _, run := range expired {
		if err := s.deleteRun(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "Failed to sweep run",
				"run_id", run.ID,
				"error", err)

			continue
		}

		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "Retention sweep completed",
			"removed", removed,
			"cutoff", cutoff)
	}

	return removed, nil
}

// deleteRun removes a run's lineage bottom-up: workflows first, then plans and
// analyses, the run record last, so a partial failure leaves the run
// discoverable for the next sweep.
func (s *Sweeper) deleteRun(ctx context.Context, run *models.Run) error {
	for _, result := range run.Results {
		if err := s.deleteWorkflows(ctx, result.PlanID); err != nil {
			return err
		}

		if result.PlanID != "" {
			if err := s.persistence.Plans().Delete(ctx, result.PlanID); err != nil && !persistence.IsNotFound(err) {
				return err
			}
		}

		if result.AnalysisID != "" {
			if err := s.persistence.Analyses().Delete(ctx, result.AnalysisID); err != nil && !persistence.IsNotFound(err) {
				return err
			}
		}
	}

	return s.persistence.Runs().Delete(ctx, run.ID)
}

func (s *Sweeper) deleteWorkflows(ctx context.Context, planID string) error {
	if planID == "" {
		return nil
	}

	workflows, err := s.persistence.Workflows().ListByStatus(ctx, "", 0)
	if err != nil {
		return err
	}

	for _, workflow := range workflows {
		if workflow.PlanID != planID {
			continue
		}

		if err := s.persistence.Workflows().Delete(ctx, workflow.ID); err != nil && !persistence.IsNotFound(err) {
			return err
		}
	}

	return nil
}

package web

import (
	"errors"

	"github.com/dukex/tricall/pkg/execution"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/dukex/tricall/pkg/pipeline"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps the error taxonomy onto problem responses: validation
// failures to 400, missing entities to 404, illegal state moves to 409, and
// anything unrecognized to 500 without leaking internals.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrEmptyBatch):
		return badRequest(c, err.Error())

	case errors.Is(err, models.ErrMissingReason):
		return badRequest(c, err.Error())

	case errors.Is(err, models.ErrInvalidTransition):
		return conflict(c, err.Error())

	case errors.Is(err, execution.ErrStepNotFound):
		return notFound(c, "execution step not found")

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}

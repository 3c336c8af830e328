// Package run exposes the run lifecycle API: create a reconciliation run
// over a bounding box, ingest records against its id, then trigger
// execution and poll it by id.
package run

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	runrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/run"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/processor"
)

// Handler serves run endpoints
type Handler struct {
	logger    ectologger.Logger
	repo      *runrepo.Repository
	processor *processor.Processor
	validate  *validator.Validate
}

// NewHandler creates a run handler
func NewHandler(logger ectologger.Logger, repo *runrepo.Repository, proc *processor.Processor) *Handler {
	return &Handler{
		logger:    logger,
		repo:      repo,
		processor: proc,
		validate:  validator.New(),
	}
}

// Register registers run routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/merge/run", h.CreateRun)
	g.POST("/merge/runs/:id/execute", h.ExecuteRun)
	g.GET("/merge/runs", h.ListRuns)
	g.GET("/merge/runs/:id", h.GetRun)
}

// CreateRun registers a pending run over a bounding box and returns its
// id. Execution does not start here: callers first ingest records keyed
// by the returned id, then trigger the execute endpoint. Ingested records
// only exist after the id is known, so starting the pipeline at creation
// time would always load an empty run.
func (h *Handler) CreateRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.BBox.Validate(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	run, err := h.repo.Create(ctx, req.BBox)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, run)
}

// ExecuteRun starts pipeline execution for a pending run. The run
// executes asynchronously; the response carries the run to poll.
// Executing a run that already started is a conflict.
func (h *Handler) ExecuteRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !run.Startable() {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("run %s is %s, only a pending run can execute", run.ID, run.Status))
	}

	// The request context dies with the response; the run does not.
	go func() {
		if err := h.processor.ProcessRun(context.Background(), run.ID); err != nil {
			h.logger.WithError(err).WithFields(map[string]any{"run_id": run.ID}).Error("Background run failed")
		}
	}()

	return c.JSON(http.StatusAccepted, run)
}

// GetRun returns a run with its summary once completed
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, run)
}

// ListRuns returns recent runs, newest first
func (h *Handler) ListRuns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}

	runs, err := h.repo.List(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, runs)
}

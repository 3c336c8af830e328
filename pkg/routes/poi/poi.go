// Package poi serves reconciled points of interest as GeoJSON.
package poi

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	mergedpoirepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/mergedpoi"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

// Handler serves merged POI endpoints
type Handler struct {
	logger ectologger.Logger
	repo   *mergedpoirepo.Repository
}

// NewHandler creates a POI handler
func NewHandler(logger ectologger.Logger, repo *mergedpoirepo.Repository) *Handler {
	return &Handler{
		logger: logger,
		repo:   repo,
	}
}

// Register registers POI routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/poi", h.ListPOIs)
	g.GET("/poi/:id", h.GetPOI)
}

// ListPOIs returns the merged POIs of a run as a GeoJSON FeatureCollection.
// min_confidence filters out low-confidence singletons when set.
func (h *Handler) ListPOIs(c echo.Context) error {
	ctx := c.Request().Context()

	runID := c.QueryParam("run_id")
	if runID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "run_id is required")
	}

	minConfidence := 0.0
	if raw := c.QueryParam("min_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "min_confidence must be a number in [0, 1]")
		}
		minConfidence = parsed
	}

	pois, err := h.repo.ListByRun(ctx, runID, minConfidence)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.NewFeatureCollection(pois))
}

// GetPOI returns a single merged POI as a GeoJSON Feature
func (h *Handler) GetPOI(c echo.Context) error {
	ctx := c.Request().Context()

	runID := c.QueryParam("run_id")
	if runID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "run_id is required")
	}

	poi, err := h.repo.Get(ctx, runID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, poi.ToFeature())
}

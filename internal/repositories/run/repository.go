// Package run persists pipeline run lifecycle records.
package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/database"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

const columns = "id, min_lon, min_lat, max_lon, max_lat, status, summary, error, created_at, started_at, completed_at"

// Repository handles pipeline run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// row flattens PipelineRun for sqlx scanning.
type row struct {
	ID          string          `db:"id"`
	MinLon      float64         `db:"min_lon"`
	MinLat      float64         `db:"min_lat"`
	MaxLon      float64         `db:"max_lon"`
	MaxLat      float64         `db:"max_lat"`
	Status      string          `db:"status"`
	Summary     json.RawMessage `db:"summary"`
	Error       *string         `db:"error"`
	CreatedAt   time.Time       `db:"created_at"`
	StartedAt   *time.Time      `db:"started_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

func (r row) toModel() (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		ID: r.ID,
		BBox: models.BoundingBox{
			MinLon: r.MinLon,
			MinLat: r.MinLat,
			MaxLon: r.MaxLon,
			MaxLat: r.MaxLat,
		},
		Status:      models.RunStatus(r.Status),
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	if len(r.Summary) > 0 && string(r.Summary) != "null" {
		var summary models.RunSummary
		if err := json.Unmarshal(r.Summary, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode run summary: %w", err)
		}
		run.Summary = &summary
	}
	return run, nil
}

// Create inserts a new pending run for the given bounding box
func (r *Repository) Create(ctx context.Context, bbox models.BoundingBox) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Create")
	defer span.End()

	run := &models.PipelineRun{
		ID:        uuid.New().String(),
		BBox:      bbox,
		Status:    models.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("pipeline_runs")
	sb.Cols("id", "min_lon", "min_lat", "max_lon", "max_lat", "status", "created_at")
	sb.Values(run.ID, bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat, run.Status, run.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": run.ID}).Error("Failed to create pipeline run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create run")
	}

	return run, nil
}

// Get retrieves a run by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("pipeline_runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var rec row
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pipeline run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get run")
	}

	run, err := rec.toModel()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to decode pipeline run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get run")
	}
	return run, nil
}

// List retrieves recent runs, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("pipeline_runs")
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var recs []row
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pipeline runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}

	runs := make([]models.PipelineRun, 0, len(recs))
	for _, rec := range recs {
		run, err := rec.toModel()
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to decode pipeline run")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// MarkRunning transitions a run to running and stamps the start time
func (r *Repository) MarkRunning(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.MarkRunning")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("pipeline_runs")
	sb.Set(
		sb.Assign("status", models.RunStatusRunning),
		sb.Assign("started_at", now),
	)
	sb.Where(sb.Equal("id", id))

	return r.exec(ctx, sb, id, "failed to mark run running")
}

// MarkCompleted records the summary and transitions the run to completed
func (r *Repository) MarkCompleted(ctx context.Context, id string, summary models.RunSummary) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.MarkCompleted")
	defer span.End()

	payload, err := json.Marshal(summary)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to encode run summary")
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("pipeline_runs")
	sb.Set(
		sb.Assign("status", models.RunStatusCompleted),
		sb.Assign("summary", payload),
		sb.Assign("completed_at", now),
	)
	sb.Where(sb.Equal("id", id))

	return r.exec(ctx, sb, id, "failed to mark run completed")
}

// MarkFailed records the failure cause and transitions the run to failed
func (r *Repository) MarkFailed(ctx context.Context, id string, cause string) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.MarkFailed")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("pipeline_runs")
	sb.Set(
		sb.Assign("status", models.RunStatusFailed),
		sb.Assign("error", cause),
		sb.Assign("completed_at", now),
	)
	sb.Where(sb.Equal("id", id))

	return r.exec(ctx, sb, id, "failed to mark run failed")
}

func (r *Repository) exec(ctx context.Context, sb *sqlbuilder.UpdateBuilder, id string, msg string) error {
	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": id}).Error("Failed to update pipeline run")
		return httperror.NewHTTPError(http.StatusInternalServerError, msg)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("run %s not found", id))
	}
	return nil
}

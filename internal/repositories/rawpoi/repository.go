// Package rawpoi persists ingested source records.
package rawpoi

import (
	"context"
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

// Repository handles raw POI persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new raw POI repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts raw records for a run. Re-ingesting the same source
// record within a run updates it in place rather than duplicating it.
func (r *Repository) CreateBatch(ctx context.Context, pois []models.RawPOI) error {
	ctx, span := tracing.StartSpan(ctx, "rawpoi.Repository.CreateBatch")
	defer span.End()

	if len(pois) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("raw_pois")
	sb.Cols("id", "run_id", "source", "source_id", "name", "category", "latitude", "longitude", "phone", "website", "metadata", "created_at")

	for i := range pois {
		p := &pois[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		sb.Values(p.ID, p.RunID, p.Source, p.SourceID, p.Name, p.Category, p.Latitude, p.Longitude, p.Phone, p.Website, p.Metadata, p.CreatedAt)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (run_id, source, source_id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, phone = EXCLUDED.phone, website = EXCLUDED.website, metadata = EXCLUDED.metadata"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create raw POI batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create raw pois")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(pois)}).Debug("Created raw POI batch")
	return nil
}

// ListByRun retrieves one source's records for a run, ordered by source id
func (r *Repository) ListByRun(ctx context.Context, runID string, source models.Source) ([]models.RawPOI, error) {
	ctx, span := tracing.StartSpan(ctx, "rawpoi.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "run_id", "source", "source_id", "name", "category", "latitude", "longitude", "phone", "website", "metadata", "created_at")
	sb.From("raw_pois")
	sb.Where(
		sb.Equal("run_id", runID),
		sb.Equal("source", source),
	)
	sb.OrderBy("source_id ASC")

	query, args := sb.Build()
	var pois []models.RawPOI
	if err := r.db.SelectContext(ctx, &pois, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list raw POIs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list raw pois")
	}

	return pois, nil
}

// CountByRun returns per-source record counts for a run
func (r *Repository) CountByRun(ctx context.Context, runID string) (map[models.Source]int, error) {
	ctx, span := tracing.StartSpan(ctx, "rawpoi.Repository.CountByRun")
	defer span.End()

	query := `
		SELECT source, COUNT(*) AS count
		FROM raw_pois
		WHERE run_id = $1
		GROUP BY source
	`

	var rows []struct {
		Source models.Source `db:"source"`
		Count  int           `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count raw POIs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count raw pois")
	}

	counts := make(map[models.Source]int, len(rows))
	for _, row := range rows {
		counts[row.Source] = row.Count
	}
	return counts, nil
}

// DeleteByRun removes a run's raw records
func (r *Repository) DeleteByRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "rawpoi.Repository.DeleteByRun")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM raw_pois WHERE run_id = $1", runID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete raw POIs by run_id")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete raw pois")
	}

	return nil
}

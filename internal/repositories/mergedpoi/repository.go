// Package mergedpoi persists the reconciled output records.
package mergedpoi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/database"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

const columns = "id, run_id, name, category, latitude, longitude, phone, website, confidence, provenance, osm_id, fsq_id, created_at"

// Repository handles merged POI persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merged POI repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// row carries the provenance JSONB column alongside the model fields.
type row struct {
	models.MergedPOI
	Prov database.JSONB[models.Provenance] `db:"provenance"`
}

func (r row) toModel() *models.MergedPOI {
	poi := r.MergedPOI
	poi.Provenance = r.Prov.Data
	return &poi
}

// CreateBatch inserts a run's merged output. The merged id is derived from
// the contributing source ids, so re-running a run overwrites in place.
func (r *Repository) CreateBatch(ctx context.Context, pois []models.MergedPOI) error {
	ctx, span := tracing.StartSpan(ctx, "mergedpoi.Repository.CreateBatch")
	defer span.End()

	if len(pois) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("merged_pois")
	sb.Cols("id", "run_id", "name", "category", "latitude", "longitude", "phone", "website", "confidence", "provenance", "osm_id", "fsq_id", "created_at")

	for i := range pois {
		p := &pois[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		sb.Values(p.ID, p.RunID, p.Name, p.Category, p.Latitude, p.Longitude, p.Phone, p.Website, p.Confidence, database.JSONB[models.Provenance]{Data: p.Provenance}, p.OSMID, p.FSQID, p.CreatedAt)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (run_id, id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, phone = EXCLUDED.phone, website = EXCLUDED.website, confidence = EXCLUDED.confidence, provenance = EXCLUDED.provenance"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create merged POI batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merged pois")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(pois)}).Debug("Created merged POI batch")
	return nil
}

// Get retrieves one merged POI by id within a run
func (r *Repository) Get(ctx context.Context, runID, id string) (*models.MergedPOI, error) {
	ctx, span := tracing.StartSpan(ctx, "mergedpoi.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("merged_pois")
	sb.Where(
		sb.Equal("run_id", runID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var rec row
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("merged poi %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get merged POI")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merged poi")
	}

	return rec.toModel(), nil
}

// ListByRun retrieves a run's merged output ordered by id. MinConfidence
// filters out records below the given confidence; pass 0 for everything.
func (r *Repository) ListByRun(ctx context.Context, runID string, minConfidence float64) ([]models.MergedPOI, error) {
	ctx, span := tracing.StartSpan(ctx, "mergedpoi.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("merged_pois")
	where := []string{sb.Equal("run_id", runID)}
	if minConfidence > 0 {
		where = append(where, sb.GreaterEqualThan("confidence", minConfidence))
	}
	sb.Where(where...)
	sb.OrderBy("id ASC")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merged POIs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merged pois")
	}

	pois := make([]models.MergedPOI, 0, len(rows))
	for _, rec := range rows {
		pois = append(pois, *rec.toModel())
	}
	return pois, nil
}

// DeleteByRun removes a run's merged output
func (r *Repository) DeleteByRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "mergedpoi.Repository.DeleteByRun")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM merged_pois WHERE run_id = $1", runID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete merged POIs by run_id")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete merged pois")
	}

	return nil
}

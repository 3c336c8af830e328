// Package candidatepair persists scored candidate pairs for audit.
package candidatepair

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/database"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Repository handles candidate pair persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new candidate pair repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// row flattens ScoredPair for sqlx scanning.
type row struct {
	models.CandidatePair
	models.SignalScores
	Confidence float64 `db:"confidence"`
}

// CreateBatch inserts a run's scored pairs
func (r *Repository) CreateBatch(ctx context.Context, pairs []models.ScoredPair) error {
	ctx, span := tracing.StartSpan(ctx, "candidatepair.Repository.CreateBatch")
	defer span.End()

	if len(pairs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("candidate_pairs")
	sb.Cols("run_id", "osm_id", "fsq_id", "distance_m", "spatial_score", "lexical_score", "semantic_score", "category_score", "phone_score", "confidence", "created_at")

	for _, p := range pairs {
		sb.Values(p.RunID, p.OSMID, p.FSQID, p.DistanceM, p.Scores.Spatial, p.Scores.Lexical, p.Scores.Semantic, p.Scores.Category, p.Scores.Phone, p.Confidence, now)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (run_id, osm_id, fsq_id) DO UPDATE SET distance_m = EXCLUDED.distance_m, spatial_score = EXCLUDED.spatial_score, lexical_score = EXCLUDED.lexical_score, semantic_score = EXCLUDED.semantic_score, category_score = EXCLUDED.category_score, phone_score = EXCLUDED.phone_score, confidence = EXCLUDED.confidence"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create candidate pair batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create candidate pairs")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(pairs)}).Debug("Created candidate pair batch")
	return nil
}

// ListByRun retrieves a run's scored pairs, strongest first
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]models.ScoredPair, error) {
	ctx, span := tracing.StartSpan(ctx, "candidatepair.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("run_id", "osm_id", "fsq_id", "distance_m", "spatial_score", "lexical_score", "semantic_score", "category_score", "phone_score", "confidence")
	sb.From("candidate_pairs")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("confidence DESC", "distance_m ASC", "osm_id ASC", "fsq_id ASC")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list candidate pairs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidate pairs")
	}

	pairs := make([]models.ScoredPair, 0, len(rows))
	for _, rec := range rows {
		pairs = append(pairs, models.ScoredPair{
			CandidatePair: rec.CandidatePair,
			Scores:        rec.SignalScores,
			Confidence:    rec.Confidence,
		})
	}
	return pairs, nil
}

// DeleteByRun removes a run's pairs
func (r *Repository) DeleteByRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "candidatepair.Repository.DeleteByRun")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM candidate_pairs WHERE run_id = $1", runID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete candidate pairs by run_id")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete candidate pairs")
	}

	return nil
}

// Package matchdecision persists the assignment outcome for every scored
// pair, accepted or not, so each run's matching can be audited afterwards.
package matchdecision

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

// Repository handles match decision persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match decision repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// row flattens MatchDecision for sqlx scanning.
type row struct {
	models.CandidatePair
	models.SignalScores
	Confidence float64               `db:"confidence"`
	IsMatch    bool                  `db:"is_match"`
	Rank       int                   `db:"rank"`
	Status     models.DecisionStatus `db:"status"`
}

func (r row) toModel() models.MatchDecision {
	return models.MatchDecision{
		ScoredPair: models.ScoredPair{
			CandidatePair: r.CandidatePair,
			Scores:        r.SignalScores,
			Confidence:    r.Confidence,
		},
		IsMatch: r.IsMatch,
		Rank:    r.Rank,
		Status:  r.Status,
	}
}

// CreateBatch inserts a run's decisions
func (r *Repository) CreateBatch(ctx context.Context, decisions []models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.CreateBatch")
	defer span.End()

	if len(decisions) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("match_decisions")
	sb.Cols("run_id", "osm_id", "fsq_id", "distance_m", "spatial_score", "lexical_score", "semantic_score", "category_score", "phone_score", "confidence", "is_match", "rank", "status", "created_at")

	for _, d := range decisions {
		sb.Values(d.RunID, d.OSMID, d.FSQID, d.DistanceM, d.Scores.Spatial, d.Scores.Lexical, d.Scores.Semantic, d.Scores.Category, d.Scores.Phone, d.Confidence, d.IsMatch, d.Rank, d.Status, now)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (run_id, osm_id, fsq_id) DO UPDATE SET is_match = EXCLUDED.is_match, rank = EXCLUDED.rank, status = EXCLUDED.status, confidence = EXCLUDED.confidence"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create match decision batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match decisions")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(decisions)}).Debug("Created match decision batch")
	return nil
}

// ListByRun retrieves a run's decisions in assignment order
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.ListByRun")
	defer span.End()

	return r.list(ctx, runID, false)
}

// ListAccepted retrieves only the accepted matches for a run
func (r *Repository) ListAccepted(ctx context.Context, runID string) ([]models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.ListAccepted")
	defer span.End()

	return r.list(ctx, runID, true)
}

func (r *Repository) list(ctx context.Context, runID string, acceptedOnly bool) ([]models.MatchDecision, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("run_id", "osm_id", "fsq_id", "distance_m", "spatial_score", "lexical_score", "semantic_score", "category_score", "phone_score", "confidence", "is_match", "rank", "status")
	sb.From("match_decisions")
	where := []string{sb.Equal("run_id", runID)}
	if acceptedOnly {
		where = append(where, sb.Equal("is_match", true))
	}
	sb.Where(where...)
	sb.OrderBy("rank ASC")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match decisions")
	}

	decisions := make([]models.MatchDecision, 0, len(rows))
	for _, rec := range rows {
		decisions = append(decisions, rec.toModel())
	}
	return decisions, nil
}

// DeleteByRun removes a run's decisions
func (r *Repository) DeleteByRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.DeleteByRun")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM match_decisions WHERE run_id = $1", runID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match decisions by run_id")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match decisions")
	}

	return nil
}

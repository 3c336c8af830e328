// Package featuretuple persists derived matching features.
package featuretuple

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/database"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Repository handles feature tuple persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new feature tuple repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// row widens array columns for sqlx scanning.
type row struct {
	models.FeatureTuple
	NameTokensArr pq.StringArray  `db:"name_tokens"`
	TrigramsArr   pq.StringArray  `db:"trigrams"`
	EmbeddingArr  pq.Float32Array `db:"embedding"`
}

// CreateBatch inserts a run's tuples for one source
func (r *Repository) CreateBatch(ctx context.Context, tuples []models.FeatureTuple) error {
	ctx, span := tracing.StartSpan(ctx, "featuretuple.Repository.CreateBatch")
	defer span.End()

	if len(tuples) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("feature_tuples")
	sb.Cols("poi_id", "run_id", "source", "source_id", "name_norm", "name_tokens", "trigrams", "embedding", "category_canon", "category_raw", "phone_norm", "website_norm", "latitude", "longitude", "created_at")

	for i := range tuples {
		t := &tuples[i]
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		sb.Values(
			t.POIID, t.RunID, t.Source, t.SourceID, t.NameNorm,
			pq.StringArray(t.NameTokens), pq.StringArray(t.Trigrams), pq.Float32Array(t.Embedding),
			t.CategoryCanon, t.CategoryRaw, t.PhoneNorm, t.WebsiteNorm,
			t.Latitude, t.Longitude, t.CreatedAt,
		)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (run_id, source, source_id) DO UPDATE SET name_norm = EXCLUDED.name_norm, name_tokens = EXCLUDED.name_tokens, trigrams = EXCLUDED.trigrams, embedding = EXCLUDED.embedding, category_canon = EXCLUDED.category_canon, category_raw = EXCLUDED.category_raw, phone_norm = EXCLUDED.phone_norm, website_norm = EXCLUDED.website_norm, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create feature tuple batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create feature tuples")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(tuples)}).Debug("Created feature tuple batch")
	return nil
}

// ReplaceRun swaps a run's tuples for a fresh set inside one transaction,
// so a re-executed run never leaves tuples from a previous execution behind.
func (r *Repository) ReplaceRun(ctx context.Context, runID string, tuples []models.FeatureTuple) error {
	ctx, span := tracing.StartSpan(ctx, "featuretuple.Repository.ReplaceRun")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("feature_tuples")
	db.Where(db.Equal("run_id", runID))
	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("Failed to delete existing feature tuples")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace feature tuples")
	}

	now := time.Now().UTC()
	const batchSize = 500
	for i := 0; i < len(tuples); i += batchSize {
		end := i + batchSize
		if end > len(tuples) {
			end = len(tuples)
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("feature_tuples")
		sb.Cols("poi_id", "run_id", "source", "source_id", "name_norm", "name_tokens", "trigrams", "embedding", "category_canon", "category_raw", "phone_norm", "website_norm", "latitude", "longitude", "created_at")
		for j := range tuples[i:end] {
			t := &tuples[i+j]
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			sb.Values(
				t.POIID, t.RunID, t.Source, t.SourceID, t.NameNorm,
				pq.StringArray(t.NameTokens), pq.StringArray(t.Trigrams), pq.Float32Array(t.Embedding),
				t.CategoryCanon, t.CategoryRaw, t.PhoneNorm, t.WebsiteNorm,
				t.Latitude, t.Longitude, t.CreatedAt,
			)
		}
		query, args := sb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("Failed to insert feature tuples")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace feature tuples")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("Failed to commit feature tuple replacement")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace feature tuples")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID, "count": len(tuples)}).Debug("Replaced run feature tuples")
	return nil
}

// ListByRun retrieves one source's tuples for a run, ordered by source id
func (r *Repository) ListByRun(ctx context.Context, runID string, source models.Source) ([]models.FeatureTuple, error) {
	ctx, span := tracing.StartSpan(ctx, "featuretuple.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("poi_id", "run_id", "source", "source_id", "name_norm", "name_tokens", "trigrams", "embedding", "category_canon", "category_raw", "phone_norm", "website_norm", "latitude", "longitude", "created_at")
	sb.From("feature_tuples")
	sb.Where(
		sb.Equal("run_id", runID),
		sb.Equal("source", source),
	)
	sb.OrderBy("source_id ASC")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list feature tuples")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list feature tuples")
	}

	tuples := make([]models.FeatureTuple, 0, len(rows))
	for _, rec := range rows {
		t := rec.FeatureTuple
		t.NameTokens = rec.NameTokensArr
		t.Trigrams = rec.TrigramsArr
		t.Embedding = rec.EmbeddingArr
		tuples = append(tuples, t)
	}
	return tuples, nil
}

// DeleteByRun removes a run's tuples
func (r *Repository) DeleteByRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "featuretuple.Repository.DeleteByRun")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM feature_tuples WHERE run_id = $1", runID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete feature tuples by run_id")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete feature tuples")
	}

	return nil
}

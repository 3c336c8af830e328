// Package pipeline runs the full reconciliation sequence for one bounding
// box: feature build, spatial blocking, similarity scoring, match decision,
// merge resolution. The pipeline holds no cross-run state; every Run call
// operates on its own collections so concurrent runs cannot interfere.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/blocking"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/embedding"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/features"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/matching"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/merging"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/scoring"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Config is the full, serializable behavior of one reconciliation run.
// Validate rejects configuration defects before any data is processed.
type Config struct {
	DistanceThresholdM float64         `json:"distance_threshold_m"`
	MatchThreshold     float64         `json:"match_threshold"`
	Weights            scoring.Weights `json:"signal_weights"`
	CategoryPartial    float64         `json:"category_partial"`
	Merge              merging.Config  `json:"source_priority"`
	Workers            int             `json:"workers"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DistanceThresholdM: 25,
		MatchThreshold:     0.65,
		Weights:            scoring.DefaultWeights(),
		CategoryPartial:    0.5,
		Merge:              merging.DefaultConfig(),
		Workers:            4,
	}
}

// Validate checks thresholds, the weight vector, and source priorities.
func (c Config) Validate() error {
	if c.DistanceThresholdM <= 0 {
		return fmt.Errorf("distance_threshold_m must be positive, got %f", c.DistanceThresholdM)
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in (0, 1], got %f", c.MatchThreshold)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.CategoryPartial < 0 || c.CategoryPartial > 1 {
		return fmt.Errorf("category_partial must be in [0, 1], got %f", c.CategoryPartial)
	}
	if !c.Merge.NameSource.Valid() || !c.Merge.PositionSource.Valid() || !c.Merge.PrioritySource.Valid() {
		return fmt.Errorf("source priorities must name a known source")
	}
	return nil
}

// Result carries every intermediate and terminal collection of one run so
// the caller can persist the full audit trail.
type Result struct {
	OSMFeatures []models.FeatureTuple
	FSQFeatures []models.FeatureTuple
	Scored      []models.ScoredPair
	Decisions   []models.MatchDecision
	Merged      []models.MergedPOI
	Summary     models.RunSummary
}

// Engine executes reconciliation runs.
type Engine struct {
	logger  ectologger.Logger
	encoder embedding.Encoder
}

// NewEngine creates a pipeline engine.
func NewEngine(logger ectologger.Logger, encoder embedding.Encoder) *Engine {
	return &Engine{logger: logger, encoder: encoder}
}

// Run reconciles the two raw collections under the given configuration.
// An empty side degrades gracefully to an all-unmatched result. The only
// blocking I/O is the batched embedding lookup; everything else is pure
// computation over the run's own collections.
func (e *Engine) Run(ctx context.Context, runID string, cfg Config, osm, fsq []models.RawPOI) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Engine.Run")
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID})
	log.WithFields(map[string]any{
		"osm_records": len(osm),
		"fsq_records": len(fsq),
	}).Info("Starting reconciliation run")

	builder := features.NewBuilder(e.logger, e.encoder)
	osmFeatures, osmExcluded, err := builder.BuildAll(ctx, osm)
	if err != nil {
		return nil, fmt.Errorf("feature build failed for %s: %w", models.SourceOSM, err)
	}
	fsqFeatures, fsqExcluded, err := builder.BuildAll(ctx, fsq)
	if err != nil {
		return nil, fmt.Errorf("feature build failed for %s: %w", models.SourceFSQ, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocker := blocking.NewBlocker(e.logger, cfg.DistanceThresholdM)
	pairs := blocker.Pairs(ctx, runID, osmFeatures, fsqFeatures)

	scorer := scoring.NewScorer(cfg.Weights, cfg.DistanceThresholdM, cfg.CategoryPartial)
	scored := e.scoreAll(ctx, scorer, pairs, osmFeatures, fsqFeatures, cfg.Workers)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decisions := matching.NewEngine(e.logger, cfg.MatchThreshold).Decide(ctx, scored)

	// Only records that produced a feature tuple reach the resolver; records
	// the builder excluded stay out of the output entirely.
	merged := merging.NewResolver(e.logger, cfg.Merge).Resolve(ctx, runID, decisions,
		retained(osm, osmFeatures), retained(fsq, fsqFeatures))

	accepted := 0
	for _, d := range decisions {
		if d.IsMatch {
			accepted++
		}
	}

	result := &Result{
		OSMFeatures: osmFeatures,
		FSQFeatures: fsqFeatures,
		Scored:      scored,
		Decisions:   decisions,
		Merged:      merged,
		Summary: models.RunSummary{
			OSMRecords:      len(osm),
			FSQRecords:      len(fsq),
			ExcludedRecords: osmExcluded + fsqExcluded,
			CandidatePairs:  len(pairs),
			AcceptedMatches: accepted,
			Unmatched:       len(merged) - accepted,
			MergedTotal:     len(merged),
			EmbeddingModel:  e.encoder.ModelVersion(),
		},
	}

	log.WithFields(map[string]any{
		"pairs":    len(pairs),
		"accepted": accepted,
		"merged":   len(merged),
		"excluded": result.Summary.ExcludedRecords,
	}).Info("Reconciliation run complete")

	return result, nil
}

// retained filters raw records down to the ones the feature builder kept.
func retained(raw []models.RawPOI, tuples []models.FeatureTuple) []models.RawPOI {
	kept := make(map[string]bool, len(tuples))
	for i := range tuples {
		kept[tuples[i].SourceID] = true
	}
	out := make([]models.RawPOI, 0, len(tuples))
	for i := range raw {
		if kept[raw[i].SourceID] {
			out = append(out, raw[i])
		}
	}
	return out
}

// scoreAll scores candidate pairs with a bounded worker pool. Results are
// written by input index so parallelism never perturbs ordering.
func (e *Engine) scoreAll(ctx context.Context, scorer *scoring.Scorer, pairs []models.CandidatePair, osm, fsq []models.FeatureTuple, workers int) []models.ScoredPair {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Engine.scoreAll")
	defer span.End()

	if len(pairs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	osmByID := make(map[string]*models.FeatureTuple, len(osm))
	for i := range osm {
		osmByID[osm[i].SourceID] = &osm[i]
	}
	fsqByID := make(map[string]*models.FeatureTuple, len(fsq))
	for i := range fsq {
		fsqByID[fsq[i].SourceID] = &fsq[i]
	}

	scored := make([]models.ScoredPair, len(pairs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				pair := pairs[i]
				scored[i] = scorer.Score(pair, osmByID[pair.OSMID], fsqByID[pair.FSQID])
			}
		}()
	}

	for i := range pairs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return scored
}

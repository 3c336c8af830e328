// Package processor wires ingestion and run execution together. Ingestion
// writes raw records; run execution loads them, drives the reconciliation
// pipeline, and persists every artifact the pipeline produces.
package processor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	candidatepairrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/candidatepair"
	featuretuplerepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/featuretuple"
	matchdecisionrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/matchdecision"
	mergedpoirepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/mergedpoi"
	rawpoirepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/rawpoi"
	runrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/run"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/events"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/graph"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/kafka"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/pipeline"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/sources"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Processor executes reconciliation runs against persisted raw records
type Processor struct {
	logger       ectologger.Logger
	engine       *pipeline.Engine
	pipelineCfg  pipeline.Config
	runRepo      *runrepo.Repository
	rawRepo      *rawpoirepo.Repository
	featureRepo  *featuretuplerepo.Repository
	pairRepo     *candidatepairrepo.Repository
	decisionRepo *matchdecisionrepo.Repository
	mergedRepo   *mergedpoirepo.Repository
	emitter      *events.Emitter
	poiGraph     *graph.POIService // nil when graph projection is disabled
}

// NewProcessor creates a new run processor
func NewProcessor(
	logger ectologger.Logger,
	engine *pipeline.Engine,
	pipelineCfg pipeline.Config,
	runRepo *runrepo.Repository,
	rawRepo *rawpoirepo.Repository,
	featureRepo *featuretuplerepo.Repository,
	pairRepo *candidatepairrepo.Repository,
	decisionRepo *matchdecisionrepo.Repository,
	mergedRepo *mergedpoirepo.Repository,
	emitter *events.Emitter,
	poiGraph *graph.POIService,
) *Processor {
	return &Processor{
		logger:       logger,
		engine:       engine,
		pipelineCfg:  pipelineCfg,
		runRepo:      runRepo,
		rawRepo:      rawRepo,
		featureRepo:  featureRepo,
		pairRepo:     pairRepo,
		decisionRepo: decisionRepo,
		mergedRepo:   mergedRepo,
		emitter:      emitter,
		poiGraph:     poiGraph,
	}
}

// HandleIngest consumes one raw POI batch message: records are mapped
// through the source adapter and upserted for their run. A record the
// adapter rejects is logged and skipped, never fatal for the batch.
func (p *Processor) HandleIngest(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleIngest")
	defer span.End()

	batch := msg.Batch
	if batch == nil {
		return fmt.Errorf("message has no parsed batch")
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": batch.RunID,
		"source": batch.Source,
	})

	adapter, err := sources.ForSource(batch.Source)
	if err != nil {
		return err
	}

	pois := make([]models.RawPOI, 0, len(batch.Records))
	for _, record := range batch.Records {
		poi, err := adapter.Adapt(batch.RunID, record)
		if err != nil {
			log.WithError(err).Warn("Skipping malformed source record")
			continue
		}
		pois = append(pois, poi)
	}

	if err := p.rawRepo.CreateBatch(ctx, pois); err != nil {
		return err
	}

	log.WithFields(map[string]any{
		"received": len(batch.Records),
		"stored":   len(pois),
	}).Info("Ingested raw POI batch")
	return nil
}

// ProcessRun executes the reconciliation pipeline for a run and persists
// every artifact. The run ends in completed or failed; a failure cause is
// recorded on the run and emitted, never swallowed.
func (p *Processor) ProcessRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessRun")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID})

	run, err := p.runRepo.Get(ctx, runID)
	if err != nil {
		return err
	}
	if !run.Startable() {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("run %s is %s, only a pending run can execute", run.ID, run.Status))
	}

	if err := p.runRepo.MarkRunning(ctx, runID); err != nil {
		return err
	}
	if p.emitter != nil {
		if err := p.emitter.EmitRunStarted(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to emit run.started event")
		}
	}

	summary, err := p.execute(ctx, run)
	if err != nil {
		log.WithError(err).Error("Run failed")
		if markErr := p.runRepo.MarkFailed(ctx, runID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("Failed to record run failure")
		}
		if p.emitter != nil {
			if emitErr := p.emitter.EmitRunFailed(ctx, runID, err.Error()); emitErr != nil {
				log.WithError(emitErr).Warn("Failed to emit run.failed event")
			}
		}
		return err
	}

	if err := p.runRepo.MarkCompleted(ctx, runID, *summary); err != nil {
		return err
	}
	if p.emitter != nil {
		if err := p.emitter.EmitRunCompleted(ctx, run, *summary); err != nil {
			log.WithError(err).Warn("Failed to emit run.completed event")
		}
	}

	log.WithFields(map[string]any{"merged_total": summary.MergedTotal}).Info("Run completed")
	return nil
}

func (p *Processor) execute(ctx context.Context, run *models.PipelineRun) (*models.RunSummary, error) {
	osm, err := p.rawRepo.ListByRun(ctx, run.ID, models.SourceOSM)
	if err != nil {
		return nil, fmt.Errorf("failed to load osm records: %w", err)
	}
	fsq, err := p.rawRepo.ListByRun(ctx, run.ID, models.SourceFSQ)
	if err != nil {
		return nil, fmt.Errorf("failed to load fsq records: %w", err)
	}

	result, err := p.engine.Run(ctx, run.ID, p.pipelineCfg, osm, fsq)
	if err != nil {
		return nil, err
	}

	features := make([]models.FeatureTuple, 0, len(result.OSMFeatures)+len(result.FSQFeatures))
	features = append(features, result.OSMFeatures...)
	features = append(features, result.FSQFeatures...)
	if err := p.featureRepo.ReplaceRun(ctx, run.ID, features); err != nil {
		return nil, err
	}
	if err := p.pairRepo.CreateBatch(ctx, result.Scored); err != nil {
		return nil, err
	}
	if err := p.decisionRepo.CreateBatch(ctx, result.Decisions); err != nil {
		return nil, err
	}
	if err := p.mergedRepo.CreateBatch(ctx, result.Merged); err != nil {
		return nil, err
	}

	if p.poiGraph != nil {
		if err := p.poiGraph.ProjectRun(ctx, run.ID, result.Merged); err != nil {
			// Projection is a derived view; its failure must not fail the run.
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": run.ID}).Warn("Graph projection failed")
		}
	}

	return &result.Summary, nil
}

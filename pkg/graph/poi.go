package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// POIService projects reconciled POIs into the graph: one :POI node per
// merged record, linked by DERIVED_FROM edges to the :SourceRecord nodes
// that contributed to it.
type POIService struct {
	client *Client
	logger ectologger.Logger
}

// NewPOIService creates a new POI projection service
func NewPOIService(client *Client, logger ectologger.Logger) *POIService {
	return &POIService{
		client: client,
		logger: logger,
	}
}

// ProjectRun writes a run's merged output to the graph. Projection is
// idempotent: nodes and edges are MERGEd on their stable ids.
func (s *POIService) ProjectRun(ctx context.Context, runID string, pois []models.MergedPOI) error {
	ctx, span := tracing.StartSpan(ctx, "graph.POIService.ProjectRun")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID})

	for i := range pois {
		if err := s.project(ctx, &pois[i]); err != nil {
			log.WithError(err).WithFields(map[string]any{"poi_id": pois[i].ID}).Error("Failed to project merged POI")
			return err
		}
	}

	log.WithFields(map[string]any{"count": len(pois)}).Debug("Projected run to graph")
	return nil
}

func (s *POIService) project(ctx context.Context, poi *models.MergedPOI) error {
	props := map[string]any{
		"id":           poi.ID,
		"run_id":       poi.RunID,
		"name":         poi.Name,
		"category":     poi.Category,
		"latitude":     poi.Latitude,
		"longitude":    poi.Longitude,
		"confidence":   poi.Confidence,
		"source_count": poi.SourceCount(),
		"created_at":   poi.CreatedAt.UTC().Format(time.RFC3339),
	}
	if poi.Phone != nil {
		props["phone"] = *poi.Phone
	}
	if poi.Website != nil {
		props["website"] = *poi.Website
	}

	cypher := `
		MERGE (p:POI {id: $id, run_id: $run_id})
		SET p = $props
	`
	params := map[string]any{
		"id":     poi.ID,
		"run_id": poi.RunID,
		"props":  props,
	}

	type sourceRef struct {
		source models.Source
		id     string
	}
	var refs []sourceRef
	if poi.OSMID != nil {
		refs = append(refs, sourceRef{models.SourceOSM, *poi.OSMID})
	}
	if poi.FSQID != nil {
		refs = append(refs, sourceRef{models.SourceFSQ, *poi.FSQID})
	}
	for i, ref := range refs {
		cypher += fmt.Sprintf(`
		MERGE (s%d:SourceRecord {source: $source%d, source_id: $source_id%d})
		MERGE (p)-[:DERIVED_FROM]->(s%d)
		`, i, i, i, i)
		params[fmt.Sprintf("source%d", i)] = string(ref.source)
		params[fmt.Sprintf("source_id%d", i)] = ref.id
	}

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// DeleteRun removes a run's projection from the graph
func (s *POIService) DeleteRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.POIService.DeleteRun")
	defer span.End()

	cypher := `
		MATCH (p:POI {run_id: $run_id})
		DETACH DELETE p
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"run_id": runID})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to delete run projection")
		return fmt.Errorf("failed to delete run projection: %w", err)
	}

	return nil
}

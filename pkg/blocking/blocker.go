// Package blocking restricts the quadratic POI pair space to geographically
// plausible candidates before any expensive scoring runs.
package blocking

import (
	"context"
	"math"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/geo"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Blocker generates candidate pairs between the two sources. Pairs are
// accepted iff the exact haversine distance is within the threshold; a
// coarse latitude-band pre-filter keeps the scan sub-quadratic without ever
// excluding a pair the exact check would accept.
type Blocker struct {
	logger     ectologger.Logger
	thresholdM float64
}

// NewBlocker creates a blocker with the given distance threshold in meters.
func NewBlocker(logger ectologger.Logger, thresholdM float64) *Blocker {
	return &Blocker{logger: logger, thresholdM: thresholdM}
}

// Pairs returns every (OSM, FSQ) candidate pair within the distance
// threshold, sorted by (osm_id, fsq_id) for deterministic downstream
// processing. Same-source pairs are never generated: the two inputs are
// disjoint by construction.
func (b *Blocker) Pairs(ctx context.Context, runID string, osm, fsq []models.FeatureTuple) []models.CandidatePair {
	ctx, span := tracing.StartSpan(ctx, "blocking.Blocker.Pairs")
	defer span.End()

	// Index the FSQ side by latitude so each OSM record only scans its band.
	byLat := make([]*models.FeatureTuple, len(fsq))
	for i := range fsq {
		byLat[i] = &fsq[i]
	}
	sort.Slice(byLat, func(i, j int) bool { return byLat[i].Latitude < byLat[j].Latitude })

	var pairs []models.CandidatePair
	for i := range osm {
		a := &osm[i]
		dLat, dLon := geo.Window(a.Latitude, b.thresholdM)

		lo := sort.Search(len(byLat), func(k int) bool { return byLat[k].Latitude >= a.Latitude-dLat })
		for k := lo; k < len(byLat) && byLat[k].Latitude <= a.Latitude+dLat; k++ {
			cand := byLat[k]
			// Longitude difference wraps at the antimeridian: (179.99, -179.99)
			// are 0.02 degrees apart, not 359.98.
			dl := math.Abs(cand.Longitude - a.Longitude)
			if dl > 180 {
				dl = 360 - dl
			}
			if dl > dLon {
				continue
			}
			dist := geo.Haversine(a.Latitude, a.Longitude, cand.Latitude, cand.Longitude)
			if dist <= b.thresholdM {
				pairs = append(pairs, models.CandidatePair{
					RunID:     runID,
					OSMID:     a.SourceID,
					FSQID:     cand.SourceID,
					DistanceM: dist,
				})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].OSMID != pairs[j].OSMID {
			return pairs[i].OSMID < pairs[j].OSMID
		}
		return pairs[i].FSQID < pairs[j].FSQID
	})

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"osm_records": len(osm),
		"fsq_records": len(fsq),
		"pairs":       len(pairs),
	}).Debug("Generated candidate pairs")

	return pairs
}

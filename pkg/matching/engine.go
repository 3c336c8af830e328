// Package matching resolves scored candidate pairs into one-to-one match
// decisions.
package matching

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Engine applies the match threshold and resolves competing pairs by
// greedy highest-confidence-first assignment. Greedy bipartite matching is
// not guaranteed globally optimal, but it is deterministic, explainable,
// and cheap; see DESIGN.md for the trade-off note.
type Engine struct {
	logger    ectologger.Logger
	threshold float64
}

// NewEngine creates a match decision engine with the given confidence
// threshold.
func NewEngine(logger ectologger.Logger, threshold float64) *Engine {
	return &Engine{logger: logger, threshold: threshold}
}

// claims is the locally-scoped accumulator of POIs already assigned during
// one resolution pass, so concurrent runs never share matching state.
type claims struct {
	osm map[string]bool
	fsq map[string]bool
}

// Decide turns every scored pair into a MatchDecision. A pair is accepted
// iff its confidence meets the threshold and neither member has been
// claimed by a higher-ranked pair. Ordering is total: confidence
// descending, then smaller spatial distance, then lexicographically smaller
// OSM id so identical inputs always produce identical decisions. Rejected
// pairs are returned too, for audit.
func (e *Engine) Decide(ctx context.Context, pairs []models.ScoredPair) []models.MatchDecision {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Decide")
	defer span.End()

	ordered := make([]models.ScoredPair, len(pairs))
	copy(ordered, pairs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		if ordered[i].DistanceM != ordered[j].DistanceM {
			return ordered[i].DistanceM < ordered[j].DistanceM
		}
		if ordered[i].OSMID != ordered[j].OSMID {
			return ordered[i].OSMID < ordered[j].OSMID
		}
		return ordered[i].FSQID < ordered[j].FSQID
	})

	claimed := claims{osm: make(map[string]bool), fsq: make(map[string]bool)}
	decisions := make([]models.MatchDecision, 0, len(ordered))
	accepted := 0

	for rank, pair := range ordered {
		decision := models.MatchDecision{ScoredPair: pair, Rank: rank + 1}
		switch {
		case pair.Confidence < e.threshold:
			decision.Status = models.DecisionStatusBelowThreshold
		case claimed.osm[pair.OSMID] || claimed.fsq[pair.FSQID]:
			decision.Status = models.DecisionStatusMemberClaimed
		default:
			decision.IsMatch = true
			decision.Status = models.DecisionStatusAccepted
			claimed.osm[pair.OSMID] = true
			claimed.fsq[pair.FSQID] = true
			accepted++
		}
		decisions = append(decisions, decision)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"pairs":    len(pairs),
		"accepted": accepted,
	}).Debug("Resolved match decisions")

	return decisions
}

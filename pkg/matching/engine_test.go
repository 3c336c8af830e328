package matching

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func scored(osmID, fsqID string, confidence, distance float64) models.ScoredPair {
	return models.ScoredPair{
		CandidatePair: models.CandidatePair{RunID: "r1", OSMID: osmID, FSQID: fsqID, DistanceM: distance},
		Confidence:    confidence,
	}
}

func acceptedPairs(decisions []models.MatchDecision) map[string]string {
	out := make(map[string]string)
	for _, d := range decisions {
		if d.IsMatch {
			out[d.OSMID] = d.FSQID
		}
	}
	return out
}

func TestEngine_Decide(t *testing.T) {
	engine := NewEngine(testLogger(), 0.65)

	t.Run("BelowThresholdRejected", func(t *testing.T) {
		decisions := engine.Decide(context.Background(), []models.ScoredPair{
			scored("o1", "f1", 0.64, 5),
		})
		require.Len(t, decisions, 1)
		assert.False(t, decisions[0].IsMatch)
		assert.Equal(t, models.DecisionStatusBelowThreshold, decisions[0].Status)
	})

	t.Run("ContestedPOIGoesToHighestConfidence", func(t *testing.T) {
		decisions := engine.Decide(context.Background(), []models.ScoredPair{
			scored("o1", "f1", 0.9, 5),
			scored("o1", "f2", 0.7, 8),
		})
		accepted := acceptedPairs(decisions)
		assert.Equal(t, map[string]string{"o1": "f1"}, accepted)

		var rejected *models.MatchDecision
		for i := range decisions {
			if !decisions[i].IsMatch {
				rejected = &decisions[i]
			}
		}
		require.NotNil(t, rejected)
		assert.Equal(t, models.DecisionStatusMemberClaimed, rejected.Status)
		assert.Equal(t, "f2", rejected.FSQID)
	})

	t.Run("LoserFallsBackToAlternative", func(t *testing.T) {
		// f1 is contested; o2 loses it but o2/f2 is still available.
		decisions := engine.Decide(context.Background(), []models.ScoredPair{
			scored("o1", "f1", 0.9, 5),
			scored("o2", "f1", 0.8, 6),
			scored("o2", "f2", 0.7, 9),
		})
		accepted := acceptedPairs(decisions)
		assert.Equal(t, map[string]string{"o1": "f1", "o2": "f2"}, accepted)
	})

	t.Run("OneToOneInvariant", func(t *testing.T) {
		decisions := engine.Decide(context.Background(), []models.ScoredPair{
			scored("o1", "f1", 0.9, 5),
			scored("o1", "f2", 0.85, 5),
			scored("o2", "f1", 0.8, 5),
			scored("o2", "f2", 0.75, 5),
			scored("o3", "f2", 0.7, 5),
		})
		osmSeen := make(map[string]int)
		fsqSeen := make(map[string]int)
		for _, d := range decisions {
			if d.IsMatch {
				osmSeen[d.OSMID]++
				fsqSeen[d.FSQID]++
			}
		}
		for id, n := range osmSeen {
			assert.Equal(t, 1, n, "osm id %s claimed more than once", id)
		}
		for id, n := range fsqSeen {
			assert.Equal(t, 1, n, "fsq id %s claimed more than once", id)
		}
	})

	t.Run("TiesBreakByDistanceThenID", func(t *testing.T) {
		decisions := engine.Decide(context.Background(), []models.ScoredPair{
			scored("o2", "f1", 0.8, 10),
			scored("o1", "f1", 0.8, 10),
			scored("o3", "f1", 0.8, 4),
		})
		// Smaller distance wins the tie; equal distances fall back to the
		// lexicographically smaller OSM id.
		accepted := acceptedPairs(decisions)
		assert.Equal(t, map[string]string{"o3": "f1"}, accepted)
		assert.Equal(t, 1, decisions[0].Rank)
		assert.Equal(t, "o3", decisions[0].OSMID)
		assert.Equal(t, "o1", decisions[1].OSMID)
		assert.Equal(t, "o2", decisions[2].OSMID)
	})

	t.Run("Deterministic", func(t *testing.T) {
		input := []models.ScoredPair{
			scored("o1", "f2", 0.8, 5),
			scored("o2", "f1", 0.8, 5),
			scored("o1", "f1", 0.8, 5),
		}
		a := engine.Decide(context.Background(), input)
		b := engine.Decide(context.Background(), input)
		assert.Equal(t, a, b)
	})

	t.Run("AllPairsKeptForAudit", func(t *testing.T) {
		input := []models.ScoredPair{
			scored("o1", "f1", 0.9, 5),
			scored("o1", "f2", 0.3, 8),
		}
		decisions := engine.Decide(context.Background(), input)
		assert.Len(t, decisions, len(input))
	})
}

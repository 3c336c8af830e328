package pipeline

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/embedding"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testEngine() *Engine {
	return NewEngine(testLogger(), embedding.NewHashEncoder(128))
}

func raw(source models.Source, id, name, category string, lat, lon float64) models.RawPOI {
	return models.RawPOI{
		ID:        string(source) + "-" + id,
		RunID:     "r1",
		Source:    source,
		SourceID:  id,
		Name:      name,
		Category:  category,
		Latitude:  lat,
		Longitude: lon,
	}
}

func findBySourceIDs(t *testing.T, merged []models.MergedPOI, osmID, fsqID *string) *models.MergedPOI {
	t.Helper()
	for i := range merged {
		m := &merged[i]
		switch {
		case osmID != nil && fsqID != nil:
			if m.OSMID != nil && *m.OSMID == *osmID && m.FSQID != nil && *m.FSQID == *fsqID {
				return m
			}
		case osmID != nil:
			if m.OSMID != nil && *m.OSMID == *osmID && m.FSQID == nil {
				return m
			}
		case fsqID != nil:
			if m.FSQID != nil && *m.FSQID == *fsqID && m.OSMID == nil {
				return m
			}
		}
	}
	t.Fatalf("no merged POI for osm=%v fsq=%v", osmID, fsqID)
	return nil
}

func strPtr(s string) *string { return &s }

func TestConfig_Validate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("RejectsBadThresholds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DistanceThresholdM = 0
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.MatchThreshold = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("RejectsBadWeights", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Weights.Phone = 0.5 // sum no longer 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("RejectsUnknownPrioritySource", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Merge.NameSource = "yelp"
		assert.Error(t, cfg.Validate())
	})
}

func TestEngine_Run_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MatchThreshold = -1

	_, err := testEngine().Run(context.Background(), "r1", cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run configuration")
}

func TestEngine_Run_MergesMatchingPair(t *testing.T) {
	osm := []models.RawPOI{raw(models.SourceOSM, "osm-1", "Joe's Pizza", "restaurant", 40.7300, -74.0020)}
	fsq := []models.RawPOI{raw(models.SourceFSQ, "fsq-1", "Joes Pizza", "Pizza Restaurant", 40.7301, -74.0021)}
	fsq[0].Phone = strPtr("+1 (212) 555-0100")

	result, err := testEngine().Run(context.Background(), "r1", DefaultConfig(), osm, fsq)
	require.NoError(t, err)

	require.Len(t, result.Merged, 1)
	m := result.Merged[0]

	// Name from OSM, position from FSQ, phone from the only holder.
	assert.Equal(t, "Joe's Pizza", m.Name)
	assert.Equal(t, 40.7301, m.Latitude)
	assert.Equal(t, -74.0021, m.Longitude)
	require.NotNil(t, m.Phone)
	assert.Equal(t, "+1 (212) 555-0100", *m.Phone)
	assert.Greater(t, m.Confidence, 0.65)
	assert.Equal(t, 2, m.SourceCount())
	assert.Equal(t, []models.Source{models.SourceOSM}, m.Provenance["name"])
	assert.Equal(t, []models.Source{models.SourceFSQ}, m.Provenance["coordinates"])
	assert.Equal(t, []models.Source{models.SourceFSQ}, m.Provenance["phone"])

	assert.Equal(t, models.RunSummary{
		OSMRecords:      1,
		FSQRecords:      1,
		CandidatePairs:  1,
		AcceptedMatches: 1,
		MergedTotal:     1,
		EmbeddingModel:  embedding.HashModelVersion,
	}, result.Summary)
}

func TestEngine_Run_UnmatchedSingleton(t *testing.T) {
	osm := []models.RawPOI{raw(models.SourceOSM, "osm-1", "Joe's Pizza", "restaurant", 40.7300, -74.0020)}
	fsq := []models.RawPOI{
		raw(models.SourceFSQ, "fsq-1", "Joes Pizza", "Pizza Restaurant", 40.7301, -74.0021),
		raw(models.SourceFSQ, "fsq-2", "Solo Cafe", "Coffee Shop", 40.7500, -74.0500),
	}

	result, err := testEngine().Run(context.Background(), "r1", DefaultConfig(), osm, fsq)
	require.NoError(t, err)

	require.Len(t, result.Merged, 2)
	solo := findBySourceIDs(t, result.Merged, nil, strPtr("fsq-2"))
	assert.Equal(t, "Solo Cafe", solo.Name)
	assert.Equal(t, models.UnmatchedConfidence, solo.Confidence)
	assert.Equal(t, 1, solo.SourceCount())
	assert.Equal(t, []models.Source{models.SourceFSQ}, solo.Provenance["name"])

	assert.Equal(t, 1, result.Summary.AcceptedMatches)
	assert.Equal(t, 1, result.Summary.Unmatched)
	assert.Equal(t, 2, result.Summary.MergedTotal)
}

func TestEngine_Run_ContestedCandidate(t *testing.T) {
	// Two OSM records inside the blocking radius of one FSQ record. The
	// closer, same-named one must win; the other ends up unmatched.
	osm := []models.RawPOI{
		raw(models.SourceOSM, "osm-1", "Central Coffee", "cafe", 40.73000, -74.0020),
		raw(models.SourceOSM, "osm-2", "Harbor Books", "store", 40.73020, -74.0020),
	}
	fsq := []models.RawPOI{
		raw(models.SourceFSQ, "fsq-1", "Central Coffee", "Coffee Shop", 40.73005, -74.0020),
	}

	result, err := testEngine().Run(context.Background(), "r1", DefaultConfig(), osm, fsq)
	require.NoError(t, err)

	require.Len(t, result.Merged, 2)
	winner := findBySourceIDs(t, result.Merged, strPtr("osm-1"), strPtr("fsq-1"))
	assert.Equal(t, "Central Coffee", winner.Name)
	assert.Equal(t, 2, winner.SourceCount())

	loser := findBySourceIDs(t, result.Merged, strPtr("osm-2"), nil)
	assert.Equal(t, models.UnmatchedConfidence, loser.Confidence)

	// Both pairs stay in the decision log for audit.
	assert.Equal(t, 2, len(result.Decisions))
	assert.Equal(t, 1, result.Summary.AcceptedMatches)
}

func TestEngine_Run_ExcludesInvalidRecords(t *testing.T) {
	osm := []models.RawPOI{
		raw(models.SourceOSM, "osm-1", "Joe's Pizza", "restaurant", 40.7300, -74.0020),
		raw(models.SourceOSM, "osm-2", "", "restaurant", 40.7310, -74.0020),
		raw(models.SourceOSM, "osm-3", "North Pole Diner", "restaurant", 120.0, -74.0020),
	}

	result, err := testEngine().Run(context.Background(), "r1", DefaultConfig(), osm, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.ExcludedRecords)
	assert.Equal(t, 1, result.Summary.MergedTotal)
	assert.Equal(t, 0, result.Summary.CandidatePairs)

	// Excluded records must not reappear as unmatched output.
	require.Len(t, result.Merged, 1)
	m := result.Merged[0]
	require.NotNil(t, m.OSMID)
	assert.Equal(t, "osm-1", *m.OSMID)
	assert.Equal(t, "Joe's Pizza", m.Name)
}

func TestEngine_Run_Deterministic(t *testing.T) {
	osm := []models.RawPOI{
		raw(models.SourceOSM, "osm-1", "Joe's Pizza", "restaurant", 40.7300, -74.0020),
		raw(models.SourceOSM, "osm-2", "Central Coffee", "cafe", 40.7320, -74.0030),
		raw(models.SourceOSM, "osm-3", "Harbor Books", "store", 40.7340, -74.0040),
	}
	fsq := []models.RawPOI{
		raw(models.SourceFSQ, "fsq-1", "Joes Pizza", "Pizza Restaurant", 40.7301, -74.0021),
		raw(models.SourceFSQ, "fsq-2", "Central Coffee Roasters", "Coffee Shop", 40.7321, -74.0031),
		raw(models.SourceFSQ, "fsq-3", "Solo Cafe", "Coffee Shop", 40.7500, -74.0500),
	}

	engine := testEngine()
	first, err := engine.Run(context.Background(), "r1", DefaultConfig(), osm, fsq)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), "r1", DefaultConfig(), osm, fsq)
	require.NoError(t, err)

	assert.Equal(t, first.Scored, second.Scored)
	assert.Equal(t, first.Decisions, second.Decisions)
	require.Equal(t, len(first.Merged), len(second.Merged))
	for i := range first.Merged {
		a, b := first.Merged[i], second.Merged[i]
		assert.Equal(t, a.ID, b.ID)
		assert.Equal(t, a.Name, b.Name)
		assert.Equal(t, a.Confidence, b.Confidence)
		assert.Equal(t, a.Provenance, b.Provenance)
	}
	assert.Equal(t, first.Summary, second.Summary)
}

func TestEngine_Run_ParallelScoringMatchesSerial(t *testing.T) {
	osm := []models.RawPOI{
		raw(models.SourceOSM, "osm-1", "Joe's Pizza", "restaurant", 40.7300, -74.0020),
		raw(models.SourceOSM, "osm-2", "Central Coffee", "cafe", 40.7301, -74.0021),
	}
	fsq := []models.RawPOI{
		raw(models.SourceFSQ, "fsq-1", "Joes Pizza", "Pizza Restaurant", 40.7300, -74.0019),
		raw(models.SourceFSQ, "fsq-2", "Central Coffee Roasters", "Coffee Shop", 40.7302, -74.0022),
	}

	serial := DefaultConfig()
	serial.Workers = 1
	parallel := DefaultConfig()
	parallel.Workers = 8

	a, err := testEngine().Run(context.Background(), "r1", serial, osm, fsq)
	require.NoError(t, err)
	b, err := testEngine().Run(context.Background(), "r1", parallel, osm, fsq)
	require.NoError(t, err)

	assert.Equal(t, a.Scored, b.Scored)
	assert.Equal(t, a.Decisions, b.Decisions)
}

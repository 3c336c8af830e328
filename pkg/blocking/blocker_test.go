package blocking

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

func tuple(source models.Source, id string, lat, lon float64) models.FeatureTuple {
	return models.FeatureTuple{Source: source, SourceID: id, Latitude: lat, Longitude: lon}
}

func TestBlocker_Pairs(t *testing.T) {
	osm := []models.FeatureTuple{
		tuple(models.SourceOSM, "osm-1", 40.7300, -74.0020),
		tuple(models.SourceOSM, "osm-2", 40.7400, -74.0100), // isolated
	}
	fsq := []models.FeatureTuple{
		tuple(models.SourceFSQ, "fsq-1", 40.7301, -74.0021), // ~14 m from osm-1
		tuple(models.SourceFSQ, "fsq-2", 40.7302, -74.0019), // ~24 m from osm-1
		tuple(models.SourceFSQ, "fsq-3", 40.7500, -74.0500), // far from everything
	}

	t.Run("WithinThreshold", func(t *testing.T) {
		pairs := NewBlocker(testLogger(), 25).Pairs(context.Background(), "r1", osm, fsq)
		require.Len(t, pairs, 2)
		assert.Equal(t, "fsq-1", pairs[0].FSQID)
		assert.Equal(t, "fsq-2", pairs[1].FSQID)
		for _, p := range pairs {
			assert.Equal(t, "osm-1", p.OSMID)
			assert.LessOrEqual(t, p.DistanceM, 25.0)
			assert.Equal(t, "r1", p.RunID)
		}
		assert.InDelta(t, 14, pairs[0].DistanceM, 2)
	})

	t.Run("MonotonicInThreshold", func(t *testing.T) {
		// Increasing the threshold never removes a previously accepted pair.
		narrow := NewBlocker(testLogger(), 15).Pairs(context.Background(), "r1", osm, fsq)
		wide := NewBlocker(testLogger(), 25).Pairs(context.Background(), "r1", osm, fsq)

		seen := make(map[[2]string]bool)
		for _, p := range wide {
			seen[[2]string{p.OSMID, p.FSQID}] = true
		}
		for _, p := range narrow {
			assert.True(t, seen[[2]string{p.OSMID, p.FSQID}])
		}
		assert.Less(t, len(narrow), len(wide))
	})

	t.Run("EmptySideProducesNoPairs", func(t *testing.T) {
		assert.Empty(t, NewBlocker(testLogger(), 25).Pairs(context.Background(), "r1", osm, nil))
		assert.Empty(t, NewBlocker(testLogger(), 25).Pairs(context.Background(), "r1", nil, fsq))
	})

	t.Run("AntimeridianPairSurvivesPreFilter", func(t *testing.T) {
		// ~22 m apart across the 180th meridian; the coarse longitude
		// window must wrap instead of treating them as 360 degrees apart.
		west := []models.FeatureTuple{tuple(models.SourceOSM, "osm-am", 0, 179.9999)}
		east := []models.FeatureTuple{tuple(models.SourceFSQ, "fsq-am", 0, -179.9999)}

		pairs := NewBlocker(testLogger(), 25).Pairs(context.Background(), "r1", west, east)
		require.Len(t, pairs, 1)
		assert.Equal(t, "osm-am", pairs[0].OSMID)
		assert.Equal(t, "fsq-am", pairs[0].FSQID)
		assert.InDelta(t, 22, pairs[0].DistanceM, 2)
	})

	t.Run("DeterministicOrdering", func(t *testing.T) {
		a := NewBlocker(testLogger(), 5000).Pairs(context.Background(), "r1", osm, fsq)
		b := NewBlocker(testLogger(), 5000).Pairs(context.Background(), "r1", osm, fsq)
		assert.Equal(t, a, b)
	})
}

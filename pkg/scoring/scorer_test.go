package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

func strptr(s string) *string { return &s }

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	t.Run("SumNotOne", func(t *testing.T) {
		w := DefaultWeights()
		w.Phone = 0.2
		assert.Error(t, w.Validate())
	})

	t.Run("Negative", func(t *testing.T) {
		w := Weights{Spatial: 1.3, Lexical: -0.3}
		assert.Error(t, w.Validate())
	})
}

func TestSpatialScore(t *testing.T) {
	s := NewScorer(DefaultWeights(), 25, 0.5)
	assert.Equal(t, 1.0, s.SpatialScore(0))
	assert.Equal(t, 0.0, s.SpatialScore(25))
	assert.InDelta(t, 0.5, s.SpatialScore(12.5), 1e-9)
	// Clamped outside the threshold.
	assert.Equal(t, 0.0, s.SpatialScore(100))
}

func TestJaccardTrigrams(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		assert.Equal(t, 1.0, JaccardTrigrams([]string{"abc", "bcd"}, []string{"abc", "bcd"}))
	})
	t.Run("Disjoint", func(t *testing.T) {
		assert.Equal(t, 0.0, JaccardTrigrams([]string{"abc"}, []string{"xyz"}))
	})
	t.Run("Partial", func(t *testing.T) {
		// 2 shared of 4 total.
		got := JaccardTrigrams([]string{"abc", "bcd", "cde"}, []string{"abc", "bcd", "zzz"})
		assert.InDelta(t, 0.5, got, 1e-9)
	})
	t.Run("EmptySetsScoreZeroNotNaN", func(t *testing.T) {
		assert.Equal(t, 0.0, JaccardTrigrams(nil, nil))
		assert.Equal(t, 0.0, JaccardTrigrams(nil, []string{"abc"}))
	})
}

func TestSemanticScore(t *testing.T) {
	t.Run("IdenticalVectors", func(t *testing.T) {
		assert.InDelta(t, 1.0, SemanticScore([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	})
	t.Run("OppositeVectors", func(t *testing.T) {
		assert.InDelta(t, 0.0, SemanticScore([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	})
	t.Run("OrthogonalVectors", func(t *testing.T) {
		assert.InDelta(t, 0.5, SemanticScore([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})
	t.Run("MissingVectorIsNeutral", func(t *testing.T) {
		assert.Equal(t, 0.5, SemanticScore(nil, []float32{1}))
		assert.Equal(t, 0.5, SemanticScore([]float32{0, 0}, []float32{1, 1}))
	})
}

func TestCategoryScore(t *testing.T) {
	s := NewScorer(DefaultWeights(), 25, 0.5)
	mk := func(canon string) *models.FeatureTuple {
		return &models.FeatureTuple{CategoryCanon: canon}
	}

	assert.Equal(t, 1.0, s.CategoryScore(mk("restaurant"), mk("restaurant")))
	assert.Equal(t, 0.5, s.CategoryScore(mk("cafe"), mk("restaurant")))
	assert.Equal(t, 0.5, s.CategoryScore(mk("restaurant"), mk("cafe")), "compatibility is symmetric")
	assert.Equal(t, 0.0, s.CategoryScore(mk("bank"), mk("park")))
	// Unmapped categories are neutral, not mismatches.
	assert.Equal(t, 0.5, s.CategoryScore(mk(models.CategoryOther), mk("restaurant")))
}

func TestPhoneScore(t *testing.T) {
	assert.Equal(t, 1.0, PhoneScore(strptr("2125551234"), strptr("2125551234")))
	assert.Equal(t, 0.0, PhoneScore(strptr("2125551234"), strptr("2125559999")))
	// Absence must not penalize.
	assert.Equal(t, 0.5, PhoneScore(nil, strptr("2125551234")))
	assert.Equal(t, 0.5, PhoneScore(nil, nil))
}

func TestCombine(t *testing.T) {
	scores := models.SignalScores{Spatial: 1, Lexical: 1, Semantic: 1, Category: 1, Phone: 1}
	assert.InDelta(t, 1.0, Combine(scores, DefaultWeights()), 1e-9)

	scores = models.SignalScores{Spatial: 0.5, Lexical: 0.2, Semantic: 0.8, Category: 1, Phone: 0.5}
	// 0.5*0.30 + 0.2*0.25 + 0.8*0.30 + 1*0.10 + 0.5*0.05
	assert.InDelta(t, 0.565, Combine(scores, DefaultWeights()), 1e-9)
}

func TestScorer_Score(t *testing.T) {
	osm := &models.FeatureTuple{
		SourceID:      "osm-1",
		Trigrams:      []string{"abc", "bcd"},
		Embedding:     []float32{1, 0},
		CategoryCanon: "restaurant",
	}
	fsq := &models.FeatureTuple{
		SourceID:      "fsq-1",
		Trigrams:      []string{"abc", "bcd"},
		Embedding:     []float32{1, 0},
		CategoryCanon: "restaurant",
	}
	pair := models.CandidatePair{RunID: "r1", OSMID: "osm-1", FSQID: "fsq-1", DistanceM: 0}

	scored := NewScorer(DefaultWeights(), 25, 0.5).Score(pair, osm, fsq)
	require.Equal(t, pair, scored.CandidatePair)
	assert.Equal(t, 1.0, scored.Scores.Spatial)
	assert.Equal(t, 1.0, scored.Scores.Lexical)
	assert.InDelta(t, 1.0, scored.Scores.Semantic, 1e-9)
	assert.Equal(t, 1.0, scored.Scores.Category)
	assert.Equal(t, 0.5, scored.Scores.Phone, "no phones on either side is neutral")
	// Perfect on every weighted signal except neutral phone.
	assert.InDelta(t, 0.975, scored.Confidence, 1e-9)
}

// Package scoring computes per-signal similarity scores for candidate
// pairs and combines them into a single confidence value.
package scoring

import (
	"fmt"
	"math"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

// Weights is the signal weight vector for the combined confidence.
// Weights must sum to 1; Validate enforces this before any run starts.
type Weights struct {
	Spatial  float64 `json:"spatial"`
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
	Category float64 `json:"category"`
	Phone    float64 `json:"phone"`
}

// DefaultWeights favor the spatial and semantic signals: phone and
// category are sparse and noisy across both catalogs.
func DefaultWeights() Weights {
	return Weights{
		Spatial:  0.30,
		Lexical:  0.25,
		Semantic: 0.30,
		Category: 0.10,
		Phone:    0.05,
	}
}

// Validate checks that every weight is non-negative and the vector sums
// to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"spatial": w.Spatial, "lexical": w.Lexical, "semantic": w.Semantic,
		"category": w.Category, "phone": w.Phone,
	} {
		if v < 0 {
			return fmt.Errorf("signal weight %q is negative: %f", name, v)
		}
	}
	sum := w.Spatial + w.Lexical + w.Semantic + w.Category + w.Phone
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("signal weights must sum to 1, got %f", sum)
	}
	return nil
}

// neutralScore is used when a signal cannot discriminate (absent phone,
// unmapped category): absence must not penalize a pair.
const neutralScore = 0.5

// Scorer computes ScoredPairs. Pure aside from its configuration; the same
// pair and tuples always produce the same scores.
type Scorer struct {
	weights         Weights
	thresholdM      float64
	categoryPartial float64
}

// NewScorer creates a scorer. thresholdM is the blocking distance threshold
// (the spatial score's zero point); categoryPartial is the score for
// known-compatible category groups.
func NewScorer(weights Weights, thresholdM, categoryPartial float64) *Scorer {
	return &Scorer{weights: weights, thresholdM: thresholdM, categoryPartial: categoryPartial}
}

// Score computes the per-signal scores and combined confidence for one
// candidate pair.
func (s *Scorer) Score(pair models.CandidatePair, osm, fsq *models.FeatureTuple) models.ScoredPair {
	scores := models.SignalScores{
		Spatial:  s.SpatialScore(pair.DistanceM),
		Lexical:  JaccardTrigrams(osm.Trigrams, fsq.Trigrams),
		Semantic: SemanticScore(osm.Embedding, fsq.Embedding),
		Category: s.CategoryScore(osm, fsq),
		Phone:    PhoneScore(osm.PhoneNorm, fsq.PhoneNorm),
	}
	return models.ScoredPair{
		CandidatePair: pair,
		Scores:        scores,
		Confidence:    Combine(scores, s.weights),
	}
}

// SpatialScore maps distance to [0, 1]: 1 at zero distance, 0 at the
// blocking threshold, clamped outside.
func (s *Scorer) SpatialScore(distanceM float64) float64 {
	if s.thresholdM <= 0 {
		return 0
	}
	score := 1 - distanceM/s.thresholdM
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// JaccardTrigrams is the Jaccard similarity of two sorted trigram sets:
// |intersection| / |union|. Two empty sets score 0, never NaN; one empty
// set against a non-empty one scores 0.
func JaccardTrigrams(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Both inputs are sorted and deduplicated by the feature builder.
	i, j, inter := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// SemanticScore is the cosine similarity of the two embedding vectors
// rescaled from [-1, 1] to [0, 1]. Missing or mismatched vectors score the
// neutral 0.5 (cosine 0).
func SemanticScore(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return neutralScore
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return neutralScore
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

// compatibleCategories are canonical category groups close enough that a
// cross-source mismatch should earn partial credit rather than zero.
var compatibleCategories = map[[2]string]bool{
	{"cafe", "restaurant"}:  true,
	{"bar", "restaurant"}:   true,
	{"hospital", "pharmacy"}: true,
	{"hotel", "restaurant"}: true,
	{"park", "museum"}:      true,
}

// CategoryScore: exact canonical match scores 1, known-compatible groups
// score the configured partial value, unmapped categories are neutral,
// anything else scores 0.
func (s *Scorer) CategoryScore(osm, fsq *models.FeatureTuple) float64 {
	if !osm.HasCategory() || !fsq.HasCategory() {
		return neutralScore
	}
	if osm.CategoryCanon == fsq.CategoryCanon {
		return 1
	}
	a, b := osm.CategoryCanon, fsq.CategoryCanon
	if a > b {
		a, b = b, a
	}
	if compatibleCategories[[2]string{a, b}] {
		return s.categoryPartial
	}
	return 0
}

// PhoneScore: 1 if both normalized numbers exist and are digit-identical,
// 0 if both exist and differ, neutral 0.5 if either is absent.
func PhoneScore(a, b *string) float64 {
	if a == nil || b == nil {
		return neutralScore
	}
	if *a == *b {
		return 1
	}
	return 0
}

// Combine is the combined confidence: a pure weighted sum of the five
// signal scores. With valid weights the result stays in [0, 1].
func Combine(scores models.SignalScores, w Weights) float64 {
	return scores.Spatial*w.Spatial +
		scores.Lexical*w.Lexical +
		scores.Semantic*w.Semantic +
		scores.Category*w.Category +
		scores.Phone*w.Phone
}

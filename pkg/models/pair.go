package models

// CandidatePair is an (OSM, FSQ) pair surfaced by spatial blocking.
// Invariant: DistanceM is within the configured distance threshold, and the
// two members are never drawn from the same source.
type CandidatePair struct {
	RunID     string  `json:"run_id" db:"run_id"`
	OSMID     string  `json:"osm_id" db:"osm_id"` // source-local id, SOURCE_A side
	FSQID     string  `json:"fsq_id" db:"fsq_id"` // source-local id, SOURCE_B side
	DistanceM float64 `json:"distance_m" db:"distance_m"`
}

// SignalScores holds the per-signal similarity scores for one candidate
// pair, each normalized to [0, 1].
type SignalScores struct {
	Spatial  float64 `json:"spatial" db:"spatial_score"`
	Lexical  float64 `json:"lexical" db:"lexical_score"`
	Semantic float64 `json:"semantic" db:"semantic_score"`
	Category float64 `json:"category" db:"category_score"`
	Phone    float64 `json:"phone" db:"phone_score"`
}

// ScoredPair is a CandidatePair augmented with per-signal scores and the
// combined confidence in [0, 1].
type ScoredPair struct {
	CandidatePair
	Scores     SignalScores `json:"scores"`
	Confidence float64      `json:"confidence" db:"confidence"`
}

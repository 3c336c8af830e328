package models

import "time"

// FeatureTuple is the normalized, matching-ready projection of one RawPOI.
// It is a deterministic function of its RawPOI: recomputation from the same
// record is bit-identical except for embedding model version drift.
type FeatureTuple struct {
	POIID         string    `json:"poi_id" db:"poi_id"`
	RunID         string    `json:"run_id" db:"run_id"`
	Source        Source    `json:"source" db:"source"`
	SourceID      string    `json:"source_id" db:"source_id"`
	NameNorm      string    `json:"name_norm" db:"name_norm"`
	NameTokens    []string  `json:"name_tokens" db:"-"`
	Trigrams      []string  `json:"trigrams" db:"-"` // sorted, unique
	Embedding     []float32 `json:"embedding" db:"-"`
	CategoryCanon string    `json:"category_canon" db:"category_canon"`
	CategoryRaw   string    `json:"category_raw" db:"category_raw"` // retained for audit
	PhoneNorm     *string   `json:"phone_norm,omitempty" db:"phone_norm"`
	WebsiteNorm   *string   `json:"website_norm,omitempty" db:"website_norm"`
	Latitude      float64   `json:"latitude" db:"latitude"`
	Longitude     float64   `json:"longitude" db:"longitude"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CategoryOther is the fallback bucket for categories the static taxonomy
// table cannot map. Scoring treats it as neutral rather than a mismatch.
const CategoryOther = "other"

// HasCategory reports whether the tuple carries a mapped category code.
func (f *FeatureTuple) HasCategory() bool {
	return f.CategoryCanon != "" && f.CategoryCanon != CategoryOther
}

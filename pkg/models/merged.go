package models

import "time"

// UnmatchedConfidence is the sentinel confidence carried by a MergedPOI
// built from a single source with no accepted counterpart.
const UnmatchedConfidence = 0.0

// Provenance maps an output field name to the source(s) that contributed
// its value.
type Provenance map[string][]Source

// MergedPOI is the terminal artifact of a pipeline run: one canonical record
// per real-world place, with per-field provenance and the match confidence.
// Created once per run; immutable afterward.
type MergedPOI struct {
	ID         string     `json:"id" db:"id"`
	RunID      string     `json:"run_id" db:"run_id"`
	Name       string     `json:"name" db:"name"`
	Category   string     `json:"category" db:"category"`
	Latitude   float64    `json:"latitude" db:"latitude"`
	Longitude  float64    `json:"longitude" db:"longitude"`
	Phone      *string    `json:"phone,omitempty" db:"phone"`
	Website    *string    `json:"website,omitempty" db:"website"`
	Confidence float64    `json:"confidence" db:"confidence"`
	Provenance Provenance `json:"provenance" db:"-"`
	OSMID      *string    `json:"osm_id,omitempty" db:"osm_id"`
	FSQID      *string    `json:"fsq_id,omitempty" db:"fsq_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// SourceCount returns how many catalogs contributed to this record.
func (m *MergedPOI) SourceCount() int {
	n := 0
	if m.OSMID != nil {
		n++
	}
	if m.FSQID != nil {
		n++
	}
	return n
}

// GeoJSON output surface for the caller-facing API.

// Geometry is a GeoJSON point geometry.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

// Feature is one merged POI rendered as a GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is the GeoJSON payload returned by the POI listing.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// ToFeature renders the merged POI as a GeoJSON point feature with all
// non-geometry attributes as properties.
func (m *MergedPOI) ToFeature() Feature {
	props := map[string]any{
		"id":         m.ID,
		"run_id":     m.RunID,
		"name":       m.Name,
		"category":   m.Category,
		"confidence": m.Confidence,
		"provenance": m.Provenance,
	}
	if m.Phone != nil {
		props["phone"] = *m.Phone
	}
	if m.Website != nil {
		props["website"] = *m.Website
	}
	if m.OSMID != nil {
		props["osm_id"] = *m.OSMID
	}
	if m.FSQID != nil {
		props["fsq_id"] = *m.FSQID
	}
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{m.Longitude, m.Latitude},
		},
		Properties: props,
	}
}

// NewFeatureCollection wraps merged POIs in a GeoJSON feature collection.
func NewFeatureCollection(pois []MergedPOI) FeatureCollection {
	features := make([]Feature, 0, len(pois))
	for i := range pois {
		features = append(features, pois[i].ToFeature())
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

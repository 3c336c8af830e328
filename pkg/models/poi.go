// Package models defines the data shapes shared across the reconciliation pipeline.
package models

import (
	"encoding/json"
	"time"
)

// Source identifies which catalog a POI record came from.
type Source string

const (
	// SourceOSM is the crowd-mapped catalog (OpenStreetMap via Overpass).
	SourceOSM Source = "osm"
	// SourceFSQ is the commercial places catalog (Foursquare Places API).
	SourceFSQ Source = "fsq"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceOSM || s == SourceFSQ
}

// RawPOI is one record as delivered by a source fetch client, after the
// per-source adapter has resolved column-name and taxonomy quirks.
// Immutable once staged; superseded by a later run over the same box.
type RawPOI struct {
	ID        string          `json:"id" db:"id"`
	RunID     string          `json:"run_id" db:"run_id"`
	Source    Source          `json:"source" db:"source"`
	SourceID  string          `json:"source_id" db:"source_id"`
	Name      string          `json:"name" db:"name"`
	Category  string          `json:"category" db:"category"`
	Latitude  float64         `json:"latitude" db:"latitude"`
	Longitude float64         `json:"longitude" db:"longitude"`
	Phone     *string         `json:"phone,omitempty" db:"phone"`
	Website   *string         `json:"website,omitempty" db:"website"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// CreateRawPOIRequest is one incoming record from a fetch client, before
// adapter normalization. Keys in Record are source-specific.
type CreateRawPOIRequest struct {
	Source Source         `json:"source" validate:"required"`
	Record map[string]any `json:"record" validate:"required"`
}

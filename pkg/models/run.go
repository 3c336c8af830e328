package models

import (
	"fmt"
	"time"
)

// RunStatus tracks the lifecycle of one reconciliation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// BoundingBox is the rectangular geographic region one run covers,
// in WGS84 degrees.
type BoundingBox struct {
	MinLon float64 `json:"min_lon" db:"min_lon"`
	MinLat float64 `json:"min_lat" db:"min_lat"`
	MaxLon float64 `json:"max_lon" db:"max_lon"`
	MaxLat float64 `json:"max_lat" db:"max_lat"`
}

// Validate checks that the box is well-formed and within valid WGS84 range.
func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: %f..%f", b.MinLat, b.MaxLat)
	}
	if b.MinLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: %f..%f", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("degenerate bounding box: (%f,%f)..(%f,%f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	return nil
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// String renders the box in the min_lon,min_lat,max_lon,max_lat form used
// by the fetch clients.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// RunSummary is the per-run report surfaced to the caller and recorded for
// audit. Input defects are counted here, never fatal.
type RunSummary struct {
	OSMRecords      int    `json:"osm_records"`
	FSQRecords      int    `json:"fsq_records"`
	ExcludedRecords int    `json:"excluded_records"`
	CandidatePairs  int    `json:"candidate_pairs"`
	AcceptedMatches int    `json:"accepted_matches"`
	Unmatched       int    `json:"unmatched"`
	MergedTotal     int    `json:"merged_total"`
	EmbeddingModel  string `json:"embedding_model"`
}

// PipelineRun is one invocation of the reconciliation pipeline over a
// bounding box, identified by an opaque id the caller polls.
type PipelineRun struct {
	ID          string      `json:"id" db:"id"`
	BBox        BoundingBox `json:"bbox"`
	Status      RunStatus   `json:"status" db:"status"`
	Summary     *RunSummary `json:"summary,omitempty" db:"-"`
	Error       *string     `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// Startable reports whether the run may begin executing. Only a pending
// run starts; a running or finished run must never execute again.
func (r *PipelineRun) Startable() bool {
	return r.Status == RunStatusPending
}

// CreateRunRequest is the caller-facing request to start a run.
type CreateRunRequest struct {
	BBox BoundingBox `json:"bbox" validate:"required"`
}

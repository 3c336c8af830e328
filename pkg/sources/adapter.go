// Package sources maps raw catalog records into the shared RawPOI shape.
// Each catalog keeps its own field names and nesting quirks; the adapters
// absorb those here so nothing downstream knows which catalog a record
// came from beyond its source tag.
package sources

import (
	"encoding/json"
	"fmt"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

// Adapter maps one catalog's record layout to a RawPOI.
type Adapter interface {
	Source() models.Source
	Adapt(runID string, record map[string]any) (models.RawPOI, error)
}

// ForSource returns the adapter for a source tag.
func ForSource(source models.Source) (Adapter, error) {
	switch source {
	case models.SourceOSM:
		return &OSMAdapter{}, nil
	case models.SourceFSQ:
		return &FSQAdapter{}, nil
	default:
		return nil, fmt.Errorf("no adapter for source %q", source)
	}
}

// rawMetadata re-encodes the original record so the untouched payload
// stays queryable next to the normalized columns.
func rawMetadata(record map[string]any) json.RawMessage {
	b, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	return b
}

func nonEmptyPtr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

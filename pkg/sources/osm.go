package sources

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/extractor"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

// OSMAdapter maps OpenStreetMap elements. Coordinates arrive as lat/lon
// and most descriptive fields live inside the element's tag map, with
// name, amenity, phone, and website sometimes promoted to top level by
// upstream exports. Top level wins when both are present.
type OSMAdapter struct{}

func (a *OSMAdapter) Source() models.Source { return models.SourceOSM }

func (a *OSMAdapter) Adapt(runID string, record map[string]any) (models.RawPOI, error) {
	id, err := firstString(record, "id")
	if err != nil {
		return models.RawPOI{}, err
	}
	if id == nil {
		return models.RawPOI{}, fmt.Errorf("osm record has no id")
	}

	lat, err := requireFloat(record, "lat")
	if err != nil {
		return models.RawPOI{}, err
	}
	lon, err := requireFloat(record, "lon")
	if err != nil {
		return models.RawPOI{}, err
	}

	name, err := firstString(record, "name", "tags.name")
	if err != nil {
		return models.RawPOI{}, err
	}
	category, err := firstString(record, "amenity", "tags.amenity")
	if err != nil {
		return models.RawPOI{}, err
	}
	phone, err := firstString(record, "phone", "tags.phone", "tags.contact:phone")
	if err != nil {
		return models.RawPOI{}, err
	}
	website, err := firstString(record, "website", "tags.website", "tags.contact:website")
	if err != nil {
		return models.RawPOI{}, err
	}

	return models.RawPOI{
		ID:        uuid.NewString(),
		RunID:     runID,
		Source:    models.SourceOSM,
		SourceID:  *id,
		Name:      deref(name),
		Category:  deref(category),
		Latitude:  lat,
		Longitude: lon,
		Phone:     nonEmptyPtr(phone),
		Website:   nonEmptyPtr(website),
		Metadata:  rawMetadata(record),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// firstString returns the first path that resolves to a non-empty string.
func firstString(record map[string]any, paths ...string) (*string, error) {
	for _, path := range paths {
		s, err := extractor.ExtractString(record, path)
		if err != nil {
			return nil, err
		}
		if s != nil && *s != "" {
			return s, nil
		}
	}
	return nil, nil
}

// firstFloat returns the first path that resolves to a number.
func firstFloat(record map[string]any, paths ...string) (*float64, error) {
	for _, path := range paths {
		f, err := extractor.ExtractFloat(record, path)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, nil
}

func requireFloat(record map[string]any, paths ...string) (float64, error) {
	f, err := firstFloat(record, paths...)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, fmt.Errorf("record is missing coordinate %q", paths[0])
	}
	return *f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

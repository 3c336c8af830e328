package sources

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/extractor"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

// FSQAdapter maps Foursquare Places records. The longitude column is
// named lng, the id fsq_id, and the phone tel. Flattened exports carry
// categories as one comma-joined string while Places API payloads keep a
// list of category objects; both shapes reduce to the first category.
type FSQAdapter struct{}

func (a *FSQAdapter) Source() models.Source { return models.SourceFSQ }

func (a *FSQAdapter) Adapt(runID string, record map[string]any) (models.RawPOI, error) {
	id, err := firstString(record, "fsq_id", "id")
	if err != nil {
		return models.RawPOI{}, err
	}
	if id == nil {
		return models.RawPOI{}, fmt.Errorf("fsq record has no fsq_id")
	}

	lat, err := requireFloat(record, "lat", "geocodes.main.latitude")
	if err != nil {
		return models.RawPOI{}, err
	}
	lng, err := requireFloat(record, "lng", "geocodes.main.longitude")
	if err != nil {
		return models.RawPOI{}, err
	}

	name, err := firstString(record, "name")
	if err != nil {
		return models.RawPOI{}, err
	}
	category, err := a.primaryCategory(record)
	if err != nil {
		return models.RawPOI{}, err
	}
	phone, err := firstString(record, "phone", "tel")
	if err != nil {
		return models.RawPOI{}, err
	}
	website, err := firstString(record, "website")
	if err != nil {
		return models.RawPOI{}, err
	}

	return models.RawPOI{
		ID:        uuid.NewString(),
		RunID:     runID,
		Source:    models.SourceFSQ,
		SourceID:  *id,
		Name:      deref(name),
		Category:  category,
		Latitude:  lat,
		Longitude: lng,
		Phone:     nonEmptyPtr(phone),
		Website:   nonEmptyPtr(website),
		Metadata:  rawMetadata(record),
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (a *FSQAdapter) primaryCategory(record map[string]any) (string, error) {
	value, err := extractor.Extract(record, "categories")
	if err != nil || value == nil {
		return "", err
	}
	switch v := value.(type) {
	case string:
		first, _, _ := strings.Cut(v, ",")
		return strings.TrimSpace(first), nil
	default:
		name, err := extractor.ExtractString(record, "categories[0].name")
		if err != nil || name == nil {
			return "", err
		}
		return *name, nil
	}
}

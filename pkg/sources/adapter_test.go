package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

func TestForSource(t *testing.T) {
	osm, err := ForSource(models.SourceOSM)
	require.NoError(t, err)
	assert.Equal(t, models.SourceOSM, osm.Source())

	fsq, err := ForSource(models.SourceFSQ)
	require.NoError(t, err)
	assert.Equal(t, models.SourceFSQ, fsq.Source())

	_, err = ForSource("yelp")
	assert.Error(t, err)
}

func TestOSMAdapter_Adapt(t *testing.T) {
	t.Run("TaggedElement", func(t *testing.T) {
		record := map[string]any{
			"id":  float64(123456789),
			"lat": 40.7300,
			"lon": -74.0020,
			"tags": map[string]any{
				"name":    "Joe's Pizza",
				"amenity": "restaurant",
				"phone":   "+1 212 555 0100",
				"website": "https://joespizza.example",
			},
		}

		poi, err := (&OSMAdapter{}).Adapt("r1", record)
		require.NoError(t, err)

		assert.NotEmpty(t, poi.ID)
		assert.Equal(t, "r1", poi.RunID)
		assert.Equal(t, models.SourceOSM, poi.Source)
		assert.Equal(t, "123456789", poi.SourceID)
		assert.Equal(t, "Joe's Pizza", poi.Name)
		assert.Equal(t, "restaurant", poi.Category)
		assert.Equal(t, 40.7300, poi.Latitude)
		assert.Equal(t, -74.0020, poi.Longitude)
		require.NotNil(t, poi.Phone)
		assert.Equal(t, "+1 212 555 0100", *poi.Phone)
		require.NotNil(t, poi.Website)
		assert.NotEmpty(t, poi.Metadata)
	})

	t.Run("FlattenedExportPrefersTopLevel", func(t *testing.T) {
		record := map[string]any{
			"id":      "987",
			"lat":     40.0,
			"lon":     -73.0,
			"name":    "Flat Name",
			"amenity": "cafe",
			"tags":    map[string]any{"name": "Tag Name"},
		}

		poi, err := (&OSMAdapter{}).Adapt("r1", record)
		require.NoError(t, err)
		assert.Equal(t, "Flat Name", poi.Name)
		assert.Equal(t, "cafe", poi.Category)
		assert.Nil(t, poi.Phone)
	})

	t.Run("ContactPrefixFallback", func(t *testing.T) {
		record := map[string]any{
			"id":   "1",
			"lat":  40.0,
			"lon":  -73.0,
			"tags": map[string]any{"contact:phone": "212 555 0101"},
		}

		poi, err := (&OSMAdapter{}).Adapt("r1", record)
		require.NoError(t, err)
		require.NotNil(t, poi.Phone)
		assert.Equal(t, "212 555 0101", *poi.Phone)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := (&OSMAdapter{}).Adapt("r1", map[string]any{"lat": 40.0, "lon": -73.0})
		assert.ErrorContains(t, err, "no id")
	})

	t.Run("MissingCoordinate", func(t *testing.T) {
		_, err := (&OSMAdapter{}).Adapt("r1", map[string]any{"id": "1", "lat": 40.0})
		assert.ErrorContains(t, err, "lon")
	})
}

func TestFSQAdapter_Adapt(t *testing.T) {
	t.Run("FlattenedExport", func(t *testing.T) {
		record := map[string]any{
			"fsq_id":     "abc123",
			"name":       "Joes Pizza",
			"lat":        40.7301,
			"lng":        -74.0021,
			"categories": "Pizza Restaurant, Italian Restaurant",
			"tel":        "(212) 555-0100",
			"website":    "https://joespizza.example",
		}

		poi, err := (&FSQAdapter{}).Adapt("r1", record)
		require.NoError(t, err)

		assert.Equal(t, models.SourceFSQ, poi.Source)
		assert.Equal(t, "abc123", poi.SourceID)
		assert.Equal(t, "Joes Pizza", poi.Name)
		assert.Equal(t, "Pizza Restaurant", poi.Category)
		assert.Equal(t, 40.7301, poi.Latitude)
		assert.Equal(t, -74.0021, poi.Longitude)
		require.NotNil(t, poi.Phone)
		assert.Equal(t, "(212) 555-0100", *poi.Phone)
	})

	t.Run("PlacesAPIPayload", func(t *testing.T) {
		record := map[string]any{
			"fsq_id": "def456",
			"name":   "Central Coffee",
			"geocodes": map[string]any{
				"main": map[string]any{"latitude": 40.7320, "longitude": -74.0030},
			},
			"categories": []any{
				map[string]any{"name": "Coffee Shop"},
				map[string]any{"name": "Bakery"},
			},
		}

		poi, err := (&FSQAdapter{}).Adapt("r1", record)
		require.NoError(t, err)
		assert.Equal(t, "Coffee Shop", poi.Category)
		assert.Equal(t, 40.7320, poi.Latitude)
		assert.Equal(t, -74.0030, poi.Longitude)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := (&FSQAdapter{}).Adapt("r1", map[string]any{"lat": 40.0, "lng": -73.0})
		assert.ErrorContains(t, err, "fsq_id")
	})
}

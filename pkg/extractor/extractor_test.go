package extractor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	data := map[string]any{
		"name": "Joe's Pizza",
		"tags": map[string]any{
			"phone":   "+1 212 555 0100",
			"website": "https://joespizza.example",
		},
		"categories": []any{
			map[string]any{"name": "Pizza Restaurant"},
			map[string]any{"name": "Italian Restaurant"},
		},
	}

	t.Run("NestedKey", func(t *testing.T) {
		v, err := Extract(data, "tags.phone")
		require.NoError(t, err)
		assert.Equal(t, "+1 212 555 0100", v)
	})

	t.Run("ArrayIndex", func(t *testing.T) {
		v, err := Extract(data, "categories[0].name")
		require.NoError(t, err)
		assert.Equal(t, "Pizza Restaurant", v)
	})

	t.Run("MissingKeyIsNil", func(t *testing.T) {
		v, err := Extract(data, "tags.email")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("OutOfRangeIndexIsNil", func(t *testing.T) {
		v, err := Extract(data, "categories[5].name")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("KeyOnScalarIsError", func(t *testing.T) {
		_, err := Extract(data, "name.first")
		assert.Error(t, err)
	})
}

func TestExtractString(t *testing.T) {
	data := map[string]any{"id": float64(12345), "name": "Cafe"}

	s, err := ExtractString(data, "id")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "12345", *s)

	s, err = ExtractString(data, "missing")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestExtractFloat(t *testing.T) {
	data := map[string]any{
		"lat":    40.7301,
		"lng":    "-74.0021",
		"name":   "Cafe",
		"nested": map[string]any{"value": json.Number("12.5")},
	}

	f, err := ExtractFloat(data, "lat")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 40.7301, *f)

	f, err = ExtractFloat(data, "lng")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, -74.0021, *f)

	f, err = ExtractFloat(data, "nested.value")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 12.5, *f)

	f, err = ExtractFloat(data, "missing")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = ExtractFloat(data, "name")
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	m, err := FromJSON(json.RawMessage(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), m["a"])

	_, err = FromJSON(json.RawMessage(`[1, 2]`))
	assert.Error(t, err)
}

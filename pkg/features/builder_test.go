package features

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/embedding"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/normalizers"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// countingEncoder wraps the hash encoder and counts texts actually encoded,
// to observe the per-run cache.
type countingEncoder struct {
	inner   embedding.Encoder
	encoded int
}

func (c *countingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	c.encoded += len(texts)
	return c.inner.Encode(ctx, texts)
}

func (c *countingEncoder) ModelVersion() string { return c.inner.ModelVersion() }

func TestTrigrams(t *testing.T) {
	t.Run("PunctuationAndSpacingInvariance", func(t *testing.T) {
		a := Trigrams(normalizers.NormalizeName("Joe's Café"))
		b := Trigrams(normalizers.NormalizeName("joes cafe"))
		assert.Equal(t, a, b)
		assert.Equal(t, []string{"afe", "caf", "esc", "joe", "oes", "sca"}, a)
	})

	t.Run("SortedUnique", func(t *testing.T) {
		got := Trigrams("aaaa")
		assert.Equal(t, []string{"aaa"}, got)
	})

	t.Run("ShortNamesYieldEmptySet", func(t *testing.T) {
		assert.Empty(t, Trigrams(""))
		assert.Empty(t, Trigrams("ab"))
		assert.Empty(t, Trigrams("a b"))
	})

	t.Run("MultiByteRunesStayWhole", func(t *testing.T) {
		got := Trigrams("日本料理店")
		assert.ElementsMatch(t, []string{"日本料", "本料理", "料理店"}, got)
		for _, tg := range got {
			assert.Len(t, []rune(tg), 3)
		}
	})

	t.Run("TwoRunesYieldEmptySet", func(t *testing.T) {
		assert.Empty(t, Trigrams("日本"))
	})
}

func TestCanonicalCategory(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"restaurant", "restaurant"},
		{"Fast Food", "restaurant"},
		{"Coffee Shop", "cafe"},
		{"pub", "bar"},
		{"bus_station", "transport"},
		{"Supermarket", "store"},
		{"doctors", models.CategoryOther},
		{"", models.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalCategory(tt.raw))
		})
	}
}

func TestBuilder_BuildAll(t *testing.T) {
	phone := "+1 (212) 555-1234"
	shortPhone := "12345"
	website := "https://www.joespizza.com/"

	pois := []models.RawPOI{
		{ID: "p1", RunID: "r1", Source: models.SourceOSM, SourceID: "osm-1", Name: "Joe's Pizza", Category: "restaurant", Latitude: 40.73, Longitude: -74.002, Phone: &phone, Website: &website},
		{ID: "p2", RunID: "r1", Source: models.SourceOSM, SourceID: "osm-2", Name: "Bad Coords", Category: "cafe", Latitude: 91.0, Longitude: 0},
		{ID: "p3", RunID: "r1", Source: models.SourceOSM, SourceID: "osm-3", Name: "   ", Category: "cafe", Latitude: 40.7, Longitude: -74.0},
		{ID: "p4", RunID: "r1", Source: models.SourceOSM, SourceID: "osm-4", Name: "Joe's Pizza", Category: "food", Latitude: 40.74, Longitude: -74.01, Phone: &shortPhone},
	}

	enc := &countingEncoder{inner: embedding.NewHashEncoder(64)}
	builder := NewBuilder(testLogger(), enc)

	tuples, excluded, err := builder.BuildAll(context.Background(), pois)
	require.NoError(t, err)

	assert.Equal(t, 2, excluded, "invalid coordinates and empty name are excluded")
	require.Len(t, tuples, 2)

	first := tuples[0]
	assert.Equal(t, "joes pizza", first.NameNorm)
	assert.Equal(t, []string{"joes", "pizza"}, first.NameTokens)
	assert.Equal(t, "restaurant", first.CategoryCanon)
	assert.Equal(t, "restaurant", first.CategoryRaw)
	require.NotNil(t, first.PhoneNorm)
	assert.Equal(t, "12125551234", *first.PhoneNorm)
	require.NotNil(t, first.WebsiteNorm)
	assert.Equal(t, "joespizza.com", *first.WebsiteNorm)
	assert.NotEmpty(t, first.Embedding)

	// Under-length phone is treated as absent.
	assert.Nil(t, tuples[1].PhoneNorm)

	// Identical normalized names share one embedding call via the run cache.
	assert.Equal(t, 1, enc.encoded)
	assert.Equal(t, first.Embedding, tuples[1].Embedding)
}

func TestBuilder_Deterministic(t *testing.T) {
	poi := []models.RawPOI{{ID: "p1", RunID: "r1", Source: models.SourceFSQ, SourceID: "f1", Name: "Café du Monde", Category: "Coffee Shop", Latitude: 29.957, Longitude: -90.061}}

	a, _, err := NewBuilder(testLogger(), embedding.NewHashEncoder(64)).BuildAll(context.Background(), poi)
	require.NoError(t, err)
	b, _, err := NewBuilder(testLogger(), embedding.NewHashEncoder(64)).BuildAll(context.Background(), poi)
	require.NoError(t, err)

	assert.Equal(t, a[0].NameNorm, b[0].NameNorm)
	assert.Equal(t, a[0].Trigrams, b[0].Trigrams)
	assert.Equal(t, a[0].Embedding, b[0].Embedding)
	assert.Equal(t, "cafe", a[0].CategoryCanon)
}

// Package features turns raw POI records into normalized feature tuples.
package features

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/embedding"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/geo"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/normalizers"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// categoryKeywords maps each canonical category code to the keywords that
// select it across both source taxonomies. First match wins, in the fixed
// order below.
var categoryOrder = []string{
	"restaurant", "cafe", "bar", "bank", "hotel", "store", "school",
	"park", "pharmacy", "hospital", "parking", "museum", "church", "transport",
}

var categoryKeywords = map[string][]string{
	"restaurant": {"restaurant", "food", "eatery", "diner", "bistro"},
	"cafe":       {"cafe", "coffee", "coffee shop"},
	"bar":        {"bar", "pub", "tavern"},
	"bank":       {"bank", "atm"},
	"hotel":      {"hotel", "motel", "hostel", "inn"},
	"store":      {"store", "shop", "retail", "convenience", "supermarket", "market", "grocery"},
	"school":     {"school", "college", "university", "academy"},
	"park":       {"park", "playground", "garden"},
	"pharmacy":   {"pharmacy", "drugstore"},
	"hospital":   {"hospital", "clinic", "medical"},
	"parking":    {"parking", "car park", "garage"},
	"museum":     {"museum", "gallery"},
	"church":     {"church", "temple", "mosque", "synagogue"},
	"transport":  {"station", "bus", "train", "subway", "metro", "tram", "airport"},
}

// CanonicalCategory maps a raw source category into the shared coarse
// taxonomy. Unmapped categories land in the "other" bucket; the raw string
// is retained on the tuple for audit.
func CanonicalCategory(raw string) string {
	cat := strings.ToLower(strings.TrimSpace(raw))
	if cat == "" {
		return models.CategoryOther
	}
	for _, canon := range categoryOrder {
		for _, kw := range categoryKeywords[canon] {
			if strings.Contains(cat, kw) {
				return canon
			}
		}
	}
	return models.CategoryOther
}

// Trigrams extracts the sorted set of unique character trigrams from a
// normalized name. Whitespace is removed before extraction so inconsistent
// spacing and punctuation across sources cannot split a trigram. Trigrams
// are windows of runes, not bytes, so multi-byte names are never cut
// mid-character. Names shorter than three runes yield an empty set.
func Trigrams(nameNorm string) []string {
	compact := []rune(normalizers.RemoveWhitespace(nameNorm))
	if len(compact) < 3 {
		return nil
	}
	seen := make(map[string]bool)
	for i := 0; i+3 <= len(compact); i++ {
		seen[string(compact[i:i+3])] = true
	}
	out := make([]string, 0, len(seen))
	for tg := range seen {
		out = append(out, tg)
	}
	sort.Strings(out)
	return out
}

// Builder derives FeatureTuples from RawPOIs. Aside from the embedding
// lookup it is pure: the same RawPOI always yields the same tuple.
type Builder struct {
	logger  ectologger.Logger
	encoder embedding.Encoder

	mu    sync.Mutex
	cache map[string][]float32 // per-run, keyed by normalized name
}

// NewBuilder creates a feature builder with a fresh embedding cache.
// One Builder serves one pipeline run.
func NewBuilder(logger ectologger.Logger, encoder embedding.Encoder) *Builder {
	return &Builder{
		logger:  logger,
		encoder: encoder,
		cache:   make(map[string][]float32),
	}
}

// BuildAll builds tuples for a whole source collection. Records with
// missing or out-of-range coordinates, or an empty name, are excluded and
// counted, never propagated as a crash. Embeddings are fetched in one
// batched call per set of unseen normalized names.
func (b *Builder) BuildAll(ctx context.Context, pois []models.RawPOI) ([]models.FeatureTuple, int, error) {
	ctx, span := tracing.StartSpan(ctx, "features.Builder.BuildAll")
	defer span.End()

	log := b.logger.WithContext(ctx)

	tuples := make([]models.FeatureTuple, 0, len(pois))
	excluded := 0
	for i := range pois {
		poi := &pois[i]
		if !geo.ValidCoordinates(poi.Latitude, poi.Longitude) {
			log.WithFields(map[string]any{
				"source":    poi.Source,
				"source_id": poi.SourceID,
				"latitude":  poi.Latitude,
				"longitude": poi.Longitude,
			}).Warn("Excluding record with invalid coordinates")
			excluded++
			continue
		}
		nameNorm := normalizers.NormalizeName(poi.Name)
		if nameNorm == "" {
			log.WithFields(map[string]any{
				"source":    poi.Source,
				"source_id": poi.SourceID,
			}).Warn("Excluding record with empty name")
			excluded++
			continue
		}
		tuples = append(tuples, b.buildTuple(poi, nameNorm))
	}

	if err := b.embed(ctx, tuples); err != nil {
		return nil, excluded, err
	}

	return tuples, excluded, nil
}

// buildTuple computes every feature except the embedding vector.
func (b *Builder) buildTuple(poi *models.RawPOI, nameNorm string) models.FeatureTuple {
	tuple := models.FeatureTuple{
		POIID:         poi.ID,
		RunID:         poi.RunID,
		Source:        poi.Source,
		SourceID:      poi.SourceID,
		NameNorm:      nameNorm,
		NameTokens:    strings.Fields(nameNorm),
		Trigrams:      Trigrams(nameNorm),
		CategoryCanon: CanonicalCategory(poi.Category),
		CategoryRaw:   poi.Category,
		Latitude:      poi.Latitude,
		Longitude:     poi.Longitude,
		CreatedAt:     time.Now().UTC(),
	}
	if poi.Phone != nil {
		if digits := normalizers.NormalizePhone(*poi.Phone); digits != "" {
			tuple.PhoneNorm = &digits
		}
	}
	if poi.Website != nil {
		if site := normalizers.NormalizeWebsite(*poi.Website); site != "" {
			tuple.WebsiteNorm = &site
		}
	}
	return tuple
}

// embed assigns an embedding vector to every tuple, batching the service
// call over normalized names not already cached this run.
func (b *Builder) embed(ctx context.Context, tuples []models.FeatureTuple) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	missing := make([]string, 0, len(tuples))
	seen := make(map[string]bool)
	for i := range tuples {
		name := tuples[i].NameNorm
		if _, ok := b.cache[name]; !ok && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		vectors, err := b.encoder.Encode(ctx, missing)
		if err != nil {
			return err
		}
		for i, name := range missing {
			b.cache[name] = vectors[i]
		}
	}

	for i := range tuples {
		tuples[i].Embedding = b.cache[tuples[i].NameNorm]
	}
	return nil
}

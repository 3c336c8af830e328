// Package merging builds the canonical merged POI set from accepted match
// decisions and the raw records of both sources.
package merging

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
)

// Config controls per-field source preference during merges.
type Config struct {
	// NameSource is the catalog historically judged more reliable for
	// naming.
	NameSource models.Source
	// PositionSource is the catalog with generally higher positional
	// accuracy.
	PositionSource models.Source
	// PrioritySource wins conflicts on the remaining fields (category,
	// phone, website) when both sources carry a value.
	PrioritySource models.Source
}

// DefaultConfig matches the original reconciler: OSM names, FSQ positions
// and attributes.
func DefaultConfig() Config {
	return Config{
		NameSource:     models.SourceOSM,
		PositionSource: models.SourceFSQ,
		PrioritySource: models.SourceFSQ,
	}
}

// Resolver merges accepted pairs into canonical records and emits
// single-source records for everything left unmatched.
type Resolver struct {
	logger ectologger.Logger
	cfg    Config
}

// NewResolver creates a merge resolver.
func NewResolver(logger ectologger.Logger, cfg Config) *Resolver {
	return &Resolver{logger: logger, cfg: cfg}
}

// Resolve builds the MergedPOI set for one run. Every raw record appears in
// the output exactly once: as half of a two-source record if its pair was
// accepted, otherwise as an unmatched single-source record with the
// sentinel confidence. Output is sorted by merged id so identical inputs
// produce identical output.
func (r *Resolver) Resolve(ctx context.Context, runID string, decisions []models.MatchDecision, osm, fsq []models.RawPOI) []models.MergedPOI {
	ctx, span := tracing.StartSpan(ctx, "merging.Resolver.Resolve")
	defer span.End()

	osmByID := indexBySourceID(osm)
	fsqByID := indexBySourceID(fsq)

	now := time.Now().UTC()
	merged := make([]models.MergedPOI, 0, len(osm)+len(fsq))
	claimedOSM := make(map[string]bool)
	claimedFSQ := make(map[string]bool)

	for _, d := range decisions {
		if !d.IsMatch {
			continue
		}
		a, okA := osmByID[d.OSMID]
		b, okB := fsqByID[d.FSQID]
		if !okA || !okB {
			// A decision referencing an unknown record means upstream state
			// diverged from the staged input; skip rather than invent data.
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"osm_id": d.OSMID,
				"fsq_id": d.FSQID,
			}).Warn("Accepted decision references unknown raw record")
			continue
		}
		claimedOSM[d.OSMID] = true
		claimedFSQ[d.FSQID] = true
		merged = append(merged, r.mergePair(runID, a, b, d.Confidence, now))
	}

	for i := range osm {
		if !claimedOSM[osm[i].SourceID] {
			merged = append(merged, r.single(runID, &osm[i], now))
		}
	}
	for i := range fsq {
		if !claimedFSQ[fsq[i].SourceID] {
			merged = append(merged, r.single(runID, &fsq[i], now))
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"merged":    len(merged),
		"two_source": len(claimedOSM),
	}).Debug("Resolved merged POI set")

	return merged
}

// mergePair combines one accepted (OSM, FSQ) pair field by field, tagging
// each field with the source(s) that contributed it.
func (r *Resolver) mergePair(runID string, a, b *models.RawPOI, confidence float64, now time.Time) models.MergedPOI {
	bySource := map[models.Source]*models.RawPOI{
		models.SourceOSM: a,
		models.SourceFSQ: b,
	}
	provenance := models.Provenance{}

	name, nameSrc := pickString(r.cfg.NameSource, a.Name, b.Name)
	provenance["name"] = nameSrc

	pos := bySource[r.cfg.PositionSource]
	provenance["coordinates"] = []models.Source{pos.Source}

	category, catSrc := preferNonEmpty(a.Category, b.Category, r.cfg.PrioritySource)
	if len(catSrc) > 0 {
		provenance["category"] = catSrc
	}

	out := models.MergedPOI{
		ID:         mergedID(&a.SourceID, &b.SourceID),
		RunID:      runID,
		Name:       name,
		Category:   category,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Confidence: confidence,
		Provenance: provenance,
		OSMID:      &a.SourceID,
		FSQID:      &b.SourceID,
		CreatedAt:  now,
	}

	if phone, src := preferNonEmptyPtr(a.Phone, b.Phone, r.cfg.PrioritySource); phone != nil {
		out.Phone = phone
		provenance["phone"] = src
	}
	if website, src := preferNonEmptyPtr(a.Website, b.Website, r.cfg.PrioritySource); website != nil {
		out.Website = website
		provenance["website"] = src
	}

	return out
}

// single emits an unmatched record with single-source provenance on every
// populated field and the sentinel confidence.
func (r *Resolver) single(runID string, poi *models.RawPOI, now time.Time) models.MergedPOI {
	src := []models.Source{poi.Source}
	provenance := models.Provenance{
		"name":        src,
		"coordinates": src,
	}
	if poi.Category != "" {
		provenance["category"] = src
	}

	out := models.MergedPOI{
		RunID:      runID,
		Name:       poi.Name,
		Category:   poi.Category,
		Latitude:   poi.Latitude,
		Longitude:  poi.Longitude,
		Confidence: models.UnmatchedConfidence,
		Provenance: provenance,
		CreatedAt:  now,
	}
	if poi.Source == models.SourceOSM {
		out.ID = mergedID(&poi.SourceID, nil)
		out.OSMID = &poi.SourceID
	} else {
		out.ID = mergedID(nil, &poi.SourceID)
		out.FSQID = &poi.SourceID
	}
	if poi.Phone != nil && *poi.Phone != "" {
		out.Phone = poi.Phone
		provenance["phone"] = src
	}
	if poi.Website != nil && *poi.Website != "" {
		out.Website = poi.Website
		provenance["website"] = src
	}
	return out
}

// mergedID derives a stable identifier from the contributing source ids so
// re-running identical input yields identical output, ordering included.
func mergedID(osmID, fsqID *string) string {
	key := "osm:|fsq:"
	if osmID != nil {
		key = "osm:" + *osmID + "|fsq:"
	}
	if fsqID != nil {
		key += *fsqID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// pickString takes the preferred source's value, falling back to the other
// source when the preferred field is empty.
func pickString(preferred models.Source, osmVal, fsqVal string) (string, []models.Source) {
	other := models.SourceFSQ
	if preferred == models.SourceFSQ {
		other = models.SourceOSM
	}
	valueOf := map[models.Source]string{models.SourceOSM: osmVal, models.SourceFSQ: fsqVal}

	if valueOf[preferred] != "" {
		if valueOf[other] == valueOf[preferred] {
			return valueOf[preferred], []models.Source{models.SourceOSM, models.SourceFSQ}
		}
		return valueOf[preferred], []models.Source{preferred}
	}
	if valueOf[other] != "" {
		return valueOf[other], []models.Source{other}
	}
	return "", []models.Source{preferred}
}

// preferNonEmpty resolves a plain string field: whichever source has a
// value wins; when both do, the priority source wins the conflict.
func preferNonEmpty(osmVal, fsqVal string, priority models.Source) (string, []models.Source) {
	switch {
	case osmVal != "" && fsqVal != "":
		if osmVal == fsqVal {
			return osmVal, []models.Source{models.SourceOSM, models.SourceFSQ}
		}
		if priority == models.SourceOSM {
			return osmVal, []models.Source{models.SourceOSM}
		}
		return fsqVal, []models.Source{models.SourceFSQ}
	case osmVal != "":
		return osmVal, []models.Source{models.SourceOSM}
	case fsqVal != "":
		return fsqVal, []models.Source{models.SourceFSQ}
	default:
		return "", nil
	}
}

// preferNonEmptyPtr is preferNonEmpty for optional fields.
func preferNonEmptyPtr(osmVal, fsqVal *string, priority models.Source) (*string, []models.Source) {
	osmStr, fsqStr := "", ""
	if osmVal != nil {
		osmStr = *osmVal
	}
	if fsqVal != nil {
		fsqStr = *fsqVal
	}
	value, sources := preferNonEmpty(osmStr, fsqStr, priority)
	if value == "" {
		return nil, nil
	}
	return &value, sources
}

func indexBySourceID(pois []models.RawPOI) map[string]*models.RawPOI {
	out := make(map[string]*models.RawPOI, len(pois))
	for i := range pois {
		out[pois[i].SourceID] = &pois[i]
	}
	return out
}

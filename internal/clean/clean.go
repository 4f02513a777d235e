// Package clean applies the post-match filters that turn the concatenated
// matcher output into the final analysis dataset: de-duplication,
// non-residential removal, plausibility bounds, and low-confidence pruning.
// Every step logs what it removed so data loss stays auditable.
package clean

import (
	"strings"

	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// Bounds holds the fixed plausibility limits for numeric attributes.
// Real-estate plausibility is better expressed as physical limits than as
// distribution-derived cutoffs, so these are domain-supplied constants
// rather than computed statistics.
type Bounds struct {
	SurfaceMin   float64
	SurfaceMax   float64
	PriceAreaMin float64
	PriceAreaMax float64
	RoomMax      int
}

// DefaultBounds returns limits plausible for urban residential stock.
func DefaultBounds() Bounds {
	return Bounds{
		SurfaceMin:   15,
		SurfaceMax:   600,
		PriceAreaMin: 500,
		PriceAreaMax: 20000,
		RoomMax:      10,
	}
}

// nonResidentialTerms flag listings that describe commercial, office,
// parking, or storage units. Spanish and Catalan variants included.
var nonResidentialTerms = []string{
	"local comercial", "local en", "oficina", "despacho",
	"garaje", "garatge", "parking", "plaza de aparcamiento",
	"trastero", "traster", "almacen", "almacén", "nave industrial",
}

// Clean filters the matched batch in four ordered steps and reports the
// count removed by each. Running Clean on its own output removes nothing.
func Clean(in []model.MatchedRecord, bounds Bounds, minScore float64) ([]model.MatchedRecord, model.CleanStats) {
	log := zap.L().With(zap.String("component", "clean"))
	var stats model.CleanStats

	out := dedupe(in)
	stats.Duplicates = len(in) - len(out)
	log.Info("cleaner: dedupe", zap.Int("removed", stats.Duplicates), zap.Int("remaining", len(out)))

	before := len(out)
	out = filterResidential(out)
	stats.NonResidential = before - len(out)
	log.Info("cleaner: non-residential filter", zap.Int("removed", stats.NonResidential), zap.Int("remaining", len(out)))

	before = len(out)
	out = filterBounds(out, bounds)
	stats.Outliers = before - len(out)
	log.Info("cleaner: outlier filter", zap.Int("removed", stats.Outliers), zap.Int("remaining", len(out)))

	before = len(out)
	out = filterConfidence(out, minScore)
	stats.LowConfidence = before - len(out)
	log.Info("cleaner: confidence filter", zap.Int("removed", stats.LowConfidence), zap.Int("remaining", len(out)))

	stats.Final = len(out)
	return out, stats
}

// dedupe keeps the first occurrence per listing-side source identifier.
// Records without a source identifier cannot be deduplicated and pass
// through unchanged.
func dedupe(in []model.MatchedRecord) []model.MatchedRecord {
	seen := make(map[string]bool, len(in))
	out := make([]model.MatchedRecord, 0, len(in))
	for _, m := range in {
		id := m.Listing.SourceID
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, m)
	}
	return out
}

func filterResidential(in []model.MatchedRecord) []model.MatchedRecord {
	out := make([]model.MatchedRecord, 0, len(in))
	for _, m := range in {
		if isNonResidential(m.Listing) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func isNonResidential(l model.ListingRecord) bool {
	text := strings.ToLower(l.DescriptionText + " " + l.LocationText)
	for _, term := range nonResidentialTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// filterBounds removes records whose present numeric attributes fall
// outside the plausibility limits. Absent attributes are not judged.
func filterBounds(in []model.MatchedRecord, b Bounds) []model.MatchedRecord {
	out := make([]model.MatchedRecord, 0, len(in))
	for _, m := range in {
		if s := m.Listing.SurfaceArea; s != nil && (*s < b.SurfaceMin || *s > b.SurfaceMax) {
			continue
		}
		if ppa := m.PricePerArea; ppa != nil && (*ppa < b.PriceAreaMin || *ppa > b.PriceAreaMax) {
			continue
		}
		if rc := m.Listing.RoomCount; rc != nil && *rc > b.RoomMax {
			continue
		}
		out = append(out, m)
	}
	return out
}

// filterConfidence drops fuzzy and grid matches below the caller-supplied
// minimum score. Exact matches always pass.
func filterConfidence(in []model.MatchedRecord, minScore float64) []model.MatchedRecord {
	out := make([]model.MatchedRecord, 0, len(in))
	for _, m := range in {
		if m.Strategy != model.StrategyExact && m.Score < minScore {
			continue
		}
		out = append(out, m)
	}
	return out
}

package match

import (
	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// RepresentativePolicy selects how duplicate registry records sharing one
// normalized identifier collapse to a single representative.
type RepresentativePolicy string

const (
	// PolicyFirstSeen keeps the first record encountered. Stable and
	// reproducible given a fixed input ordering.
	PolicyFirstSeen RepresentativePolicy = "first_seen"
	// PolicyMeanSurface keeps the first record but replaces its surface
	// with the mean over the duplicate group.
	PolicyMeanSurface RepresentativePolicy = "mean_surface"
)

// Result is the common output shape of every matching stage: the matches it
// produced and the records it leaves for the next fallback stage.
type Result struct {
	Matched           []model.MatchedRecord
	UnmatchedRegistry []model.RegistryRecord
	UnmatchedListings []model.ListingRecord
}

// Exact joins the two batches on the normalized identifier. Duplicate
// registry keys collapse via the representative policy; duplicate listing
// keys match only their first-seen listing so that no registry record is
// allocated twice. Surplus listings fall through to the next stage.
func Exact(registry []model.RegistryRecord, listings []model.ListingRecord, policy RepresentativePolicy) (Result, model.StageStats) {
	log := zap.L().With(zap.String("component", "match.exact"))

	collapsed, dupes := collapseRegistry(registry, policy)

	byKey := make(map[string]int, len(collapsed))
	for i, r := range collapsed {
		if r.NormalizedID != "" {
			byKey[r.NormalizedID] = i
		}
	}

	listingKeys := make(map[string]bool)
	claimed := make(map[string]bool)

	var res Result
	for _, l := range listings {
		if l.NormalizedID != "" {
			listingKeys[l.NormalizedID] = true
		}
		if l.NormalizedID == "" || claimed[l.NormalizedID] {
			res.UnmatchedListings = append(res.UnmatchedListings, l)
			continue
		}
		idx, ok := byKey[l.NormalizedID]
		if !ok {
			// Present-but-unknown identifiers fall through to the fuzzy
			// stage rather than being dropped.
			res.UnmatchedListings = append(res.UnmatchedListings, l)
			continue
		}
		claimed[l.NormalizedID] = true
		res.Matched = append(res.Matched, model.MatchedRecord{
			Registry:     collapsed[idx],
			Listing:      l,
			Strategy:     model.StrategyExact,
			Score:        1.0,
			PricePerArea: model.DerivePricePerArea(l),
		})
	}

	for _, r := range collapsed {
		if r.NormalizedID == "" || !claimed[r.NormalizedID] {
			res.UnmatchedRegistry = append(res.UnmatchedRegistry, r)
		}
	}

	stats := model.StageStats{
		RegistryKeys:  len(byKey),
		ListingKeys:   len(listingKeys),
		DuplicateKeys: dupes,
		Matched:       len(res.Matched),
	}
	if stats.RegistryKeys > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(stats.RegistryKeys)
	}

	log.Info("exact match complete",
		zap.Int("registry_keys", stats.RegistryKeys),
		zap.Int("listing_keys", stats.ListingKeys),
		zap.Int("matched", stats.Matched),
		zap.Float64("match_rate", stats.MatchRate),
	)

	return res, stats
}

// collapseRegistry groups registry records by normalized identifier and
// reduces each group to one representative, preserving first-seen order.
// Records with an empty normalized identifier never group together.
func collapseRegistry(registry []model.RegistryRecord, policy RepresentativePolicy) ([]model.RegistryRecord, int) {
	groups := make(map[string][]model.RegistryRecord)
	var order []string
	var blanks []model.RegistryRecord

	for _, r := range registry {
		if r.NormalizedID == "" {
			blanks = append(blanks, r)
			continue
		}
		if _, seen := groups[r.NormalizedID]; !seen {
			order = append(order, r.NormalizedID)
		}
		groups[r.NormalizedID] = append(groups[r.NormalizedID], r)
	}

	out := make([]model.RegistryRecord, 0, len(order)+len(blanks))
	dupes := 0
	for _, key := range order {
		group := groups[key]
		dupes += len(group) - 1
		rep := group[0]
		if policy == PolicyMeanSurface && len(group) > 1 {
			var sum float64
			n := 0
			for _, g := range group {
				if g.SurfaceArea != nil {
					sum += *g.SurfaceArea
					n++
				}
			}
			if n > 0 {
				rep.SurfaceArea = model.Float64(sum / float64(n))
			}
		}
		out = append(out, rep)
	}
	out = append(out, blanks...)
	return out, dupes
}

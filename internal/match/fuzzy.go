package match

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/normalize"
)

// Weights holds the relative contribution of each fuzzy sub-score.
type Weights struct {
	Location float64
	Surface  float64
	Rooms    float64
	Features float64
}

// DefaultWeights returns the baseline weighting.
func DefaultWeights() Weights {
	return Weights{Location: 0.3, Surface: 0.4, Rooms: 0.2, Features: 0.1}
}

// Scorer evaluates listing-to-registry candidate pairs.
type Scorer struct {
	Weights          Weights
	SurfaceTolerance float64 // relative difference where surface credit hits zero
}

// NewScorer returns a scorer with the given tolerance and default weights.
// A non-positive tolerance falls back to 0.15.
func NewScorer(surfaceTolerance float64) *Scorer {
	if surfaceTolerance <= 0 {
		surfaceTolerance = 0.15
	}
	return &Scorer{Weights: DefaultWeights(), SurfaceTolerance: surfaceTolerance}
}

// Score computes the weighted similarity between a listing and a registry
// record, clamped to [0,1]. A missing attribute degrades its sub-score to a
// neutral or zero contribution; it never aborts the match attempt.
func (s *Scorer) Score(l model.ListingRecord, r model.RegistryRecord) float64 {
	w := s.Weights
	score := w.Location*s.locationScore(l, r) +
		w.Surface*s.surfaceScore(l, r) +
		w.Rooms*roomScore(l, r) +
		w.Features*featureScore(l, r)
	return math.Min(1, math.Max(0, score))
}

// locationScore compares the listing's normalized location text with the
// registry's normalized zone name. Absence on both sides earns a small
// neutral credit: missing data should not penalize as strongly as
// disagreement does.
func (s *Scorer) locationScore(l model.ListingRecord, r model.RegistryRecord) float64 {
	ln := l.NormalizedLocation
	rn := normalize.Location(r.ZoneID)

	switch {
	case ln == "" && rn == "":
		return 0.3
	case ln == "" || rn == "":
		return 0
	case ln == rn:
		return 1.0
	case containsEither(ln, rn):
		return 0.2
	default:
		return 0
	}
}

// surfaceScore decays linearly from 1 at equal surfaces to 0 at the
// relative-difference tolerance bound.
func (s *Scorer) surfaceScore(l model.ListingRecord, r model.RegistryRecord) float64 {
	if l.SurfaceArea == nil || r.SurfaceArea == nil || *r.SurfaceArea == 0 {
		return 0
	}
	rel := math.Abs(*l.SurfaceArea-*r.SurfaceArea) / *r.SurfaceArea
	if rel >= s.SurfaceTolerance {
		return 0
	}
	return 1 - rel/s.SurfaceTolerance
}

// roomScore gives full credit for an exact count match and half credit
// off-by-one. Missingness contributes zero rather than manufacturing
// agreement. The registry carries no room count; its per-building floor
// count is the closest integer attribute and serves as the comparison
// partner for the heuristic.
func roomScore(l model.ListingRecord, r model.RegistryRecord) float64 {
	if l.RoomCount == nil || r.FloorCount == nil {
		return 0
	}
	switch diff := abs(*l.RoomCount - *r.FloorCount); diff {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0
	}
}

// featureScore compares keyword-detected amenities. Extraction is one-sided
// in the baseline design: registry address text almost never mentions
// amenities, and when it yields none there is nothing to contradict, so the
// sub-score stays at full credit. When the registry text does carry amenity
// terms the comparison becomes symmetric.
func featureScore(l model.ListingRecord, r model.RegistryRecord) float64 {
	rf := ExtractFeatures(r.AddressText)
	if rf == (AmenityFeatures{}) {
		return 1.0
	}
	lf := ExtractFeatures(l.DescriptionText + " " + l.LocationText)
	return lf.Agreement(rf)
}

func containsEither(a, b string) bool {
	return len(a) > 0 && len(b) > 0 &&
		(strings.Contains(a, b) || strings.Contains(b, a))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Fuzzy evaluates every unmatched listing against every unmatched registry
// record and selects the best-scoring candidate above minScore. A listing
// whose best candidate falls below the threshold is left unmatched rather
// than forced into a low-quality pairing. minScore is honored as given; at
// zero or below, any positive-scoring candidate is accepted. Each registry
// record is allocated at most once; ties resolve to the earliest registry
// record in input order.
//
// Complexity is O(n·m), acceptable at the low-thousands batch sizes this
// pipeline targets.
func Fuzzy(registry []model.RegistryRecord, listings []model.ListingRecord, scorer *Scorer, minScore float64) (Result, model.StageStats) {
	log := zap.L().With(zap.String("component", "match.fuzzy"))
	if scorer == nil {
		scorer = NewScorer(0)
	}

	claimed := make([]bool, len(registry))
	var res Result

	for _, l := range listings {
		bestIdx, bestScore := -1, 0.0
		for i, r := range registry {
			if claimed[i] {
				continue
			}
			if sc := scorer.Score(l, r); sc > bestScore {
				bestIdx, bestScore = i, sc
			}
		}
		if bestIdx < 0 || bestScore < minScore {
			res.UnmatchedListings = append(res.UnmatchedListings, l)
			continue
		}
		claimed[bestIdx] = true
		res.Matched = append(res.Matched, model.MatchedRecord{
			Registry:     registry[bestIdx],
			Listing:      l,
			Strategy:     model.StrategyFuzzy,
			Score:        bestScore,
			PricePerArea: model.DerivePricePerArea(l),
		})
	}

	for i, r := range registry {
		if !claimed[i] {
			res.UnmatchedRegistry = append(res.UnmatchedRegistry, r)
		}
	}

	stats := model.StageStats{Matched: len(res.Matched)}
	if len(listings) > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(len(listings))
	}

	log.Info("fuzzy match complete",
		zap.Int("candidates_registry", len(registry)),
		zap.Int("candidates_listings", len(listings)),
		zap.Int("matched", stats.Matched),
		zap.Float64("match_rate", stats.MatchRate),
	)

	return res, stats
}

// Package pipeline chains the linkage stages: normalization, the
// granularity checkpoint, the escalating matchers, and the cleaner. Every
// stage is a pure transformation from an immutable input batch to a new
// output batch; a failed run re-executes from scratch on the same inputs.
package pipeline

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/checkpoint"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/clean"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/config"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/match"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/normalize"
)

// RunResult bundles the three artifacts a run hands downstream: the matched
// batch, the checkpoint audit record, and the run metrics.
type RunResult struct {
	Matched    []model.MatchedRecord
	Checkpoint *model.CheckpointResult
	Metrics    model.RunMetrics
}

// Pipeline executes one full linkage run.
type Pipeline struct {
	cfg *config.Config
}

// New builds a pipeline from the application configuration.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run links the registry batch against the listings batch. seeds is the
// expected identifier set for the completeness check; nil derives it from
// the identifiers the listings feed carries.
//
// A checkpoint ERROR aborts the run; REVIEW is recorded in the artifact and
// the run continues.
func (p *Pipeline) Run(registry []model.RegistryRecord, listings []model.ListingRecord, seeds []string) (*RunResult, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	mcfg := p.cfg.Matching

	registry, listings, keyLen := normalizeBatches(registry, listings)

	if seeds == nil {
		seeds = seedsFromListings(listings)
	} else {
		seeds = normalizeSeeds(seeds, keyLen)
	}

	cp, err := checkpoint.Evaluate(registry, seeds, p.gateConfig())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: granularity checkpoint")
	}
	if cp.Decision == model.DecisionReview {
		log.Warn("granularity checkpoint returned REVIEW; continuing with caveats",
			zap.Strings("notes", cp.Notes))
	}

	metrics := model.RunMetrics{
		RegistryTotal: len(registry),
		ListingTotal:  len(listings),
	}

	exact, exactStats := match.Exact(registry, listings, representativePolicy(mcfg.RepresentativePolicy))
	metrics.Exact = exactStats

	scorer := match.NewScorer(mcfg.SurfaceTolerance)
	fuzzy, fuzzyStats := match.Fuzzy(exact.UnmatchedRegistry, exact.UnmatchedListings, scorer, mcfg.MinFuzzyScore)
	metrics.Fuzzy = fuzzyStats

	matched := append(append([]model.MatchedRecord{}, exact.Matched...), fuzzy.Matched...)
	unmatchedRegistry := fuzzy.UnmatchedRegistry
	unmatchedListings := fuzzy.UnmatchedListings

	if p.gridNeeded(len(matched), len(listings)) {
		metrics.GridTriggered = true
		proj := match.NewProjector(p.cfg.Geo.RefLat, p.cfg.Geo.RefLon)
		grid, gridStats := match.Grid(unmatchedRegistry, unmatchedListings, proj, mcfg.GridCellSizeM, mcfg.GridMatchScore)
		metrics.Grid = &gridStats
		matched = append(matched, grid.Matched...)
		unmatchedRegistry = grid.UnmatchedRegistry
		unmatchedListings = grid.UnmatchedListings
	}

	metrics.UnmatchedRegistry = len(unmatchedRegistry)
	metrics.UnmatchedListings = len(unmatchedListings)

	cleaned, cleanStats := clean.Clean(matched, clean.Bounds{
		SurfaceMin:   p.cfg.Cleaner.SurfaceMin,
		SurfaceMax:   p.cfg.Cleaner.SurfaceMax,
		PriceAreaMin: p.cfg.Cleaner.PriceAreaMin,
		PriceAreaMax: p.cfg.Cleaner.PriceAreaMax,
		RoomMax:      p.cfg.Cleaner.RoomMax,
	}, p.cfg.Cleaner.MinScore)
	metrics.Clean = cleanStats

	log.Info("run complete",
		zap.Int("matched", len(cleaned)),
		zap.Int("registry_total", metrics.RegistryTotal),
		zap.Int("listing_total", metrics.ListingTotal),
		zap.Bool("grid_triggered", metrics.GridTriggered),
	)

	return &RunResult{Matched: cleaned, Checkpoint: cp, Metrics: metrics}, nil
}

// Checkpoint runs normalization and the granularity gate only, without
// matching. Used to pre-flight an extraction before committing to a full run.
func (p *Pipeline) Checkpoint(registry []model.RegistryRecord, listings []model.ListingRecord, seeds []string) (*model.CheckpointResult, error) {
	registry, listings, keyLen := normalizeBatches(registry, listings)
	if seeds == nil {
		seeds = seedsFromListings(listings)
	} else {
		seeds = normalizeSeeds(seeds, keyLen)
	}
	return checkpoint.Evaluate(registry, seeds, p.gateConfig())
}

func (p *Pipeline) gateConfig() checkpoint.Config {
	mcfg := p.cfg.Matching
	return checkpoint.Config{
		StdFloor:           mcfg.MicroStdFloor,
		CVFloor:            mcfg.MicroCVFloor,
		MinCompletenessPct: mcfg.MinCompletenessPct,
		MinZonePassRatio:   mcfg.MinZonePassRatio,
	}
}

// gridNeeded reports whether point-level matching left the listings side
// under-covered enough to justify the cell-level fallback.
func (p *Pipeline) gridNeeded(matched, listingTotal int) bool {
	if listingTotal == 0 {
		return false
	}
	rate := float64(matched) / float64(listingTotal)
	return rate < p.cfg.Matching.GridTriggerMatchRate
}

// normalizeBatches fills the normalized identifier and location fields on
// fresh copies of the input batches. The identifier comparison length is the
// shorter of the dominant formats observed on each side, so the registry's
// longer suffixed form and the listings' truncated form meet on their
// common prefix.
func normalizeBatches(registry []model.RegistryRecord, listings []model.ListingRecord) ([]model.RegistryRecord, []model.ListingRecord, int) {
	regIDs := make([]string, 0, len(registry))
	for _, r := range registry {
		regIDs = append(regIDs, r.Identifier)
	}
	lstIDs := make([]string, 0, len(listings))
	for _, l := range listings {
		lstIDs = append(lstIDs, l.RegistryIdentifier)
	}
	keyLen := commonKeyLength(normalize.KeyLength(regIDs), normalize.KeyLength(lstIDs))

	outR := make([]model.RegistryRecord, len(registry))
	for i, r := range registry {
		r.NormalizedID = normalize.Identifier(r.Identifier, keyLen)
		outR[i] = r
	}
	outL := make([]model.ListingRecord, len(listings))
	for i, l := range listings {
		l.NormalizedID = normalize.Identifier(l.RegistryIdentifier, keyLen)
		l.NormalizedLocation = normalize.Location(l.LocationText)
		outL[i] = l
	}
	return outR, outL, keyLen
}

// normalizeSeeds brings caller-supplied seed identifiers onto the same
// comparison form the batches use.
func normalizeSeeds(seeds []string, keyLen int) []string {
	out := make([]string, len(seeds))
	for i, s := range seeds {
		out[i] = normalize.Identifier(s, keyLen)
	}
	return out
}

func commonKeyLength(a, b int) int {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

func seedsFromListings(listings []model.ListingRecord) []string {
	seen := make(map[string]bool)
	var seeds []string
	for _, l := range listings {
		if l.NormalizedID != "" && !seen[l.NormalizedID] {
			seen[l.NormalizedID] = true
			seeds = append(seeds, l.NormalizedID)
		}
	}
	return seeds
}

func representativePolicy(name string) match.RepresentativePolicy {
	if name == string(match.PolicyMeanSurface) {
		return match.PolicyMeanSurface
	}
	return match.PolicyFirstSeen
}

// Package checkpoint implements the granularity gate that decides whether a
// registry extraction is genuinely building-level ("micro") before matching
// proceeds. Zone-level aggregates masquerading as building rows show up as
// near-zero intra-zone variance; the gate measures exactly that.
package checkpoint

import (
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// Config holds the gate thresholds. Zero values are replaced by defaults.
type Config struct {
	// StdFloor is the absolute surface-area dispersion floor (m²) a zone
	// must exceed to be classified micro.
	StdFloor float64
	// CVFloor is the relative dispersion floor (std/mean). The dual test
	// guards small-sample zones that are incidentally low-variance, and
	// zones whose absolute scale hides real aggregation.
	CVFloor float64
	// MinCompletenessPct is the minimum seed-coverage percentage for GO.
	MinCompletenessPct float64
	// MinZonePassRatio is the fraction of measured zones that must pass the
	// micro test for GO. 1.0 requires every zone to pass.
	MinZonePassRatio float64
}

func (c Config) withDefaults() Config {
	if c.StdFloor == 0 {
		c.StdFloor = 15
	}
	if c.CVFloor == 0 {
		c.CVFloor = 0.15
	}
	if c.MinCompletenessPct == 0 {
		c.MinCompletenessPct = 50
	}
	if c.MinZonePassRatio == 0 {
		c.MinZonePassRatio = 1.0
	}
	return c
}

// Evaluate groups the registry batch by administrative zone, measures the
// dispersion of surface area within each zone, and combines the micro test
// with seed completeness into a GO / REVIEW / ERROR decision.
//
// seeds is the set of normalized identifiers the extraction is expected to
// cover (typically the identifiers carried by the listings feed). An empty
// seed set leaves completeness at 100% with a note in the artifact.
func Evaluate(registry []model.RegistryRecord, seeds []string, cfg Config) (*model.CheckpointResult, error) {
	cfg = cfg.withDefaults()
	log := zap.L().With(zap.String("component", "checkpoint"))

	res := &model.CheckpointResult{GeneratedAt: time.Now().UTC()}

	if len(registry) == 0 {
		res.Decision = model.DecisionError
		res.Notes = append(res.Notes, "registry batch is empty")
		return res, eris.New("checkpoint: registry batch is empty")
	}

	byZone := make(map[string][]float64)
	var zoneOrder []string
	surfaced := 0
	for _, r := range registry {
		if r.SurfaceArea == nil {
			continue
		}
		surfaced++
		if _, seen := byZone[r.ZoneID]; !seen {
			zoneOrder = append(zoneOrder, r.ZoneID)
		}
		byZone[r.ZoneID] = append(byZone[r.ZoneID], *r.SurfaceArea)
	}

	if surfaced == 0 {
		res.Decision = model.DecisionError
		res.Notes = append(res.Notes, "no surface_area values present")
		return res, eris.New("checkpoint: no surface_area values in registry batch")
	}

	sort.Strings(zoneOrder)

	passed := 0
	for _, zone := range zoneOrder {
		zs := measureZone(zone, byZone[zone], cfg)
		if zs.Micro {
			passed++
		} else {
			log.Warn("zone failed micro test",
				zap.String("zone", zone),
				zap.Int("count", zs.Count),
				zap.Float64("std", zs.StdSurface),
				zap.Float64("cv", zs.CV),
			)
		}
		res.Zones = append(res.Zones, zs)
	}
	res.ZonePassRatio = float64(passed) / float64(len(res.Zones))

	res.SeedCount = len(seeds)
	res.Completeness = completeness(registry, seeds)
	if len(seeds) == 0 {
		res.Notes = append(res.Notes, "no seed identifiers supplied; completeness not measured")
	}

	if res.Completeness*100 >= cfg.MinCompletenessPct && res.ZonePassRatio >= cfg.MinZonePassRatio {
		res.Decision = model.DecisionGo
	} else {
		res.Decision = model.DecisionReview
		if res.Completeness*100 < cfg.MinCompletenessPct {
			res.Notes = append(res.Notes, "completeness below floor")
		}
		if res.ZonePassRatio < cfg.MinZonePassRatio {
			res.Notes = append(res.Notes, "zone micro-test pass ratio below floor")
		}
	}

	log.Info("checkpoint evaluated",
		zap.String("decision", string(res.Decision)),
		zap.Float64("completeness", res.Completeness),
		zap.Float64("zone_pass_ratio", res.ZonePassRatio),
		zap.Int("zones", len(res.Zones)),
	)

	return res, nil
}

// measureZone computes mean, sample standard deviation, and coefficient of
// variation for one zone's surface values.
func measureZone(zone string, values []float64, cfg Config) model.ZoneStats {
	zs := model.ZoneStats{ZoneID: zone, Count: len(values)}

	var sum float64
	for _, v := range values {
		sum += v
	}
	zs.MeanSurface = sum / float64(len(values))

	if len(values) > 1 {
		var ss float64
		for _, v := range values {
			d := v - zs.MeanSurface
			ss += d * d
		}
		zs.StdSurface = math.Sqrt(ss / float64(len(values)-1))
	}
	if zs.MeanSurface != 0 {
		zs.CV = zs.StdSurface / zs.MeanSurface
	}

	zs.Micro = zs.StdSurface > cfg.StdFloor && zs.CV > cfg.CVFloor
	return zs
}

// completeness is the fraction of seed identifiers present in the registry
// batch, compared on normalized identifiers. No seeds means nothing to
// measure, reported as full coverage.
func completeness(registry []model.RegistryRecord, seeds []string) float64 {
	if len(seeds) == 0 {
		return 1.0
	}
	present := make(map[string]bool, len(registry))
	for _, r := range registry {
		if r.NormalizedID != "" {
			present[r.NormalizedID] = true
		}
	}
	found := 0
	for _, s := range seeds {
		if s != "" && present[s] {
			found++
		}
	}
	return float64(found) / float64(len(seeds))
}

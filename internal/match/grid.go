package match

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// metersPerDegreeLat is the planar approximation for one degree of latitude.
// Longitude degrees shrink with cos(latitude); the projector accounts for
// that at its reference point.
const metersPerDegreeLat = 111320.0

// Projector maps lat/lon to local planar meters anchored at a reference
// point. The reference point is an explicit parameter so the component is
// reusable outside a single city.
type Projector struct {
	Ref orb.Point // {lon, lat}
}

// NewProjector anchors a projector at the given reference latitude and
// longitude.
func NewProjector(refLat, refLon float64) Projector {
	return Projector{Ref: orb.Point{refLon, refLat}}
}

// Meters projects a point to (x, y) meters east/north of the reference.
func (p Projector) Meters(pt orb.Point) (float64, float64) {
	x := (pt[0] - p.Ref[0]) * metersPerDegreeLat * math.Cos(p.Ref[1]*math.Pi/180)
	y := (pt[1] - p.Ref[1]) * metersPerDegreeLat
	return x, y
}

// Cell assigns a point to a fixed-size square cell by integer division of
// its projected coordinates.
func (p Projector) Cell(pt orb.Point, cellSizeM float64) model.CellKey {
	x, y := p.Meters(pt)
	return model.CellKey{
		X: int(math.Floor(x / cellSizeM)),
		Y: int(math.Floor(y / cellSizeM)),
	}
}

// registryCell aggregates the registry records falling inside one cell:
// numeric attributes average, categorical attributes carry from the first
// record seen. All member records are retained so an unmatched cell can
// report every record it excluded.
type registryCell struct {
	records  []model.RegistryRecord
	surfSum  float64
	surfN    int
	yearSum  int
	yearN    int
	floorSum int
	floorN   int
}

type listingCell struct {
	records []model.ListingRecord
	surfSum float64
	surfN   int
	prcSum  float64
	prcN    int
	roomSum int
	roomN   int
}

// Grid discretizes the operating area into cells of cellSizeM meters,
// aggregates each side per cell, and joins cell to cell. It trades
// individual-record precision for coverage: any cell with presence on both
// sides yields a match, at the cost of conflating distinct buildings that
// share a cell. Records without coordinates cannot be projected and are
// returned unmatched.
func Grid(registry []model.RegistryRecord, listings []model.ListingRecord, proj Projector, cellSizeM, score float64) (Result, model.GridStats) {
	log := zap.L().With(zap.String("component", "match.grid"))
	if cellSizeM <= 0 {
		cellSizeM = 100
	}

	regCells := make(map[model.CellKey]*registryCell)
	var res Result
	for _, r := range registry {
		if r.Latitude == nil || r.Longitude == nil {
			res.UnmatchedRegistry = append(res.UnmatchedRegistry, r)
			continue
		}
		key := proj.Cell(orb.Point{*r.Longitude, *r.Latitude}, cellSizeM)
		c, ok := regCells[key]
		if !ok {
			c = &registryCell{}
			regCells[key] = c
		}
		c.records = append(c.records, r)
		if r.SurfaceArea != nil {
			c.surfSum += *r.SurfaceArea
			c.surfN++
		}
		if r.ConstructionYear != nil {
			c.yearSum += *r.ConstructionYear
			c.yearN++
		}
		if r.FloorCount != nil {
			c.floorSum += *r.FloorCount
			c.floorN++
		}
	}

	lstCells := make(map[model.CellKey]*listingCell)
	for _, l := range listings {
		if l.Latitude == nil || l.Longitude == nil {
			res.UnmatchedListings = append(res.UnmatchedListings, l)
			continue
		}
		key := proj.Cell(orb.Point{*l.Longitude, *l.Latitude}, cellSizeM)
		c, ok := lstCells[key]
		if !ok {
			c = &listingCell{}
			lstCells[key] = c
		}
		c.records = append(c.records, l)
		if l.SurfaceArea != nil {
			c.surfSum += *l.SurfaceArea
			c.surfN++
		}
		if l.Price != nil {
			c.prcSum += *l.Price
			c.prcN++
		}
		if l.RoomCount != nil {
			c.roomSum += *l.RoomCount
			c.roomN++
		}
	}

	// Iterate cells in key order so repeated runs emit matches in the same
	// order.
	keys := make([]model.CellKey, 0, len(regCells))
	for key := range regCells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})

	for _, key := range keys {
		rc := regCells[key]
		lc, ok := lstCells[key]
		if !ok {
			res.UnmatchedRegistry = append(res.UnmatchedRegistry, rc.records...)
			continue
		}
		pseudoL := lc.pseudoRecord()
		res.Matched = append(res.Matched, model.MatchedRecord{
			Registry:     rc.pseudoRecord(),
			Listing:      pseudoL,
			Strategy:     model.StrategyGrid,
			Score:        score,
			PricePerArea: model.DerivePricePerArea(pseudoL),
		})
		delete(lstCells, key)
	}

	// Listing cells with no registry presence stay unmatched; surface every
	// member record so exclusion counts stay honest.
	lkeys := make([]model.CellKey, 0, len(lstCells))
	for key := range lstCells {
		lkeys = append(lkeys, key)
	}
	sort.Slice(lkeys, func(i, j int) bool {
		if lkeys[i].X != lkeys[j].X {
			return lkeys[i].X < lkeys[j].X
		}
		return lkeys[i].Y < lkeys[j].Y
	})
	for _, key := range lkeys {
		res.UnmatchedListings = append(res.UnmatchedListings, lstCells[key].records...)
	}

	stats := model.GridStats{
		CellsRegistry: len(keys),
		CellsListing:  len(lstCells) + len(res.Matched),
		Matched:       len(res.Matched),
	}
	if stats.CellsRegistry > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(stats.CellsRegistry)
	}

	log.Info("grid match complete",
		zap.Int("cells_registry", stats.CellsRegistry),
		zap.Int("cells_listing", stats.CellsListing),
		zap.Int("matched", stats.Matched),
		zap.Float64("match_rate", stats.MatchRate),
		zap.Float64("cell_size_m", cellSizeM),
	)

	return res, stats
}

func (c *registryCell) pseudoRecord() model.RegistryRecord {
	rec := c.records[0]
	if c.surfN > 0 {
		rec.SurfaceArea = model.Float64(c.surfSum / float64(c.surfN))
	}
	if c.yearN > 0 {
		rec.ConstructionYear = model.Int(c.yearSum / c.yearN)
	}
	if c.floorN > 0 {
		rec.FloorCount = model.Int(c.floorSum / c.floorN)
	}
	return rec
}

func (c *listingCell) pseudoRecord() model.ListingRecord {
	rec := c.records[0]
	if c.surfN > 0 {
		rec.SurfaceArea = model.Float64(c.surfSum / float64(c.surfN))
	}
	if c.prcN > 0 {
		rec.Price = model.Float64(c.prcSum / float64(c.prcN))
	}
	if c.roomN > 0 {
		rec.RoomCount = model.Int(c.roomSum / c.roomN)
	}
	return rec
}

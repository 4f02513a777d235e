package match

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// Plaça de Catalunya, a convenient anchor for the test fixtures.
const (
	refLat = 41.3870
	refLon = 2.1700
)

// offsetPoint returns a point displaced by the given meters east and north
// of the reference, inverting the projector's planar approximation.
func offsetPoint(eastM, northM float64) orb.Point {
	p := NewProjector(refLat, refLon)
	lat := refLat + northM/metersPerDegreeLat
	lon := refLon + eastM/(metersPerDegreeLat*cosRef(p))
	return orb.Point{lon, lat}
}

func cosRef(p Projector) float64 {
	x, _ := p.Meters(orb.Point{p.Ref[0] + 1, p.Ref[1]})
	return x / metersPerDegreeLat
}

func gridReg(pt orb.Point, surface float64) model.RegistryRecord {
	return model.RegistryRecord{
		Latitude:    model.Float64(pt[1]),
		Longitude:   model.Float64(pt[0]),
		SurfaceArea: model.Float64(surface),
	}
}

func gridLst(source string, pt orb.Point, price, surface float64) model.ListingRecord {
	return model.ListingRecord{
		SourceID:    source,
		Latitude:    model.Float64(pt[1]),
		Longitude:   model.Float64(pt[0]),
		Price:       model.Float64(price),
		SurfaceArea: model.Float64(surface),
	}
}

func TestCell_NearbyPointsShareCell(t *testing.T) {
	p := NewProjector(refLat, refLon)
	a := p.Cell(offsetPoint(10, 10), 100)
	b := p.Cell(offsetPoint(40, 40), 100)
	assert.Equal(t, a, b)
}

func TestCell_DistantPointsDiffer(t *testing.T) {
	p := NewProjector(refLat, refLon)
	a := p.Cell(offsetPoint(10, 10), 100)
	b := p.Cell(offsetPoint(170, 180), 100)
	assert.NotEqual(t, a.X, b.X)
	assert.NotEqual(t, a.Y, b.Y)
}

func TestCell_NegativeOffsets(t *testing.T) {
	p := NewProjector(refLat, refLon)
	a := p.Cell(offsetPoint(-10, -10), 100)
	assert.Equal(t, model.CellKey{X: -1, Y: -1}, a)
}

func TestGrid_MergesCohabitingRecords(t *testing.T) {
	registry := []model.RegistryRecord{
		gridReg(offsetPoint(10, 10), 40),
		gridReg(offsetPoint(40, 30), 95),
	}
	listings := []model.ListingRecord{
		gridLst("s1", offsetPoint(20, 20), 250000, 70),
	}

	res, stats := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)

	require.Len(t, res.Matched, 1)
	m := res.Matched[0]
	assert.Equal(t, model.StrategyGrid, m.Strategy)
	assert.Equal(t, 0.5, m.Score)
	// Cell-level registry surface is the mean of the cohabitants.
	assert.InDelta(t, 67.5, *m.Registry.SurfaceArea, 1e-9)

	assert.Equal(t, 1, stats.CellsRegistry)
	assert.Equal(t, 1, stats.CellsListing)
	assert.Equal(t, 1, stats.Matched)
	assert.InDelta(t, 1.0, stats.MatchRate, 1e-9)
}

func TestGrid_MissingCoordinatesUnmatched(t *testing.T) {
	registry := []model.RegistryRecord{{Identifier: "no-coords"}}
	listings := []model.ListingRecord{{SourceID: "no-coords"}}

	res, stats := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)

	assert.Empty(t, res.Matched)
	assert.Len(t, res.UnmatchedRegistry, 1)
	assert.Len(t, res.UnmatchedListings, 1)
	assert.Equal(t, 0, stats.CellsRegistry)
}

func TestGrid_DisjointCellsUnmatched(t *testing.T) {
	registry := []model.RegistryRecord{gridReg(offsetPoint(10, 10), 80)}
	listings := []model.ListingRecord{gridLst("s1", offsetPoint(500, 500), 300000, 80)}

	res, stats := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)

	assert.Empty(t, res.Matched)
	assert.Len(t, res.UnmatchedRegistry, 1)
	assert.Len(t, res.UnmatchedListings, 1)
	assert.Equal(t, 1, stats.CellsRegistry)
	assert.Equal(t, 1, stats.CellsListing)
}

func TestGrid_UnmatchedCellsReportEveryRecord(t *testing.T) {
	// Three registry records share one cell, two listings share a distant
	// one. Every record of an unmatched cell must surface, not just the
	// first, or downstream exclusion totals undercount.
	registry := []model.RegistryRecord{
		gridReg(offsetPoint(10, 10), 60),
		gridReg(offsetPoint(20, 20), 70),
		gridReg(offsetPoint(30, 30), 80),
	}
	listings := []model.ListingRecord{
		gridLst("s1", offsetPoint(500, 500), 200000, 60),
		gridLst("s2", offsetPoint(520, 520), 300000, 80),
	}

	res, stats := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)

	assert.Empty(t, res.Matched)
	assert.Len(t, res.UnmatchedRegistry, 3)
	require.Len(t, res.UnmatchedListings, 2)
	assert.Equal(t, "s1", res.UnmatchedListings[0].SourceID)
	assert.Equal(t, "s2", res.UnmatchedListings[1].SourceID)
	assert.Equal(t, 1, stats.CellsRegistry)
	assert.Equal(t, 1, stats.CellsListing)
}

func TestGrid_ListingAggregation(t *testing.T) {
	registry := []model.RegistryRecord{gridReg(offsetPoint(10, 10), 80)}
	listings := []model.ListingRecord{
		gridLst("s1", offsetPoint(20, 20), 200000, 60),
		gridLst("s2", offsetPoint(30, 30), 400000, 100),
	}

	res, _ := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)

	require.Len(t, res.Matched, 1)
	l := res.Matched[0].Listing
	assert.Equal(t, "s1", l.SourceID) // categorical carries from first record
	assert.InDelta(t, 300000, *l.Price, 1e-9)
	assert.InDelta(t, 80, *l.SurfaceArea, 1e-9)
	require.NotNil(t, res.Matched[0].PricePerArea)
	assert.InDelta(t, 3750, *res.Matched[0].PricePerArea, 1e-9)
}

func TestGrid_DeterministicOrder(t *testing.T) {
	registry := []model.RegistryRecord{
		gridReg(offsetPoint(450, 450), 80),
		gridReg(offsetPoint(10, 10), 60),
	}
	listings := []model.ListingRecord{
		gridLst("s1", offsetPoint(460, 460), 100000, 80),
		gridLst("s2", offsetPoint(20, 20), 100000, 60),
	}

	first, _ := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)
	second, _ := Grid(registry, listings, NewProjector(refLat, refLon), 100, 0.5)
	assert.Equal(t, first, second)
	require.Len(t, first.Matched, 2)
	assert.Equal(t, "s2", first.Matched[0].Listing.SourceID) // lower cell key first
}

package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

func fuzzyReg(zone string, surface float64, floors int) model.RegistryRecord {
	return model.RegistryRecord{
		ZoneID:      zone,
		SurfaceArea: model.Float64(surface),
		FloorCount:  model.Int(floors),
	}
}

func fuzzyLst(loc string, surface float64, rooms int) model.ListingRecord {
	return model.ListingRecord{
		LocationText:       loc,
		NormalizedLocation: loc,
		SurfaceArea:        model.Float64(surface),
		RoomCount:          model.Int(rooms),
	}
}

func TestScore_IdenticalRecordNearMaximal(t *testing.T) {
	s := NewScorer(0.15)
	r := fuzzyReg("gracia", 85, 3)
	l := fuzzyLst("gracia", 85, 3)
	assert.GreaterOrEqual(t, s.Score(l, r), 0.95)
}

func TestScore_AlwaysInUnitInterval(t *testing.T) {
	s := NewScorer(0.15)
	cases := []struct {
		l model.ListingRecord
		r model.RegistryRecord
	}{
		{fuzzyLst("gracia", 85, 3), fuzzyReg("gracia", 85, 3)},
		{fuzzyLst("", 0, 0), model.RegistryRecord{}},
		{fuzzyLst("raval", 40, 1), fuzzyReg("gracia", 400, 9)},
		{model.ListingRecord{}, fuzzyReg("gracia", 85, 3)},
	}
	for _, c := range cases {
		got := s.Score(c.l, c.r)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestScore_SurfaceDecay(t *testing.T) {
	s := NewScorer(0.15)

	exact := s.surfaceScore(fuzzyLst("", 100, 0), fuzzyReg("", 100, 0))
	assert.InDelta(t, 1.0, exact, 1e-9)

	half := s.surfaceScore(fuzzyLst("", 107.5, 0), fuzzyReg("", 100, 0))
	assert.InDelta(t, 0.5, half, 1e-9)

	beyond := s.surfaceScore(fuzzyLst("", 120, 0), fuzzyReg("", 100, 0))
	assert.Equal(t, 0.0, beyond)
}

func TestScore_SurfaceMissingIsZeroContribution(t *testing.T) {
	s := NewScorer(0.15)
	l := fuzzyLst("", 0, 0)
	l.SurfaceArea = nil
	assert.Equal(t, 0.0, s.surfaceScore(l, fuzzyReg("", 100, 0)))
}

func TestScore_LocationSubstringPartialCredit(t *testing.T) {
	s := NewScorer(0.15)
	l := fuzzyLst("vila de gracia", 0, 0)
	l.SurfaceArea = nil
	r := model.RegistryRecord{ZoneID: "gracia"}
	assert.InDelta(t, 0.2, s.locationScore(l, r), 1e-9)
}

func TestScore_LocationBothMissingNeutralCredit(t *testing.T) {
	s := NewScorer(0.15)
	got := s.locationScore(model.ListingRecord{}, model.RegistryRecord{})
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}

func TestScore_LocationOneSideMissingIsZero(t *testing.T) {
	s := NewScorer(0.15)
	assert.Equal(t, 0.0, s.locationScore(fuzzyLst("gracia", 0, 0), model.RegistryRecord{}))
}

func TestScore_RoomsOffByOne(t *testing.T) {
	assert.Equal(t, 1.0, roomScore(fuzzyLst("", 0, 3), fuzzyReg("", 0, 3)))
	assert.Equal(t, 0.5, roomScore(fuzzyLst("", 0, 3), fuzzyReg("", 0, 4)))
	assert.Equal(t, 0.0, roomScore(fuzzyLst("", 0, 3), fuzzyReg("", 0, 6)))
}

func TestScore_RoomsMissingIsZero(t *testing.T) {
	l := fuzzyLst("", 0, 0)
	l.RoomCount = nil
	assert.Equal(t, 0.0, roomScore(l, fuzzyReg("", 0, 3)))
}

func TestFuzzy_LinksByBestCandidate(t *testing.T) {
	registry := []model.RegistryRecord{
		fuzzyReg("eixample", 40, 2),
		fuzzyReg("eixample", 60, 2),
		fuzzyReg("eixample", 80, 3),
		fuzzyReg("eixample", 100, 3),
		fuzzyReg("eixample", 120, 4),
	}
	var listings []model.ListingRecord
	for i, surf := range []float64{40.4, 60.6, 80.8, 101, 121.2} {
		l := fuzzyLst("eixample", surf, []int{2, 2, 3, 3, 4}[i])
		listings = append(listings, l)
	}

	res, stats := Fuzzy(registry, listings, NewScorer(0.15), 0.5)

	require.Len(t, res.Matched, 5)
	for i, m := range res.Matched {
		assert.Greater(t, m.Score, 0.9, "match %d", i)
		assert.Equal(t, model.StrategyFuzzy, m.Strategy)
	}
	assert.Empty(t, res.UnmatchedRegistry)
	assert.Empty(t, res.UnmatchedListings)
	assert.InDelta(t, 1.0, stats.MatchRate, 1e-9)
}

func TestFuzzy_BelowThresholdLeftUnmatched(t *testing.T) {
	registry := []model.RegistryRecord{fuzzyReg("gracia", 40, 2)}
	l := fuzzyLst("raval", 95, 5) // different zone, divergent surface
	res, _ := Fuzzy(registry, []model.ListingRecord{l}, NewScorer(0.15), 0.5)

	assert.Empty(t, res.Matched)
	assert.Len(t, res.UnmatchedRegistry, 1)
	assert.Len(t, res.UnmatchedListings, 1)
}

func TestFuzzy_ZeroThresholdHonored(t *testing.T) {
	// Same zone but divergent surface and rooms, so the pair scores low.
	// A caller asking for minScore 0 gets the weak match; the value must
	// not be silently replaced by a default.
	registry := []model.RegistryRecord{fuzzyReg("gracia", 40, 2)}
	listings := []model.ListingRecord{fuzzyLst("gracia", 95, 5)}

	strict, _ := Fuzzy(registry, listings, NewScorer(0.15), 0.5)
	assert.Empty(t, strict.Matched)

	lax, _ := Fuzzy(registry, listings, NewScorer(0.15), 0)
	require.Len(t, lax.Matched, 1)
	assert.Less(t, lax.Matched[0].Score, 0.5)
}

func TestFuzzy_NoDoubleAllocation(t *testing.T) {
	registry := []model.RegistryRecord{fuzzyReg("gracia", 80, 3)}
	listings := []model.ListingRecord{
		fuzzyLst("gracia", 80, 3),
		fuzzyLst("gracia", 81, 3),
	}

	res, _ := Fuzzy(registry, listings, NewScorer(0.15), 0.5)

	require.Len(t, res.Matched, 1)
	require.Len(t, res.UnmatchedListings, 1)
	assert.Empty(t, res.UnmatchedRegistry)
}

func TestFuzzy_TieBreaksFirstRegistryRecord(t *testing.T) {
	registry := []model.RegistryRecord{
		{ZoneID: "gracia", SurfaceArea: model.Float64(80), AddressText: "first"},
		{ZoneID: "gracia", SurfaceArea: model.Float64(80), AddressText: "second"},
	}
	listings := []model.ListingRecord{fuzzyLst("gracia", 80, 0)}
	listings[0].RoomCount = nil

	res, _ := Fuzzy(registry, listings, NewScorer(0.15), 0.5)
	require.Len(t, res.Matched, 1)
	assert.Equal(t, "first", res.Matched[0].Registry.AddressText)
}

// Package model defines the record types shared across the linkage pipeline.
package model

// RegistryRecord is one physical building unit from the cadastral registry.
// Nullable numeric attributes are pointers; absent CSV values decode to nil.
type RegistryRecord struct {
	Identifier       string   `csv:"identifier" json:"identifier"`
	SurfaceArea      *float64 `csv:"surface_area" json:"surface_area,omitempty"`
	ConstructionYear *int     `csv:"construction_year" json:"construction_year,omitempty"`
	FloorCount       *int     `csv:"floor_count" json:"floor_count,omitempty"`
	AddressText      string   `csv:"address_text" json:"address_text,omitempty"`
	ZoneID           string   `csv:"zone_id" json:"zone_id,omitempty"`
	Latitude         *float64 `csv:"latitude" json:"latitude,omitempty"`
	Longitude        *float64 `csv:"longitude" json:"longitude,omitempty"`

	// NormalizedID is filled by the pipeline before matching; it is not a
	// source column.
	NormalizedID string `csv:"-" json:"normalized_id,omitempty"`
}

// ListingRecord is one market offer from the commercial listings feed.
type ListingRecord struct {
	SourceID           string   `csv:"source_id" json:"source_id"`
	Price              *float64 `csv:"price" json:"price,omitempty"`
	SurfaceArea        *float64 `csv:"surface_area" json:"surface_area,omitempty"`
	RoomCount          *int     `csv:"room_count" json:"room_count,omitempty"`
	BathroomCount      *int     `csv:"bathroom_count" json:"bathroom_count,omitempty"`
	LocationText       string   `csv:"location_text" json:"location_text,omitempty"`
	DescriptionText    string   `csv:"description_text" json:"description_text,omitempty"`
	RegistryIdentifier string   `csv:"registry_identifier" json:"registry_identifier,omitempty"`
	Latitude           *float64 `csv:"latitude" json:"latitude,omitempty"`
	Longitude          *float64 `csv:"longitude" json:"longitude,omitempty"`

	NormalizedID       string `csv:"-" json:"normalized_id,omitempty"`
	NormalizedLocation string `csv:"-" json:"normalized_location,omitempty"`
}

// MatchStrategy identifies which pipeline stage produced a match.
type MatchStrategy string

const (
	StrategyExact MatchStrategy = "exact"
	StrategyFuzzy MatchStrategy = "fuzzy"
	StrategyGrid  MatchStrategy = "grid"
)

// MatchedRecord joins one registry record with one listing record.
// A registry record and a listing each appear in at most one MatchedRecord
// per run, regardless of strategy.
type MatchedRecord struct {
	Registry     RegistryRecord `json:"registry"`
	Listing      ListingRecord  `json:"listing"`
	Strategy     MatchStrategy  `json:"strategy"`
	Score        float64        `json:"score"`
	PricePerArea *float64       `json:"price_per_area,omitempty"`
}

// DerivePricePerArea computes price divided by listing surface, preferring
// the listing-side surface since the price belongs to the offer.
func DerivePricePerArea(l ListingRecord) *float64 {
	if l.Price == nil || l.SurfaceArea == nil || *l.SurfaceArea <= 0 {
		return nil
	}
	v := *l.Price / *l.SurfaceArea
	return &v
}

// Float64 returns a pointer to v. Convenience for building test fixtures
// and aggregated pseudo-records.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

package model

import "time"

// CellKey identifies one fixed-size grid cell by its integer coordinates.
type CellKey struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// StageStats holds the per-stage counters reported in the run metrics.
type StageStats struct {
	RegistryKeys  int     `json:"registry_keys,omitempty"`
	ListingKeys   int     `json:"listing_keys,omitempty"`
	DuplicateKeys int     `json:"duplicate_keys,omitempty"`
	Matched       int     `json:"matched"`
	MatchRate     float64 `json:"match_rate"`
}

// GridStats extends StageStats with the cell counts the grid aggregator
// must report so callers can judge the precision/coverage trade.
type GridStats struct {
	CellsRegistry int     `json:"cells_registry"`
	CellsListing  int     `json:"cells_listing"`
	Matched       int     `json:"matched"`
	MatchRate     float64 `json:"match_rate"`
}

// CleanStats counts the records removed by each cleaner step.
type CleanStats struct {
	Duplicates     int `json:"duplicates"`
	NonResidential int `json:"non_residential"`
	Outliers       int `json:"outliers"`
	LowConfidence  int `json:"low_confidence"`
	Final          int `json:"final"`
}

// RunMetrics is the run-level metrics artifact handed to downstream
// consumers alongside the matched batch and the checkpoint artifact.
type RunMetrics struct {
	RegistryTotal     int        `json:"registry_total"`
	ListingTotal      int        `json:"listing_total"`
	Exact             StageStats `json:"exact"`
	Fuzzy             StageStats `json:"fuzzy"`
	GridTriggered     bool       `json:"grid_triggered"`
	Grid              *GridStats `json:"grid,omitempty"`
	Clean             CleanStats `json:"clean"`
	UnmatchedRegistry int        `json:"unmatched_registry"`
	UnmatchedListings int        `json:"unmatched_listings"`
}

// Run is one persisted pipeline execution.
type Run struct {
	ID           string     `json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	Decision     Decision   `json:"decision"`
	MatchedCount int        `json:"matched_count"`
	Metrics      RunMetrics `json:"metrics"`
}

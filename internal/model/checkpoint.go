package model

import "time"

// Decision is the outcome of the granularity checkpoint.
type Decision string

const (
	// DecisionGo means the extraction looks building-level and complete
	// enough to match against.
	DecisionGo Decision = "GO"
	// DecisionReview means matching may proceed, but a human should look at
	// the per-zone detail first.
	DecisionReview Decision = "REVIEW"
	// DecisionError means required inputs were missing and no judgement
	// could be made.
	DecisionError Decision = "ERROR"
)

// ZoneStats holds the dispersion measurements for one administrative zone.
type ZoneStats struct {
	ZoneID      string  `json:"zone_id" yaml:"zone_id"`
	Count       int     `json:"count" yaml:"count"`
	MeanSurface float64 `json:"mean_surface" yaml:"mean_surface"`
	StdSurface  float64 `json:"std_surface" yaml:"std_surface"`
	CV          float64 `json:"cv" yaml:"cv"`
	Micro       bool    `json:"micro" yaml:"micro"`
}

// CheckpointResult is the audit artifact produced by the granularity
// checkpoint. It is computed once per run before matching and never
// mutated afterward.
type CheckpointResult struct {
	Decision      Decision    `json:"decision" yaml:"decision"`
	Completeness  float64     `json:"completeness" yaml:"completeness"`
	SeedCount     int         `json:"seed_count" yaml:"seed_count"`
	Zones         []ZoneStats `json:"zones" yaml:"zones"`
	ZonePassRatio float64     `json:"zone_pass_ratio" yaml:"zone_pass_ratio"`
	Notes         []string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	GeneratedAt   time.Time   `json:"generated_at" yaml:"generated_at"`
}

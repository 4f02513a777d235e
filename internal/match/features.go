// Package match implements the tiered matching strategies: exact key join,
// fuzzy heuristic scoring, and the geographic grid fallback. Each strategy
// is a pure function from two unmatched batches to a matched batch plus the
// records it could not place.
package match

import "strings"

// AmenityFeatures is the fixed-shape record of keyword-detected amenities.
// Keeping this a struct rather than a map lets the scorer stay type-checked
// against a known feature set.
type AmenityFeatures struct {
	Elevator bool `json:"elevator"`
	Exterior bool `json:"exterior"`
	Terrace  bool `json:"terrace"`
}

// Keyword variants cover Spanish and Catalan listing copy.
var (
	elevatorTerms = []string{"ascensor", "elevador", "elevator", "lift"}
	exteriorTerms = []string{"exterior", "muy luminoso", "orientacion sur"}
	terraceTerms  = []string{"terraza", "terrassa", "terrace", "balcon", "balcón"}
)

// ExtractFeatures detects amenity keywords in free text. Matching is
// case-insensitive substring search; empty text yields the zero value.
func ExtractFeatures(text string) AmenityFeatures {
	t := strings.ToLower(text)
	return AmenityFeatures{
		Elevator: containsAny(t, elevatorTerms),
		Exterior: containsAny(t, exteriorTerms),
		Terrace:  containsAny(t, terraceTerms),
	}
}

// Agreement returns the fraction of features on which a and b agree.
func (a AmenityFeatures) Agreement(b AmenityFeatures) float64 {
	agree := 0
	if a.Elevator == b.Elevator {
		agree++
	}
	if a.Exterior == b.Exterior {
		agree++
	}
	if a.Terrace == b.Terrace {
		agree++
	}
	return float64(agree) / 3
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Package normalize canonicalizes cadastral identifiers and free-text
// location names so equality comparisons are robust to case, accents,
// truncation length, and punctuation. All functions are pure and idempotent.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes characters and removes combining marks, mapping
// accented Latin letters to their base form (Gràcia -> Gracia).
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// definiteArticles lists the Spanish and Catalan definite articles stripped
// from the front of location names. The elided "l'" form is handled
// separately because punctuation stripping turns it into a bare "l ".
var definiteArticles = []string{"el ", "la ", "los ", "las ", "els ", "les "}

// Identifier canonicalizes a cadastral reference: trim, uppercase, and
// truncate to maxLen runes when maxLen > 0. The registry may expose a longer
// suffixed form than the listing feed ever supplies, so callers compare on
// the common prefix length (see KeyLength). Empty input normalizes to ""
// and is treated as non-matching downstream.
func Identifier(raw string, maxLen int) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if maxLen > 0 {
		if r := []rune(id); len(r) > maxLen {
			id = string(r[:maxLen])
		}
	}
	return id
}

// KeyLength returns the most common non-zero length among the given raw
// identifiers, after trimming. Ties resolve to the shorter length so that
// repeated runs stay deterministic. Returns 0 when no identifier is present.
func KeyLength(ids []string) int {
	counts := make(map[int]int)
	for _, id := range ids {
		if n := len([]rune(strings.TrimSpace(id))); n > 0 {
			counts[n]++
		}
	}
	best, bestCount := 0, 0
	for n, c := range counts {
		if c > bestCount || (c == bestCount && (best == 0 || n < best)) {
			best, bestCount = n, c
		}
	}
	return best
}

// Location canonicalizes a free-text location name: lowercase, fold
// diacritics to base Latin letters, strip punctuation, collapse whitespace,
// strip leading definite articles. Empty input normalizes to "".
func Location(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}

	s = stripPunctuation(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	// Articles are stripped only after punctuation removal so wrappers like
	// "(el raval)" still expose the article at the front. Repeat until a
	// fixed point ("la l eixample" -> "eixample").
	for {
		trimmed := stripLeadingArticle(s)
		if trimmed == s {
			break
		}
		s = trimmed
	}
	return s
}

func stripLeadingArticle(s string) string {
	for _, art := range definiteArticles {
		if strings.HasPrefix(s, art) {
			return strings.TrimSpace(strings.TrimPrefix(s, art))
		}
	}
	// The elided "l'" form arrives as "l " once punctuation has been
	// stripped.
	if strings.HasPrefix(s, "l ") {
		return strings.TrimSpace(strings.TrimPrefix(s, "l "))
	}
	return s
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// Punctuation separates words rather than gluing them together
			// ("sant marti-provencals" -> "sant marti provencals").
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// Package columns resolves the messy header names found in fleet exports to
// the roles the pipeline cares about (nickname, engine hours, date, location).
//
// Every vendor portal names its columns differently ("Tractor Name",
// "last_known_engine_hrs", "Hours", ...), so resolution is fuzzy by design:
// exact candidate match first, then bidirectional substring containment.
package columns

import "strings"

// Normalize converts a raw header name to the canonical form all resolution
// works on: lower-case, runs of separators (space - . / \ : ;) collapsed to a
// single underscore, anything outside [a-z0-9_] dropped, and leading/trailing
// underscores trimmed. "Last Known Engine Hrs" becomes "last_known_engine_hrs".
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
		// Anything else is dropped.
	}
	return strings.Trim(b.String(), "_")
}

// Resolve finds the available column that fills a role described by
// candidates, or ok=false when none does.
//
// Both inputs must already be normalized. Precedence:
//  1. exact: the first available column whose name equals any candidate;
//  2. substring: the first available column that contains a candidate or is
//     contained by one ("tractor name" matches candidate "name").
//
// Available columns are scanned in table order, so earlier columns win over
// later ones at the same precedence level. Candidate order breaks ties only
// within a single column's substring check.
func Resolve(available, candidates []string) (string, bool) {
	for _, col := range available {
		for _, cand := range candidates {
			if col == cand {
				return col, true
			}
		}
	}
	for _, col := range available {
		for _, cand := range candidates {
			if strings.Contains(col, cand) || strings.Contains(cand, col) {
				return col, true
			}
		}
	}
	return "", false
}

// Jaccard computes the Jaccard similarity of the character sets of a and b:
// |intersection| / |union|, in [0, 1]. Identical sets score 1, disjoint sets
// score 0, and two empty strings score 0.
//
// This is intentionally crude. It exists for diagnostics only (suggesting
// near-miss headers to operators), never for resolution itself.
func Jaccard(a, b string) float64 {
	as := charSet(a)
	bs := charSet(b)
	if len(as) == 0 && len(bs) == 0 {
		return 0
	}
	inter := 0
	for r := range as {
		if bs[r] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SimilarityThreshold is the minimum Jaccard score at which a header is
// suggested as a likely near miss for a role.
const SimilarityThreshold = 0.7

// Similar returns the available columns that look like near misses for the
// role described by candidates: not resolvable by Resolve, but with a Jaccard
// similarity above SimilarityThreshold against some candidate. Results keep
// table order. Inputs must already be normalized.
func Similar(available, candidates []string) []string {
	var out []string
	for _, col := range available {
		if _, ok := Resolve([]string{col}, candidates); ok {
			continue
		}
		for _, cand := range candidates {
			if Jaccard(col, cand) > SimilarityThreshold {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}

// Package merge combines canonical record sets from multiple uploads into
// one deduplicated fleet view.
package merge

import (
	"sort"

	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Records concatenates the given record sets in arrival order, collapses
// records sharing a nickname down to the one with the highest engine-hours
// reading (ties keep the earliest arrival), and returns the survivors sorted
// by nickname ascending plus the number of duplicates removed.
//
// Merging is idempotent: feeding the output back in yields the same set with
// zero further removals.
func Records(sets ...[]records.Record) ([]records.Record, int) {
	total := 0
	for _, set := range sets {
		total += len(set)
	}

	keep := make(map[string]records.Record, total)
	for _, set := range sets {
		for _, r := range set {
			cur, ok := keep[r.Nickname]
			if !ok || r.EngineHours > cur.EngineHours {
				keep[r.Nickname] = r
			}
		}
	}

	out := make([]records.Record, 0, len(keep))
	for _, r := range keep {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, total - len(out)
}

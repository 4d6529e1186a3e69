package metrics

import (
	"cmp"
	"slices"
)

// StatusBucket is the count for one origin/status-code pair.
type StatusBucket struct {
	Origin string
	Code   string
	Count  int
}

// FlattenStatusBuckets turns the origin -> code -> count table into rows,
// largest count first. Ties are ordered by origin, then code.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	var rows []StatusBucket
	for origin, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Origin: origin, Code: code, Count: count})
		}
	}
	slices.SortFunc(rows, func(a, b StatusBucket) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Origin, b.Origin),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return rows
}

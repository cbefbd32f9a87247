package lotbook

import (
	"maps"
	"slices"
	"sort"
)

// sortedValues returns the values of m ordered by key.
func sortedValues[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

func sortStable[T any](s []T, less func(x, y T) bool) {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
}

func bySeq[T any](s []T, seq func(T) int64) []T {
	sortStable(s, func(x, y T) bool { return seq(x) < seq(y) })
	return s
}

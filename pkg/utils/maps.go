package utils

import (
	"maps"
	"slices"
)

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// Package tiling implements the Sort-Tile-Recursive (STR) packing
// algorithm used by the STR bulk loader (spec.md §4.2), ported from
// original_source/code/geodb/str.hpp's str_impl::run_recursive. The
// original recurses over a compile-time comparator pack; here the
// comparator list is a runtime slice and recursion runs over its
// length instead of a template parameter.
package tiling

import (
	"math"
	"sort"

	"github.com/scigolib/irwi/internal/geo"
)

// Less reports whether entry a should sort before entry b under one of
// the dimensions being tiled (e.g. by label, by x-coordinate).
type Less func(a, b geo.LeafEntry) bool

// SortTileRecursive tiles entries into runs of at most leafSize elements,
// sorting the whole slice by comparators[0] first, then each resulting
// top-level slab by comparators[1], and so on down to
// comparators[len(comparators)-1] within the innermost slabs (spec.md
// §4.2). Sorting happens in place. leafSize must be > 0 and at least one
// comparator must be given.
func SortTileRecursive(entries []geo.LeafEntry, leafSize int, comparators ...Less) {
	if leafSize <= 0 {
		panic("tiling: leafSize must be positive")
	}
	if len(comparators) == 0 {
		panic("tiling: at least one comparator required")
	}
	runRecursive(entries, len(comparators), leafSize, comparators)
}

func runRecursive(entries []geo.LeafEntry, dimension, leafSize int, comparators []Less) {
	if dimension == 0 || len(entries) == 0 {
		return
	}

	comparatorIndex := len(comparators) - dimension
	less := comparators[comparatorIndex]
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })

	if dimension == 1 {
		return
	}

	size := len(entries)
	leaves := ceilDiv(size, leafSize)
	slabLeaves := int(math.Ceil(math.Max(1.0, math.Pow(float64(leaves), float64(dimension-1)/float64(dimension)))))
	slabSize := leafSize * slabLeaves

	start := 0
	remaining := size
	for remaining > 0 {
		count := remaining
		if count > slabSize {
			count = slabSize
		}
		runRecursive(entries[start:start+count], dimension-1, leafSize, comparators)
		remaining -= count
		start += count
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// TileCount returns the number of leaves that size elements pack into
// under leafSize-sized tiles, i.e. ceil(size / leafSize).
func TileCount(size, leafSize int) int {
	return ceilDiv(size, leafSize)
}

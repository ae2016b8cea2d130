package tiling

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/irwi/internal/geo"
)

func byX(a, b geo.LeafEntry) bool { return a.Unit.Start.X < b.Unit.Start.X }
func byY(a, b geo.LeafEntry) bool { return a.Unit.Start.Y < b.Unit.Start.Y }

func makeEntries(n int, seed int64) []geo.LeafEntry {
	r := rand.New(rand.NewSource(seed))
	out := make([]geo.LeafEntry, n)
	for i := range out {
		out[i] = geo.LeafEntry{
			TrajectoryID: geo.TrajectoryID(i),
			Unit: geo.TrajectoryUnit{
				Start: geo.Point{X: r.Float32() * 100, Y: r.Float32() * 100},
			},
		}
	}
	return out
}

func TestSortTileRecursivePreservesAllElements(t *testing.T) {
	entries := makeEntries(1000, 1)
	before := make(map[geo.TrajectoryID]bool, len(entries))
	for _, e := range entries {
		before[e.TrajectoryID] = true
	}

	SortTileRecursive(entries, 10, byX, byY)

	require.Len(t, entries, 1000)
	after := make(map[geo.TrajectoryID]bool, len(entries))
	for _, e := range entries {
		after[e.TrajectoryID] = true
	}
	require.Equal(t, before, after)
}

func TestSortTileRecursiveTilesAreLocallySortedByY(t *testing.T) {
	entries := makeEntries(997, 2)
	leafSize := 10
	SortTileRecursive(entries, leafSize, byX, byY)

	for start := 0; start < len(entries); start += leafSize {
		end := start + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		for i := start + 1; i < end; i++ {
			require.LessOrEqual(t, entries[i-1].Unit.Start.Y, entries[i].Unit.Start.Y)
		}
	}
}

func TestSortTileRecursiveEmptyInput(t *testing.T) {
	var entries []geo.LeafEntry
	require.NotPanics(t, func() {
		SortTileRecursive(entries, 10, byX, byY)
	})
}

func TestSortTileRecursiveSingleComparatorSortsWholeSlice(t *testing.T) {
	entries := makeEntries(50, 3)
	SortTileRecursive(entries, 10, byX)
	for i := 1; i < len(entries); i++ {
		require.LessOrEqual(t, entries[i-1].Unit.Start.X, entries[i].Unit.Start.X)
	}
}

func TestSortTileRecursivePanicsOnInvalidArgs(t *testing.T) {
	entries := makeEntries(5, 4)
	require.Panics(t, func() { SortTileRecursive(entries, 0, byX) })
	require.Panics(t, func() { SortTileRecursive(entries, 10) })
}

func TestTileCount(t *testing.T) {
	require.Equal(t, 10, TileCount(100, 10))
	require.Equal(t, 11, TileCount(101, 10))
	require.Equal(t, 0, TileCount(0, 10))
}

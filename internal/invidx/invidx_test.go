package invidx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/irwi/internal/geo"
)

func TestAppendAndSummariseTotal(t *testing.T) {
	dir := t.TempDir()
	ix, err := Create(filepath.Join(dir, "0"), 4)
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Total().Append(PostingEntry{ChildIndex: 0, UnitCount: 3, Trajectories: []geo.TrajectoryID{1, 2}}))
	require.NoError(t, ix.Total().Append(PostingEntry{ChildIndex: 1, UnitCount: 5, Trajectories: []geo.TrajectoryID{2, 3}}))

	require.Equal(t, 2, ix.Total().Len())

	sum, err := ix.Total().Summarise()
	require.NoError(t, err)
	require.Equal(t, uint64(8), sum.UnitCount)
	require.ElementsMatch(t, []geo.TrajectoryID{1, 2, 3}, sum.Trajectories)
}

func TestLambdaClipping(t *testing.T) {
	dir := t.TempDir()
	ix, err := Create(filepath.Join(dir, "0"), 2)
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Total().Append(PostingEntry{ChildIndex: 0, UnitCount: 1, Trajectories: []geo.TrajectoryID{1, 2, 3, 4}}))
	sum, err := ix.Total().Summarise()
	require.NoError(t, err)
	require.Len(t, sum.Trajectories, 2)
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ix, err := Create(filepath.Join(dir, "0"), 4)
	require.NoError(t, err)
	defer ix.Close()

	l1, err := ix.FindOrCreate(7)
	require.NoError(t, err)
	l2, err := ix.FindOrCreate(7)
	require.NoError(t, err)
	require.Same(t, l1, l2)
	require.Equal(t, 1, ix.Size())
}

func TestIterateOrderedByLabel(t *testing.T) {
	dir := t.TempDir()
	ix, err := Create(filepath.Join(dir, "0"), 4)
	require.NoError(t, err)
	defer ix.Close()

	for _, label := range []geo.Label{5, 1, 3} {
		_, err := ix.FindOrCreate(label)
		require.NoError(t, err)
	}

	var labels []geo.Label
	for _, ll := range ix.Iterate() {
		labels = append(labels, ll.Label)
	}
	require.Equal(t, []geo.Label{1, 3, 5}, labels)
}

func TestMergeSummaries(t *testing.T) {
	a := ListSummary{UnitCount: 2, Trajectories: []geo.TrajectoryID{1, 2}}
	b := ListSummary{UnitCount: 3, Trajectories: []geo.TrajectoryID{2, 3}}
	m := MergeSummaries(a, b, 10)
	require.Equal(t, uint64(5), m.UnitCount)
	require.ElementsMatch(t, []geo.TrajectoryID{1, 2, 3}, m.Trajectories)
}

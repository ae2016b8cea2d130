package hilbert

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/nodeio"
)

func smallConfig() nodeio.Config {
	return nodeio.Config{BlockSize: 256, CacheBlocks: 64, Lambda: 40}
}

func writeInput(t *testing.T, entries []geo.LeafEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	buf := make([]byte, geo.EntrySize)
	for _, e := range entries {
		geo.EncodeEntry(buf, e)
		_, err := f.Write(buf)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	return path
}

func randomEntries(n int, seed int64) []geo.LeafEntry {
	r := rand.New(rand.NewSource(seed))
	out := make([]geo.LeafEntry, n)
	for i := range out {
		x := r.Float32() * 1000
		y := r.Float32() * 1000
		out[i] = geo.LeafEntry{
			TrajectoryID: geo.TrajectoryID(i / 2),
			UnitIndex:    uint32(i % 2),
			Unit: geo.TrajectoryUnit{
				Start: geo.Point{X: x, Y: y, T: uint32(i)},
				End:   geo.Point{X: x + 1, Y: y + 1, T: uint32(i + 1)},
				Label: geo.Label(i % 4),
			},
		}
	}
	return out
}

func collectLeafEntries(t *testing.T, storage *nodeio.Storage, ptr nodeio.NodePtr, height uint64) []geo.LeafEntry {
	t.Helper()
	if height == 1 {
		entries, err := storage.LeafEntries(ptr.ToLeaf())
		require.NoError(t, err)
		return entries
	}
	internalEntries, err := storage.InternalEntries(ptr.ToInternal())
	require.NoError(t, err)
	var out []geo.LeafEntry
	for _, ie := range internalEntries {
		out = append(out, collectLeafEntries(t, storage, ie.Child, height-1)...)
	}
	return out
}

func TestLoadBuildsTreeCoveringAllEntries(t *testing.T) {
	storage, err := nodeio.Open(t.TempDir(), smallConfig())
	require.NoError(t, err)
	defer storage.Close()

	entries := randomEntries(30, 1)
	inputPath := writeInput(t, entries)

	require.NoError(t, Load(storage, inputPath, int64(len(entries)), Config{MemoryBudget: 1 << 20, ScratchDir: t.TempDir()}))

	require.False(t, storage.Empty())
	require.Equal(t, uint64(30), storage.Size())
	require.True(t, storage.Root().Valid)

	got := collectLeafEntries(t, storage, storage.Root(), storage.Height())
	require.Len(t, got, len(entries))
}

func TestLoadEmptyInputIsNoop(t *testing.T) {
	storage, err := nodeio.Open(t.TempDir(), smallConfig())
	require.NoError(t, err)
	defer storage.Close()

	inputPath := writeInput(t, nil)
	require.NoError(t, Load(storage, inputPath, 0, Config{ScratchDir: t.TempDir()}))
	require.True(t, storage.Empty())
}

func TestLoadRejectsNonEmptyTree(t *testing.T) {
	storage, err := nodeio.Open(t.TempDir(), smallConfig())
	require.NoError(t, err)
	defer storage.Close()

	_, err = storage.CreateLeaf()
	require.NoError(t, err)
	storage.SetHeight(1)

	entries := randomEntries(5, 2)
	inputPath := writeInput(t, entries)
	err = Load(storage, inputPath, int64(len(entries)), Config{ScratchDir: t.TempDir()})
	require.Error(t, err)
}

func TestLeavesRespectMaxCapacity(t *testing.T) {
	storage, err := nodeio.Open(t.TempDir(), smallConfig())
	require.NoError(t, err)
	defer storage.Close()

	entries := randomEntries(40, 3)
	inputPath := writeInput(t, entries)
	require.NoError(t, Load(storage, inputPath, int64(len(entries)), Config{MemoryBudget: 1 << 20, ScratchDir: t.TempDir()}))

	maxLeaf := storage.MaxLeafEntries()
	var walk func(ptr nodeio.NodePtr, height uint64)
	walk = func(ptr nodeio.NodePtr, height uint64) {
		if height == 1 {
			leafEntries, err := storage.LeafEntries(ptr.ToLeaf())
			require.NoError(t, err)
			require.LessOrEqual(t, len(leafEntries), maxLeaf)
			return
		}
		internalEntries, err := storage.InternalEntries(ptr.ToInternal())
		require.NoError(t, err)
		require.LessOrEqual(t, len(internalEntries), storage.MaxInternalEntries())
		for _, ie := range internalEntries {
			walk(ie.Child, height-1)
		}
	}
	walk(storage.Root(), storage.Height())
}

package irwi

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/irwi/internal/geo"
)

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
				Label: geo.Label(i % 5),
			},
		}
	}
	return out
}

func entrySet(entries []geo.LeafEntry) map[[2]uint64]bool {
	set := make(map[[2]uint64]bool, len(entries))
	for _, e := range entries {
		set[[2]uint64{uint64(e.TrajectoryID), uint64(e.UnitIndex)}] = true
	}
	return set
}

func TestOpenCreatesEmptyTree(t *testing.T) {
	tr, err := Open(t.TempDir(), LoaderConfig{})
	require.NoError(t, err)
	defer tr.Close()

	require.True(t, tr.Empty())
	require.Equal(t, uint64(0), tr.Height())
	require.Equal(t, uint64(0), tr.Size())
	require.False(t, tr.Root().Valid)
}

func TestWalkVisitsEveryEntryAfterBulkLoad(t *testing.T) {
	tr, err := Open(t.TempDir(), LoaderConfig{BlockSize: 256, Lambda: 40})
	require.NoError(t, err)
	defer tr.Close()

	entries := randomEntries(30, 1)
	inputPath := writeInput(t, entries)

	require.NoError(t, BulkLoad(tr, inputPath, LoaderConfig{Algorithm: AlgorithmSTR}))

	var got []geo.LeafEntry
	require.NoError(t, tr.Walk(func(e geo.LeafEntry) error {
		got = append(got, e)
		return nil
	}))
	require.Equal(t, entrySet(entries), entrySet(got))
}

// TestReopenAfterCloseSeesPersistedTree verifies the tree's height/size/root
// state survives a Close and a fresh Open against the same directory (spec.md
// §3.4/§6.2, §8 scenario 1: "re-opening the directory yields the same
// state").
func TestReopenAfterCloseSeesPersistedTree(t *testing.T) {
	dir := t.TempDir()
	entries := randomEntries(30, 2)
	inputPath := writeInput(t, entries)

	tr, err := Open(dir, LoaderConfig{BlockSize: 256, Lambda: 40})
	require.NoError(t, err)
	require.NoError(t, BulkLoad(tr, inputPath, LoaderConfig{Algorithm: AlgorithmSTR}))
	wantHeight := tr.Height()
	wantSize := tr.Size()
	require.NoError(t, tr.Close())

	reopened, err := Open(dir, LoaderConfig{BlockSize: 256, Lambda: 40})
	require.NoError(t, err)
	defer reopened.Close()

	require.False(t, reopened.Empty())
	require.Equal(t, wantHeight, reopened.Height())
	require.Equal(t, wantSize, reopened.Size())
	require.True(t, reopened.Root().Valid)

	var got []geo.LeafEntry
	require.NoError(t, reopened.Walk(func(e geo.LeafEntry) error {
		got = append(got, e)
		return nil
	}))
	require.Equal(t, entrySet(entries), entrySet(got))
}

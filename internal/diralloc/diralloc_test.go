package diralloc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocDenseUnique(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "inverted_index"))
	require.NoError(t, err)

	ids := make(map[uint64]bool)
	for i := 0; i < 5; i++ {
		id, err := a.Alloc()
		require.NoError(t, err)
		require.False(t, ids[id], "id %d reused", id)
		ids[id] = true

		info, err := os.Stat(a.Dir(id))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
	require.Equal(t, uint64(5), a.NextID())
}

func TestCounterPersistsAcrossReopen(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inverted_index")
	a1, err := Open(root)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := a1.Alloc()
		require.NoError(t, err)
	}

	a2, err := Open(root)
	require.NoError(t, err)
	next, err := a2.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint64(3), next)
}

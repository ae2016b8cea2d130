package blockio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tree.blocks"), 64, 4)
	require.NoError(t, err)
	defer s.Close()

	h, err := s.Alloc()
	require.NoError(t, err)
	require.Equal(t, Handle(0), h)

	buf, err := s.Read(h)
	require.NoError(t, err)
	buf[0] = 0xAB
	s.MarkDirty(h)

	require.NoError(t, s.Flush())

	buf2, err := s.Read(h)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), buf2[0])
}

func TestEvictionWritesBackDirtyBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.blocks")
	s, err := Open(path, 16, 2) // tiny cache forces eviction
	require.NoError(t, err)

	var handles []Handle
	for i := 0; i < 5; i++ {
		h, err := s.Alloc()
		require.NoError(t, err)
		buf, err := s.Read(h)
		require.NoError(t, err)
		buf[0] = byte(i + 1)
		s.MarkDirty(h)
		handles = append(handles, h)
	}
	require.NoError(t, s.Close())

	s2, err := Open(path, 16, 2)
	require.NoError(t, err)
	defer s2.Close()

	for i, h := range handles {
		buf, err := s2.Read(h)
		require.NoError(t, err)
		require.Equal(t, byte(i+1), buf[0])
	}
}

func TestReadOutOfRange(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tree.blocks"), 64, 4)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Read(Handle(5))
	require.Error(t, err)
}

func TestPersistedSizeAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.blocks")
	s, err := Open(path, 32, 4)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Alloc()
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s2, err := Open(path, 32, 4)
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, Handle(3), s2.Size())
}

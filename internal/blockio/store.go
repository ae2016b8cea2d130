// Package blockio implements the fixed-size block file with a bounded
// write-back cache that backs the tree's external storage (spec.md §4.1).
//
// Strategy (an end-of-file allocation scheme generalized from variable-size
// byte ranges to fixed-size block slots):
//   - Append-only allocation: alloc() always returns the next unused slot.
//   - No freed space reuse: blocks are never reclaimed during a load.
//   - Write-back cache: dirty blocks are written through on eviction or Flush.
package blockio

import (
	"os"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/treeerr"
)

// Handle is a 64-bit block index. Blocks are stored contiguously in the
// block file at index * BlockSize.
type Handle uint64

// NilHandle is never a valid allocated handle (handle 0 is valid; the
// zero value of Handle is used to mean "no pointer" in node encodings
// together with an explicit present/absent bit kept by the caller).
const NilHandle Handle = ^Handle(0)

// DefaultBlockSize is the default block size in bytes (spec.md §4.1).
const DefaultBlockSize = 4096

// DefaultCacheBlocks is the default bounded cache capacity, at least the
// spec's required minimum of 32 blocks.
const DefaultCacheBlocks = 64

// Store is a fixed-size block file with a bounded write-back cache.
//
// Thread safety: NOT thread-safe, matching spec.md §5 (strictly
// single-threaded scheduling, single-writer tree).
type Store struct {
	f         *os.File
	blockSize int
	nextIndex Handle
	cache     *lruCache
}

// Open opens (creating if necessary) a block file of the given block size
// with a write-back cache bounded to cacheBlocks entries.
func Open(path string, blockSize, cacheBlocks int) (*Store, error) {
	if blockSize <= 0 {
		return nil, errors.Errorf("blockio: invalid block size %d", blockSize)
	}
	if cacheBlocks < 1 {
		cacheBlocks = DefaultCacheBlocks
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "blockio: open block file")
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "blockio: stat block file")
	}

	s := &Store{
		f:         f,
		blockSize: blockSize,
		nextIndex: Handle(fi.Size() / int64(blockSize)),
	}
	s.cache = newLRUCache(cacheBlocks, s.writeThrough)
	return s, nil
}

// BlockSize returns the fixed block size in bytes.
func (s *Store) BlockSize() int {
	return s.blockSize
}

// Alloc appends a new, zero-filled block and returns its handle.
func (s *Store) Alloc() (Handle, error) {
	h := s.nextIndex
	s.nextIndex++

	buf := make([]byte, s.blockSize)
	if err := s.writeThrough(h, buf); err != nil {
		return 0, err
	}
	if err := s.cache.put(h, buf, false); err != nil {
		return 0, err
	}
	return h, nil
}

// Read returns the (possibly cached) contents of the block at h. The
// returned slice is owned by the cache: mutate it in place and call
// MarkDirty, never retain it across further Store calls.
func (s *Store) Read(h Handle) ([]byte, error) {
	if h >= s.nextIndex {
		return nil, treeerr.Corrupt("blockio: handle %d out of range (size %d)", h, s.nextIndex)
	}
	if buf, ok := s.cache.get(h); ok {
		return buf, nil
	}

	buf := make([]byte, s.blockSize)
	off := int64(h) * int64(s.blockSize)
	if _, err := s.f.ReadAt(buf, off); err != nil {
		return nil, errors.Wrapf(err, "blockio: read block %d", h)
	}
	if err := s.cache.put(h, buf, false); err != nil {
		return nil, err
	}
	return buf, nil
}

// MarkDirty flags the block at h as dirty so it is written back on
// eviction or Flush.
func (s *Store) MarkDirty(h Handle) {
	s.cache.markDirty(h)
}

// Flush writes back every dirty cached block.
func (s *Store) Flush() error {
	return s.cache.flush()
}

// Size returns the number of allocated blocks.
func (s *Store) Size() Handle {
	return s.nextIndex
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}

func (s *Store) writeThrough(h Handle, buf []byte) error {
	off := int64(h) * int64(s.blockSize)
	if _, err := s.f.WriteAt(buf, off); err != nil {
		return errors.Wrapf(err, "blockio: write block %d", h)
	}
	return nil
}

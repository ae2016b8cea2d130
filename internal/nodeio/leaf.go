package nodeio

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/treeerr"
)

// CreateLeaf allocates and zero-initializes a new leaf node.
func (s *Storage) CreateLeaf() (LeafPtr, error) {
	h, err := s.blocks.Alloc()
	if err != nil {
		return LeafPtr{}, err
	}
	return LeafPtr{Handle: h}, nil
}

// SetLeafEntries writes count entries (0 <= count <= MaxLeafEntries) into
// the leaf's block, zeroing any trailing unused slots (spec.md §6.2).
func (s *Storage) SetLeafEntries(leaf LeafPtr, entries []geo.LeafEntry) error {
	if len(entries) > s.maxLeaf {
		return errors.Errorf("nodeio: leaf entry count %d exceeds capacity %d", len(entries), s.maxLeaf)
	}

	buf, err := s.blocks.Read(leaf.Handle)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(entries)))
	for i, e := range entries {
		off := leafHeaderSize + i*geo.EntrySize
		geo.EncodeEntry(buf[off:off+geo.EntrySize], e)
	}
	for i := len(entries); i < s.maxLeaf; i++ {
		off := leafHeaderSize + i*geo.EntrySize
		for j := range buf[off : off+geo.EntrySize] {
			buf[off+j] = 0
		}
	}

	s.blocks.MarkDirty(leaf.Handle)
	return nil
}

// LeafEntries returns the entries stored in the leaf's block.
func (s *Storage) LeafEntries(leaf LeafPtr) ([]geo.LeafEntry, error) {
	buf, err := s.blocks.Read(leaf.Handle)
	if err != nil {
		return nil, err
	}

	count := binary.LittleEndian.Uint32(buf[0:4])
	if int(count) > s.maxLeaf {
		return nil, treeerr.Corrupt("nodeio: corrupt leaf block %d: count %d exceeds capacity %d", leaf.Handle, count, s.maxLeaf)
	}

	out := make([]geo.LeafEntry, count)
	for i := range out {
		off := leafHeaderSize + i*geo.EntrySize
		out[i] = geo.DecodeEntry(buf[off : off+geo.EntrySize])
	}
	return out, nil
}

// LeafCount returns the number of entries stored in the leaf's block
// without decoding them.
func (s *Storage) LeafCount(leaf LeafPtr) (int, error) {
	buf, err := s.blocks.Read(leaf.Handle)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(buf[0:4])), nil
}

package nodeio

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/blockio"
	"github.com/scigolib/irwi/internal/invidx"
	"github.com/scigolib/irwi/internal/treeerr"
)

// CreateInternal allocates a new internal node along with a fresh
// inverted-index directory for it (spec.md §3.4: "Each internal node owns
// exactly one inverted-index directory ... created when an internal node
// is created").
func (s *Storage) CreateInternal() (InternalPtr, *invidx.Index, error) {
	h, err := s.blocks.Alloc()
	if err != nil {
		return InternalPtr{}, nil, err
	}

	indexID, err := s.dirs.Alloc()
	if err != nil {
		return InternalPtr{}, nil, err
	}

	ix, err := invidx.Create(s.dirs.Dir(indexID), s.lambda)
	if err != nil {
		return InternalPtr{}, nil, err
	}
	s.openIndexes[indexID] = ix

	buf, err := s.blocks.Read(h)
	if err != nil {
		return InternalPtr{}, nil, err
	}
	binary.LittleEndian.PutUint64(buf[0:8], indexID)
	binary.LittleEndian.PutUint32(buf[8:12], 0)
	s.blocks.MarkDirty(h)

	return InternalPtr{Handle: h}, ix, nil
}

// Index reopens the inverted index owned by an existing internal node.
// Its total list keeps the postings already on disk; per-label lists are
// reopened only as FindOrCreate asks for them.
func (s *Storage) Index(internal InternalPtr) (*invidx.Index, error) {
	buf, err := s.blocks.Read(internal.Handle)
	if err != nil {
		return nil, err
	}
	indexID := binary.LittleEndian.Uint64(buf[0:8])

	if ix, ok := s.openIndexes[indexID]; ok {
		return ix, nil
	}
	ix, err := invidx.Create(s.dirs.Dir(indexID), s.lambda)
	if err != nil {
		return nil, err
	}
	s.openIndexes[indexID] = ix
	return ix, nil
}

// SetInternalEntries writes count entries into the internal node's block,
// zeroing any trailing unused slots (spec.md §6.2).
func (s *Storage) SetInternalEntries(internal InternalPtr, entries []InternalEntry) error {
	if len(entries) > s.maxInternal {
		return errors.Errorf("nodeio: internal entry count %d exceeds capacity %d", len(entries), s.maxInternal)
	}

	buf, err := s.blocks.Read(internal.Handle)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(entries)))
	for i, e := range entries {
		off := internalHeaderSize + i*internalEntrySize
		encodeInternalEntry(buf[off:off+internalEntrySize], e)
	}
	for i := len(entries); i < s.maxInternal; i++ {
		off := internalHeaderSize + i*internalEntrySize
		for j := range buf[off : off+internalEntrySize] {
			buf[off+j] = 0
		}
	}

	s.blocks.MarkDirty(internal.Handle)
	return nil
}

// InternalEntries returns the entries stored in the internal node's block.
func (s *Storage) InternalEntries(internal InternalPtr) ([]InternalEntry, error) {
	buf, err := s.blocks.Read(internal.Handle)
	if err != nil {
		return nil, err
	}

	count := binary.LittleEndian.Uint32(buf[8:12])
	if int(count) > s.maxInternal {
		return nil, treeerr.Corrupt("nodeio: corrupt internal block %d: count %d exceeds capacity %d", internal.Handle, count, s.maxInternal)
	}

	out := make([]InternalEntry, count)
	for i := range out {
		off := internalHeaderSize + i*internalEntrySize
		out[i] = decodeInternalEntry(buf[off : off+internalEntrySize])
	}
	return out, nil
}

func encodeInternalEntry(buf []byte, e InternalEntry) {
	encodeBBox(buf[0:24], e.MBB)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(e.Child.Handle))
}

func decodeInternalEntry(buf []byte) InternalEntry {
	return InternalEntry{
		MBB:   decodeBBox(buf[0:24]),
		Child: NodePtr{Handle: blockio.Handle(binary.LittleEndian.Uint64(buf[24:32])), Valid: true},
	}
}

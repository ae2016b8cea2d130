// Package nodeio implements typed read/write of internal and leaf blocks
// and the tree's persistent height/size/root metadata (spec.md §3.2, §4,
// §6.2).
//
// Node variants are a tagged choice on the pointer type, not virtual
// dispatch (spec.md §9 "Polymorphism"): InternalPtr and LeafPtr both wrap a
// blockio.Handle, and the caller knows which is which from the current
// tree level, following the block_handle-based node_ptr / internal_ptr /
// leaf_ptr hierarchy in original_source/geodb/irwi/tree_external.hpp.
package nodeio

import "github.com/scigolib/irwi/internal/geo"

// internalEntrySize is the on-disk size of one internal_entry: a
// bounding_box (6 x 4-byte coords = 24 bytes) followed by a child block
// handle (8 bytes).
const internalEntrySize = 24 + 8

// internalHeaderSize is inverted_index_id (u64) + count (u32).
const internalHeaderSize = 8 + 4

// leafHeaderSize is count (u32).
const leafHeaderSize = 4

// MaxInternalEntries returns the maximum number of internal_entry records
// that fit in one block of the given size (spec.md §4.1).
func MaxInternalEntries(blockSize int) int {
	return (blockSize - internalHeaderSize) / internalEntrySize
}

// MaxLeafEntries returns the maximum number of leaf_entry records that fit
// in one block of the given size (spec.md §4.1).
func MaxLeafEntries(blockSize int) int {
	return (blockSize - leafHeaderSize) / geo.EntrySize
}

// InternalEntry is one entry of an internal node: the bounding box
// covering the child's subtree and a pointer to the child.
type InternalEntry struct {
	MBB   geo.BoundingBox
	Child NodePtr
}

// LeafMBB returns the union of every entry's bounding box, i.e. the leaf
// node's own minimum bounding box (spec.md §3.3).
func LeafMBB(entries []geo.LeafEntry) geo.BoundingBox {
	if len(entries) == 0 {
		return geo.BoundingBox{}
	}
	mbb := entries[0].BoundingBox()
	for _, e := range entries[1:] {
		mbb = mbb.Union(e.BoundingBox())
	}
	return mbb
}

// InternalMBB returns the union of every entry's bounding box, i.e. the
// internal node's own minimum bounding box (spec.md §3.3: "its mbb equals
// the bounding box of the bounding boxes of its child's entries").
func InternalMBB(entries []InternalEntry) geo.BoundingBox {
	if len(entries) == 0 {
		return geo.BoundingBox{}
	}
	mbb := entries[0].MBB
	for _, e := range entries[1:] {
		mbb = mbb.Union(e.MBB)
	}
	return mbb
}

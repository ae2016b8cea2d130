// Package irwi provides a pure Go implementation of a spatio-textual IRWI
// (Inverted R-tree With Index) trajectory index: an R-tree whose internal
// nodes carry a per-label inverted index, bulk-loadable from a flat stream
// of leaf entries by any of five algorithms (STR, STR with an alternate
// dimension order, Hilbert-curve packing, Quickload, and a one-by-one
// insertion reference oracle).
package irwi

import (
	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/nodeio"
)

// Tree is an open spatio-textual IRWI index, backed by a directory holding
// a fixed-size block file, its inverted-index subdirectories, and a small
// state file (spec.md §6.1).
type Tree struct {
	storage *nodeio.Storage
}

// Open opens (creating if necessary) a tree directory at root, using cfg's
// block_size and lambda (or their defaults). These parameters are not
// stored in the directory, so an existing tree is also read with cfg's
// values.
func Open(root string, cfg LoaderConfig) (*Tree, error) {
	storage, err := nodeio.Open(root, nodeio.Config{
		BlockSize:   cfg.blockSizeOrDefault(),
		CacheBlocks: nodeio.DefaultConfig().CacheBlocks,
		Lambda:      cfg.lambdaOrDefault(),
	})
	if err != nil {
		return nil, err
	}
	return &Tree{storage: storage}, nil
}

// Close flushes and closes every resource owned by the tree.
func (t *Tree) Close() error {
	return t.storage.Close()
}

// Height returns the tree's current height (0 = empty, 1 = root is a leaf).
func (t *Tree) Height() uint64 { return t.storage.Height() }

// Size returns the tree's current leaf-entry count.
func (t *Tree) Size() uint64 { return t.storage.Size() }

// Empty reports whether the tree currently holds no entries.
func (t *Tree) Empty() bool { return t.storage.Empty() }

// Root returns the tree's root node pointer. Its Valid field is false for
// an empty tree.
func (t *Tree) Root() nodeio.NodePtr { return t.storage.Root() }

// Walk invokes visit once per leaf entry stored in the tree, visiting
// leaves left to right. It is a thin convenience built directly on the
// node-reading primitives every loader already uses to verify its own
// output (internal/loader/*/..._test.go); it does not implement the
// spatial/textual query processing that is this module's explicit
// Non-goal (spec.md §1).
func (t *Tree) Walk(visit func(geo.LeafEntry) error) error {
	if t.Empty() {
		return nil
	}
	return walkNode(t.storage, t.Root(), t.Height(), visit)
}

func walkNode(storage *nodeio.Storage, ptr nodeio.NodePtr, height uint64, visit func(geo.LeafEntry) error) error {
	if height == 1 {
		entries, err := storage.LeafEntries(ptr.ToLeaf())
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := visit(e); err != nil {
				return err
			}
		}
		return nil
	}

	entries, err := storage.InternalEntries(ptr.ToInternal())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := walkNode(storage, e.Child, height-1, visit); err != nil {
			return err
		}
	}
	return nil
}

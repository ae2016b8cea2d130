// Package obo implements the one-by-one bulk loader (spec.md §4.10): a
// classic R-tree insertion oracle, used as the correctness reference
// against which the streaming bulk loaders (STR, Hilbert, Quickload) are
// checked, not as a loader meant to be run at production scale.
//
// No original_source file documents a standalone one-by-one insertion path
// for this index; the retrieved sources cover only the bulk loaders. This
// package instead follows the classic R-tree insertion algorithm (Guttman's
// ChooseLeaf / QuadraticSplit), generalising ChooseLeaf's "least
// enlargement" rule and the node-split's "least wasteful pairing" rule to
// use the same β-weighted cost function the other loaders share
// (internal/loader/cost), per spec.md §4.10's "standard R-tree
// choose-subtree / split procedure, using the same β-weighted cost". Seed
// selection for a split still ranks candidate pairs by pure spatial waste,
// as in the classic algorithm; only the subsequent distribution of the
// remaining items is driven by the shared cost function.
//
// The tree is grown entirely in memory, one entry at a time, then flattened
// to on-disk nodes in a single bottom-up pass once every entry has been
// inserted. This sidesteps having to maintain each node's inverted index
// incrementally (internal/invidx's posting lists are append-only and are
// only ever finalised once, by internal/loadcommon.WriteInternalNode), which
// matches this loader's role as a correctness reference rather than a
// performance target (spec.md §4.10 Non-goals).
package obo

import (
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/loadcommon"
	"github.com/scigolib/irwi/internal/loader/cost"
	"github.com/scigolib/irwi/internal/nodeio"
	"github.com/scigolib/irwi/internal/treeerr"
)

// Config configures one one-by-one bulk-load run.
type Config struct {
	// Beta weights spatial enlargement against textual cost; must be in
	// [0,1].
	Beta float64
}

// Load bulk-loads storage from a flat file of EntrySize-byte encoded
// geo.LeafEntry records at inputPath, inserting entries one at a time via
// the classic R-tree choose-subtree/split procedure (spec.md §4.10).
// storage must be empty.
func Load(storage *nodeio.Storage, inputPath string, totalItems int64, cfg Config) error {
	if !storage.Empty() {
		return treeerr.Precondition("obo: tree must be empty")
	}
	w, err := cost.New(cfg.Beta)
	if err != nil {
		return errors.Wrap(err, "obo")
	}
	if totalItems == 0 {
		return nil
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return errors.Wrap(err, "obo: open input")
	}
	defer f.Close()

	b := &builder{
		w:           w,
		lambda:      storage.Lambda(),
		maxLeaf:     storage.MaxLeafEntries(),
		maxInternal: storage.MaxInternalEntries(),
	}

	buf := make([]byte, geo.EntrySize)
	for i := int64(0); i < totalItems; i++ {
		if _, err := f.ReadAt(buf, i*geo.EntrySize); err != nil {
			return errors.Wrap(err, "obo: read entry")
		}
		b.insert(geo.DecodeEntry(buf))
	}

	summary, err := flattenNode(storage, b.root)
	if err != nil {
		return errors.Wrap(err, "obo: flatten tree")
	}
	storage.SetHeight(uint64(b.height))
	storage.SetSize(uint64(totalItems))
	storage.SetRoot(summary.Ptr)
	return nil
}

// memNode is one node of the tree being grown in memory. Its mbb and
// profile are running unions over every entry ever inserted beneath it,
// which remain correct invariants of the final structure even across
// splits: a split only redistributes which child holds which entry, it
// never removes an entry from the subtree.
type memNode struct {
	leaf    bool
	mbb     geo.BoundingBox
	profile *cost.Profile

	entries  []geo.LeafEntry // leaf only
	children []*memNode      // internal only
}

type builder struct {
	w           cost.Weights
	lambda      int
	maxLeaf     int
	maxInternal int

	root   *memNode
	height int
}

func (b *builder) insert(e geo.LeafEntry) {
	if b.root == nil {
		b.root = newLeafNode()
		b.admitToNode(b.root, e)
		b.height = 1
		return
	}

	sibling := b.insertInto(b.root, e)
	if sibling != nil {
		newRoot := &memNode{
			leaf:     false,
			mbb:      b.root.mbb.Union(sibling.mbb),
			profile:  cost.NewProfile(),
			children: []*memNode{b.root, sibling},
		}
		newRoot.profile.Merge(b.root.profile)
		newRoot.profile.Merge(sibling.profile)
		b.root = newRoot
		b.height++
	}
}

func newLeafNode() *memNode {
	return &memNode{leaf: true, profile: cost.NewProfile()}
}

func newInternalNode() *memNode {
	return &memNode{leaf: false, profile: cost.NewProfile()}
}

func (b *builder) admitToNode(n *memNode, e geo.LeafEntry) {
	if len(n.entries) == 0 {
		n.mbb = e.Unit.BoundingBox()
	} else {
		n.mbb = n.mbb.Union(e.Unit.BoundingBox())
	}
	n.entries = append(n.entries, e)
	n.profile.Admit(e.Unit.Label, e.TrajectoryID)
}

// insertInto inserts e somewhere within node's subtree, returning a new
// sibling node if node overflowed and had to split, or nil otherwise. It
// updates node.mbb and node.profile to include e regardless of where e
// ends up, which is always correct since both fields are defined as
// running unions over the subtree's full history.
func (b *builder) insertInto(node *memNode, e geo.LeafEntry) *memNode {
	node.mbb = node.mbb.Union(e.Unit.BoundingBox())
	node.profile.Admit(e.Unit.Label, e.TrajectoryID)

	if node.leaf {
		node.entries = append(node.entries, e)
		if len(node.entries) > b.maxLeaf {
			a, sibling := splitLeaf(node.entries, b.maxLeaf, b.w, b.lambda)
			*node = *a
			return sibling
		}
		return nil
	}

	idx := b.chooseSubtree(node.children, e)
	sibling := b.insertInto(node.children[idx], e)
	if sibling == nil {
		return nil
	}

	node.children = append(node.children, sibling)
	if len(node.children) > b.maxInternal {
		a, newSibling := splitInternal(node.children, b.maxInternal, b.w, b.lambda)
		*node = *a
		return newSibling
	}
	return nil
}

// chooseSubtree picks the child whose bounding box and label tracking
// minimise the β-weighted cost of admitting e (spec.md §4.10's "standard
// choose-subtree... using the same β-weighted cost").
func (b *builder) chooseSubtree(children []*memNode, e geo.LeafEntry) int {
	best := 0
	bestCost := b.w.EvaluateEntry(children[0].mbb, children[0].profile, b.lambda, e)
	for i := 1; i < len(children); i++ {
		c := b.w.EvaluateEntry(children[i].mbb, children[i].profile, b.lambda, e)
		if c < bestCost {
			bestCost = c
			best = i
		}
	}
	return best
}

// splitLeaf partitions an overflowed leaf's entries into two new leaves
// using Guttman's quadratic-split seed selection (pure spatial waste) and
// the shared β-weighted cost to place the remaining entries, enforcing a
// minimum fill of ⌈maxCap/2⌉ per side.
func splitLeaf(entries []geo.LeafEntry, maxCap int, w cost.Weights, lambda int) (*memNode, *memNode) {
	minFill := (maxCap + 1) / 2
	seedI, seedJ := pickLeafSeeds(entries)

	a := newLeafNode()
	bNode := newLeafNode()
	admitLeafSeed(a, entries[seedI])
	admitLeafSeed(bNode, entries[seedJ])

	var rest []geo.LeafEntry
	for idx, e := range entries {
		if idx != seedI && idx != seedJ {
			rest = append(rest, e)
		}
	}

	for k, e := range rest {
		left := len(rest) - k - 1

		switch {
		case len(a.entries)+left+1 <= minFill:
			admitLeafSeed(a, e)
		case len(bNode.entries)+left+1 <= minFill:
			admitLeafSeed(bNode, e)
		default:
			costA := w.EvaluateEntry(a.mbb, a.profile, lambda, e)
			costB := w.EvaluateEntry(bNode.mbb, bNode.profile, lambda, e)
			if costA <= costB {
				admitLeafSeed(a, e)
			} else {
				admitLeafSeed(bNode, e)
			}
		}
	}

	return a, bNode
}

func admitLeafSeed(n *memNode, e geo.LeafEntry) {
	if len(n.entries) == 0 {
		n.mbb = e.Unit.BoundingBox()
	} else {
		n.mbb = n.mbb.Union(e.Unit.BoundingBox())
	}
	n.entries = append(n.entries, e)
	n.profile.Admit(e.Unit.Label, e.TrajectoryID)
}

func pickLeafSeeds(entries []geo.LeafEntry) (int, int) {
	bestI, bestJ := 0, 1
	bestD := -math.MaxFloat64
	for i := 0; i < len(entries); i++ {
		bi := entries[i].Unit.BoundingBox()
		for j := i + 1; j < len(entries); j++ {
			bj := entries[j].Unit.BoundingBox()
			d := bi.Union(bj).Volume() - bi.Volume() - bj.Volume()
			if d > bestD {
				bestD = d
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}

// splitInternal partitions an overflowed internal node's children into two
// new internal nodes, mirroring splitLeaf at the child-summary level.
func splitInternal(children []*memNode, maxCap int, w cost.Weights, lambda int) (*memNode, *memNode) {
	minFill := (maxCap + 1) / 2
	seedI, seedJ := pickInternalSeeds(children)

	a := newInternalNode()
	bNode := newInternalNode()
	admitChild(a, children[seedI])
	admitChild(bNode, children[seedJ])

	var rest []*memNode
	for idx, c := range children {
		if idx != seedI && idx != seedJ {
			rest = append(rest, c)
		}
	}

	for k, c := range rest {
		left := len(rest) - k - 1

		switch {
		case len(a.children)+left+1 <= minFill:
			admitChild(a, c)
		case len(bNode.children)+left+1 <= minFill:
			admitChild(bNode, c)
		default:
			costA := w.EvaluateChild(a.mbb, c.mbb, a.profile, lambda, c.profile.Labels())
			costB := w.EvaluateChild(bNode.mbb, c.mbb, bNode.profile, lambda, c.profile.Labels())
			if costA <= costB {
				admitChild(a, c)
			} else {
				admitChild(bNode, c)
			}
		}
	}

	return a, bNode
}

func admitChild(n *memNode, c *memNode) {
	if len(n.children) == 0 {
		n.mbb = c.mbb
	} else {
		n.mbb = n.mbb.Union(c.mbb)
	}
	n.children = append(n.children, c)
	n.profile.Merge(c.profile)
}

func pickInternalSeeds(children []*memNode) (int, int) {
	bestI, bestJ := 0, 1
	bestD := -math.MaxFloat64
	for i := 0; i < len(children); i++ {
		for j := i + 1; j < len(children); j++ {
			bi := children[i].mbb
			bj := children[j].mbb
			d := bi.Union(bj).Volume() - bi.Volume() - bj.Volume()
			if d > bestD {
				bestD = d
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}

// flattenNode converts the final in-memory tree into on-disk nodes in one
// post-order pass, finalising each node's inverted index exactly once via
// internal/loadcommon.WriteInternalNode.
func flattenNode(storage *nodeio.Storage, node *memNode) (loadcommon.NodeSummary, error) {
	if node.leaf {
		leaf, err := storage.CreateLeaf()
		if err != nil {
			return loadcommon.NodeSummary{}, err
		}
		if err := storage.SetLeafEntries(leaf, node.entries); err != nil {
			return loadcommon.NodeSummary{}, err
		}
		total, labels := loadcommon.SummarizeLeafEntries(node.entries, storage.Lambda())
		return loadcommon.NodeSummary{
			Ptr:    leaf.AsNode(),
			MBB:    nodeio.LeafMBB(node.entries),
			Total:  total,
			Labels: labels,
		}, nil
	}

	children := make([]loadcommon.NodeSummary, len(node.children))
	for i, c := range node.children {
		summary, err := flattenNode(storage, c)
		if err != nil {
			return loadcommon.NodeSummary{}, err
		}
		children[i] = summary
	}
	return loadcommon.WriteInternalNode(storage, children)
}

// Package quickload implements the Quickload bulk loader (spec.md §4.9): a
// streaming packer that builds every level of the tree in a single pass,
// holding at most max_leaves groups resident in memory at once and placing
// each incoming item (leaf entry, then child summary, level by level) into
// whichever resident group minimises the β-weighted cost from
// internal/loader/cost. Unlike STR and Hilbert it makes no assumption about
// input order and never sorts it.
//
// No original_source file documents this loader directly (the retrieved
// sources cover only str_loader.hpp and bulk_load_hilbert.hpp); its shape
// here is this port's direct reading of spec.md §4.9's prose, reusing the
// shared bottom-up level driver in internal/loadcommon and the β-weighted
// cost evaluation in internal/loader/cost.
package quickload

import (
	"os"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/loadcommon"
	"github.com/scigolib/irwi/internal/loader/cost"
	"github.com/scigolib/irwi/internal/nodeio"
	"github.com/scigolib/irwi/internal/treeerr"
)

// Config configures one Quickload bulk-load run.
type Config struct {
	// Beta weights spatial enlargement against textual cost; must be in
	// [0,1].
	Beta float64
	// MaxLeaves bounds how many groups may be resident at once, at every
	// level of the build (spec.md §4.9).
	MaxLeaves int
	// ScratchDir is where level-summary files are written while the tree
	// is built bottom-up.
	ScratchDir string
}

// Load bulk-loads storage from a flat file of EntrySize-byte encoded
// geo.LeafEntry records at inputPath, using the Quickload streaming packer
// (spec.md §4.9). storage must be empty. Input order is irrelevant.
func Load(storage *nodeio.Storage, inputPath string, totalItems int64, cfg Config) error {
	if !storage.Empty() {
		return treeerr.Precondition("quickload: tree must be empty")
	}
	if cfg.MaxLeaves <= 0 {
		return treeerr.Precondition("quickload: max_leaves must be positive")
	}
	w, err := cost.New(cfg.Beta)
	if err != nil {
		return errors.Wrap(err, "quickload")
	}
	if totalItems == 0 {
		return nil
	}

	level, count, err := packLeaves(storage, inputPath, totalItems, cfg, w)
	if err != nil {
		return errors.Wrap(err, "quickload: pack leaves")
	}

	return loadcommon.BuildLevels(storage, cfg.ScratchDir, level, count, uint64(totalItems), packInternals(storage, cfg, w))
}

// leafGroup is one resident, not-yet-flushed leaf being filled.
type leafGroup struct {
	entries []geo.LeafEntry
	mbb     geo.BoundingBox
	profile *cost.Profile
	order   int
}

func newLeafGroup(order int) *leafGroup {
	return &leafGroup{profile: cost.NewProfile(), order: order}
}

func (g *leafGroup) admit(e geo.LeafEntry) {
	if len(g.entries) == 0 {
		g.mbb = e.Unit.BoundingBox()
	} else {
		g.mbb = g.mbb.Union(e.Unit.BoundingBox())
	}
	g.entries = append(g.entries, e)
	g.profile.Admit(e.Unit.Label, e.TrajectoryID)
}

func flushLeafGroup(storage *nodeio.Storage, g *leafGroup) (loadcommon.NodeSummary, error) {
	leaf, err := storage.CreateLeaf()
	if err != nil {
		return loadcommon.NodeSummary{}, err
	}
	if err := storage.SetLeafEntries(leaf, g.entries); err != nil {
		return loadcommon.NodeSummary{}, err
	}
	total, labels := loadcommon.SummarizeLeafEntries(g.entries, storage.Lambda())
	return loadcommon.NodeSummary{
		Ptr:    leaf.AsNode(),
		MBB:    nodeio.LeafMBB(g.entries),
		Total:  total,
		Labels: labels,
	}, nil
}

// packLeaves runs one streaming pass over the raw leaf-entry input,
// producing the first level of node summaries (spec.md §4.9 steps 1-3).
func packLeaves(storage *nodeio.Storage, inputPath string, totalItems int64, cfg Config, w cost.Weights) (*loadcommon.LevelReader, uint64, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open input")
	}
	defer f.Close()

	writer, err := loadcommon.CreateLevelWriter(cfg.ScratchDir)
	if err != nil {
		return nil, 0, err
	}

	maxLeaf := storage.MaxLeafEntries()
	lambda := storage.Lambda()

	var groups []*leafGroup
	nextOrder := 0
	buf := make([]byte, geo.EntrySize)

	for i := int64(0); i < totalItems; i++ {
		if _, err := f.ReadAt(buf, i*geo.EntrySize); err != nil {
			writer.Close()
			return nil, 0, errors.Wrap(err, "read leaf entry")
		}
		e := geo.DecodeEntry(buf)

		target := chooseLeafTarget(groups, maxLeaf, w, lambda, e)
		if target == -1 {
			if len(groups) < cfg.MaxLeaves {
				groups = append(groups, newLeafGroup(nextOrder))
				nextOrder++
				target = len(groups) - 1
			} else {
				evict := oldestLeafGroup(groups)
				summary, err := flushLeafGroup(storage, groups[evict])
				if err != nil {
					writer.Close()
					return nil, 0, err
				}
				if err := writer.Write(summary); err != nil {
					writer.Close()
					return nil, 0, err
				}
				groups[evict] = newLeafGroup(nextOrder)
				nextOrder++
				target = evict
			}
		}
		groups[target].admit(e)
	}

	orderGroupsAscending(groups)
	for _, g := range groups {
		summary, err := flushLeafGroup(storage, g)
		if err != nil {
			writer.Close()
			return nil, 0, err
		}
		if err := writer.Write(summary); err != nil {
			writer.Close()
			return nil, 0, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, 0, err
	}
	reader, err := loadcommon.OpenLevelReader(writer.Path())
	if err != nil {
		return nil, 0, err
	}
	return reader, writer.Count(), nil
}

// chooseLeafTarget returns the index of the resident group with room to
// spare that minimises the cost of admitting e, or -1 if every resident
// group is already at capacity.
func chooseLeafTarget(groups []*leafGroup, maxLeaf int, w cost.Weights, lambda int, e geo.LeafEntry) int {
	best := -1
	bestCost := 0.0
	for i, g := range groups {
		if len(g.entries) >= maxLeaf {
			continue
		}
		c := w.EvaluateEntry(g.mbb, g.profile, lambda, e)
		if best == -1 || c < bestCost {
			best = i
			bestCost = c
		}
	}
	return best
}

func oldestLeafGroup(groups []*leafGroup) int {
	best := 0
	for i, g := range groups {
		if g.order < groups[best].order {
			best = i
		}
	}
	return best
}

func orderGroupsAscending(groups []*leafGroup) {
	for i := 1; i < len(groups); i++ {
		j := i
		for j > 0 && groups[j-1].order > groups[j].order {
			groups[j-1], groups[j] = groups[j], groups[j-1]
			j--
		}
	}
}

// internalGroup is one resident, not-yet-flushed internal node being
// filled from lower-level summaries.
type internalGroup struct {
	children []loadcommon.NodeSummary
	mbb      geo.BoundingBox
	profile  *cost.Profile
	order    int
}

func newInternalGroup(order int) *internalGroup {
	return &internalGroup{profile: cost.NewProfile(), order: order}
}

func (g *internalGroup) admit(child loadcommon.NodeSummary) {
	if len(g.children) == 0 {
		g.mbb = child.MBB
	} else {
		g.mbb = g.mbb.Union(child.MBB)
	}
	g.children = append(g.children, child)
	for _, l := range child.Labels {
		for _, id := range l.Summary.Trajectories {
			g.profile.Admit(l.Label, id)
		}
	}
}

func childLabelIDs(child loadcommon.NodeSummary) map[geo.Label][]geo.TrajectoryID {
	out := make(map[geo.Label][]geo.TrajectoryID, len(child.Labels))
	for _, l := range child.Labels {
		out[l.Label] = l.Summary.Trajectories
	}
	return out
}

// packInternals returns a LevelBuilder implementing spec.md §4.9 step 4:
// the same bounded-residency, cost-driven grouping as packLeaves, applied
// to child node summaries instead of raw leaf entries, with node capacity
// storage.MaxInternalEntries() in place of MaxLeafEntries.
func packInternals(storage *nodeio.Storage, cfg Config, w cost.Weights) loadcommon.LevelBuilder {
	return func(level *loadcommon.LevelReader, count uint64, next *loadcommon.LevelWriter) (uint64, error) {
		maxInternal := storage.MaxInternalEntries()
		lambda := storage.Lambda()

		var groups []*internalGroup
		nextOrder := 0
		var written uint64

		for i := uint64(0); i < count; i++ {
			child, err := level.Read()
			if err != nil {
				return 0, errors.Wrap(err, "quickload: read child summary")
			}

			target := chooseInternalTarget(groups, maxInternal, w, lambda, child)
			if target == -1 {
				if len(groups) < cfg.MaxLeaves {
					groups = append(groups, newInternalGroup(nextOrder))
					nextOrder++
					target = len(groups) - 1
				} else {
					evict := oldestInternalGroup(groups)
					summary, err := loadcommon.WriteInternalNode(storage, groups[evict].children)
					if err != nil {
						return 0, err
					}
					if err := next.Write(summary); err != nil {
						return 0, err
					}
					written++
					groups[evict] = newInternalGroup(nextOrder)
					nextOrder++
					target = evict
				}
			}
			groups[target].admit(child)
		}

		orderInternalGroupsAscending(groups)
		for _, g := range groups {
			summary, err := loadcommon.WriteInternalNode(storage, g.children)
			if err != nil {
				return 0, err
			}
			if err := next.Write(summary); err != nil {
				return 0, err
			}
			written++
		}
		return written, nil
	}
}

func chooseInternalTarget(groups []*internalGroup, maxInternal int, w cost.Weights, lambda int, child loadcommon.NodeSummary) int {
	best := -1
	bestCost := 0.0
	for i, g := range groups {
		if len(g.children) >= maxInternal {
			continue
		}
		c := w.EvaluateChild(g.mbb, child.MBB, g.profile, lambda, childLabelIDs(child))
		if best == -1 || c < bestCost {
			best = i
			bestCost = c
		}
	}
	return best
}

func oldestInternalGroup(groups []*internalGroup) int {
	best := 0
	for i, g := range groups {
		if g.order < groups[best].order {
			best = i
		}
	}
	return best
}

func orderInternalGroupsAscending(groups []*internalGroup) {
	for i := 1; i < len(groups); i++ {
		j := i
		for j > 0 && groups[j-1].order > groups[j].order {
			groups[j-1], groups[j] = groups[j], groups[j-1]
			j--
		}
	}
}

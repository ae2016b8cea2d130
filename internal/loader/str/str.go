// Package str implements the Sort-Tile-Recursive (STR) bulk loader
// (spec.md §4.2), ported from
// original_source/code/geodb/irwi/str_loader.hpp. Entries are tiled
// externally (via internal/extsort) while a slab is too large to fit in
// memory, and in-memory (via internal/tiling) once it shrinks below the
// configured memory budget — an optimization the original leaves to
// tpie's own run-size heuristics but which has no Go analogue, so it is
// made explicit here.
package str

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scigolib/irwi/internal/extsort"
	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/loadcommon"
	"github.com/scigolib/irwi/internal/nodeio"
	"github.com/scigolib/irwi/internal/tiling"
	"github.com/scigolib/irwi/internal/treeerr"
)

// Dimension identifies one of the four orderings STR can tile by.
type Dimension int

const (
	DimLabel Dimension = iota
	DimX
	DimY
	DimT
)

// DefaultOrder is the "str" configuration: tile by label, then x, then
// y, then t (spec.md §4.2).
var DefaultOrder = []Dimension{DimLabel, DimX, DimY, DimT}

// AltOrder is the "str2" configuration: tile by x, y, t, then label.
var AltOrder = []Dimension{DimX, DimY, DimT, DimLabel}

// Config configures one STR bulk-load run.
type Config struct {
	// Order is the sequence of dimensions tiled by, outer to inner.
	// Defaults to DefaultOrder when nil.
	Order []Dimension
	// MemoryBudget bounds how many bytes of entry data are sorted at
	// once. Once a slab's byte size drops to or below this, the
	// remaining dimensions are tiled in memory in one pass instead of
	// through further external-sort recursion.
	MemoryBudget int64
	// ScratchDir is where level-summary files are written while the
	// tree is built bottom-up.
	ScratchDir string
}

func centerX(e geo.LeafEntry) float32 { return (e.Unit.Start.X + e.Unit.End.X) / 2 }
func centerY(e geo.LeafEntry) float32 { return (e.Unit.Start.Y + e.Unit.End.Y) / 2 }
func centerT(e geo.LeafEntry) float64 {
	return (float64(e.Unit.Start.T) + float64(e.Unit.End.T)) / 2
}

func compareDimension(dim Dimension, a, b geo.LeafEntry) bool {
	switch dim {
	case DimLabel:
		return a.Unit.Label < b.Unit.Label
	case DimX:
		return centerX(a) < centerX(b)
	case DimY:
		return centerY(a) < centerY(b)
	case DimT:
		return centerT(a) < centerT(b)
	default:
		panic("str: unknown dimension")
	}
}

func bytesLess(dim Dimension) extsort.Less {
	return func(a, b []byte) bool {
		return compareDimension(dim, geo.DecodeEntry(a), geo.DecodeEntry(b))
	}
}

func tilingLess(dim Dimension) tiling.Less {
	return func(a, b geo.LeafEntry) bool { return compareDimension(dim, a, b) }
}

// Load bulk-loads storage from a flat file of EntrySize-byte encoded
// geo.LeafEntry records at inputPath, using the Sort-Tile-Recursive
// algorithm (spec.md §4.2). storage must be empty. totalItems is the
// number of records in the input file; the caller is responsible for
// having written exactly that many EntrySize-byte records to inputPath.
func Load(storage *nodeio.Storage, inputPath string, totalItems int64, cfg Config) error {
	if !storage.Empty() {
		return treeerr.Precondition("str: tree must be empty")
	}
	if totalItems == 0 {
		return nil
	}
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultOrder
	}

	minSize := storage.MaxLeafEntries()
	if storage.MaxInternalEntries() < minSize {
		minSize = storage.MaxInternalEntries()
	}
	leafSize := int64(minSize)

	logrus.WithFields(logrus.Fields{
		"items":     totalItems,
		"leaf_size": leafSize,
	}).Info("str: tiling input")

	if err := sortRecursive(inputPath, 0, totalItems, leafSize, cfg.MemoryBudget, order); err != nil {
		return errors.Wrap(err, "str: tile input")
	}

	level, count, err := createLeaves(storage, inputPath, totalItems, leafSize, cfg.ScratchDir)
	if err != nil {
		return errors.Wrap(err, "str: create leaves")
	}

	logrus.WithField("leaves", count).Info("str: building internal levels")
	return loadcommon.BuildLevels(storage, cfg.ScratchDir, level, count, uint64(totalItems), loadcommon.PackInternals(storage))
}

func sortRecursive(path string, offset, size, leafSize, memoryBudget int64, dims []Dimension) error {
	if len(dims) == 0 || size == 0 {
		return nil
	}

	if memoryBudget > 0 && size*geo.EntrySize <= memoryBudget && len(dims) > 1 {
		return sortInMemory(path, offset, size, leafSize, dims)
	}

	if err := extsort.Sort(path, geo.EntrySize, offset, size, memoryBudget, bytesLess(dims[0])); err != nil {
		return err
	}
	if len(dims) == 1 {
		return nil
	}

	dimension := len(dims)
	leaves := ceilDiv(size, leafSize)
	slabLeaves := int64(math.Ceil(math.Max(1.0, math.Pow(float64(leaves), float64(dimension-1)/float64(dimension)))))
	slabSize := leafSize * slabLeaves

	slabStart := offset
	remaining := size
	for remaining > 0 {
		count := remaining
		if count > slabSize {
			count = slabSize
		}
		if err := sortRecursive(path, slabStart, count, leafSize, memoryBudget, dims[1:]); err != nil {
			return err
		}
		remaining -= count
		slabStart += count
	}
	return nil
}

func sortInMemory(path string, offset, size, leafSize int64, dims []Dimension) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "str: open input for in-memory tiling")
	}
	defer f.Close()

	buf := make([]byte, size*geo.EntrySize)
	if _, err := f.ReadAt(buf, offset*geo.EntrySize); err != nil {
		return errors.Wrap(err, "str: read slab")
	}

	entries := make([]geo.LeafEntry, size)
	for i := range entries {
		entries[i] = geo.DecodeEntry(buf[i*geo.EntrySize : (i+1)*geo.EntrySize])
	}

	less := make([]tiling.Less, len(dims))
	for i, d := range dims {
		less[i] = tilingLess(d)
	}
	tiling.SortTileRecursive(entries, int(leafSize), less...)

	for i, e := range entries {
		geo.EncodeEntry(buf[i*geo.EntrySize:(i+1)*geo.EntrySize], e)
	}
	if _, err := f.WriteAt(buf, offset*geo.EntrySize); err != nil {
		return errors.Wrap(err, "str: write tiled slab")
	}
	return nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// createLeaves packs the (now fully tiled) input file into leaves of at
// most leafSize entries each, writing one NodeSummary per leaf to a
// scratch file (str_loader.hpp's create_leaves).
func createLeaves(storage *nodeio.Storage, inputPath string, totalItems, leafSize int64, scratchDir string) (*loadcommon.LevelReader, uint64, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, 0, errors.Wrap(err, "str: open input")
	}
	defer f.Close()

	writer, err := loadcommon.CreateLevelWriter(scratchDir)
	if err != nil {
		return nil, 0, err
	}

	remaining := totalItems
	var offset int64
	buf := make([]byte, geo.EntrySize)

	for remaining > 0 {
		count := leafSize
		if count > remaining {
			count = remaining
		}

		leaf, err := storage.CreateLeaf()
		if err != nil {
			writer.Close()
			return nil, 0, err
		}

		entries := make([]geo.LeafEntry, count)
		for i := int64(0); i < count; i++ {
			if _, err := f.ReadAt(buf, (offset+i)*geo.EntrySize); err != nil {
				writer.Close()
				return nil, 0, errors.Wrap(err, "str: read leaf entry")
			}
			entries[i] = geo.DecodeEntry(buf)
		}

		if err := storage.SetLeafEntries(leaf, entries); err != nil {
			writer.Close()
			return nil, 0, err
		}

		total, labels := loadcommon.SummarizeLeafEntries(entries, storage.Lambda())
		if err := writer.Write(loadcommon.NodeSummary{
			Ptr:    leaf.AsNode(),
			MBB:    nodeio.LeafMBB(entries),
			Total:  total,
			Labels: labels,
		}); err != nil {
			writer.Close()
			return nil, 0, err
		}

		remaining -= count
		offset += count
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

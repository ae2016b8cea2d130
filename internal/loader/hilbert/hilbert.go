// Package hilbert implements the Hilbert-curve bulk loader (spec.md
// §4.3), ported from
// original_source/code/geodb/irwi/bulk_load_hilbert.hpp: every entry's
// center point is mapped into the cube visited by a 3-dimensional,
// 16-bit-per-axis Hilbert curve, the file is externally sorted by that
// index, and leaves are packed by a greedy growth heuristic rather than
// a fixed chunk size.
package hilbert

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scigolib/irwi/internal/extsort"
	"github.com/scigolib/irwi/internal/geo"
	curvepkg "github.com/scigolib/irwi/internal/hilbert"
	"github.com/scigolib/irwi/internal/loadcommon"
	"github.com/scigolib/irwi/internal/nodeio"
	"github.com/scigolib/irwi/internal/treeerr"
)

// curveDimension and curvePrecision match the original's hard-coded
// hilbert_curve<3, 16>: three axes (x, y, t), 16 bits each, for a
// 48-bit index that comfortably fits a uint64.
const (
	curveDimension = 3
	curvePrecision = 16
)

// DefaultMaxGrowth bounds how much a leaf's bounding box may grow in one
// step past the item-count threshold, as a multiple of its current
// volume, before the leaf is closed off (bulk_load_hilbert.hpp's
// m_max_growth).
const DefaultMaxGrowth = 1.20

// augmentedRecordSize is an 8-byte Hilbert index followed by one encoded
// geo.LeafEntry.
const augmentedRecordSize = 8 + geo.EntrySize

// Config configures one Hilbert bulk-load run.
type Config struct {
	// MemoryBudget bounds extsort's in-core buffer size while sorting
	// entries by Hilbert index.
	MemoryBudget int64
	// ScratchDir is where the augmented (index, entry) file and
	// level-summary files are written.
	ScratchDir string
	// MaxGrowth overrides DefaultMaxGrowth when non-zero.
	MaxGrowth float64
}

// Load bulk-loads storage from a flat file of EntrySize-byte encoded
// geo.LeafEntry records at inputPath, using the Hilbert-curve packing
// algorithm (spec.md §4.3). storage must be empty.
func Load(storage *nodeio.Storage, inputPath string, totalItems int64, cfg Config) error {
	if !storage.Empty() {
		return treeerr.Precondition("hilbert: tree must be empty")
	}
	if totalItems == 0 {
		return nil
	}
	maxGrowth := cfg.MaxGrowth
	if maxGrowth == 0 {
		maxGrowth = DefaultMaxGrowth
	}

	total, err := scanTotalBoundingBox(inputPath, totalItems)
	if err != nil {
		return errors.Wrap(err, "hilbert: scan total bounding box")
	}

	curve, err := curvepkg.New(curveDimension, curvePrecision)
	if err != nil {
		return errors.Wrap(err, "hilbert: construct curve")
	}
	mapper := newPointMapper(total, curve.Precision())

	augmentedPath, err := mapEntries(inputPath, totalItems, cfg.ScratchDir, curve, mapper)
	if err != nil {
		return errors.Wrap(err, "hilbert: map entries")
	}
	defer os.Remove(augmentedPath)

	if err := extsort.Sort(augmentedPath, augmentedRecordSize, 0, totalItems, cfg.MemoryBudget, lessByIndex); err != nil {
		return errors.Wrap(err, "hilbert: sort by hilbert index")
	}

	threshold := storage.MaxLeafEntries() / 2
	level, count, err := createLeaves(storage, augmentedPath, totalItems, threshold, maxGrowth)
	if err != nil {
		return errors.Wrap(err, "hilbert: create leaves")
	}

	logrus.WithField("leaves", count).Info("hilbert: building internal levels")
	return loadcommon.BuildLevels(storage, cfg.ScratchDir, level, count, uint64(totalItems), loadcommon.PackInternals(storage))
}

func lessByIndex(a, b []byte) bool {
	return decodeIndex(a) < decodeIndex(b)
}

func decodeIndex(rec []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = (v << 8) | uint64(rec[i])
	}
	return v
}

func encodeIndex(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
}

func scanTotalBoundingBox(inputPath string, totalItems int64) (geo.BoundingBox, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return geo.BoundingBox{}, errors.Wrap(err, "open input")
	}
	defer f.Close()

	buf := make([]byte, geo.EntrySize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return geo.BoundingBox{}, errors.Wrap(err, "read first entry")
	}
	total := geo.DecodeEntry(buf).BoundingBox()

	for i := int64(1); i < totalItems; i++ {
		if _, err := f.ReadAt(buf, i*geo.EntrySize); err != nil {
			return geo.BoundingBox{}, errors.Wrap(err, "read entry")
		}
		total = total.Union(geo.DecodeEntry(buf).BoundingBox())
	}
	return total, nil
}

// coordinateMapper scales a single axis's values from [min, max] into
// [0, 2^precision - 1].
type coordinateMapper struct {
	min, max, span float64
	coordMax       uint32
}

func newCoordinateMapper(min, max float64, precision uint32) coordinateMapper {
	span := max - min
	if min >= max {
		span = 1
	}
	return coordinateMapper{min: min, max: max, span: span, coordMax: (1 << precision) - 1}
}

func (m coordinateMapper) apply(v float64) uint32 {
	s := (v - m.min) / m.span
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return uint32(s * float64(m.coordMax))
}

type pointMapper struct {
	x, y, t coordinateMapper
}

func newPointMapper(total geo.BoundingBox, precision uint32) pointMapper {
	return pointMapper{
		x: newCoordinateMapper(float64(total.Min.X), float64(total.Max.X), precision),
		y: newCoordinateMapper(float64(total.Min.Y), float64(total.Max.Y), precision),
		t: newCoordinateMapper(float64(total.Min.T), float64(total.Max.T), precision),
	}
}

func (m pointMapper) apply(p geo.Point) []uint32 {
	return []uint32{m.x.apply(float64(p.X)), m.y.apply(float64(p.Y)), m.t.apply(float64(p.T))}
}

func center(u geo.TrajectoryUnit) geo.Point {
	return geo.Point{
		X: (u.Start.X + u.End.X) / 2,
		Y: (u.Start.Y + u.End.Y) / 2,
		T: uint32((uint64(u.Start.T) + uint64(u.End.T)) / 2),
	}
}

// mapEntries augments every entry with its Hilbert index, writing the
// (index, entry) pairs to a new scratch file (map_entries in the
// original).
func mapEntries(inputPath string, totalItems int64, scratchDir string, curve *curvepkg.Curve, mapper pointMapper) (string, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return "", errors.Wrap(err, "open input")
	}
	defer in.Close()

	outPath, err := scratchPath(scratchDir, "hilbert-mapped")
	if err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", errors.Wrap(err, "create mapped file")
	}
	defer out.Close()

	inBuf := make([]byte, geo.EntrySize)
	outBuf := make([]byte, augmentedRecordSize)
	for i := int64(0); i < totalItems; i++ {
		if _, err := in.ReadAt(inBuf, i*geo.EntrySize); err != nil {
			return "", errors.Wrap(err, "read entry")
		}
		entry := geo.DecodeEntry(inBuf)

		point := mapper.apply(center(entry.Unit))
		idx, err := curve.Index(point)
		if err != nil {
			return "", errors.Wrap(err, "compute hilbert index")
		}

		encodeIndex(outBuf[0:8], idx)
		copy(outBuf[8:], inBuf)
		if _, err := out.WriteAt(outBuf, i*augmentedRecordSize); err != nil {
			return "", errors.Wrap(err, "write mapped entry")
		}
	}
	return outPath, nil
}

func scratchPath(dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"-*")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	return path, nil
}

// createLeaves packs the Hilbert-sorted entries into leaves using the
// growth heuristic: once at least `threshold` entries are present,
// each further entry is only accepted if adding it would not grow the
// leaf's bounding box volume beyond maxGrowth times its current volume;
// while that volume is zero, the next entry is always accepted
// (bulk_load_hilbert.hpp's create_leaves).
func createLeaves(storage *nodeio.Storage, augmentedPath string, totalItems int64, threshold int, maxGrowth float64) (*loadcommon.LevelReader, uint64, error) {
	f, err := os.Open(augmentedPath)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open mapped file")
	}
	defer f.Close()

	writer, err := loadcommon.CreateLevelWriter(filepath.Dir(augmentedPath))
	if err != nil {
		return nil, 0, err
	}

	maxLeaf := int64(storage.MaxLeafEntries())
	buf := make([]byte, augmentedRecordSize)
	var cursor int64

	readEntry := func(idx int64) (geo.LeafEntry, error) {
		if _, err := f.ReadAt(buf, idx*augmentedRecordSize); err != nil {
			return geo.LeafEntry{}, err
		}
		return geo.DecodeEntry(buf[8:]), nil
	}

	for cursor < totalItems {
		leaf, err := storage.CreateLeaf()
		if err != nil {
			writer.Close()
			return nil, 0, err
		}

		var entries []geo.LeafEntry
		first, err := readEntry(cursor)
		if err != nil {
			writer.Close()
			return nil, 0, err
		}
		entries = append(entries, first)
		mbb := first.BoundingBox()
		cursor++

		for cursor < totalItems && int64(len(entries)) < maxLeaf {
			if int64(len(entries)) >= int64(threshold) {
				candidate, err := readEntry(cursor)
				if err != nil {
					writer.Close()
					return nil, 0, err
				}
				grown := mbb.Union(candidate.BoundingBox())
				if grown.Volume() > mbb.Volume()*maxGrowth && mbb.Volume() > 0 {
					break
				}
				entries = append(entries, candidate)
				mbb = grown
				cursor++
				continue
			}

			candidate, err := readEntry(cursor)
			if err != nil {
				writer.Close()
				return nil, 0, err
			}
			entries = append(entries, candidate)
			mbb = mbb.Union(candidate.BoundingBox())
			cursor++
		}

		if err := storage.SetLeafEntries(leaf, entries); err != nil {
			writer.Close()
			return nil, 0, err
		}

		if err := writer.Write(summarizeLeaf(leaf, entries, storage.Lambda())); err != nil {
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

func summarizeLeaf(leaf nodeio.LeafPtr, entries []geo.LeafEntry, lambda int) loadcommon.NodeSummary {
	total, labels := loadcommon.SummarizeLeafEntries(entries, lambda)
	return loadcommon.NodeSummary{
		Ptr:    leaf.AsNode(),
		MBB:    nodeio.LeafMBB(entries),
		Total:  total,
		Labels: labels,
	}
}


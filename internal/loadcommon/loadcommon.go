// Package loadcommon holds the types and the level-by-level build loop
// shared by every external-memory bulk loader (STR, Hilbert, Quickload),
// ported from original_source/geodb/irwi/bulk_load_common.hpp and the
// build_tree driver duplicated across str_loader.hpp/bulk_load_hilbert.hpp.
// A loader packs the current level's nodes into parent nodes, writes a
// summary of each new parent to a scratch file, and recurses on that
// scratch file until exactly one summary remains: that node becomes the
// root (spec.md §4.1).
package loadcommon

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/blockio"
	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/invidx"
	"github.com/scigolib/irwi/internal/nodeio"
)

// NodeSummary is the precomputed summary of a lower-level node: enough
// information for its parent to be built without re-reading the child
// block (spec.md §4.1). It mirrors bulk_load_common.hpp's node_summary.
type NodeSummary struct {
	Ptr    nodeio.NodePtr
	MBB    geo.BoundingBox
	Total  invidx.ListSummary
	Labels []LabelSummary
}

// LabelSummary is the precomputed summary of a single label's postings
// list within a node (bulk_load_common.hpp's label_summary).
type LabelSummary struct {
	Label   geo.Label
	Summary invidx.ListSummary
}

// LevelWriter appends NodeSummary records to a scratch file representing
// the next level up in the tree being built.
type LevelWriter struct {
	f     *os.File
	count uint64
}

// CreateLevelWriter creates a new scratch file under dir for the next
// level's summaries.
func CreateLevelWriter(dir string) (*LevelWriter, error) {
	path := filepath.Join(dir, "level-"+uuid.New().String())
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "loadcommon: create level file")
	}
	return &LevelWriter{f: f}, nil
}

// Path returns the underlying scratch file's path.
func (w *LevelWriter) Path() string { return w.f.Name() }

// Count returns how many summaries have been written so far.
func (w *LevelWriter) Count() uint64 { return w.count }

// Write appends one node summary.
func (w *LevelWriter) Write(n NodeSummary) error {
	if err := writeNodePtr(w.f, n.Ptr); err != nil {
		return err
	}
	if err := writeBBox(w.f, n.MBB); err != nil {
		return err
	}
	if err := writeListSummary(w.f, n.Total); err != nil {
		return err
	}
	if err := writeUint64(w.f, uint64(len(n.Labels))); err != nil {
		return err
	}
	for _, l := range n.Labels {
		if err := writeUint32(w.f, uint32(l.Label)); err != nil {
			return err
		}
		if err := writeListSummary(w.f, l.Summary); err != nil {
			return err
		}
	}
	w.count++
	return nil
}

// Close closes the underlying file.
func (w *LevelWriter) Close() error { return w.f.Close() }

// LevelReader reads NodeSummary records back from a scratch file written
// by a LevelWriter.
type LevelReader struct {
	f    *os.File
	path string
}

// OpenLevelReader opens a scratch file for reading.
func OpenLevelReader(path string) (*LevelReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "loadcommon: open level file")
	}
	return &LevelReader{f: f, path: path}, nil
}

// Read returns the next summary, or io.EOF once exhausted.
func (r *LevelReader) Read() (NodeSummary, error) {
	ptr, err := readNodePtr(r.f)
	if err != nil {
		return NodeSummary{}, err
	}
	mbb, err := readBBox(r.f)
	if err != nil {
		return NodeSummary{}, err
	}
	total, err := readListSummary(r.f)
	if err != nil {
		return NodeSummary{}, err
	}
	numLabels, err := readUint64(r.f)
	if err != nil {
		return NodeSummary{}, err
	}
	labels := make([]LabelSummary, numLabels)
	for i := range labels {
		lbl, err := readUint32(r.f)
		if err != nil {
			return NodeSummary{}, err
		}
		sum, err := readListSummary(r.f)
		if err != nil {
			return NodeSummary{}, err
		}
		labels[i] = LabelSummary{Label: geo.Label(lbl), Summary: sum}
	}
	return NodeSummary{Ptr: ptr, MBB: mbb, Total: total, Labels: labels}, nil
}

// Close closes the underlying file.
func (r *LevelReader) Close() error { return r.f.Close() }

// RemoveFile deletes the scratch file backing this reader. Call after
// the next level has been fully built and this level is no longer
// needed.
func (r *LevelReader) RemoveFile() error { return os.Remove(r.path) }

// LevelBuilder packs `count` summaries read sequentially from level into
// new parent nodes, writing one summary per new parent to next. It
// returns the number of parent nodes created. Implementations differ per
// loader (STR uses fixed-size chunks, Hilbert uses a growth heuristic).
type LevelBuilder func(level *LevelReader, count uint64, next *LevelWriter) (uint64, error)

// BuildLevels repeatedly applies build to the previous level's output
// until exactly one summary remains, which becomes the tree root; it
// then sets the tree's height, size and root in storage (spec.md §4.1).
// totalItems is the total number of leaf entries loaded, used to set the
// tree's size.
func BuildLevels(storage *nodeio.Storage, scratchDir string, level *LevelReader, count uint64, totalItems uint64, build LevelBuilder) error {
	if count == 0 {
		return errors.New("loadcommon: level must not be empty")
	}

	height := uint64(1)
	for {
		if count == 1 {
			node, err := level.Read()
			if err != nil {
				return errors.Wrap(err, "loadcommon: read final root summary")
			}
			if err := level.Close(); err != nil {
				return err
			}
			if err := level.RemoveFile(); err != nil {
				return err
			}
			storage.SetHeight(height)
			storage.SetSize(totalItems)
			storage.SetRoot(node.Ptr)
			return nil
		}

		next, err := CreateLevelWriter(scratchDir)
		if err != nil {
			return err
		}
		newCount, err := build(level, count, next)
		if err != nil {
			next.Close()
			return err
		}
		if err := next.Close(); err != nil {
			return err
		}
		if err := level.Close(); err != nil {
			return err
		}
		if err := level.RemoveFile(); err != nil {
			return err
		}

		level, err = OpenLevelReader(next.Path())
		if err != nil {
			return err
		}
		count = newCount
		height++
	}
}

// PackInternals returns a LevelBuilder that packs children into fixed-size
// internal nodes of at most storage.MaxInternalEntries() each, building
// each internal node's inverted index from its children's precomputed
// summaries. It is shared by every loader's "create_internals" phase:
// the STR and Hilbert loaders duplicate this logic identically in the
// original (str_loader.hpp's create_internals, bulk_load_hilbert.hpp's
// create_internals differ only in how leaves are formed, not how
// internals are assembled from summaries).
func PackInternals(storage *nodeio.Storage) LevelBuilder {
	return func(level *LevelReader, count uint64, next *LevelWriter) (uint64, error) {
		maxInternal := uint64(storage.MaxInternalEntries())
		var internals uint64
		remaining := count

		for remaining > 0 {
			chunk := remaining
			if chunk > maxInternal {
				chunk = maxInternal
			}

			children := make([]NodeSummary, chunk)
			for i := range children {
				child, err := level.Read()
				if err != nil {
					return 0, errors.Wrap(err, "loadcommon: read child summary")
				}
				children[i] = child
			}

			summary, err := WriteInternalNode(storage, children)
			if err != nil {
				return 0, err
			}
			if err := next.Write(summary); err != nil {
				return 0, err
			}

			remaining -= chunk
			internals++
		}
		return internals, nil
	}
}

// WriteInternalNode allocates one new internal node holding exactly
// children (in order), builds its inverted index from their precomputed
// summaries (one posting per non-empty child in the "total" list and in
// each label the child contributes to), and returns the new node's own
// summary. It is the single place that turns a group of child summaries
// into a parent node, shared by PackInternals' fixed-size chunking and by
// the quickload loader's cost-based grouping.
func WriteInternalNode(storage *nodeio.Storage, children []NodeSummary) (NodeSummary, error) {
	internal, index, err := storage.CreateInternal()
	if err != nil {
		return NodeSummary{}, err
	}

	entries := make([]nodeio.InternalEntry, 0, len(children))
	for i, child := range children {
		entries = append(entries, nodeio.InternalEntry{MBB: child.MBB, Child: child.Ptr})

		if err := index.Total().Append(invidx.PostingEntry{
			ChildIndex:   uint32(i),
			UnitCount:    child.Total.UnitCount,
			Trajectories: child.Total.Trajectories,
		}); err != nil {
			return NodeSummary{}, err
		}
		for _, l := range child.Labels {
			list, err := index.FindOrCreate(l.Label)
			if err != nil {
				return NodeSummary{}, err
			}
			if err := list.Append(invidx.PostingEntry{
				ChildIndex:   uint32(i),
				UnitCount:    l.Summary.UnitCount,
				Trajectories: l.Summary.Trajectories,
			}); err != nil {
				return NodeSummary{}, err
			}
		}
	}

	if err := storage.SetInternalEntries(internal, entries); err != nil {
		return NodeSummary{}, err
	}

	totalSummary, err := index.Total().Summarise()
	if err != nil {
		return NodeSummary{}, err
	}
	labelSummaries := make([]LabelSummary, 0, index.Size())
	for _, ll := range index.Iterate() {
		s, err := ll.List.Summarise()
		if err != nil {
			return NodeSummary{}, err
		}
		labelSummaries = append(labelSummaries, LabelSummary{Label: ll.Label, Summary: s})
	}

	return NodeSummary{
		Ptr:    internal.AsNode(),
		MBB:    nodeio.InternalMBB(entries),
		Total:  totalSummary,
		Labels: labelSummaries,
	}, nil
}

// SummarizeLeafEntries computes the per-label and "total" posting summaries
// for a set of leaf entries, as needed to build a leaf's NodeSummary
// (spec.md §4.1 "Emit a node-summary record for the new leaf"). Shared by
// every loader's leaf-creation phase (STR, Hilbert, Quickload all produce
// leaves from a flat slice of entries at some point). lambda clips each
// trajectory-id set to the same capacity-lambda bound invidx.List.Append
// enforces on disk (spec.md §3.2), so a leaf's in-memory summary already
// matches what the persisted posting list will hold.
func SummarizeLeafEntries(entries []geo.LeafEntry, lambda int) (invidx.ListSummary, []LabelSummary) {
	allIDs := make(map[geo.TrajectoryID]struct{}, len(entries))
	labelIDs := make(map[geo.Label]map[geo.TrajectoryID]struct{})
	labelUnits := make(map[geo.Label]uint64)

	for _, e := range entries {
		allIDs[e.TrajectoryID] = struct{}{}
		if labelIDs[e.Unit.Label] == nil {
			labelIDs[e.Unit.Label] = make(map[geo.TrajectoryID]struct{})
		}
		labelIDs[e.Unit.Label][e.TrajectoryID] = struct{}{}
		labelUnits[e.Unit.Label]++
	}

	labels := make([]LabelSummary, 0, len(labelIDs))
	for label, ids := range labelIDs {
		labels = append(labels, LabelSummary{Label: label, Summary: idSetSummary(ids, labelUnits[label], lambda)})
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Label < labels[j].Label })

	return idSetSummary(allIDs, uint64(len(entries)), lambda), labels
}

func idSetSummary(ids map[geo.TrajectoryID]struct{}, units uint64, lambda int) invidx.ListSummary {
	out := make([]geo.TrajectoryID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if lambda > 0 && len(out) > lambda {
		out = out[:lambda]
	}
	return invidx.ListSummary{UnitCount: units, Trajectories: out}
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeNodePtr(w io.Writer, p nodeio.NodePtr) error {
	valid := uint64(0)
	if p.Valid {
		valid = 1
	}
	if err := writeUint64(w, uint64(p.Handle)); err != nil {
		return err
	}
	return writeUint64(w, valid)
}

func readNodePtr(r io.Reader) (nodeio.NodePtr, error) {
	h, err := readUint64(r)
	if err != nil {
		return nodeio.NodePtr{}, err
	}
	valid, err := readUint64(r)
	if err != nil {
		return nodeio.NodePtr{}, err
	}
	return nodeio.NodePtr{Handle: blockio.Handle(h), Valid: valid != 0}, nil
}

func writeBBox(w io.Writer, b geo.BoundingBox) error {
	var buf [24]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(b.Min.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(b.Min.Y))
	binary.LittleEndian.PutUint32(buf[8:12], b.Min.T)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(b.Max.X))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(b.Max.Y))
	binary.LittleEndian.PutUint32(buf[20:24], b.Max.T)
	_, err := w.Write(buf[:])
	return err
}

func readBBox(r io.Reader) (geo.BoundingBox, error) {
	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return geo.BoundingBox{}, err
	}
	return geo.BoundingBox{
		Min: geo.Point{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
			T: binary.LittleEndian.Uint32(buf[8:12]),
		},
		Max: geo.Point{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
			T: binary.LittleEndian.Uint32(buf[20:24]),
		},
	}, nil
}

func writeListSummary(w io.Writer, s invidx.ListSummary) error {
	if err := writeUint64(w, s.UnitCount); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(s.Trajectories))); err != nil {
		return err
	}
	for _, id := range s.Trajectories {
		if err := writeUint64(w, uint64(id)); err != nil {
			return err
		}
	}
	return nil
}

func readListSummary(r io.Reader) (invidx.ListSummary, error) {
	unitCount, err := readUint64(r)
	if err != nil {
		return invidx.ListSummary{}, err
	}
	n, err := readUint64(r)
	if err != nil {
		return invidx.ListSummary{}, err
	}
	ids := make([]geo.TrajectoryID, n)
	for i := range ids {
		v, err := readUint64(r)
		if err != nil {
			return invidx.ListSummary{}, err
		}
		ids[i] = geo.TrajectoryID(v)
	}
	return invidx.ListSummary{UnitCount: unitCount, Trajectories: ids}, nil
}

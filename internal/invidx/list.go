package invidx

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/geo"
)

// List is a single append-only posting list backed by one file of
// fixed-size records.
type List struct {
	f      *os.File
	lambda int
	size   int // number of records appended so far
}

func openList(path string, lambda int) (*List, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "invidx: open list %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "invidx: stat list")
	}
	rs := recordSize(lambda)
	return &List{f: f, lambda: lambda, size: int(fi.Size()) / rs}, nil
}

// Append adds a posting entry to the list. O(1) amortised (a single file
// append), as required by spec.md §4.3.
func (l *List) Append(e PostingEntry) error {
	rs := recordSize(l.lambda)
	buf := make([]byte, rs)

	binary.LittleEndian.PutUint32(buf[0:4], e.ChildIndex)
	binary.LittleEndian.PutUint64(buf[4:12], e.UnitCount)

	ids := e.Trajectories
	if len(ids) > l.lambda {
		ids = ids[:l.lambda]
	}
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(ids)))
	for i, id := range ids {
		off := 16 + i*8
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(id))
	}

	if _, err := l.f.WriteAt(buf, int64(l.size)*int64(rs)); err != nil {
		return errors.Wrap(err, "invidx: append posting")
	}
	l.size++
	return nil
}

// Len returns the number of postings appended to the list (one per
// non-empty child it indexes).
func (l *List) Len() int {
	return l.size
}

// Entries returns every posting entry in the list, in append order.
func (l *List) Entries() ([]PostingEntry, error) {
	rs := recordSize(l.lambda)
	buf := make([]byte, l.size*rs)
	if l.size > 0 {
		if _, err := l.f.ReadAt(buf, 0); err != nil {
			return nil, errors.Wrap(err, "invidx: read postings")
		}
	}

	out := make([]PostingEntry, l.size)
	for i := 0; i < l.size; i++ {
		rec := buf[i*rs : (i+1)*rs]
		childIndex := binary.LittleEndian.Uint32(rec[0:4])
		unitCount := binary.LittleEndian.Uint64(rec[4:12])
		idCount := binary.LittleEndian.Uint32(rec[12:16])
		ids := make([]geo.TrajectoryID, idCount)
		for j := range ids {
			off := 16 + j*8
			ids[j] = geo.TrajectoryID(binary.LittleEndian.Uint64(rec[off : off+8]))
		}
		out[i] = PostingEntry{ChildIndex: childIndex, UnitCount: unitCount, Trajectories: ids}
	}
	return out, nil
}

// Summarise computes the list's summary: the sum of every entry's unit
// count and the union of their trajectory-id sets, clipped to Lambda.
// O(n) in the number of postings, as required by spec.md §4.3.
func (l *List) Summarise() (ListSummary, error) {
	entries, err := l.Entries()
	if err != nil {
		return ListSummary{}, err
	}

	ids := make(map[geo.TrajectoryID]struct{})
	var unitCount uint64
	for _, e := range entries {
		unitCount += e.UnitCount
		for _, id := range e.Trajectories {
			ids[id] = struct{}{}
		}
	}

	return ListSummary{
		UnitCount:    unitCount,
		Trajectories: clipSorted(ids, l.lambda),
	}, nil
}

// Close closes the list's backing file.
func (l *List) Close() error {
	return l.f.Close()
}

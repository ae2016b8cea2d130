// Package invidx implements the per-internal-node inverted index from
// spec.md §3.2/§4.3: a map label -> posting list plus a distinguished
// "total" list covering all children, backed by one append-only file per
// list under the node's directory-allocator directory.
//
// The on-disk posting-list format is intentionally simple (spec.md §1
// treats it as an opaque append-only list abstraction): each posting is a
// fixed-size record, so Append is an O(1) file-append and Summarise is an
// O(n) linear scan, matching the complexity bounds in spec.md §9.
//
// The append-only posting file follows the fixed-size-record, no-reflection
// reading style used elsewhere in this tree for binary structures:
// signature-less headers, records read at known offsets, adapted here from
// read-only parsing to append-then-summarise.
package invidx

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/geo"
)

const totalFileName = "total.postings"

// PostingEntry is one entry of a posting list: a child index, the number
// of leaf-entry units in that child carrying the list's label (or, for the
// total list, in that child at all), and up to Lambda distinct trajectory
// ids.
type PostingEntry struct {
	ChildIndex   uint32
	UnitCount    uint64
	Trajectories []geo.TrajectoryID
}

// ListSummary is the result of summarising a posting list: the total unit
// count across all its entries and the union of their trajectory-id sets,
// clipped to Lambda.
type ListSummary struct {
	UnitCount    uint64
	Trajectories []geo.TrajectoryID
}

// MergeSummaries combines two list summaries: sums the counts and unions
// the trajectory-id sets, clipped to lambda (spec.md §3.2).
func MergeSummaries(a, b ListSummary, lambda int) ListSummary {
	ids := make(map[geo.TrajectoryID]struct{}, len(a.Trajectories)+len(b.Trajectories))
	for _, id := range a.Trajectories {
		ids[id] = struct{}{}
	}
	for _, id := range b.Trajectories {
		ids[id] = struct{}{}
	}
	return ListSummary{
		UnitCount:    a.UnitCount + b.UnitCount,
		Trajectories: clipSorted(ids, lambda),
	}
}

func clipSorted(ids map[geo.TrajectoryID]struct{}, lambda int) []geo.TrajectoryID {
	out := make([]geo.TrajectoryID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > lambda {
		out = out[:lambda]
	}
	return out
}

// recordSize returns the fixed on-disk size of one posting record for the
// given lambda: child_index(4) + unit_count(8) + id_count(4) + lambda*id(8).
func recordSize(lambda int) int {
	return 4 + 8 + 4 + lambda*8
}

// Index is one internal node's inverted index: the "total" list plus
// zero or more per-label lists, all rooted at dir (a directory handed out
// by internal/diralloc).
type Index struct {
	dir    string
	lambda int
	total  *List
	lists  map[geo.Label]*List
	// lists has no order of its own; Iterate sorts labels ascending,
	// matching the original's std::map<label_type, ...> iteration order.
}

// Create opens the inverted index rooted at dir, creating the directory
// and its total list file when missing. A total list already on disk
// keeps its postings; per-label lists are opened only as FindOrCreate
// asks for them.
func Create(dir string, lambda int) (*Index, error) {
	if lambda <= 0 {
		return nil, errors.Errorf("invidx: invalid lambda %d", lambda)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "invidx: create directory")
	}
	total, err := openList(filepath.Join(dir, totalFileName), lambda)
	if err != nil {
		return nil, err
	}
	return &Index{
		dir:    dir,
		lambda: lambda,
		total:  total,
		lists:  make(map[geo.Label]*List),
	}, nil
}

// Total returns the distinguished "total" posting list.
func (ix *Index) Total() *List {
	return ix.total
}

// FindOrCreate returns the posting list for label, creating it (and its
// backing file) on first use.
func (ix *Index) FindOrCreate(label geo.Label) (*List, error) {
	if l, ok := ix.lists[label]; ok {
		return l, nil
	}
	path := filepath.Join(ix.dir, labelFileName(label))
	l, err := openList(path, ix.lambda)
	if err != nil {
		return nil, err
	}
	ix.lists[label] = l
	return l, nil
}

// Size returns the number of distinct labels with a posting list.
func (ix *Index) Size() int {
	return len(ix.lists)
}

// LabelList pairs a label with its posting list, as yielded by Iterate.
type LabelList struct {
	Label geo.Label
	List  *List
}

// Iterate returns every (label, list) pair, ordered by ascending label for
// determinism.
func (ix *Index) Iterate() []LabelList {
	out := make([]LabelList, 0, len(ix.lists))
	for label, l := range ix.lists {
		out = append(out, LabelList{Label: label, List: l})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Close closes every open list file.
func (ix *Index) Close() error {
	var first error
	if err := ix.total.Close(); err != nil && first == nil {
		first = err
	}
	for _, l := range ix.lists {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func labelFileName(label geo.Label) string {
	return "label_" + strconv.FormatUint(uint64(label), 10) + ".postings"
}

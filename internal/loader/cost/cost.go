// Package cost implements the β-weighted placement cost shared by the
// quickload and one-by-one loaders (spec.md §4.9/§4.10):
//
//	cost = β·spatial_enlargement + (1−β)·textual_cost
//
// spatial_enlargement is the growth in MBB volume a candidate group would
// incur by admitting a new entry or child; textual_cost is the growth
// penalty of the candidate's label posting lists, as described in spec.md
// §4.9 ("the label-posting-list growth penalty as defined by the
// underlying index"). No original_source file defines textual_cost
// precisely — the original's quickload/insertion loaders were not part of
// the retrieved sources — so this package's textual_cost is this port's
// own reading of that sentence: creating a brand-new label list is the
// most expensive case (cost 1), growing an existing list with an id it has
// not seen before is a marginal cost of 1/λ, and anything that does not
// enlarge a list (a repeat id, or a list already holding its λ distinct
// ids) costs nothing further.
package cost

import (
	"github.com/scigolib/irwi/internal/geo"
	"github.com/scigolib/irwi/internal/treeerr"
)

// Weights holds the validated β used to combine spatial and textual cost.
type Weights struct {
	Beta float64
}

// New validates beta and returns the Weights to combine costs with.
// beta outside [0,1] is a PreconditionFailed (spec.md §7).
func New(beta float64) (Weights, error) {
	if beta < 0 || beta > 1 {
		return Weights{}, treeerr.Precondition("cost: beta %v outside [0,1]", beta)
	}
	return Weights{Beta: beta}, nil
}

// Combine returns β·spatial + (1−β)·textual.
func (w Weights) Combine(spatial, textual float64) float64 {
	return w.Beta*spatial + (1-w.Beta)*textual
}

// SpatialEnlargement returns the volume growth current would incur by being
// extended to also cover added.
func SpatialEnlargement(current, added geo.BoundingBox) float64 {
	return current.Union(added).Volume() - current.Volume()
}

// Profile tracks, for a single candidate group (a resident leaf during
// quickload, or a subtree during one-by-one insertion), which trajectory
// ids have already been recorded against each label. It is the in-memory
// analogue of an internal node's inverted index, kept by the streaming
// loaders before anything is flushed to on-disk posting lists.
type Profile struct {
	byLabel map[geo.Label]map[geo.TrajectoryID]struct{}
}

// NewProfile returns an empty profile.
func NewProfile() *Profile {
	return &Profile{byLabel: make(map[geo.Label]map[geo.TrajectoryID]struct{})}
}

// TextualCost returns the posting-list growth penalty of admitting id under
// label into the profile, without mutating it. lambda is the posting
// list's trajectory-id capacity (spec.md §3.2).
func (p *Profile) TextualCost(label geo.Label, id geo.TrajectoryID, lambda int) float64 {
	ids, ok := p.byLabel[label]
	if !ok || len(ids) == 0 {
		return 1
	}
	if _, seen := ids[id]; seen {
		return 0
	}
	if len(ids) >= lambda {
		return 0
	}
	return 1 / float64(lambda)
}

// Admit records that id has been accepted under label. Call only after the
// caller has committed to placing the entry, not while merely evaluating
// candidates.
func (p *Profile) Admit(label geo.Label, id geo.TrajectoryID) {
	ids, ok := p.byLabel[label]
	if !ok {
		ids = make(map[geo.TrajectoryID]struct{})
		p.byLabel[label] = ids
	}
	ids[id] = struct{}{}
}

// Merge folds other's label/id tracking into p, as happens when two
// resident groups' summaries are combined into one parent during the
// internal-node packing pass.
func (p *Profile) Merge(other *Profile) {
	for label, ids := range other.byLabel {
		dst, ok := p.byLabel[label]
		if !ok {
			dst = make(map[geo.TrajectoryID]struct{}, len(ids))
			p.byLabel[label] = dst
		}
		for id := range ids {
			dst[id] = struct{}{}
		}
	}
}

// Labels returns a copy of the profile's label -> trajectory-id-set
// mapping, for folding one subtree's label composition into a cost
// evaluation against a candidate parent (EvaluateChild's childLabels
// argument).
func (p *Profile) Labels() map[geo.Label][]geo.TrajectoryID {
	out := make(map[geo.Label][]geo.TrajectoryID, len(p.byLabel))
	for label, ids := range p.byLabel {
		list := make([]geo.TrajectoryID, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		out[label] = list
	}
	return out
}

// EvaluateEntry computes the β-weighted cost of admitting entry e into a
// candidate whose current bounding box is currentMBB and whose label
// tracking is profile, without mutating profile.
func (w Weights) EvaluateEntry(currentMBB geo.BoundingBox, profile *Profile, lambda int, e geo.LeafEntry) float64 {
	spatial := SpatialEnlargement(currentMBB, e.Unit.BoundingBox())
	textual := profile.TextualCost(e.Unit.Label, e.TrajectoryID, lambda)
	return w.Combine(spatial, textual)
}

// EvaluateChild computes the β-weighted cost of admitting a child whose
// bounding box is childMBB and whose label summary is childLabels into a
// candidate parent whose current bounding box is currentMBB and whose
// label tracking is profile. Used by the internal-node packing pass of
// quickload and by one-by-one's choose-subtree.
func (w Weights) EvaluateChild(currentMBB, childMBB geo.BoundingBox, profile *Profile, lambda int, childLabels map[geo.Label][]geo.TrajectoryID) float64 {
	spatial := SpatialEnlargement(currentMBB, childMBB)

	var textual float64
	for label, ids := range childLabels {
		for _, id := range ids {
			textual += profile.TextualCost(label, id, lambda)
		}
	}
	return w.Combine(spatial, textual)
}

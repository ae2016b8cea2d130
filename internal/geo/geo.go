// Package geo defines the primitive spatio-temporal types the index is
// built on: points, bounding boxes, trajectory units and leaf entries.
package geo

import "fmt"

// Label identifies a textual label by its numeric id.
type Label uint32

// TrajectoryID identifies a trajectory.
type TrajectoryID uint64

// Point is an ordered (x, y, t) triple: two spatial float32 coordinates
// and one temporal uint32 coordinate (seconds since epoch).
type Point struct {
	X, Y float32
	T    uint32
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g, %d)", p.X, p.Y, p.T)
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minU(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Min returns the component-wise minimum of two points.
func Min(a, b Point) Point {
	return Point{minF(a.X, b.X), minF(a.Y, b.Y), minU(a.T, b.T)}
}

// Max returns the component-wise maximum of two points.
func Max(a, b Point) Point {
	return Point{maxF(a.X, b.X), maxF(a.Y, b.Y), maxU(a.T, b.T)}
}

// BoundingBox is the smallest axis-aligned box enclosing a set of points.
type BoundingBox struct {
	Min, Max Point
}

// NewBoundingBox builds the bounding box of two points, regardless of order.
func NewBoundingBox(a, b Point) BoundingBox {
	return BoundingBox{Min: Min(a, b), Max: Max(a, b)}
}

// Extend returns the box extended to also cover p.
func (b BoundingBox) Extend(p Point) BoundingBox {
	return BoundingBox{Min: Min(b.Min, p), Max: Max(b.Max, p)}
}

// Union returns the box extended to also cover other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{Min: Min(b.Min, other.Min), Max: Max(b.Max, other.Max)}
}

// Volume returns the box's spatio-temporal volume, used as the spatial
// enlargement metric by the Hilbert growth heuristic and by the
// beta-weighted cost function.
func (b BoundingBox) Volume() float64 {
	dx := float64(b.Max.X) - float64(b.Min.X)
	dy := float64(b.Max.Y) - float64(b.Min.Y)
	dt := float64(b.Max.T) - float64(b.Min.T)
	return dx * dy * dt
}

// Center returns the box's midpoint.
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		T: uint32((uint64(b.Min.T) + uint64(b.Max.T)) / 2),
	}
}

// TrajectoryUnit is a single labelled spatio-textual line segment.
type TrajectoryUnit struct {
	Start, End Point
	Label      Label
}

// BoundingBox returns the component-wise min/max of Start and End.
func (u TrajectoryUnit) BoundingBox() BoundingBox {
	return NewBoundingBox(u.Start, u.End)
}

// Center returns the midpoint of Start and End.
func (u TrajectoryUnit) Center() Point {
	return Point{
		X: (u.Start.X + u.End.X) / 2,
		Y: (u.Start.Y + u.End.Y) / 2,
		T: uint32((uint64(u.Start.T) + uint64(u.End.T)) / 2),
	}
}

// LeafEntry is the unit of storage at the bottom level of the tree: one
// trajectory line segment, identified uniquely by (TrajectoryID, UnitIndex)
// within its parent trajectory.
type LeafEntry struct {
	TrajectoryID TrajectoryID
	UnitIndex    uint32
	Unit         TrajectoryUnit
}

// BoundingBox returns the entry's spatial/temporal extent.
func (e LeafEntry) BoundingBox() BoundingBox {
	return e.Unit.BoundingBox()
}

// EntrySize is the on-disk size in bytes of one LeafEntry record:
// trajectory_id(8) + unit_index(4) + start(4+4+4) + end(4+4+4) + label(4).
const EntrySize = 8 + 4 + 12 + 12 + 4

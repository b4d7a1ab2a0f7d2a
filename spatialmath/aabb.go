// Package spatialmath defines the positions and axis-aligned bounding boxes reported by the
// simulation.
package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Distance returns the Euclidean distance between two points.
func Distance(a, b r3.Vector) float64 {
	return a.Sub(b).Norm()
}

// AABB is an axis-aligned bounding box given by its min and max corners, in world frame.
type AABB struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// NewAABB instantiates a new AABB. Inverted corners are not allowed; degenerate (zero-thickness)
// boxes are.
func NewAABB(minPt, maxPt r3.Vector) (AABB, error) {
	if minPt.X > maxPt.X || minPt.Y > maxPt.Y || minPt.Z > maxPt.Z {
		return AABB{}, newBadAABBError(minPt, maxPt)
	}
	return AABB{Min: minPt, Max: maxPt}, nil
}

// AABBFromCenter builds the AABB of the given dimensions centered on center.
func AABBFromCenter(center, dims r3.Vector) (AABB, error) {
	half := dims.Mul(0.5)
	return NewAABB(center.Sub(half), center.Add(half))
}

// String returns a human readable string that represents the box.
func (b AABB) String() string {
	return fmt.Sprintf("AABB | Min: X:%.3f, Y:%.3f, Z:%.3f | Max: X:%.3f, Y:%.3f, Z:%.3f",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}

// Center returns the center point of the box.
func (b AABB) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Dims returns the extent of the box along each axis.
func (b AABB) Dims() r3.Vector {
	return b.Max.Sub(b.Min)
}

// CenterTop returns the center of the box's top face raised by clearance along Z: the mean of the
// corners in the horizontal plane, at the max height.
func (b AABB) CenterTop(clearance float64) r3.Vector {
	return r3.Vector{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: b.Max.Z + clearance,
	}
}

// ContainsXY reports whether the point's horizontal projection lies within the box footprint.
func (b AABB) ContainsXY(pt r3.Vector) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X && pt.Y >= b.Min.Y && pt.Y <= b.Max.Y
}

// Contains reports whether the point lies within the box, faces included.
func (b AABB) Contains(pt r3.Vector) bool {
	return b.ContainsXY(pt) && pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}

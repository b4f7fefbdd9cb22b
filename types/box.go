package types

import "math"

// Box is an axis-aligned bounding box in double precision.
type Box struct {
	Min Vec3
	Max Vec3
}

// NewBox returns a degenerate box suitable for accumulating extents.
func NewBox() Box {
	return Box{
		Min: Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

// ExtendPoint grows the box to include p.
func (b Box) ExtendPoint(p Vec3) Box {
	b.Min = MinVec3(b.Min, p)
	b.Max = MaxVec3(b.Max, p)
	return b
}

// ExtendBox grows the box to include other.
func (b Box) ExtendBox(other Box) Box {
	b.Min = MinVec3(b.Min, other.Min)
	b.Max = MaxVec3(b.Max, other.Max)
	return b
}

// Inflate pads all six faces outward by eps.
func (b Box) Inflate(eps float64) Box {
	d := Vec3{eps, eps, eps}
	b.Min = b.Min.Sub(d)
	b.Max = b.Max.Add(d)
	return b
}

// Center returns the box midpoint.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// MaxExtent returns the length of the longest box side.
func (b Box) MaxExtent() float64 {
	side := b.Max.Sub(b.Min)
	ext := side[0]
	if side[1] > ext {
		ext = side[1]
	}
	if side[2] > ext {
		ext = side[2]
	}
	return ext
}

// Contains reports whether p lies inside or on the box.
func (b Box) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// DistanceSquared returns the squared distance from p to the box (zero when
// the point is inside).
func (b Box) DistanceSquared(p Vec3) float64 {
	var d2 float64
	for axis := 0; axis < 3; axis++ {
		if p[axis] < b.Min[axis] {
			d := b.Min[axis] - p[axis]
			d2 += d * d
		} else if p[axis] > b.Max[axis] {
			d := p[axis] - b.Max[axis]
			d2 += d * d
		}
	}
	return d2
}

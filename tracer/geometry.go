package tracer

import (
	"math"

	"github.com/meshfire/meshfire/types"
)

const (
	// Determinant threshold below which a ray is treated as parallel to the
	// triangle plane.
	detEpsilon = 1e-14

	// Barycentric slack admitting hits on shared triangle edges.
	baryEpsilon = 1e-12
)

// IntersectTriangle runs the double-precision Moller-Trumbore test of a ray
// against triangle (a, b, c). It reports the signed hit parameter t; hits
// behind the origin are returned with negative t and left to the filter.
func IntersectTriangle(origin, dir, a, b, c types.Vec3) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)

	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -detEpsilon && det < detEpsilon {
		return 0, false
	}
	invDet := 1.0 / det

	tv := origin.Sub(a)
	u := tv.Dot(p) * invDet
	if u < -baryEpsilon || u > 1+baryEpsilon {
		return 0, false
	}

	q := tv.Cross(e1)
	v := dir.Dot(q) * invDet
	if v < -baryEpsilon || u+v > 1+baryEpsilon {
		return 0, false
	}

	return e2.Dot(q) * invDet, true
}

// FacetNormal returns the unit normal of triangle (a, b, c) following its
// winding order.
func FacetNormal(a, b, c types.Vec3) types.Vec3 {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// orient3d returns the signed volume (times six) of the tetrahedron
// (a, b, c, d); positive when d lies on the normal side of triangle (a, b, c).
func orient3d(a, b, c, d types.Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Dot(d.Sub(a))
}

// PointInTet decides containment of p in the tetrahedron (v0..v3) by the
// barycentric sign test: p is inside when it lies on the same side of all
// four faces as the opposing vertex. Boundary points count as inside.
func PointInTet(p types.Vec3, v [4]types.Vec3) bool {
	ref := orient3d(v[0], v[1], v[2], v[3])
	if ref == 0 {
		// Degenerate element
		return false
	}
	eps := baryEpsilon * math.Abs(ref)

	s0 := orient3d(p, v[1], v[2], v[3])
	s1 := orient3d(v[0], p, v[2], v[3])
	s2 := orient3d(v[0], v[1], p, v[3])
	s3 := orient3d(v[0], v[1], v[2], p)

	if ref > 0 {
		return s0 >= -eps && s1 >= -eps && s2 >= -eps && s3 >= -eps
	}
	return s0 <= eps && s1 <= eps && s2 <= eps && s3 <= eps
}

// ClosestPointOnTriangle returns the point of triangle (a, b, c) nearest to p.
func ClosestPointOnTriangle(p, a, b, c types.Vec3) types.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}

	denom := 1.0 / (va + vb + vc)
	return a.Add(ab.Mul(vb * denom)).Add(ac.Mul(vc * denom))
}

// IntersectBox runs the slab test of a ray against box using the precomputed
// reciprocal direction. It reports whether [tMin, tMax] overlaps the box.
func IntersectBox(origin, invDir types.Vec3, box types.Box, tMin, tMax float64) bool {
	for axis := 0; axis < 3; axis++ {
		t0 := (box.Min[axis] - origin[axis]) * invDir[axis]
		t1 := (box.Max[axis] - origin[axis]) * invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return false
		}
	}
	return true
}

// ReciprocalDir returns 1/d per component; zero components map to +-Inf which
// the slab test handles via IEEE comparisons.
func ReciprocalDir(d types.Vec3) types.Vec3 {
	return types.Vec3{1.0 / d[0], 1.0 / d[1], 1.0 / d[2]}
}

// PerpendicularTo returns an arbitrary unit vector orthogonal to d, used to
// deterministically tilt containment probe directions.
func PerpendicularTo(d types.Vec3) types.Vec3 {
	axis := types.Vec3{1, 0, 0}
	if math.Abs(d[0]) > 0.9*d.Len() {
		axis = types.Vec3{0, 1, 0}
	}
	return d.Cross(axis).Normalize()
}

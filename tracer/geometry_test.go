package tracer

import (
	"math"
	"testing"

	"github.com/meshfire/meshfire/types"
)

func TestIntersectTriangle(t *testing.T) {
	a := types.Vec3{0, 0, 0}
	b := types.Vec3{2, 0, 0}
	c := types.Vec3{0, 2, 0}

	origin := types.Vec3{0.5, 0.5, -3}
	dir := types.Vec3{0, 0, 1}

	dist, ok := IntersectTriangle(origin, dir, a, b, c)
	if !ok {
		t.Fatal("expected ray to hit the triangle")
	}
	if math.Abs(dist-3) > 1e-12 {
		t.Fatalf("expected hit distance 3; got %v", dist)
	}

	// Behind the origin: the signed parameter is reported, rejection is the
	// filter's job.
	dist, ok = IntersectTriangle(origin, types.Vec3{0, 0, -1}, a, b, c)
	if !ok || dist != -3 {
		t.Fatalf("expected signed distance -3; got %v (hit=%v)", dist, ok)
	}

	// Outside the triangle bounds.
	if _, ok = IntersectTriangle(types.Vec3{3, 3, -1}, dir, a, b, c); ok {
		t.Fatal("expected ray outside the triangle to miss")
	}

	// Parallel to the plane.
	if _, ok = IntersectTriangle(origin, types.Vec3{1, 0, 0}, a, b, c); ok {
		t.Fatal("expected in-plane ray to miss")
	}
}

func TestFacetNormal(t *testing.T) {
	n := FacetNormal(types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0})
	if n != (types.Vec3{0, 0, 1}) {
		t.Fatalf("expected +z normal; got %v", n)
	}
}

func TestPointInTet(t *testing.T) {
	tet := [4]types.Vec3{
		{0, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	if !PointInTet(types.Vec3{0.1, 0.1, 0.1}, tet) {
		t.Fatal("expected interior point to be contained")
	}
	if !PointInTet(types.Vec3{0, 0, 0}, tet) {
		t.Fatal("expected corner point to be contained")
	}
	if PointInTet(types.Vec3{0.5, 0.5, 0.5}, tet) {
		t.Fatal("expected point beyond the diagonal face to be outside")
	}
	if PointInTet(types.Vec3{-0.1, 0.1, 0.1}, tet) {
		t.Fatal("expected exterior point to be outside")
	}
}

func TestClosestPointOnTriangle(t *testing.T) {
	a := types.Vec3{0, 0, 0}
	b := types.Vec3{2, 0, 0}
	c := types.Vec3{0, 2, 0}

	cases := []struct {
		point types.Vec3
		want  types.Vec3
	}{
		{types.Vec3{0.5, 0.5, 1}, types.Vec3{0.5, 0.5, 0}}, // face interior
		{types.Vec3{-1, -1, 0}, types.Vec3{0, 0, 0}},       // vertex region
		{types.Vec3{1, -2, 0}, types.Vec3{1, 0, 0}},        // edge region
		{types.Vec3{2, 2, 0}, types.Vec3{1, 1, 0}},         // diagonal edge
	}

	for i, tc := range cases {
		got := ClosestPointOnTriangle(tc.point, a, b, c)
		if got.Sub(tc.want).Len() > 1e-12 {
			t.Fatalf("case %d: expected closest point %v; got %v", i, tc.want, got)
		}
	}
}

func TestIntersectBox(t *testing.T) {
	box := types.Box{Min: types.Vec3{-1, -1, -1}, Max: types.Vec3{1, 1, 1}}

	origin := types.Vec3{-5, 0, 0}
	dir := types.Vec3{1, 0, 0}
	if !IntersectBox(origin, ReciprocalDir(dir), box, 0, Infty) {
		t.Fatal("expected centered ray to hit the box")
	}
	if IntersectBox(origin, ReciprocalDir(dir), box, 0, 3) {
		t.Fatal("expected clipped ray to miss the box")
	}
	if IntersectBox(types.Vec3{-5, 2, 0}, ReciprocalDir(dir), box, 0, Infty) {
		t.Fatal("expected offset ray to miss the box")
	}
}

func TestPerpendicularTo(t *testing.T) {
	for _, dir := range []types.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}} {
		d := dir.Normalize()
		perp := PerpendicularTo(d)
		if math.Abs(perp.Len()-1) > 1e-12 {
			t.Fatalf("expected unit perpendicular for %v; got length %v", dir, perp.Len())
		}
		if math.Abs(perp.Dot(d)) > 1e-12 {
			t.Fatalf("expected orthogonal perpendicular for %v; got dot %v", dir, perp.Dot(d))
		}
	}
}

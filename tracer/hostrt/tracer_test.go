package hostrt

import (
	"math"
	"testing"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/tracer"
	"github.com/meshfire/meshfire/types"
)

const distTolerance = 1e-6

// The canonical test volume: an axis-aligned box spanning (-2,-3,-4) to
// (5,6,7), twelve triangles across six surfaces.
func registerBox(t *testing.T) (*Tracer, *mesh.BoxMesh, tracer.TreeID, tracer.TreeID) {
	t.Helper()

	rt := New()
	if err := rt.Init(); err != nil {
		t.Fatalf("error initializing tracer: %v", err)
	}

	mm := mesh.NewBoxMesh(types.Vec3{-2, -3, -4}, types.Vec3{5, 6, 7})
	volTree, elemTree, err := rt.RegisterVolume(mm, mm.Volumes()[0])
	if err != nil {
		t.Fatalf("error registering volume: %v", err)
	}
	if volTree == tracer.TreeNone {
		t.Fatal("expected a surface tree handle")
	}
	if elemTree == tracer.TreeNone {
		t.Fatal("expected an element tree handle")
	}

	return rt, mm, volTree, elemTree
}

func TestLibraryIdentity(t *testing.T) {
	if got := New().Library(); got != tracer.DeePeeRT {
		t.Fatalf("expected DEEPEE_RT identity; got %s", got)
	}
}

func TestRayFireScenarios(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	cases := []struct {
		name        string
		origin      types.Vec3
		direction   types.Vec3
		distLimit   float64
		orientation tracer.HitOrientation
		wantDist    float64
		wantSurface mesh.ID
	}{
		{"exit +x", types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Exiting, 5.0, mesh.BoxFacePosX},
		{"exit -x", types.Vec3{0, 0, 0}, types.Vec3{-1, 0, 0}, tracer.Infty, tracer.Exiting, 2.0, mesh.BoxFaceNegX},
		{"exit +y", types.Vec3{0, 0, 0}, types.Vec3{0, 1, 0}, tracer.Infty, tracer.Exiting, 6.0, mesh.BoxFacePosY},
		{"exit -y", types.Vec3{0, 0, 0}, types.Vec3{0, -1, 0}, tracer.Infty, tracer.Exiting, 3.0, mesh.BoxFaceNegY},
		{"exit +z", types.Vec3{0, 0, 0}, types.Vec3{0, 0, 1}, tracer.Infty, tracer.Exiting, 7.0, mesh.BoxFacePosZ},
		{"exit -z", types.Vec3{0, 0, 0}, types.Vec3{0, 0, -1}, tracer.Infty, tracer.Exiting, 4.0, mesh.BoxFaceNegZ},
		{"skip entering from outside", types.Vec3{-10, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Exiting, 15.0, mesh.BoxFacePosX},
		{"entering from outside", types.Vec3{-10, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Entering, 8.0, mesh.BoxFaceNegX},
		{"entering from +x side", types.Vec3{10, 0, 0}, types.Vec3{-1, 0, 0}, tracer.Infty, tracer.Entering, 5.0, mesh.BoxFacePosX},
		{"distance limited", types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, 4.5, tracer.Exiting, tracer.Infty, tracer.SurfaceNone},
		{"distance just enough", types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, 5.1, tracer.Exiting, 5.0, mesh.BoxFacePosX},
	}

	for _, tc := range cases {
		dist, surf := rt.RayFire(volTree, tc.origin, tc.direction, tc.distLimit, tc.orientation, nil)
		if surf != tc.wantSurface {
			t.Fatalf("%s: expected surface %d; got %d", tc.name, tc.wantSurface, surf)
		}
		if tc.wantDist == tracer.Infty {
			if dist != tracer.Infty {
				t.Fatalf("%s: expected no hit; got distance %v", tc.name, dist)
			}
			continue
		}
		if math.Abs(dist-tc.wantDist) > distTolerance {
			t.Fatalf("%s: expected distance %v; got %v", tc.name, tc.wantDist, dist)
		}
	}
}

func TestRayFireExclusionRoundTrip(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	exclude := make([]mesh.ID, 0)
	dist, surf := rt.RayFire(volTree, types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Exiting, &exclude)
	if surf != mesh.BoxFacePosX || math.Abs(dist-5.0) > distTolerance {
		t.Fatalf("unexpected first hit (%v, %d)", dist, surf)
	}
	if len(exclude) != 1 {
		t.Fatalf("expected one excluded primitive after the hit; got %v", exclude)
	}

	// With the accepted primitive excluded the same fire reports no hit.
	dist, surf = rt.RayFire(volTree, types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Exiting, &exclude)
	if surf != tracer.SurfaceNone || dist != tracer.Infty {
		t.Fatalf("expected excluded fire to miss; got (%v, %d)", dist, surf)
	}
}

// Interior chords: firing along +d and -d from an interior point spans the
// volume.
func TestRayFireChordLength(t *testing.T) {
	rt, mm, volTree, _ := registerBox(t)
	defer rt.Close()

	box := mm.BoundingBox(0)
	points := []types.Vec3{
		{0, 0, 0},
		{1, 1, 1},
		{-1.5, 5.5, 6.5},
	}
	dirs := []types.Vec3{
		{1, 0, 0},
		{0, 1, 0},
		{0.3, -0.9, 0.2},
		{1, 1, 1},
	}

	for _, p := range points {
		for _, d := range dirs {
			dir := d.Normalize()
			fwd, surfFwd := rt.RayFire(volTree, p, dir, tracer.Infty, tracer.Exiting, nil)
			rev, surfRev := rt.RayFire(volTree, p, dir.Neg(), tracer.Infty, tracer.Exiting, nil)

			if surfFwd == tracer.SurfaceNone || surfRev == tracer.SurfaceNone {
				t.Fatalf("point %v dir %v: expected hits both ways", p, d)
			}

			want := chordLength(box, p, dir)
			if math.Abs(fwd+rev-want) > distTolerance {
				t.Fatalf("point %v dir %v: expected chord %v; got %v", p, d, want, fwd+rev)
			}
		}
	}
}

// chordLength computes the analytic span of the box along dir through p.
func chordLength(box types.Box, p, dir types.Vec3) float64 {
	tEnter := math.Inf(-1)
	tExit := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			continue
		}
		t0 := (box.Min[axis] - p[axis]) / dir[axis]
		t1 := (box.Max[axis] - p[axis]) / dir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tEnter = math.Max(tEnter, t0)
		tExit = math.Min(tExit, t1)
	}
	return tExit - tEnter
}

func TestRayFireSelfAvoidance(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	// A point on the +x face fired along the outward normal must not report
	// its own facet.
	dist, surf := rt.RayFire(volTree, types.Vec3{5, 0.5, 0.5}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.AnyHit, nil)
	if surf != tracer.SurfaceNone || dist != tracer.Infty {
		t.Fatalf("expected no hit for outward fire off the surface; got (%v, %d)", dist, surf)
	}
}

func TestPointInVolumeScenarios(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	posX := types.Vec3{1, 0, 0}
	negX := types.Vec3{-1, 0, 0}

	cases := []struct {
		name      string
		point     types.Vec3
		direction *types.Vec3
		want      bool
	}{
		{"center", types.Vec3{0, 0, 0}, nil, true},
		{"far outside", types.Vec3{0, 0, 1000}, nil, false},
		{"on boundary, outward probe", types.Vec3{5.0, 0, 0}, &posX, true},
		{"outside, inward probe", types.Vec3{5.1, 0, 0}, &negX, false},
		{"near corner inside", types.Vec3{4.9, 5.9, 6.9}, nil, true},
		{"just outside -y", types.Vec3{0, -3.001, 0}, nil, false},
	}

	for _, tc := range cases {
		if got := rt.PointInVolume(volTree, tc.point, tc.direction, nil); got != tc.want {
			t.Fatalf("%s: expected %v; got %v", tc.name, tc.want, got)
		}
	}
}

// Containment agrees with crossing-count parity along generic directions.
func TestPointInVolumeParity(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	points := []types.Vec3{
		{0, 0, 0},
		{-10, 0.1, 0.2},
		{4.5, 5.5, 6.5},
		{8, 8, 8},
	}
	dirs := []types.Vec3{
		{1, 0, 0},
		{0.2, 0.7, 0.1},
	}

	for _, p := range points {
		for _, d := range dirs {
			dir := d.Normalize()

			// Walk every boundary crossing by excluding accepted facets.
			exclude := make([]mesh.ID, 0)
			crossings := 0
			for {
				_, surf := rt.RayFire(volTree, p, dir, tracer.Infty, tracer.AnyHit, &exclude)
				if surf == tracer.SurfaceNone {
					break
				}
				crossings++
			}

			want := crossings%2 == 1
			if got := rt.PointInVolume(volTree, p, &dir, nil); got != want {
				t.Fatalf("point %v dir %v: containment %v disagrees with %d crossings", p, d, got, crossings)
			}
		}
	}
}

func TestContainmentStates(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	if got := rt.Containment(volTree, types.Vec3{0, 0, 0}, nil, nil); got != tracer.PointInside {
		t.Fatalf("expected inside state; got %v", got)
	}
	if got := rt.Containment(volTree, types.Vec3{20, 0, 0}, nil, nil); got != tracer.PointOutside {
		t.Fatalf("expected outside state; got %v", got)
	}
}

func TestOccluded(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	if !rt.Occluded(volTree, types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty) {
		t.Fatal("expected interior ray to be occluded")
	}
	if rt.Occluded(volTree, types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, 4.5) {
		t.Fatal("expected distance-limited ray to be unoccluded")
	}
	if rt.Occluded(volTree, types.Vec3{0, 10, 0}, types.Vec3{1, 0, 0}, tracer.Infty) {
		t.Fatal("expected ray missing the volume to be unoccluded")
	}
}

func TestClosest(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	// Nearest surface to the center is the -x face at distance 2.
	dist, prim := rt.Closest(volTree, types.Vec3{0, 0, 0})
	if math.Abs(dist-2.0) > distTolerance {
		t.Fatalf("expected closest distance 2.0; got %v", dist)
	}
	if prim == tracer.SurfaceNone {
		t.Fatal("expected a primitive id for the closest query")
	}

	// Outside the box the gap to the +x face is reported.
	dist, _ = rt.Closest(volTree, types.Vec3{7, 0, 0})
	if math.Abs(dist-2.0) > distTolerance {
		t.Fatalf("expected exterior closest distance 2.0; got %v", dist)
	}
}

func TestFindElement(t *testing.T) {
	rt, mm, _, elemTree := registerBox(t)
	defer rt.Close()

	// Every interior sample lands in exactly one tetrahedron of the Kuhn
	// decomposition.
	samples := []types.Vec3{
		{0, 0, 0},
		{4.5, 5.5, 6.5},
		{-1.5, -2.5, -3.5},
		{1, 2, 3},
	}
	for _, p := range samples {
		element := rt.FindElement(elemTree, p)
		if element == tracer.ElementNone {
			t.Fatalf("expected point %v to land in an element", p)
		}
		v := mm.ElementVertices(element)
		if !tracer.PointInTet(p, v) {
			t.Fatalf("reported element %d does not contain %v", element, p)
		}
	}

	if element := rt.FindElement(elemTree, types.Vec3{10, 10, 10}); element != tracer.ElementNone {
		t.Fatalf("expected exterior point to land in no element; got %d", element)
	}
}

func TestBatchedMatchesScalar(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	origins := []types.Vec3{
		{0, 0, 0}, {-10, 0, 0}, {1, 1, 1}, {0, 10, 0}, {-1, -2, -3},
	}
	dirs := []types.Vec3{
		{1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 0, 0}, {0.5, 0.5, 0.7},
	}

	rays := make([]tracer.DblRay, len(origins))
	for i := range origins {
		rays[i] = tracer.DblRay{
			Origin:    origins[i],
			Direction: dirs[i].Normalize(),
			Volume:    mesh.None,
			Enabled:   true,
		}
	}
	hits := make([]tracer.DblHit, len(rays))
	if err := rt.RayFireBatch(volTree, rays, hits, tracer.Infty, tracer.Exiting); err != nil {
		t.Fatalf("error in batched ray fire: %v", err)
	}

	for i := range rays {
		dist, surf := rt.RayFire(volTree, rays[i].Origin, rays[i].Direction, tracer.Infty, tracer.Exiting, nil)
		if hits[i].SurfaceID != surf {
			t.Fatalf("ray %d: batched surface %d != scalar %d", i, hits[i].SurfaceID, surf)
		}
		if hits[i].Distance != dist {
			t.Fatalf("ray %d: batched distance %v != scalar %v", i, hits[i].Distance, dist)
		}
	}
}

func TestBatchedDisabledRays(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	rays := []tracer.DblRay{
		{Origin: types.Vec3{0, 0, 0}, Direction: types.Vec3{1, 0, 0}, Volume: mesh.None, Enabled: true},
		{Origin: types.Vec3{0, 0, 0}, Direction: types.Vec3{1, 0, 0}, Volume: mesh.None, Enabled: false},
	}
	hits := make([]tracer.DblHit, 2)
	if err := rt.RayFireBatch(volTree, rays, hits, tracer.Infty, tracer.Exiting); err != nil {
		t.Fatalf("error in batched ray fire: %v", err)
	}

	if hits[0].SurfaceID == tracer.SurfaceNone {
		t.Fatal("expected enabled ray to hit")
	}
	if hits[1].SurfaceID != tracer.SurfaceNone || hits[1].Distance != tracer.Infty {
		t.Fatalf("expected disabled ray to keep the miss state; got %+v", hits[1])
	}
}

func TestBatchedContainmentAndOcclusion(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	points := []types.Vec3{{0, 0, 0}, {0, 0, 1000}, {4.9, 5.9, 6.9}}
	contained := make([]bool, len(points))
	if err := rt.PointInVolumeBatch(volTree, points, contained); err != nil {
		t.Fatalf("error in batched containment: %v", err)
	}
	for i, p := range points {
		if want := rt.PointInVolume(volTree, p, nil, nil); contained[i] != want {
			t.Fatalf("point %v: batched containment %v != scalar %v", p, contained[i], want)
		}
	}

	rays := []tracer.DblRay{
		{Origin: types.Vec3{0, 0, 0}, Direction: types.Vec3{1, 0, 0}, Enabled: true},
		{Origin: types.Vec3{0, 10, 0}, Direction: types.Vec3{1, 0, 0}, Enabled: true},
	}
	occluded := make([]bool, len(rays))
	if err := rt.OccludedBatch(volTree, rays, tracer.Infty, occluded); err != nil {
		t.Fatalf("error in batched occlusion: %v", err)
	}
	if !occluded[0] || occluded[1] {
		t.Fatalf("unexpected batched occlusion results %v", occluded)
	}
}

func TestGlobalSurfaceTree(t *testing.T) {
	rt, mm, _, _ := registerBox(t)
	defer rt.Close()

	global, err := rt.CreateGlobalSurfaceTree(mm)
	if err != nil {
		t.Fatalf("error building global tree: %v", err)
	}
	if global == tracer.TreeNone {
		t.Fatal("expected a global tree handle")
	}

	dist, surf := rt.RayFire(global, types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Exiting, nil)
	if surf != mesh.BoxFacePosX || math.Abs(dist-5.0) > distTolerance {
		t.Fatalf("unexpected global tree hit (%v, %d)", dist, surf)
	}
}

func TestGlobalElementTreeUnsupported(t *testing.T) {
	rt, mm, _, _ := registerBox(t)
	defer rt.Close()

	id, err := rt.CreateGlobalElementTree(mm)
	if err != nil {
		t.Fatalf("expected warning-only behavior; got error %v", err)
	}
	if id != tracer.TreeNone {
		t.Fatalf("expected TreeNone for unsupported global element tree; got %d", id)
	}
}

func TestDeviceSurfaceUnsupported(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	if err := rt.PopulateRaysExternal(16, nil); !errorIsUnsupported(err) {
		t.Fatalf("expected unsupported error from PopulateRaysExternal; got %v", err)
	}
	if err := rt.RayFirePrepared(volTree, 16, tracer.Infty, tracer.Exiting); !errorIsUnsupported(err) {
		t.Fatalf("expected unsupported error from RayFirePrepared; got %v", err)
	}
	if err := rt.TransferHitsToHost(16, nil); !errorIsUnsupported(err) {
		t.Fatalf("expected unsupported error from TransferHitsToHost; got %v", err)
	}
	if _, _, err := rt.DeviceRayHitBuffers(); !errorIsUnsupported(err) {
		t.Fatalf("expected unsupported error from DeviceRayHitBuffers; got %v", err)
	}
}

func errorIsUnsupported(err error) bool {
	type causer interface {
		Cause() error
	}
	for err != nil {
		if err == tracer.ErrUnsupported {
			return true
		}
		cause, ok := err.(causer)
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

func TestUnregisteredTreePanics(t *testing.T) {
	rt := New()
	if err := rt.Init(); err != nil {
		t.Fatalf("error initializing tracer: %v", err)
	}
	defer rt.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected query against unissued tree to panic")
		}
	}()
	rt.RayFire(5, types.Vec3{}, types.Vec3{1, 0, 0}, tracer.Infty, tracer.Exiting, nil)
}

func TestNegativeDistanceLimitPanics(t *testing.T) {
	rt, _, volTree, _ := registerBox(t)
	defer rt.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected negative distance limit to panic")
		}
	}()
	rt.RayFire(volTree, types.Vec3{}, types.Vec3{1, 0, 0}, -1, tracer.Exiting, nil)
}

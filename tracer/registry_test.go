package tracer

import (
	"testing"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// twoBoxMesh glues two disjoint box volumes into one model so registry tests
// can exercise multiple registrations.
type twoBoxMesh struct {
	a *mesh.BoxMesh
	b *mesh.BoxMesh
}

func newTwoBoxMesh() *twoBoxMesh {
	return &twoBoxMesh{
		a: mesh.NewBoxMesh(types.Vec3{-2, -3, -4}, types.Vec3{5, 6, 7}),
		b: mesh.NewBoxMesh(types.Vec3{10, 0, 0}, types.Vec3{12, 2, 2}),
	}
}

func (m *twoBoxMesh) Volumes() []mesh.ID  { return []mesh.ID{0, 1} }
func (m *twoBoxMesh) Surfaces() []mesh.ID { return []mesh.ID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11} }

func (m *twoBoxMesh) VolumeSurfaces(volume mesh.ID) []mesh.ID {
	if volume == 0 {
		return m.a.VolumeSurfaces(0)
	}
	out := make([]mesh.ID, 0, 6)
	for _, s := range m.b.VolumeSurfaces(0) {
		out = append(out, s+6)
	}
	return out
}

func (m *twoBoxMesh) SurfaceSenses(surface mesh.ID) (mesh.ID, mesh.ID) {
	if surface < 6 {
		return 0, mesh.None
	}
	return 1, mesh.None
}

func (m *twoBoxMesh) SurfaceFaces(surface mesh.ID) []mesh.ID {
	if surface < 6 {
		return m.a.SurfaceFaces(surface)
	}
	out := make([]mesh.ID, 0, 2)
	for _, f := range m.b.SurfaceFaces(surface - 6) {
		out = append(out, f+12)
	}
	return out
}

func (m *twoBoxMesh) SurfaceVertices(surface mesh.ID) []types.Vec3 {
	if surface < 6 {
		return m.a.SurfaceVertices(surface)
	}
	return m.b.SurfaceVertices(surface - 6)
}

func (m *twoBoxMesh) SurfaceConnectivity(surface mesh.ID) []int {
	if surface < 6 {
		return m.a.SurfaceConnectivity(surface)
	}
	return m.b.SurfaceConnectivity(surface - 6)
}

func (m *twoBoxMesh) TriangleVertices(tri mesh.ID) [3]types.Vec3 {
	if tri < 12 {
		return m.a.TriangleVertices(tri)
	}
	return m.b.TriangleVertices(tri - 12)
}

func (m *twoBoxMesh) VolumeElements(volume mesh.ID) []mesh.ID {
	if volume == 0 {
		return m.a.VolumeElements(0)
	}
	out := make([]mesh.ID, 0, 6)
	for _, e := range m.b.VolumeElements(0) {
		out = append(out, e+6)
	}
	return out
}

func (m *twoBoxMesh) ElementVertices(element mesh.ID) [4]types.Vec3 {
	if element < 6 {
		return m.a.ElementVertices(element)
	}
	return m.b.ElementVertices(element - 6)
}

func (m *twoBoxMesh) BoundingBox(volume mesh.ID) types.Box {
	if volume == 0 {
		return m.a.BoundingBox(0)
	}
	return m.b.BoundingBox(0)
}

func TestRegistryIDAssignment(t *testing.T) {
	mm := newTwoBoxMesh()
	reg := NewTreeRegistry()

	if reg.NextSurfaceTreeID() != 0 || reg.NextElementTreeID() != 0 {
		t.Fatal("expected both id spaces to start at zero")
	}

	surf0, elem0, err := reg.RegisterVolume(mm, 0)
	if err != nil {
		t.Fatalf("error registering volume 0: %v", err)
	}
	if surf0 != 0 || elem0 != 0 {
		t.Fatalf("expected first trees to get id 0; got %d/%d", surf0, elem0)
	}

	surf1, elem1, err := reg.RegisterVolume(mm, 1)
	if err != nil {
		t.Fatalf("error registering volume 1: %v", err)
	}
	if surf1 != 1 || elem1 != 1 {
		t.Fatalf("expected second trees to get id 1; got %d/%d", surf1, elem1)
	}

	if got := reg.NumRegisteredTrees(); got != 4 {
		t.Fatalf("expected 4 registered trees; got %d", got)
	}
	if reg.SurfaceTree(1) != surf1 || reg.ElementTree(1) != elem1 {
		t.Fatal("volume lookups disagree with issued handles")
	}
	if reg.SurfaceTree(7) != TreeNone {
		t.Fatal("expected TreeNone for an unregistered volume")
	}
}

func TestRegistryRegisterIdempotence(t *testing.T) {
	mm := newTwoBoxMesh()
	reg := NewTreeRegistry()

	surf0, elem0, err := reg.RegisterVolume(mm, 0)
	if err != nil {
		t.Fatalf("error registering volume 0: %v", err)
	}
	surf1, elem1, err := reg.RegisterVolume(mm, 0)
	if err != nil {
		t.Fatalf("error re-registering volume 0: %v", err)
	}

	if surf0 != surf1 || elem0 != elem1 {
		t.Fatalf("expected re-registration to return the same handles; got %d/%d vs %d/%d", surf0, elem0, surf1, elem1)
	}
	if got := reg.NumRegisteredTrees(); got != 2 {
		t.Fatalf("expected no extra trees after re-registration; got %d", got)
	}
}

func TestRegistryElementTreeOptional(t *testing.T) {
	mm := mesh.NewBoxShell(types.Vec3{0, 0, 0}, types.Vec3{1, 1, 1})
	reg := NewTreeRegistry()

	surf, elem, err := reg.RegisterVolume(mm, 0)
	if err != nil {
		t.Fatalf("error registering volume: %v", err)
	}
	if surf == TreeNone {
		t.Fatal("expected a surface tree handle")
	}
	if elem != TreeNone {
		t.Fatalf("expected no element tree for a shell mesh; got %d", elem)
	}
}

func TestRegistryGeometryData(t *testing.T) {
	mm := newTwoBoxMesh()
	reg := NewTreeRegistry()
	if _, _, err := reg.RegisterVolume(mm, 0); err != nil {
		t.Fatalf("error registering volume 0: %v", err)
	}

	ud := reg.GeometryData(mesh.BoxFacePosX)
	if ud.ForwardVolume != 0 || ud.ReverseVolume != mesh.None {
		t.Fatalf("unexpected senses %d/%d", ud.ForwardVolume, ud.ReverseVolume)
	}
	if ud.Tolerance != VolumeBump(mm.BoundingBox(0)) {
		t.Fatalf("unexpected tolerance %v", ud.Tolerance)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unregistered surface")
		}
	}()
	reg.GeometryData(42)
}

func TestRegistryGlobalTreeStaleness(t *testing.T) {
	mm := newTwoBoxMesh()
	reg := NewTreeRegistry()

	if _, _, err := reg.RegisterVolume(mm, 0); err != nil {
		t.Fatalf("error registering volume 0: %v", err)
	}

	global, err := reg.CreateGlobalSurfaceTree(mm)
	if err != nil {
		t.Fatalf("error building global tree: %v", err)
	}
	if global != 1 {
		t.Fatalf("expected global tree id 1; got %d", global)
	}

	// Rebuilding without intervening registrations reuses the tree.
	again, err := reg.CreateGlobalSurfaceTree(mm)
	if err != nil {
		t.Fatalf("error on repeated global tree build: %v", err)
	}
	if again != global {
		t.Fatalf("expected repeated build to reuse tree %d; got %d", global, again)
	}

	// A later registration invalidates the global tree.
	if _, _, err = reg.RegisterVolume(mm, 1); err != nil {
		t.Fatalf("error registering volume 1: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected stale global tree query to panic")
			}
		}()
		reg.MustSurfaceTree(global)
	}()

	// Rebuilding issues a fresh handle; ids are never reused.
	rebuilt, err := reg.CreateGlobalSurfaceTree(mm)
	if err != nil {
		t.Fatalf("error rebuilding global tree: %v", err)
	}
	if rebuilt == global {
		t.Fatal("expected the rebuilt global tree to get a new id")
	}
	reg.MustSurfaceTree(rebuilt)
}

func TestRegistryUnknownTreePanics(t *testing.T) {
	reg := NewTreeRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unissued tree handle")
		}
	}()
	reg.MustSurfaceTree(3)
}

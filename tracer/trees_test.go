package tracer

import (
	"testing"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

func TestBuildSurfaceTree(t *testing.T) {
	mm := mesh.NewBoxMesh(types.Vec3{-2, -3, -4}, types.Vec3{5, 6, 7})

	tree, userData, err := BuildSurfaceTree(mm, 0, 0)
	if err != nil {
		t.Fatalf("error building surface tree: %v", err)
	}

	if tree.NumPrimitives() != 12 {
		t.Fatalf("expected 12 partitioned triangles; got %d", tree.NumPrimitives())
	}
	if len(tree.Verts) != 36 || len(tree.Normals) != 12 {
		t.Fatalf("unexpected artifact lengths: %d verts, %d normals", len(tree.Verts), len(tree.Normals))
	}
	if len(userData) != 6 {
		t.Fatalf("expected user data for 6 surfaces; got %d", len(userData))
	}
	if tree.Bump != VolumeBump(mm.BoundingBox(0)) {
		t.Fatalf("unexpected tree bump %v", tree.Bump)
	}

	// Every primitive ref must agree with its surface's senses and appear
	// exactly once.
	seen := make(map[mesh.ID]int)
	for ord, prim := range tree.Prims {
		forward, reverse := mm.SurfaceSenses(prim.SurfaceID)
		if prim.ForwardVolume != forward || prim.ReverseVolume != reverse {
			t.Fatalf("ordinal %d: senses %d/%d disagree with surface %d", ord, prim.ForwardVolume, prim.ReverseVolume, prim.SurfaceID)
		}
		seen[prim.PrimitiveID]++

		// Cached normals match the winding of the vertex stream.
		v := tree.Verts[ord*3 : ord*3+3]
		if tree.Normals[ord].Sub(FacetNormal(v[0], v[1], v[2])).Len() > 1e-12 {
			t.Fatalf("ordinal %d: cached normal disagrees with vertex stream", ord)
		}
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("triangle %d partitioned %d times", id, count)
		}
	}
}

func TestBuildElementTree(t *testing.T) {
	mm := mesh.NewBoxMesh(types.Vec3{-2, -3, -4}, types.Vec3{5, 6, 7})

	tree, err := BuildElementTree(mm, 0, 0)
	if err != nil {
		t.Fatalf("error building element tree: %v", err)
	}
	if tree == nil {
		t.Fatal("expected an element tree for a tet mesh")
	}
	if tree.NumElements() != 6 {
		t.Fatalf("expected 6 partitioned tetrahedra; got %d", tree.NumElements())
	}
	if len(tree.Verts) != 24 {
		t.Fatalf("unexpected tet vertex stream length %d", len(tree.Verts))
	}
}

func TestBuildElementTreeWithoutElements(t *testing.T) {
	mm := mesh.NewBoxShell(types.Vec3{0, 0, 0}, types.Vec3{1, 1, 1})

	tree, err := BuildElementTree(mm, 0, 0)
	if err != nil {
		t.Fatalf("error building element tree: %v", err)
	}
	if tree != nil {
		t.Fatal("expected no element tree for a shell mesh")
	}
}

func TestPrimitiveRefSignToVolume(t *testing.T) {
	prim := PrimitiveRef{PrimitiveID: 3, SurfaceID: 1, ForwardVolume: 7, ReverseVolume: 9}

	if got := prim.SignToVolume(7); got != 1 {
		t.Fatalf("expected +1 for the forward volume; got %v", got)
	}
	if got := prim.SignToVolume(9); got != -1 {
		t.Fatalf("expected -1 for the reverse volume; got %v", got)
	}
	if got := prim.SignToVolume(mesh.None); got != 1 {
		t.Fatalf("expected raw normal (+1) without a target volume; got %v", got)
	}
}

package tracer

import (
	"github.com/pkg/errors"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// SurfaceTree is a BVH over all triangles bounding one volume (or, for the
// global tree, over every registered surface). The per-ordinal arrays are the
// primitive reference store and the retained double-precision artifacts: the
// vertex stream (three corners per ordinal) and cached unit facet normals.
type SurfaceTree struct {
	ID     TreeID
	Volume mesh.ID // None for the global tree

	Nodes   []BvhNode
	Prims   []PrimitiveRef
	Verts   []types.Vec3 // 3 entries per primitive ordinal
	Normals []types.Vec3 // 1 entry per primitive ordinal

	Box  types.Box
	Bump float64
}

// ElementTree is a BVH over the tetrahedra of one volume, used for point
// location. Verts carries four corners per primitive ordinal.
type ElementTree struct {
	ID     TreeID
	Volume mesh.ID

	Nodes []BvhNode
	Elems []ElementRef
	Verts []types.Vec3 // 4 entries per primitive ordinal

	Box types.Box
}

// NumPrimitives returns the number of triangles partitioned into the tree.
func (t *SurfaceTree) NumPrimitives() int { return len(t.Prims) }

// NumElements returns the number of tetrahedra partitioned into the tree.
func (t *ElementTree) NumElements() int { return len(t.Elems) }

// boundedTri adapts one mesh triangle for the BVH builder.
type boundedTri struct {
	ref    PrimitiveRef
	verts  [3]types.Vec3
	normal types.Vec3
	box    types.Box
}

func (t *boundedTri) BBox() types.Box    { return t.box }
func (t *boundedTri) Center() types.Vec3 { return t.box.Center() }

// boundedTet adapts one mesh tetrahedron for the BVH builder.
type boundedTet struct {
	ref   ElementRef
	verts [4]types.Vec3
	box   types.Box
}

func (t *boundedTet) BBox() types.Box    { return t.box }
func (t *boundedTet) Center() types.Vec3 { return t.box.Center() }

// Surface trees pack a handful of triangles per leaf; element trees resolve
// the cheaper point-in-tet test so leafs can be larger.
const (
	surfaceLeafItems = 4
	elementLeafItems = 8
)

// collectSurfaceTris gathers the builder work list for a set of surfaces and
// produces the per-surface user data records.
func collectSurfaceTris(mm mesh.Manager, surfaces []mesh.ID, bump float64) ([]BoundedVolume, []*GeometryUserData, error) {
	workList := make([]BoundedVolume, 0)
	userData := make([]*GeometryUserData, 0, len(surfaces))

	for _, surface := range surfaces {
		forward, reverse := mm.SurfaceSenses(surface)
		surfBox := types.NewBox()

		faces := mm.SurfaceFaces(surface)
		if len(faces) == 0 {
			return nil, nil, errors.Errorf("surface %d has no triangles", surface)
		}

		for _, face := range faces {
			v := mm.TriangleVertices(face)
			box := types.NewBox().ExtendPoint(v[0]).ExtendPoint(v[1]).ExtendPoint(v[2])
			surfBox = surfBox.ExtendBox(box)

			workList = append(workList, &boundedTri{
				ref: PrimitiveRef{
					PrimitiveID:   face,
					SurfaceID:     surface,
					ForwardVolume: forward,
					ReverseVolume: reverse,
				},
				verts:  v,
				normal: FacetNormal(v[0], v[1], v[2]),
				box:    box,
			})
		}

		userData = append(userData, &GeometryUserData{
			SurfaceID:     surface,
			ForwardVolume: forward,
			ReverseVolume: reverse,
			Box:           surfBox,
			Tolerance:     bump,
		})
	}

	return workList, userData, nil
}

// BuildSurfaceTree builds the surface BVH for one volume and the user-data
// records of its bounding surfaces.
func BuildSurfaceTree(mm mesh.Manager, volume mesh.ID, id TreeID) (*SurfaceTree, []*GeometryUserData, error) {
	box := mm.BoundingBox(volume)
	bump := VolumeBump(box)

	workList, userData, err := collectSurfaceTris(mm, mm.VolumeSurfaces(volume), bump)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "building surface tree for volume %d", volume)
	}

	tree := newSurfaceTree(id, volume, box, bump, workList)
	return tree, userData, nil
}

// BuildGlobalSurfaceTree builds one BVH over the union of all surfaces in the
// model.
func BuildGlobalSurfaceTree(mm mesh.Manager, id TreeID) (*SurfaceTree, []*GeometryUserData, error) {
	box := types.NewBox()
	for _, volume := range mm.Volumes() {
		box = box.ExtendBox(mm.BoundingBox(volume))
	}
	bump := VolumeBump(box)

	workList, userData, err := collectSurfaceTris(mm, mm.Surfaces(), bump)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building global surface tree")
	}

	tree := newSurfaceTree(id, mesh.None, box, bump, workList)
	return tree, userData, nil
}

func newSurfaceTree(id TreeID, volume mesh.ID, box types.Box, bump float64, workList []BoundedVolume) *SurfaceTree {
	tree := &SurfaceTree{
		ID:      id,
		Volume:  volume,
		Prims:   make([]PrimitiveRef, 0, len(workList)),
		Verts:   make([]types.Vec3, 0, len(workList)*3),
		Normals: make([]types.Vec3, 0, len(workList)),
		Box:     box,
		Bump:    bump,
	}

	tree.Nodes = BuildBVH(workList, surfaceLeafItems, func(leaf *BvhNode, itemList []BoundedVolume) {
		leaf.SetLeafPrimitives(len(tree.Prims), len(itemList))
		for _, item := range itemList {
			tri := item.(*boundedTri)
			tree.Prims = append(tree.Prims, tri.ref)
			tree.Verts = append(tree.Verts, tri.verts[0], tri.verts[1], tri.verts[2])
			tree.Normals = append(tree.Normals, tri.normal)
		}
	})

	return tree
}

// BuildElementTree builds the tetrahedron BVH of one volume. Returns nil when
// the volume carries no elements.
func BuildElementTree(mm mesh.Manager, volume mesh.ID, id TreeID) (*ElementTree, error) {
	elements := mm.VolumeElements(volume)
	if len(elements) == 0 {
		return nil, nil
	}

	workList := make([]BoundedVolume, 0, len(elements))
	for _, element := range elements {
		v := mm.ElementVertices(element)
		box := types.NewBox()
		for _, corner := range v {
			box = box.ExtendPoint(corner)
		}
		workList = append(workList, &boundedTet{
			ref:   ElementRef{ElementID: element},
			verts: v,
			box:   box,
		})
	}

	tree := &ElementTree{
		ID:     id,
		Volume: volume,
		Elems:  make([]ElementRef, 0, len(workList)),
		Verts:  make([]types.Vec3, 0, len(workList)*4),
		Box:    mm.BoundingBox(volume),
	}

	tree.Nodes = BuildBVH(workList, elementLeafItems, func(leaf *BvhNode, itemList []BoundedVolume) {
		leaf.SetLeafPrimitives(len(tree.Elems), len(itemList))
		for _, item := range itemList {
			tet := item.(*boundedTet)
			tree.Elems = append(tree.Elems, tet.ref)
			tree.Verts = append(tree.Verts, tet.verts[0], tet.verts[1], tet.verts[2], tet.verts[3])
		}
	})

	return tree, nil
}

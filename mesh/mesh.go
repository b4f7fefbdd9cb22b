package mesh

import "github.com/meshfire/meshfire/types"

// ID identifies a mesh entity (volume, surface, triangle or tetrahedron).
// Ids are scoped to one Manager.
type ID int32

// None is the invalid mesh id sentinel.
const None ID = -1

// Manager is the read-only mesh database the ray-tracing kernel consumes.
// Implementations adapt external mesh libraries; the kernel never mutates
// the mesh.
type Manager interface {
	// Volumes returns the ids of all closed volumes in the model.
	Volumes() []ID

	// Surfaces returns the ids of all surfaces in the model.
	Surfaces() []ID

	// VolumeSurfaces returns the surfaces bounding a volume.
	VolumeSurfaces(volume ID) []ID

	// SurfaceSenses returns the forward and reverse volume of a surface.
	// A triangle's facet normal points from the forward volume into the
	// reverse volume. Either id may be None on model boundaries.
	SurfaceSenses(surface ID) (forward, reverse ID)

	// SurfaceFaces returns the triangle ids of a surface.
	SurfaceFaces(surface ID) []ID

	// SurfaceVertices returns the vertex coordinates referenced by a
	// surface's connectivity.
	SurfaceVertices(surface ID) []types.Vec3

	// SurfaceConnectivity returns the surface triangles as flattened
	// 3-tuples of indices into SurfaceVertices.
	SurfaceConnectivity(surface ID) []int

	// TriangleVertices returns the three corners of a triangle.
	TriangleVertices(tri ID) [3]types.Vec3

	// VolumeElements returns the tetrahedra of a volume. May be empty when
	// the mesh carries only boundary triangulations.
	VolumeElements(volume ID) []ID

	// ElementVertices returns the four corners of a tetrahedron.
	ElementVertices(element ID) [4]types.Vec3

	// BoundingBox returns the axis-aligned bounds of a volume.
	BoundingBox(volume ID) types.Box
}

package mesh

import "github.com/meshfire/meshfire/types"

// BoxMesh is an in-memory Manager describing a single watertight axis-aligned
// box volume: 6 surfaces of 2 triangles each, facet normals pointing out of
// the volume, and an optional 6-tet decomposition for element queries. It
// backs the kernel tests and the CLI demo commands.
type BoxMesh struct {
	box          types.Box
	verts        [8]types.Vec3
	conn         [12][3]int
	tets         [6][4]int
	withElements bool
}

// Surface ordering of the box faces.
const (
	BoxFacePosX = ID(0)
	BoxFaceNegX = ID(1)
	BoxFacePosY = ID(2)
	BoxFaceNegY = ID(3)
	BoxFacePosZ = ID(4)
	BoxFaceNegZ = ID(5)
)

// NewBoxMesh creates a box volume with tetrahedral elements.
func NewBoxMesh(min, max types.Vec3) *BoxMesh {
	m := newBox(min, max)
	m.withElements = true
	return m
}

// NewBoxShell creates a box volume carrying only its boundary triangulation.
func NewBoxShell(min, max types.Vec3) *BoxMesh {
	return newBox(min, max)
}

func newBox(min, max types.Vec3) *BoxMesh {
	m := &BoxMesh{box: types.Box{Min: min, Max: max}}

	// Corner i has the low/high coordinate on axis a selected by bit a of i.
	for i := 0; i < 8; i++ {
		m.verts[i] = types.Vec3{
			pick(i&1 != 0, max[0], min[0]),
			pick(i&2 != 0, max[1], min[1]),
			pick(i&4 != 0, max[2], min[2]),
		}
	}

	// Two triangles per face, wound so facet normals point outward.
	m.conn = [12][3]int{
		{1, 3, 7}, {1, 7, 5}, // +x
		{0, 4, 6}, {0, 6, 2}, // -x
		{2, 6, 7}, {2, 7, 3}, // +y
		{0, 1, 5}, {0, 5, 4}, // -y
		{4, 5, 7}, {4, 7, 6}, // +z
		{0, 2, 3}, {0, 3, 1}, // -z
	}

	// Kuhn decomposition along the main diagonal corner 0 -> corner 7.
	m.tets = [6][4]int{
		{0, 1, 3, 7},
		{0, 1, 5, 7},
		{0, 2, 3, 7},
		{0, 2, 6, 7},
		{0, 4, 5, 7},
		{0, 4, 6, 7},
	}

	return m
}

func pick(hi bool, h, l float64) float64 {
	if hi {
		return h
	}
	return l
}

func (m *BoxMesh) Volumes() []ID  { return []ID{0} }
func (m *BoxMesh) Surfaces() []ID { return []ID{0, 1, 2, 3, 4, 5} }

func (m *BoxMesh) VolumeSurfaces(volume ID) []ID {
	return []ID{0, 1, 2, 3, 4, 5}
}

func (m *BoxMesh) SurfaceSenses(surface ID) (ID, ID) {
	return 0, None
}

func (m *BoxMesh) SurfaceFaces(surface ID) []ID {
	start := surface * 2
	return []ID{start, start + 1}
}

func (m *BoxMesh) SurfaceVertices(surface ID) []types.Vec3 {
	out := make([]types.Vec3, 0, 6)
	for _, tri := range m.SurfaceFaces(surface) {
		for _, idx := range m.conn[tri] {
			out = append(out, m.verts[idx])
		}
	}
	return out
}

func (m *BoxMesh) SurfaceConnectivity(surface ID) []int {
	// Vertices are emitted per triangle corner, so connectivity is trivial.
	return []int{0, 1, 2, 3, 4, 5}
}

func (m *BoxMesh) TriangleVertices(tri ID) [3]types.Vec3 {
	c := m.conn[tri]
	return [3]types.Vec3{m.verts[c[0]], m.verts[c[1]], m.verts[c[2]]}
}

func (m *BoxMesh) VolumeElements(volume ID) []ID {
	if !m.withElements {
		return nil
	}
	return []ID{0, 1, 2, 3, 4, 5}
}

func (m *BoxMesh) ElementVertices(element ID) [4]types.Vec3 {
	t := m.tets[element]
	return [4]types.Vec3{m.verts[t[0]], m.verts[t[1]], m.verts[t[2]], m.verts[t[3]]}
}

func (m *BoxMesh) BoundingBox(volume ID) types.Box {
	return m.box
}

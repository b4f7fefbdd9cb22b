package tracer

import "github.com/meshfire/meshfire/mesh"

// PrimitiveRef binds one acceleration-tree primitive ordinal back to the mesh:
// the primitive's id, its owning surface, and the two volumes adjacent to that
// surface. One contiguous array exists per surface tree, indexed by the tree's
// internal primitive ordering; it is written once during build and read-only
// during traversal.
type PrimitiveRef struct {
	PrimitiveID   mesh.ID
	SurfaceID     mesh.ID
	ForwardVolume mesh.ID
	ReverseVolume mesh.ID
}

// SignToVolume resolves the orientation sign of the facet normal with respect
// to a target volume: +1 when the normal points out of it, -1 when into it.
// Rays fired without a matching adjacent volume (global-tree queries) use the
// raw facet normal.
func (p *PrimitiveRef) SignToVolume(volume mesh.ID) float64 {
	if volume == p.ReverseVolume && volume != mesh.None {
		return -1
	}
	return 1
}

// ElementRef binds an element-tree primitive ordinal to its tetrahedron id.
type ElementRef struct {
	ElementID mesh.ID
}

package tracer

import (
	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// GeometryUserData is the per-surface sidecar attached to a surface's slot in
// its owning tree. It carries everything the intersection filter needs without
// a mesh lookup: the two adjacent volume ids, the surface bounds, and the
// numerical tolerance of the owning volume. Its lifetime matches the tree's.
type GeometryUserData struct {
	SurfaceID     mesh.ID
	ForwardVolume mesh.ID
	ReverseVolume mesh.ID
	Box           types.Box
	Tolerance     float64
}

// VolumeBump returns the origin-nudging distance for a volume: the numerical
// precision floor scaled by the volume's largest bounding-box extent.
func VolumeBump(box types.Box) float64 {
	bump := defaultNumericalPrecision * box.MaxExtent()
	if bump < defaultNumericalPrecision {
		bump = defaultNumericalPrecision
	}
	return bump
}

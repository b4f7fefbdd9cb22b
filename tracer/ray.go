package tracer

import (
	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// DblRay is one slot of a batched query. Origin and direction are double
// precision; Volume selects the target volume for orientation filtering.
// Exclude, when non-nil, points at a caller-owned list of primitive ids that
// the filter skips; accepted primitives are appended to it.
type DblRay struct {
	Origin    types.Vec3
	Direction types.Vec3
	Volume    mesh.ID
	Enabled   bool
	Exclude   *[]mesh.ID
}

// DblHit is the result slot paired with a DblRay. Distance is Infty and the
// ids are None sentinels when the ray found no accepted hit.
type DblHit struct {
	Distance    float64
	SurfaceID   mesh.ID
	PrimitiveID mesh.ID
	Piv         PivState
}

// NoHit resets the slot to the miss state.
func (h *DblHit) NoHit() {
	h.Distance = Infty
	h.SurfaceID = SurfaceNone
	h.PrimitiveID = ElementNone
	h.Piv = PivUnknown
}

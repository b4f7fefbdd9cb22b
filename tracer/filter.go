package tracer

import (
	"math"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// HitFilter is the per-query decision procedure invoked on every candidate
// intersection produced by traversal. It enforces the orientation rule, the
// exclusion rule, the numerical-precision rule and the glancing-hit rule.
// One filter is built per query; it is not safe for concurrent use.
type HitFilter struct {
	// Volume is the target volume orientation is resolved against.
	Volume mesh.ID

	// Orientation restricts accepted hits; AnyHit accepts both senses.
	Orientation HitOrientation

	// Exclude points at the caller-owned primitive blacklist, or nil.
	Exclude *[]mesh.ID

	// MinDistance rejects candidates closer than this as re-hits of the
	// facet the ray originated from. Ray fires set it to the volume bump;
	// containment probes set it to zero.
	MinDistance float64

	// BoundaryGlance records that a candidate was rejected for ambiguous
	// orientation within the bump distance of the origin. The
	// containment tie-break reads it to decide whether to retry.
	BoundaryGlance bool

	bump float64
}

// NewHitFilter builds the filter for one query against the given tree.
func NewHitFilter(tree *SurfaceTree, volume mesh.ID, orientation HitOrientation, exclude *[]mesh.ID, minDistance float64) *HitFilter {
	return &HitFilter{
		Volume:      volume,
		Orientation: orientation,
		Exclude:     exclude,
		MinDistance: minDistance,
		bump:        tree.Bump,
	}
}

// Accept decides whether a candidate hit survives the filter rules. dir is
// the ray direction, normal the candidate's facet normal and t the hit
// parameter reported by the exact intersection test.
func (f *HitFilter) Accept(prim *PrimitiveRef, dir, normal types.Vec3, t float64) bool {
	cos := dir.Dot(normal)

	// Glancing hits have no usable orientation.
	if math.Abs(cos) < EpsAngle {
		if math.Abs(t) < f.bump {
			f.BoundaryGlance = true
		}
		return false
	}

	// Re-hit of the source facet.
	if t < f.MinDistance {
		return false
	}

	if f.Exclude != nil {
		for _, id := range *f.Exclude {
			if id == prim.PrimitiveID {
				return false
			}
		}
	}

	if f.Orientation != AnyHit {
		exiting := cos*prim.SignToVolume(f.Volume) > 0
		if exiting != (f.Orientation == Exiting) {
			return false
		}
	}

	return true
}

// Exiting reports the orientation of an accepted candidate relative to the
// filter's target volume.
func (f *HitFilter) Exiting(prim *PrimitiveRef, dir, normal types.Vec3) bool {
	return dir.Dot(normal)*prim.SignToVolume(f.Volume) > 0
}

// Commit applies the accept side effect: the accepted primitive id is
// appended to the caller's exclusion list so a follow-up fire from the hit
// point skips it.
func (f *HitFilter) Commit(prim *PrimitiveRef) {
	if f.Exclude != nil {
		*f.Exclude = append(*f.Exclude, prim.PrimitiveID)
	}
}

package tracer

import (
	"math"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// DefaultProbeDir is the stable direction containment queries fire along when
// the caller supplies none.
var DefaultProbeDir = types.Vec3{1, 0, 0}

// TraceResult is the outcome of one surface-tree traversal.
type TraceResult struct {
	T       float64
	Ordinal int
	Found   bool
}

// FireSurfaceTree walks a surface BVH keeping the nearest candidate that
// survives the filter. The traversal window tightens to the current best hit;
// with findFirst set it returns on the first accepted candidate instead.
func FireSurfaceTree(st *SurfaceTree, origin, dir types.Vec3, distLimit float64, filter *HitFilter, findFirst bool) TraceResult {
	res := TraceResult{T: Infty, Ordinal: -1}
	if len(st.Nodes) == 0 {
		return res
	}

	invDir := ReciprocalDir(dir)
	tMax := distLimit

	var stack [BvhMaxDepth]int
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		node := &st.Nodes[stack[sp]]

		// Boxes are tested from slightly behind the origin so that facets
		// the origin sits on still reach the exact test.
		if !IntersectBox(origin, invDir, node.Box(), -st.Bump, tMax) {
			continue
		}

		if !node.IsLeaf() {
			stack[sp] = node.Left()
			sp++
			stack[sp] = node.Right()
			sp++
			continue
		}

		first := node.FirstPrimitive()
		for ord := first; ord < first+node.PrimitiveCount(); ord++ {
			v := st.Verts[ord*3 : ord*3+3]
			t, ok := IntersectTriangle(origin, dir, v[0], v[1], v[2])
			if !ok || t > tMax {
				continue
			}
			if !filter.Accept(&st.Prims[ord], dir, st.Normals[ord], t) {
				continue
			}

			res.T = t
			res.Ordinal = ord
			res.Found = true
			if findFirst {
				return res
			}
			tMax = t
		}
	}

	return res
}

// ContainmentQuery resolves point-in-volume by firing an unclipped probe ray
// and reading the orientation of the first accepted hit: exiting means the
// point is inside. When no candidate is accepted and a candidate within the
// bump distance was rejected as orientation-ambiguous, the probe direction is
// tilted deterministically and the query retried; points that stay ambiguous
// are reported on-boundary. An accepted hit decides the result even when an
// ambiguous candidate was also seen.
func ContainmentQuery(st *SurfaceTree, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) PointContainment {
	dir := DefaultProbeDir
	if direction != nil {
		dir = direction.Normalize()
	}
	perp := PerpendicularTo(dir)

	for attempt := 0; attempt < MaxContainmentAttempts; attempt++ {
		filter := NewHitFilter(st, st.Volume, AnyHit, exclude, 0)
		res := FireSurfaceTree(st, point, dir, Infty, filter, false)

		if res.Found {
			prim := &st.Prims[res.Ordinal]
			filter.Commit(prim)
			if filter.Exiting(prim, dir, st.Normals[res.Ordinal]) {
				return PointInside
			}
			return PointOutside
		}

		if !filter.BoundaryGlance {
			return PointOutside
		}

		dir = dir.Add(perp.Mul(0.05 * float64(attempt+1))).Normalize()
	}

	return PointOnBoundary
}

// ClosestQuery runs a branch-and-bound point query over the surface BVH and
// returns the distance to the nearest triangle along with its id.
func ClosestQuery(st *SurfaceTree, point types.Vec3) (float64, mesh.ID) {
	bestD2 := math.MaxFloat64
	best := SurfaceNone
	if len(st.Nodes) == 0 {
		return Infty, best
	}

	var stack [BvhMaxDepth]int
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		node := &st.Nodes[stack[sp]]
		if node.Box().DistanceSquared(point) >= bestD2 {
			continue
		}

		if !node.IsLeaf() {
			stack[sp] = node.Left()
			sp++
			stack[sp] = node.Right()
			sp++
			continue
		}

		first := node.FirstPrimitive()
		for ord := first; ord < first+node.PrimitiveCount(); ord++ {
			v := st.Verts[ord*3 : ord*3+3]
			cp := ClosestPointOnTriangle(point, v[0], v[1], v[2])
			diff := cp.Sub(point)
			d2 := diff.Dot(diff)
			if d2 < bestD2 {
				bestD2 = d2
				best = st.Prims[ord].PrimitiveID
			}
		}
	}

	if best == SurfaceNone {
		return Infty, best
	}
	return math.Sqrt(bestD2), best
}

// FindElementQuery locates the tetrahedron containing the point, or
// ElementNone.
func FindElementQuery(et *ElementTree, point types.Vec3) mesh.ID {
	if len(et.Nodes) == 0 {
		return ElementNone
	}

	var stack [BvhMaxDepth]int
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		node := &et.Nodes[stack[sp]]
		if !node.Box().Contains(point) {
			continue
		}

		if !node.IsLeaf() {
			stack[sp] = node.Left()
			sp++
			stack[sp] = node.Right()
			sp++
			continue
		}

		first := node.FirstPrimitive()
		for ord := first; ord < first+node.PrimitiveCount(); ord++ {
			v := et.Verts[ord*4 : ord*4+4]
			if PointInTet(point, [4]types.Vec3{v[0], v[1], v[2], v[3]}) {
				return et.Elems[ord].ElementID
			}
		}
	}

	return ElementNone
}

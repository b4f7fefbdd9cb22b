// Package hostrt is the host-resident ray-tracing backend: trees are native
// double-precision BVHs traversed on the CPU and the intersection filter runs
// as a direct callback. It reports the DEEPEE_RT library identity.
package hostrt

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/meshfire/meshfire/log"
	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/tracer"
	"github.com/meshfire/meshfire/types"
)

var _ tracer.RayTracer = (*Tracer)(nil)

// Tracer is the CPU backend.
type Tracer struct {
	logger log.Logger
	reg    *tracer.TreeRegistry
}

// New creates an uninitialized host tracer.
func New() *Tracer {
	return &Tracer{
		logger: log.New("hostrt"),
		reg:    tracer.NewTreeRegistry(),
	}
}

// Library implements tracer.RayTracer.
func (t *Tracer) Library() tracer.RTLibrary {
	return tracer.DeePeeRT
}

// Init implements tracer.RayTracer. The host backend owns no device
// resources.
func (t *Tracer) Init() error {
	t.logger.Debug("host tracer initialized")
	return nil
}

// Close implements tracer.RayTracer.
func (t *Tracer) Close() {
	t.reg = tracer.NewTreeRegistry()
}

// RegisterVolume implements tracer.RayTracer.
func (t *Tracer) RegisterVolume(mm mesh.Manager, volume mesh.ID) (tracer.TreeID, tracer.TreeID, error) {
	return t.reg.RegisterVolume(mm, volume)
}

// CreateGlobalSurfaceTree implements tracer.RayTracer.
func (t *Tracer) CreateGlobalSurfaceTree(mm mesh.Manager) (tracer.TreeID, error) {
	return t.reg.CreateGlobalSurfaceTree(mm)
}

// CreateGlobalElementTree builds per-volume element trees eagerly during
// registration; a model-wide element tree is not offered by this backend.
func (t *Tracer) CreateGlobalElementTree(mm mesh.Manager) (tracer.TreeID, error) {
	t.logger.Warning("global element trees not currently supported with the host ray tracer")
	return tracer.TreeNone, nil
}

// NumRegisteredTrees implements tracer.RayTracer.
func (t *Tracer) NumRegisteredTrees() int {
	return t.reg.NumRegisteredTrees()
}

// SurfaceTree implements tracer.RayTracer.
func (t *Tracer) SurfaceTree(volume mesh.ID) tracer.TreeID {
	return t.reg.SurfaceTree(volume)
}

// ElementTree implements tracer.RayTracer.
func (t *Tracer) ElementTree(volume mesh.ID) tracer.TreeID {
	return t.reg.ElementTree(volume)
}

// GeometryData implements tracer.RayTracer.
func (t *Tracer) GeometryData(surface mesh.ID) *tracer.GeometryUserData {
	return t.reg.GeometryData(surface)
}

// RayFire implements tracer.RayTracer.
func (t *Tracer) RayFire(tree tracer.TreeID, origin, direction types.Vec3, distLimit float64, orientation tracer.HitOrientation, exclude *[]mesh.ID) (float64, mesh.ID) {
	if distLimit < 0 {
		panic(fmt.Sprintf("hostrt: negative ray fire distance limit %g", distLimit))
	}
	st := t.reg.MustSurfaceTree(tree)

	filter := tracer.NewHitFilter(st, st.Volume, orientation, exclude, st.Bump)
	res := tracer.FireSurfaceTree(st, origin, direction, distLimit, filter, false)
	if !res.Found {
		return tracer.Infty, tracer.SurfaceNone
	}

	prim := &st.Prims[res.Ordinal]
	filter.Commit(prim)
	return res.T, prim.SurfaceID
}

// PointInVolume implements tracer.RayTracer.
func (t *Tracer) PointInVolume(tree tracer.TreeID, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) bool {
	return t.Containment(tree, point, direction, exclude) == tracer.PointInside
}

// Containment implements tracer.RayTracer.
func (t *Tracer) Containment(tree tracer.TreeID, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) tracer.PointContainment {
	st := t.reg.MustSurfaceTree(tree)
	return tracer.ContainmentQuery(st, point, direction, exclude)
}

// Closest implements tracer.RayTracer.
func (t *Tracer) Closest(tree tracer.TreeID, point types.Vec3) (float64, mesh.ID) {
	st := t.reg.MustSurfaceTree(tree)
	return tracer.ClosestQuery(st, point)
}

// Occluded implements tracer.RayTracer.
func (t *Tracer) Occluded(tree tracer.TreeID, origin, direction types.Vec3, distLimit float64) bool {
	if distLimit < 0 {
		panic(fmt.Sprintf("hostrt: negative occlusion distance limit %g", distLimit))
	}
	st := t.reg.MustSurfaceTree(tree)

	filter := tracer.NewHitFilter(st, st.Volume, tracer.AnyHit, nil, st.Bump)
	res := tracer.FireSurfaceTree(st, origin, direction, distLimit, filter, true)
	return res.Found
}

// FindElement implements tracer.RayTracer.
func (t *Tracer) FindElement(tree tracer.TreeID, point types.Vec3) mesh.ID {
	et := t.reg.MustElementTree(tree)
	return tracer.FindElementQuery(et, point)
}

// RayFireBatch implements tracer.RayTracer. The batched form is a loop over
// the scalar semantics; slots with the enabled flag cleared keep their miss
// state.
func (t *Tracer) RayFireBatch(tree tracer.TreeID, rays []tracer.DblRay, hits []tracer.DblHit, distLimit float64, orientation tracer.HitOrientation) error {
	if len(hits) < len(rays) {
		return errors.Errorf("hostrt: hit buffer holds %d slots for %d rays", len(hits), len(rays))
	}
	if distLimit < 0 {
		return errors.Errorf("hostrt: negative ray fire distance limit %g", distLimit)
	}
	st := t.reg.MustSurfaceTree(tree)

	for i := range rays {
		hits[i].NoHit()
		ray := &rays[i]
		if !ray.Enabled {
			continue
		}

		volume := ray.Volume
		if volume == mesh.None {
			volume = st.Volume
		}
		filter := tracer.NewHitFilter(st, volume, orientation, ray.Exclude, st.Bump)
		res := tracer.FireSurfaceTree(st, ray.Origin, ray.Direction, distLimit, filter, false)
		if !res.Found {
			continue
		}

		prim := &st.Prims[res.Ordinal]
		filter.Commit(prim)
		hits[i].Distance = res.T
		hits[i].SurfaceID = prim.SurfaceID
		hits[i].PrimitiveID = prim.PrimitiveID
		if filter.Exiting(prim, ray.Direction, st.Normals[res.Ordinal]) {
			hits[i].Piv = tracer.PivInside
		} else {
			hits[i].Piv = tracer.PivOutside
		}
	}
	return nil
}

// PointInVolumeBatch implements tracer.RayTracer.
func (t *Tracer) PointInVolumeBatch(tree tracer.TreeID, points []types.Vec3, result []bool) error {
	if len(result) < len(points) {
		return errors.Errorf("hostrt: result buffer holds %d slots for %d points", len(result), len(points))
	}
	st := t.reg.MustSurfaceTree(tree)
	for i, p := range points {
		result[i] = tracer.ContainmentQuery(st, p, nil, nil) == tracer.PointInside
	}
	return nil
}

// ClosestBatch implements tracer.RayTracer.
func (t *Tracer) ClosestBatch(tree tracer.TreeID, points []types.Vec3, distances []float64, primitives []mesh.ID) error {
	if len(distances) < len(points) || len(primitives) < len(points) {
		return errors.Errorf("hostrt: result buffers hold %d/%d slots for %d points", len(distances), len(primitives), len(points))
	}
	st := t.reg.MustSurfaceTree(tree)
	for i, p := range points {
		distances[i], primitives[i] = tracer.ClosestQuery(st, p)
	}
	return nil
}

// OccludedBatch implements tracer.RayTracer.
func (t *Tracer) OccludedBatch(tree tracer.TreeID, rays []tracer.DblRay, distLimit float64, result []bool) error {
	if len(result) < len(rays) {
		return errors.Errorf("hostrt: result buffer holds %d slots for %d rays", len(result), len(rays))
	}
	if distLimit < 0 {
		return errors.Errorf("hostrt: negative occlusion distance limit %g", distLimit)
	}
	st := t.reg.MustSurfaceTree(tree)
	for i := range rays {
		if !rays[i].Enabled {
			result[i] = false
			continue
		}
		filter := tracer.NewHitFilter(st, st.Volume, tracer.AnyHit, nil, st.Bump)
		res := tracer.FireSurfaceTree(st, rays[i].Origin, rays[i].Direction, distLimit, filter, true)
		result[i] = res.Found
	}
	return nil
}

// FindElementBatch implements tracer.RayTracer.
func (t *Tracer) FindElementBatch(tree tracer.TreeID, points []types.Vec3, result []mesh.ID) error {
	if len(result) < len(points) {
		return errors.Errorf("hostrt: result buffer holds %d slots for %d points", len(result), len(points))
	}
	et := t.reg.MustElementTree(tree)
	for i, p := range points {
		result[i] = tracer.FindElementQuery(et, p)
	}
	return nil
}

// PopulateRaysExternal implements tracer.RayTracer.
func (t *Tracer) PopulateRaysExternal(numRays int, cb tracer.RayPopulationCallback) error {
	return errors.Wrap(tracer.ErrUnsupported, "populate_rays_external")
}

// RayFirePrepared implements tracer.RayTracer.
func (t *Tracer) RayFirePrepared(tree tracer.TreeID, numRays int, distLimit float64, orientation tracer.HitOrientation) error {
	return errors.Wrap(tracer.ErrUnsupported, "ray_fire_prepared")
}

// TransferHitsToHost implements tracer.RayTracer.
func (t *Tracer) TransferHitsToHost(numRays int, hits []tracer.DblHit) error {
	return errors.Wrap(tracer.ErrUnsupported, "transfer_hits_to_host")
}

// DeviceRayHitBuffers implements tracer.RayTracer.
func (t *Tracer) DeviceRayHitBuffers() (tracer.DeviceHandle, tracer.DeviceHandle, error) {
	return 0, 0, errors.Wrap(tracer.ErrUnsupported, "get_device_rayhit_buffers")
}

// Package opencl is the device-resident ray-tracing backend. The hardware
// traversal runs over single-precision inflated bounding boxes while the
// intersection program re-tests every candidate in double precision, so no
// float distance ever crosses the API. It reports the GPRT library identity.
package opencl

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/hydroflame/gopencl/v1.2/cl"
	"github.com/pkg/errors"

	"github.com/meshfire/meshfire/log"
	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/tracer"
	"github.com/meshfire/meshfire/tracer/opencl/device"
	"github.com/meshfire/meshfire/types"
)

//go:embed CL/trace.cl
var programSource string

const fireKernelName = "rayFire"

var _ tracer.RayTracer = (*Tracer)(nil)

// Tracer is the GPU backend. It owns the device context, the per-tree device
// artifacts and one persistent ray/hit buffer pair shared by every batched
// query; concurrent batched calls require external serialization.
type Tracer struct {
	logger log.Logger
	reg    *tracer.TreeRegistry

	dev  *device.Device
	fire *device.Kernel

	trees map[tracer.TreeID]*deviceTree

	rayBuf      *device.Buffer
	hitBuf      *device.Buffer
	excludeBuf  *device.Buffer
	rayCapacity int

	stagedRays []deviceRay
	stagedHits []deviceHit

	deviceQuery string
}

// New creates an uninitialized device tracer selecting the first available
// GPU device (any device when none qualifies).
func New() *Tracer {
	return NewWithDevice("")
}

// NewWithDevice creates an uninitialized device tracer bound to the first
// device whose name contains the query string.
func NewWithDevice(query string) *Tracer {
	return &Tracer{
		logger:      log.New("opencl"),
		reg:         tracer.NewTreeRegistry(),
		trees:       make(map[tracer.TreeID]*deviceTree),
		deviceQuery: query,
	}
}

// Library implements tracer.RayTracer.
func (t *Tracer) Library() tracer.RTLibrary {
	return tracer.GPRT
}

// Init implements tracer.RayTracer: it selects a device, compiles the
// intersection program and creates the persistent buffers.
func (t *Tracer) Init() error {
	if t.dev != nil {
		return nil
	}

	devList, err := device.SelectDevices(device.GpuDevice, t.deviceQuery)
	if err != nil {
		return errors.Wrap(err, "scanning opencl platforms")
	}
	if len(devList) == 0 {
		devList, err = device.SelectDevices(device.AllDevices, t.deviceQuery)
		if err != nil {
			return errors.Wrap(err, "scanning opencl platforms")
		}
	}
	if len(devList) == 0 {
		return errors.New("opencl: no usable device found")
	}

	dev := devList[0]
	if err = dev.Init(programSource); err != nil {
		return errors.Wrapf(err, "initializing device %q", dev.Name)
	}

	t.fire, err = dev.Kernel(fireKernelName)
	if err != nil {
		dev.Close()
		return err
	}

	t.dev = dev
	t.rayBuf = dev.Buffer("rays")
	t.hitBuf = dev.Buffer("hits")
	t.excludeBuf = dev.Buffer("exclude")

	t.logger.Noticef("using device %q (%s)", dev.Name, dev.Type)
	return nil
}

// Close implements tracer.RayTracer. Resources are released in reverse order
// of acquisition.
func (t *Tracer) Close() {
	for _, dt := range t.trees {
		dt.Release()
	}
	t.trees = make(map[tracer.TreeID]*deviceTree)

	for _, buf := range []*device.Buffer{t.excludeBuf, t.hitBuf, t.rayBuf} {
		if buf != nil {
			buf.Release()
		}
	}
	t.rayCapacity = 0

	if t.fire != nil {
		t.fire.Release()
		t.fire = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
}

func (t *Tracer) mustBeInitialized() {
	if t.dev == nil {
		panic("opencl: tracer used before Init")
	}
}

// RegisterVolume implements tracer.RayTracer. The host-built tree is uploaded
// to the device as two artifacts per triangle: the inflated single-precision
// boxes driving the hardware traversal and the double-precision vertex stream
// consumed by the exact intersection test.
func (t *Tracer) RegisterVolume(mm mesh.Manager, volume mesh.ID) (tracer.TreeID, tracer.TreeID, error) {
	t.mustBeInitialized()

	surfID, elemID, err := t.reg.RegisterVolume(mm, volume)
	if err != nil {
		return surfID, elemID, err
	}

	if _, uploaded := t.trees[surfID]; !uploaded {
		dt, err := t.uploadTree(t.reg.MustSurfaceTree(surfID))
		if err != nil {
			return tracer.TreeNone, tracer.TreeNone, err
		}
		t.trees[surfID] = dt
	}
	return surfID, elemID, nil
}

// CreateGlobalSurfaceTree implements tracer.RayTracer.
func (t *Tracer) CreateGlobalSurfaceTree(mm mesh.Manager) (tracer.TreeID, error) {
	t.mustBeInitialized()

	id, err := t.reg.CreateGlobalSurfaceTree(mm)
	if err != nil {
		return id, err
	}
	if _, uploaded := t.trees[id]; !uploaded {
		dt, err := t.uploadTree(t.reg.MustSurfaceTree(id))
		if err != nil {
			return tracer.TreeNone, err
		}
		t.trees[id] = dt
	}
	return id, nil
}

// CreateGlobalElementTree implements tracer.RayTracer. Device-side element
// trees are not implemented by this backend.
func (t *Tracer) CreateGlobalElementTree(mm mesh.Manager) (tracer.TreeID, error) {
	t.logger.Warning("global element trees not currently supported with the opencl ray tracer")
	return tracer.TreeNone, nil
}

// NumRegisteredTrees implements tracer.RayTracer.
func (t *Tracer) NumRegisteredTrees() int { return t.reg.NumRegisteredTrees() }

// SurfaceTree implements tracer.RayTracer.
func (t *Tracer) SurfaceTree(volume mesh.ID) tracer.TreeID { return t.reg.SurfaceTree(volume) }

// ElementTree implements tracer.RayTracer.
func (t *Tracer) ElementTree(volume mesh.ID) tracer.TreeID { return t.reg.ElementTree(volume) }

// GeometryData implements tracer.RayTracer.
func (t *Tracer) GeometryData(surface mesh.ID) *tracer.GeometryUserData {
	return t.reg.GeometryData(surface)
}

func (t *Tracer) deviceTreeFor(tree tracer.TreeID) *deviceTree {
	dt, ok := t.trees[tree]
	if !ok {
		// Resolve through the registry first so stale/unissued handles get
		// the registry's diagnostics.
		t.reg.MustSurfaceTree(tree)
		panic(fmt.Sprintf("opencl: surface tree %d has no device artifacts", tree))
	}
	// Staleness of the global tree is tracked by the registry.
	t.reg.MustSurfaceTree(tree)
	return dt
}

// launchFire binds and runs the intersection program over numRays populated
// slots.
func (t *Tracer) launchFire(dt *deviceTree, numRays int, distLimit, minDistance float64, orientation tracer.HitOrientation, findFirst bool) error {
	ff := int32(0)
	if findFirst {
		ff = 1
	}

	err := t.fire.SetArgs(
		dt.nodes,
		dt.prims,
		dt.verts,
		dt.normals,
		t.rayBuf,
		t.hitBuf,
		t.excludeBuf,
		int32(numRays),
		int32(orientation),
		distLimit,
		minDistance,
		dt.host.Bump,
		ff,
	)
	if err != nil {
		return err
	}

	_, err = t.fire.Exec1D(0, numRays, 0)
	return err
}

// RayFire implements tracer.RayTracer as a one-slot batch.
func (t *Tracer) RayFire(tree tracer.TreeID, origin, direction types.Vec3, distLimit float64, orientation tracer.HitOrientation, exclude *[]mesh.ID) (float64, mesh.ID) {
	if distLimit < 0 {
		panic(fmt.Sprintf("opencl: negative ray fire distance limit %g", distLimit))
	}
	rays := []tracer.DblRay{{
		Origin:    origin,
		Direction: direction,
		Volume:    mesh.None,
		Enabled:   true,
		Exclude:   exclude,
	}}
	hits := make([]tracer.DblHit, 1)
	if err := t.RayFireBatch(tree, rays, hits, distLimit, orientation); err != nil {
		panic(fmt.Sprintf("opencl: ray fire failed: %v", err))
	}
	return hits[0].Distance, hits[0].SurfaceID
}

// RayFireBatch implements tracer.RayTracer: one kernel launch with one work
// item per ray slot.
func (t *Tracer) RayFireBatch(tree tracer.TreeID, rays []tracer.DblRay, hits []tracer.DblHit, distLimit float64, orientation tracer.HitOrientation) error {
	t.mustBeInitialized()
	if len(hits) < len(rays) {
		return errors.Errorf("opencl: hit buffer holds %d slots for %d rays", len(hits), len(rays))
	}
	if distLimit < 0 {
		return errors.Errorf("opencl: negative ray fire distance limit %g", distLimit)
	}
	if len(rays) == 0 {
		return nil
	}

	dt := t.deviceTreeFor(tree)
	if err := t.stageRays(dt.host, rays); err != nil {
		return err
	}
	if err := t.launchFire(dt, len(rays), distLimit, dt.host.Bump, orientation, false); err != nil {
		return err
	}
	if err := t.readHits(len(rays)); err != nil {
		return err
	}

	for i := range rays {
		hits[i] = convertHit(&t.stagedHits[i])
		if hits[i].SurfaceID != tracer.SurfaceNone && rays[i].Exclude != nil {
			*rays[i].Exclude = append(*rays[i].Exclude, hits[i].PrimitiveID)
		}
	}
	return nil
}

// PointInVolume implements tracer.RayTracer.
func (t *Tracer) PointInVolume(tree tracer.TreeID, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) bool {
	return t.Containment(tree, point, direction, exclude) == tracer.PointInside
}

// Containment implements tracer.RayTracer. The boundary tie-break retries
// with tilted probe directions, so containment runs on the host trees rather
// than paying one kernel launch per retry.
func (t *Tracer) Containment(tree tracer.TreeID, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) tracer.PointContainment {
	st := t.reg.MustSurfaceTree(tree)
	return tracer.ContainmentQuery(st, point, direction, exclude)
}

// Closest implements tracer.RayTracer. Point queries carry no ray to trace;
// they run on the host trees.
func (t *Tracer) Closest(tree tracer.TreeID, point types.Vec3) (float64, mesh.ID) {
	st := t.reg.MustSurfaceTree(tree)
	return tracer.ClosestQuery(st, point)
}

// Occluded implements tracer.RayTracer.
func (t *Tracer) Occluded(tree tracer.TreeID, origin, direction types.Vec3, distLimit float64) bool {
	result := make([]bool, 1)
	rays := []tracer.DblRay{{Origin: origin, Direction: direction, Volume: mesh.None, Enabled: true}}
	if err := t.OccludedBatch(tree, rays, distLimit, result); err != nil {
		panic(fmt.Sprintf("opencl: occlusion query failed: %v", err))
	}
	return result[0]
}

// FindElement implements tracer.RayTracer. Element trees are host-resident in
// this backend.
func (t *Tracer) FindElement(tree tracer.TreeID, point types.Vec3) mesh.ID {
	et := t.reg.MustElementTree(tree)
	return tracer.FindElementQuery(et, point)
}

// PointInVolumeBatch implements tracer.RayTracer: one ANY-orientation launch
// whose hit slots carry the containment state. Slots without a device hit are
// resolved on the host so the boundary tie-break still applies.
func (t *Tracer) PointInVolumeBatch(tree tracer.TreeID, points []types.Vec3, result []bool) error {
	t.mustBeInitialized()
	if len(result) < len(points) {
		return errors.Errorf("opencl: result buffer holds %d slots for %d points", len(result), len(points))
	}
	if len(points) == 0 {
		return nil
	}

	dt := t.deviceTreeFor(tree)
	rays := make([]tracer.DblRay, len(points))
	for i, p := range points {
		rays[i] = tracer.DblRay{Origin: p, Direction: tracer.DefaultProbeDir, Volume: mesh.None, Enabled: true}
	}
	if err := t.stageRays(dt.host, rays); err != nil {
		return err
	}
	if err := t.launchFire(dt, len(rays), tracer.Infty, 0, tracer.AnyHit, false); err != nil {
		return err
	}
	if err := t.readHits(len(rays)); err != nil {
		return err
	}

	for i := range points {
		dh := &t.stagedHits[i]
		if dh.SurfaceID != int32(mesh.None) {
			result[i] = tracer.PivState(dh.Piv) == tracer.PivInside
			continue
		}
		result[i] = tracer.ContainmentQuery(dt.host, points[i], nil, nil) == tracer.PointInside
	}
	return nil
}

// ClosestBatch implements tracer.RayTracer. Point queries are host-resident
// in this backend.
func (t *Tracer) ClosestBatch(tree tracer.TreeID, points []types.Vec3, distances []float64, primitives []mesh.ID) error {
	if len(distances) < len(points) || len(primitives) < len(points) {
		return errors.Errorf("opencl: result buffers hold %d/%d slots for %d points", len(distances), len(primitives), len(points))
	}
	st := t.reg.MustSurfaceTree(tree)
	for i, p := range points {
		distances[i], primitives[i] = tracer.ClosestQuery(st, p)
	}
	return nil
}

// OccludedBatch implements tracer.RayTracer.
func (t *Tracer) OccludedBatch(tree tracer.TreeID, rays []tracer.DblRay, distLimit float64, result []bool) error {
	t.mustBeInitialized()
	if len(result) < len(rays) {
		return errors.Errorf("opencl: result buffer holds %d slots for %d rays", len(result), len(rays))
	}
	if distLimit < 0 {
		return errors.Errorf("opencl: negative occlusion distance limit %g", distLimit)
	}
	if len(rays) == 0 {
		return nil
	}

	dt := t.deviceTreeFor(tree)
	if err := t.stageRays(dt.host, rays); err != nil {
		return err
	}
	if err := t.launchFire(dt, len(rays), distLimit, dt.host.Bump, tracer.AnyHit, true); err != nil {
		return err
	}
	if err := t.readHits(len(rays)); err != nil {
		return err
	}

	for i := range rays {
		result[i] = t.stagedHits[i].SurfaceID != int32(mesh.None)
	}
	return nil
}

// FindElementBatch implements tracer.RayTracer.
func (t *Tracer) FindElementBatch(tree tracer.TreeID, points []types.Vec3, result []mesh.ID) error {
	if len(result) < len(points) {
		return errors.Errorf("opencl: result buffer holds %d slots for %d points", len(result), len(points))
	}
	et := t.reg.MustElementTree(tree)
	for i, p := range points {
		result[i] = tracer.FindElementQuery(et, p)
	}
	return nil
}

// PopulateRaysExternal implements tracer.RayTracer: the caller's compute
// kernel writes ray slots directly through the returned handles; the core
// never reads them from the host side.
func (t *Tracer) PopulateRaysExternal(numRays int, cb tracer.RayPopulationCallback) error {
	t.mustBeInitialized()
	if numRays <= 0 {
		return errors.Errorf("opencl: invalid ray count %d", numRays)
	}
	if cb == nil {
		return errors.New("opencl: nil ray population callback")
	}
	if err := t.checkBufferCapacity(numRays); err != nil {
		return err
	}
	return cb(numRays,
		tracer.DeviceHandle(uintptr(unsafe.Pointer(t.rayBuf.Handle()))),
		tracer.DeviceHandle(uintptr(unsafe.Pointer(t.hitBuf.Handle()))))
}

// RayFirePrepared implements tracer.RayTracer: it traces numRays slots the
// caller already populated on the device.
func (t *Tracer) RayFirePrepared(tree tracer.TreeID, numRays int, distLimit float64, orientation tracer.HitOrientation) error {
	t.mustBeInitialized()
	if numRays <= 0 || numRays > t.rayCapacity {
		return errors.Errorf("opencl: %d prepared rays exceed device buffer capacity %d", numRays, t.rayCapacity)
	}
	if distLimit < 0 {
		return errors.Errorf("opencl: negative ray fire distance limit %g", distLimit)
	}

	dt := t.deviceTreeFor(tree)

	// Prepared rays carry no host-side exclusion lists; bind the persistent
	// stream with a single dead slot when it was never written.
	if t.excludeBuf.Size() == 0 {
		if err := t.excludeBuf.AllocateAndWriteData([]int32{int32(mesh.None)}, cl.MEM_READ_ONLY); err != nil {
			return errors.Wrap(err, "binding empty exclusion stream")
		}
	}

	return t.launchFire(dt, numRays, distLimit, dt.host.Bump, orientation, false)
}

// TransferHitsToHost implements tracer.RayTracer.
func (t *Tracer) TransferHitsToHost(numRays int, hits []tracer.DblHit) error {
	t.mustBeInitialized()
	if len(hits) < numRays {
		return errors.Errorf("opencl: hit buffer holds %d slots for %d rays", len(hits), numRays)
	}
	if err := t.readHits(numRays); err != nil {
		return err
	}
	for i := 0; i < numRays; i++ {
		hits[i] = convertHit(&t.stagedHits[i])
	}
	return nil
}

// DeviceRayHitBuffers implements tracer.RayTracer.
func (t *Tracer) DeviceRayHitBuffers() (tracer.DeviceHandle, tracer.DeviceHandle, error) {
	t.mustBeInitialized()
	if t.rayCapacity == 0 {
		return 0, 0, errors.New("opencl: device ray/hit buffers not yet allocated")
	}
	return tracer.DeviceHandle(uintptr(unsafe.Pointer(t.rayBuf.Handle()))),
		tracer.DeviceHandle(uintptr(unsafe.Pointer(t.hitBuf.Handle()))),
		nil
}

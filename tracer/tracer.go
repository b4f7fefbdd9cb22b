package tracer

import (
	"github.com/pkg/errors"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/types"
)

// ErrUnsupported is returned when an operation is not available in the active
// backend (e.g. the device buffer surface on a host tracer).
var ErrUnsupported = errors.New("feature not supported by this ray tracer backend")

// DeviceHandle is an opaque reference to a backend-owned device resource.
// Callers pass it to their own compute kernels; the concrete meaning is
// backend-specific and never interpreted by the core.
type DeviceHandle uintptr

// RayPopulationCallback receives the backend's device ray and hit buffers so
// the caller can write ray slots directly on the device, avoiding a host
// round-trip. The buffers hold at least the requested number of slots in the
// canonical DblRay/DblHit device layout.
type RayPopulationCallback func(numRays int, rayBuffer, hitBuffer DeviceHandle) error

// RayTracer is the backend contract: tree registration plus the geometric
// queries, scalar and batched. Exactly one backend sits behind an instance
// for its whole lifetime.
//
// Registration calls mutate the tree registry and must not run concurrently
// with each other or with queries. Queries against built trees are read-only
// and may run concurrently on host backends; device backends share one
// ray/hit buffer and require external serialization of batched calls.
type RayTracer interface {
	// Library reports the backend identity.
	Library() RTLibrary

	// Init acquires backend resources (device context, programs). Must be
	// called once before any query.
	Init() error

	// Close releases everything the backend owns. The tracer is unusable
	// afterwards.
	Close()

	// RegisterVolume builds the surface tree and optional element tree for
	// a volume and returns their handles.
	RegisterVolume(mm mesh.Manager, volume mesh.ID) (surfaceTree, elementTree TreeID, err error)

	// CreateGlobalSurfaceTree builds one tree over every surface the mesh
	// manager lists, whether or not its volume is registered.
	CreateGlobalSurfaceTree(mm mesh.Manager) (TreeID, error)

	// CreateGlobalElementTree builds one tree over all volume elements.
	// Backends without support log a warning and return TreeNone.
	CreateGlobalElementTree(mm mesh.Manager) (TreeID, error)

	// Registry accessors.
	NumRegisteredTrees() int
	SurfaceTree(volume mesh.ID) TreeID
	ElementTree(volume mesh.ID) TreeID
	GeometryData(surface mesh.ID) *GeometryUserData

	// RayFire returns the nearest filter-accepting hit within
	// [bump, distLimit] as (distance, surface id), or (Infty, SurfaceNone).
	// The accepted primitive is appended to exclude when non-nil.
	RayFire(tree TreeID, origin, direction types.Vec3, distLimit float64, orientation HitOrientation, exclude *[]mesh.ID) (float64, mesh.ID)

	// PointInVolume decides containment of a point by ray parity. A nil
	// direction selects the backend's stable default probe direction.
	PointInVolume(tree TreeID, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) bool

	// Containment is PointInVolume surfacing the on-boundary state instead
	// of collapsing it to outside.
	Containment(tree TreeID, point types.Vec3, direction *types.Vec3, exclude *[]mesh.ID) PointContainment

	// Closest returns the distance to the nearest point on any surface of
	// the tree along with the owning triangle.
	Closest(tree TreeID, point types.Vec3) (float64, mesh.ID)

	// Occluded reports whether any accepted hit lies within distLimit; it
	// returns on the first hit without searching for the nearest.
	Occluded(tree TreeID, origin, direction types.Vec3, distLimit float64) bool

	// FindElement returns the tetrahedron of the element tree containing
	// the point, or ElementNone.
	FindElement(tree TreeID, point types.Vec3) mesh.ID

	// Batched forms; semantics match the scalar forms elementwise. Result
	// slices must be at least as long as the input slices.
	RayFireBatch(tree TreeID, rays []DblRay, hits []DblHit, distLimit float64, orientation HitOrientation) error
	PointInVolumeBatch(tree TreeID, points []types.Vec3, result []bool) error
	ClosestBatch(tree TreeID, points []types.Vec3, distances []float64, primitives []mesh.ID) error
	OccludedBatch(tree TreeID, rays []DblRay, distLimit float64, result []bool) error
	FindElementBatch(tree TreeID, points []types.Vec3, result []mesh.ID) error

	// Device buffer surface; ErrUnsupported on host backends.
	//
	// PopulateRaysExternal sizes the device ray/hit buffers for numRays
	// slots and hands their handles to the callback, which writes rays on
	// the device. RayFirePrepared then traces the populated buffer and
	// TransferHitsToHost copies the results back.
	PopulateRaysExternal(numRays int, cb RayPopulationCallback) error
	RayFirePrepared(tree TreeID, numRays int, distLimit float64, orientation HitOrientation) error
	TransferHitsToHost(numRays int, hits []DblHit) error
	DeviceRayHitBuffers() (rays, hits DeviceHandle, err error)
}

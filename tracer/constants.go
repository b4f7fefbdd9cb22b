package tracer

import (
	"math"

	"github.com/meshfire/meshfire/mesh"
)

// TreeID is an opaque handle to an acceleration tree issued by the registry.
// Surface trees and element trees are numbered in two disjoint spaces, each
// dense and monotonically assigned starting at zero.
type TreeID int32

// TreeNone marks an absent tree handle.
const TreeNone TreeID = -1

// Sentinels for queries that produce no entity.
const (
	SurfaceNone = mesh.None
	ElementNone = mesh.None
)

// Infty is the distance reported when a ray exits the model without a hit.
const Infty = math.MaxFloat64

// RTLibrary identifies the ray-tracing backend behind a tracer instance.
type RTLibrary uint8

const (
	Embree RTLibrary = iota
	GPRT
	DeePeeRT
)

func (l RTLibrary) String() string {
	switch l {
	case Embree:
		return "EMBREE"
	case GPRT:
		return "GPRT"
	case DeePeeRT:
		return "DEEPEE_RT"
	}
	panic("tracer: unsupported ray tracing library")
}

// HitOrientation filters candidate hits by the facet normal's orientation
// relative to the ray's target volume.
type HitOrientation int32

const (
	AnyHit HitOrientation = iota
	Exiting
	Entering
)

func (o HitOrientation) String() string {
	switch o {
	case AnyHit:
		return "ANY"
	case Exiting:
		return "EXITING"
	case Entering:
		return "ENTERING"
	}
	panic("tracer: unsupported hit orientation")
}

// PointContainment is the three-state result of a containment query. The
// boolean forms collapse PointOnBoundary to outside.
type PointContainment int32

const (
	PointOutside PointContainment = iota
	PointInside
	PointOnBoundary
)

// PivState is the point-in-volume flag carried in hit slots. The numeric
// values are shared with the device-side hit layout.
type PivState int32

const (
	PivOutside PivState = 0
	PivInside  PivState = 1
	PivUnknown PivState = -1
)

// Sense is the orientation of a surface with respect to an adjacent volume:
// forward when the facet normal points out of that volume.
type Sense int32

const (
	SenseUnset   Sense = -1
	SenseForward Sense = 0
	SenseReverse Sense = 1
)

const (
	// Hits closer to perpendicular than this cosine are rejected as
	// orientation-ambiguous.
	EpsAngle = 1e-6

	// Floor for the per-volume bump distance.
	defaultNumericalPrecision = 1e-3

	// MaxContainmentAttempts bounds the tilted-direction retries before a
	// containment probe declares the point on-boundary.
	MaxContainmentAttempts = 4

	// Traversal stack depth; trees deeper than this cannot be built.
	BvhMaxDepth = 64
)

package opencl

import (
	"github.com/hydroflame/gopencl/v1.2/cl"
	"github.com/pkg/errors"

	"github.com/meshfire/meshfire/mesh"
	"github.com/meshfire/meshfire/tracer"
)

// Canonical strides of the device ray and hit slots, in bytes. The callback
// of PopulateRaysExternal writes slots in exactly this layout.
const (
	DeviceRayStride = 80
	DeviceHitStride = 24
)

// deviceRay mirrors the dbl_ray struct of the intersection program. Exclusion
// lists are packed into one shared device buffer and referenced by offset and
// count.
type deviceRay struct {
	Ox, Oy, Oz    float64
	Dx, Dy, Dz    float64
	TMax          float64
	VolumeID      int32
	Enabled       uint32
	ExcludeOffset int32
	ExcludeCount  int32
	_             [2]int32
}

// deviceHit mirrors the dbl_hit struct of the intersection program.
type deviceHit struct {
	Distance    float64
	SurfaceID   int32
	PrimitiveID int32
	Piv         int32
	_           int32
}

// checkBufferCapacity grows the persistent device ray/hit buffers to hold at
// least numRays slots. The buffers grow monotonically and are never shrunk.
func (t *Tracer) checkBufferCapacity(numRays int) error {
	if numRays <= t.rayCapacity {
		return nil
	}

	capacity := t.rayCapacity * 2
	if capacity < numRays {
		capacity = numRays
	}

	if err := t.rayBuf.Allocate(capacity*DeviceRayStride, cl.MEM_READ_WRITE); err != nil {
		return errors.Wrap(err, "growing device ray buffer")
	}
	if err := t.hitBuf.Allocate(capacity*DeviceHitStride, cl.MEM_READ_WRITE); err != nil {
		return errors.Wrap(err, "growing device hit buffer")
	}

	t.logger.Debugf("device ray/hit buffers grown from %d to %d slots", t.rayCapacity, capacity)
	t.rayCapacity = capacity
	return nil
}

// stageRays packs the host rays and their exclusion lists into the device
// layout and writes both streams to the device.
func (t *Tracer) stageRays(st *tracer.SurfaceTree, rays []tracer.DblRay) error {
	if err := t.checkBufferCapacity(len(rays)); err != nil {
		return err
	}

	if cap(t.stagedRays) < len(rays) {
		t.stagedRays = make([]deviceRay, len(rays))
	}
	t.stagedRays = t.stagedRays[:len(rays)]

	exclude := make([]int32, 0)
	for i := range rays {
		ray := &rays[i]

		volume := ray.Volume
		if volume == mesh.None {
			volume = st.Volume
		}

		offset := int32(len(exclude))
		count := int32(0)
		if ray.Exclude != nil {
			for _, id := range *ray.Exclude {
				exclude = append(exclude, int32(id))
			}
			count = int32(len(*ray.Exclude))
		}

		enabled := uint32(0)
		if ray.Enabled {
			enabled = 1
		}

		t.stagedRays[i] = deviceRay{
			Ox: ray.Origin[0], Oy: ray.Origin[1], Oz: ray.Origin[2],
			Dx: ray.Direction[0], Dy: ray.Direction[1], Dz: ray.Direction[2],
			TMax:          tracer.Infty,
			VolumeID:      int32(volume),
			Enabled:       enabled,
			ExcludeOffset: offset,
			ExcludeCount:  count,
		}
	}

	if err := t.rayBuf.WriteData(t.stagedRays, 0); err != nil {
		return errors.Wrap(err, "staging rays to device")
	}

	// The kernel always binds the exclusion stream; keep one slot alive
	// when every list is empty.
	if len(exclude) == 0 {
		exclude = append(exclude, int32(mesh.None))
	}
	if err := t.excludeBuf.AllocateAndWriteData(exclude, cl.MEM_READ_ONLY); err != nil {
		return errors.Wrap(err, "staging exclusion lists to device")
	}

	return nil
}

// readHits copies numRays hit slots back from the device into the staging
// area.
func (t *Tracer) readHits(numRays int) error {
	if cap(t.stagedHits) < numRays {
		t.stagedHits = make([]deviceHit, numRays)
	}
	t.stagedHits = t.stagedHits[:numRays]

	if err := t.hitBuf.ReadData(0, 0, numRays*DeviceHitStride, t.stagedHits); err != nil {
		return errors.Wrap(err, "transferring hits to host")
	}
	return nil
}

// convertHit translates one device hit slot into the host form.
func convertHit(dh *deviceHit) tracer.DblHit {
	out := tracer.DblHit{}
	out.NoHit()
	if dh.SurfaceID == int32(mesh.None) {
		return out
	}
	out.Distance = dh.Distance
	out.SurfaceID = mesh.ID(dh.SurfaceID)
	out.PrimitiveID = mesh.ID(dh.PrimitiveID)
	out.Piv = tracer.PivState(dh.Piv)
	return out
}

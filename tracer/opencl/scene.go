package opencl

import (
	"fmt"

	"github.com/hydroflame/gopencl/v1.2/cl"
	"github.com/pkg/errors"
	"golang.org/x/image/math/f32"

	"github.com/meshfire/meshfire/tracer"
	"github.com/meshfire/meshfire/tracer/opencl/device"
)

// deviceNode is the single-precision node stream uploaded to the device. The
// layout mirrors the host BvhNode with the W lanes carrying the tree links;
// the float boxes are inflated by the owning volume's bump so the exact
// double-precision re-test in the intersection program never misses a
// candidate the float slab test culled.
type deviceNode struct {
	Min f32.Vec4
	Max f32.Vec4
}

// devicePrimRef mirrors the prim_ref struct of the intersection program.
type devicePrimRef struct {
	PrimitiveID   int32
	SurfaceID     int32
	ForwardVolume int32
	ReverseVolume int32
}

// deviceTree bundles the device-resident artifacts of one surface tree: the
// inflated SP node stream, the primitive reference store, and the retained
// double-precision vertex and normal streams.
type deviceTree struct {
	host *tracer.SurfaceTree

	nodes   *device.Buffer
	prims   *device.Buffer
	verts   *device.Buffer
	normals *device.Buffer
}

func flattenNodes(st *tracer.SurfaceTree) []deviceNode {
	bump := float32(st.Bump)
	out := make([]deviceNode, len(st.Nodes))
	for i := range st.Nodes {
		n := &st.Nodes[i]
		out[i] = deviceNode{
			Min: f32.Vec4{
				float32(n.Min[0]) - bump,
				float32(n.Min[1]) - bump,
				float32(n.Min[2]) - bump,
				float32(n.Min[3]),
			},
			Max: f32.Vec4{
				float32(n.Max[0]) + bump,
				float32(n.Max[1]) + bump,
				float32(n.Max[2]) + bump,
				float32(n.Max[3]),
			},
		}
	}
	return out
}

func flattenPrims(st *tracer.SurfaceTree) []devicePrimRef {
	out := make([]devicePrimRef, len(st.Prims))
	for i, p := range st.Prims {
		out[i] = devicePrimRef{
			PrimitiveID:   int32(p.PrimitiveID),
			SurfaceID:     int32(p.SurfaceID),
			ForwardVolume: int32(p.ForwardVolume),
			ReverseVolume: int32(p.ReverseVolume),
		}
	}
	return out
}

// uploadTree copies one built surface tree to the device.
func (t *Tracer) uploadTree(st *tracer.SurfaceTree) (*deviceTree, error) {
	dt := &deviceTree{
		host:    st,
		nodes:   t.dev.Buffer(fmt.Sprintf("tree%02dNodes", st.ID)),
		prims:   t.dev.Buffer(fmt.Sprintf("tree%02dPrims", st.ID)),
		verts:   t.dev.Buffer(fmt.Sprintf("tree%02dVerts", st.ID)),
		normals: t.dev.Buffer(fmt.Sprintf("tree%02dNormals", st.ID)),
	}

	if err := dt.nodes.AllocateAndWriteData(flattenNodes(st), cl.MEM_READ_ONLY); err != nil {
		dt.Release()
		return nil, errors.Wrapf(err, "uploading nodes of tree %d", st.ID)
	}
	if err := dt.prims.AllocateAndWriteData(flattenPrims(st), cl.MEM_READ_ONLY); err != nil {
		dt.Release()
		return nil, errors.Wrapf(err, "uploading primitive refs of tree %d", st.ID)
	}
	if err := dt.verts.AllocateAndWriteData(st.Verts, cl.MEM_READ_ONLY); err != nil {
		dt.Release()
		return nil, errors.Wrapf(err, "uploading vertex stream of tree %d", st.ID)
	}
	if err := dt.normals.AllocateAndWriteData(st.Normals, cl.MEM_READ_ONLY); err != nil {
		dt.Release()
		return nil, errors.Wrapf(err, "uploading normal stream of tree %d", st.ID)
	}

	return dt, nil
}

// Release frees the device-side artifacts.
func (dt *deviceTree) Release() {
	if dt.nodes != nil {
		dt.nodes.Release()
	}
	if dt.prims != nil {
		dt.prims.Release()
	}
	if dt.verts != nil {
		dt.verts.Release()
	}
	if dt.normals != nil {
		dt.normals.Release()
	}
}

package tracer

import "github.com/meshfire/meshfire/types"

// Bvh node definition. The W lanes of the two extents carry the tree links:
// for inner nodes they hold the left/right child indices biased by one (so
// they stay positive); for leafs Min.W holds the negated index of the first
// primitive ordinal and Max.W the negated primitive count.
type BvhNode struct {
	// Bounding box min extent plus left-child / first-primitive link.
	Min types.Vec4

	// Bounding box max extent plus right-child / primitive-count link.
	Max types.Vec4
}

// IsLeaf reports whether the node terminates traversal.
func (n *BvhNode) IsLeaf() bool {
	return n.Max[3] < 0
}

// SetChildNodes links an inner node to its children.
func (n *BvhNode) SetChildNodes(left, right uint32) {
	n.Min[3] = float64(left + 1)
	n.Max[3] = float64(right + 1)
}

// Left returns the left child index of an inner node.
func (n *BvhNode) Left() int {
	return int(n.Min[3]) - 1
}

// Right returns the right child index of an inner node.
func (n *BvhNode) Right() int {
	return int(n.Max[3]) - 1
}

// SetLeafPrimitives marks the node as a leaf spanning count primitive
// ordinals starting at first.
func (n *BvhNode) SetLeafPrimitives(first, count int) {
	n.Min[3] = -float64(first)
	n.Max[3] = -float64(count)
}

// FirstPrimitive returns the first primitive ordinal of a leaf.
func (n *BvhNode) FirstPrimitive() int {
	return int(-n.Min[3])
}

// PrimitiveCount returns the number of primitive ordinals in a leaf.
func (n *BvhNode) PrimitiveCount() int {
	return int(-n.Max[3])
}

// Box returns the node bounds.
func (n *BvhNode) Box() types.Box {
	return types.Box{Min: n.Min.Vec3(), Max: n.Max.Vec3()}
}

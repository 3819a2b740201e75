package bvh

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/gekko3d/spherert/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL BVHNode
// struct BVHNode {
//    aabb_min : vec4<f32>; (16)
//    aabb_max : vec4<f32>; (16)
//    left : i32; (4)
//    right : i32; (4)
//    leaf_first : i32; (4)
//    leaf_count : i32; (4)
//    padding : i32[4]; (16)
// }; -> 64 bytes

const NodeSize = 64

type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) IsLeaf() bool { return n.Left < 0 && n.Right < 0 }

func (n *Node) ToBytes() []byte {
	buf := make([]byte, NodeSize)

	// Min (vec4)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))

	// Max (vec4)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))
	return buf
}

type item struct {
	min      mgl32.Vec3
	max      mgl32.Vec3
	centroid mgl32.Vec3
	index    int
}

// Tree is a binary BVH over sphere bounds. Every leaf holds one sphere;
// LeafFirst is its index in the slice passed to Build.
type Tree struct {
	Nodes []Node
}

func (t *Tree) Empty() bool { return len(t.Nodes) == 0 }

// ToBytes lays the nodes out back to back. An empty tree still yields one
// zeroed node so a GPU binding never sees a zero-sized buffer.
func (t *Tree) ToBytes() []byte {
	if len(t.Nodes) == 0 {
		return make([]byte, NodeSize)
	}
	out := make([]byte, 0, len(t.Nodes)*NodeSize)
	for i := range t.Nodes {
		out = append(out, t.Nodes[i].ToBytes()...)
	}
	return out
}

// Build splits on the longest axis at the median centroid.
func Build(spheres []core.Sphere) *Tree {
	t := &Tree{}
	if len(spheres) == 0 {
		return t
	}

	items := make([]item, len(spheres))
	for i, sp := range spheres {
		minB, maxB := sp.Bounds()
		items[i] = item{
			min:      minB,
			max:      maxB,
			centroid: sp.Center(),
			index:    i,
		}
	}
	t.Nodes = make([]Node, 0, 2*len(items)-1)
	t.build(items)
	return t
}

func (t *Tree) build(items []item) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	inf := float32(math.Inf(1))
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, it := range items {
		for a := 0; a < 3; a++ {
			minB[a] = min(minB[a], it.min[a])
			maxB[a] = max(maxB[a], it.max[a])
		}
	}
	t.Nodes[idx].Min = minB
	t.Nodes[idx].Max = maxB

	if len(items) == 1 {
		t.Nodes[idx].LeafFirst = int32(items[0].index)
		t.Nodes[idx].LeafCount = 1
		return idx
	}

	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	// Stable on index so equal centroids always split the same way.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	left := t.build(items[:mid])
	right := t.build(items[mid:])
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right
	return idx
}

package l1scene

import (
	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Kind names the two drawable leaf variants.
type Kind string

const (
	KindPointCloud Kind = "points"
	KindMesh       Kind = "mesh"
)

// Geometry is the capability shared by every drawable leaf: a buffer of
// local-space vertex positions. Extraction treats both variants alike.
type Geometry interface {
	Kind() Kind
	Positions() []floorplan.Point3D
}

// PointCloud is a bare vertex buffer.
type PointCloud struct {
	Vertices []floorplan.Point3D
}

// Kind implements Geometry.
func (*PointCloud) Kind() Kind { return KindPointCloud }

// Positions implements Geometry.
func (pc *PointCloud) Positions() []floorplan.Point3D { return pc.Vertices }

// Mesh is an indexed triangle mesh. Only its vertex buffer is used for
// extraction; Indices are kept for callers that need faces.
type Mesh struct {
	Vertices []floorplan.Point3D
	Indices  []uint32
}

// Kind implements Geometry.
func (*Mesh) Kind() Kind { return KindMesh }

// Positions implements Geometry.
func (m *Mesh) Positions() []floorplan.Point3D { return m.Vertices }

// TriangleCount returns the number of faces, falling back to an unindexed
// vertex soup.
func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return len(m.Vertices) / 3
}

// Node is one element of the scene graph. Group nodes carry no Geometry.
type Node struct {
	Name      string
	Transform Matrix4 // local transform relative to the parent
	Geometry  Geometry
	Children  []*Node
}

// NewGroup creates a group node with an identity transform.
func NewGroup(name string, children ...*Node) *Node {
	return &Node{Name: name, Transform: Identity, Children: children}
}

// NewLeaf creates a geometry node with the given local transform.
func NewLeaf(name string, transform Matrix4, g Geometry) *Node {
	return &Node{Name: name, Transform: transform, Geometry: g}
}

// Traverse visits n and its descendants depth-first, passing each node's
// resolved world transform (parent·local).
func (n *Node) Traverse(fn func(node *Node, world Matrix4)) {
	n.traverse(Identity, fn)
}

func (n *Node) traverse(parent Matrix4, fn func(*Node, Matrix4)) {
	if n == nil {
		return
	}
	local := n.Transform
	if local.IsZero() {
		local = Identity
	}
	world := parent.Mul(local)
	fn(n, world)
	for _, c := range n.Children {
		c.traverse(world, fn)
	}
}

// Leaf is a geometric leaf whose world transform has already been resolved
// by the caller's scene graph.
type Leaf interface {
	Positions() []floorplan.Point3D
	WorldMatrix() Matrix4
}

// ResolvedLeaf pairs a Geometry with a world transform.
type ResolvedLeaf struct {
	Geometry Geometry
	World    Matrix4
}

// Positions implements Leaf.
func (l ResolvedLeaf) Positions() []floorplan.Point3D { return l.Geometry.Positions() }

// WorldMatrix implements Leaf.
func (l ResolvedLeaf) WorldMatrix() Matrix4 { return l.World }

// Leaves flattens the graph rooted at root into resolved leaves.
func Leaves(root *Node) []Leaf {
	var out []Leaf
	root.Traverse(func(node *Node, world Matrix4) {
		if node.Geometry != nil {
			out = append(out, ResolvedLeaf{Geometry: node.Geometry, World: world})
		}
	})
	return out
}

// ExtractPoints gathers every vertex under root in world space.
func ExtractPoints(root *Node) []floorplan.Point3D {
	return ExtractLeaves(Leaves(root))
}

// ExtractLeaves transforms every leaf's vertices into world space and
// concatenates them. No filtering or deduplication is done.
func ExtractLeaves(leaves []Leaf) []floorplan.Point3D {
	total := 0
	for _, l := range leaves {
		total += len(l.Positions())
	}
	if total == 0 {
		return nil
	}
	out := make([]floorplan.Point3D, 0, total)
	for _, l := range leaves {
		world := l.WorldMatrix()
		for _, p := range l.Positions() {
			out = append(out, world.Apply(p))
		}
	}
	return out
}

var (
	_ Geometry = (*PointCloud)(nil)
	_ Geometry = (*Mesh)(nil)
	_ Leaf     = ResolvedLeaf{}
)

// Package Tree implements the mutable, unrooted, binary phylogenetic tree
// that the placement engine grows: nodes with bidirectional neighbor slots,
// each slot owning cacheable computation state (by handle, not by value —
// the actual vectors live in an Alloc.Arena).
//
// Nodes are arena-indexed by NodeID rather than linked by pointer. This
// mirrors the free-list/bump-allocated node arenas used elsewhere in this
// module's ancestry (see the teacher's Trees/base.go), adapted here to a
// strictly append-only arena: stub nodes created for a candidate taxon only
// become reachable from Node 0 once InsertIntoTree (Placement) links them
// in, so nothing is ever freed mid-run.
package Tree

import "fmt"

// NodeID addresses a node inside a Tree's arena. The zero value is a valid
// id (the first node ever created), so callers must not treat 0 as "unset"
// — use NoNode for that.
type NodeID int32

// NoNode is the sentinel for "no node" (an empty neighbor slot, or the
// anchor of the initial cascade call).
const NoNode NodeID = -1

// BlockHandle addresses a computation block (partial parsimony / partial
// likelihood / scale vector) owned by an Alloc.Arena. Tree itself never
// dereferences a BlockHandle; it only carries it so that Alloc can bind and
// swap slots without Alloc having to reach back into Tree's internals.
type BlockHandle int32

// NoBlock is the sentinel for "not yet allocated".
const NoBlock BlockHandle = -1

// Neighbor is one directed half of an edge: the slot that lives on the node
// that owns it, pointing at Opposite.
type Neighbor struct {
	Valid    bool // false means this slot of the fixed [3]Neighbor array is unused
	Opposite NodeID
	Length   float64

	ParsBlock BlockHandle
	LhBlock   BlockHandle
	ScaleNum  BlockHandle
	Computed  bool // false: the blocks above may hold stale bytes
}

// Node is a leaf (Degree()==1) or an internal node (Degree()==3, once the
// tree is fully built; fewer while it is being assembled).
type Node struct {
	ID      NodeID
	TaxonID int // meaningful only for leaves; -1 for internal nodes
	Name    string
	IsLeaf  bool
	Slots   [3]Neighbor
}

// Degree returns the number of populated neighbor slots.
func (n *Node) Degree() int {
	d := 0
	for i := range n.Slots {
		if n.Slots[i].Valid {
			d++
		}
	}
	return d
}

// Tree is the arena of nodes plus a count of current leaves, matching the
// teacher's append-only, index-addressed style.
type Tree struct {
	Nodes   []Node
	LeafNum int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{Nodes: make([]Node, 0, 64)}
}

// NewNode allocates a fresh node (spec §6: new_node(id?, name?)). Passing
// taxonID<0 creates an internal (non-leaf) node.
func (t *Tree) NewNode(taxonID int, name string) NodeID {
	id := NodeID(len(t.Nodes))
	isLeaf := taxonID >= 0
	t.Nodes = append(t.Nodes, Node{
		ID:      id,
		TaxonID: taxonID,
		Name:    name,
		IsLeaf:  isLeaf,
		Slots:   [3]Neighbor{{ParsBlock: NoBlock, LhBlock: NoBlock, ScaleNum: NoBlock}, {ParsBlock: NoBlock, LhBlock: NoBlock, ScaleNum: NoBlock}, {ParsBlock: NoBlock, LhBlock: NoBlock, ScaleNum: NoBlock}},
	})
	if isLeaf {
		t.LeafNum++
	}
	return id
}

// Node returns a pointer to the node's storage. Since Nodes is append-only
// during a placement run, this pointer remains valid until the next
// NewNode call reallocates the backing slice — callers that hold it across
// a NewNode must re-fetch.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// AddNeighbor adds one directed slot on u pointing at v with the given
// length (spec §6: add_neighbor(u, v, len)). It does not add the reciprocal
// slot on v; callers wanting a full edge call it twice, once per endpoint
// (matching the original's two addNeighbor calls at every edge site).
func (t *Tree) AddNeighbor(u, v NodeID, length float64) *Neighbor {
	node := t.Node(u)
	for i := range node.Slots {
		if !node.Slots[i].Valid {
			node.Slots[i] = Neighbor{
				Valid: true, Opposite: v, Length: length,
				ParsBlock: NoBlock, LhBlock: NoBlock, ScaleNum: NoBlock,
			}
			return &node.Slots[i]
		}
	}
	panic(fmt.Sprintf("Tree: node %d already has 3 neighbors", u))
}

// AddEdge adds both directed slots of an edge u<->v.
func (t *Tree) AddEdge(u, v NodeID, length float64) {
	t.AddNeighbor(u, v, length)
	t.AddNeighbor(v, u, length)
}

// FindNeighbor returns the slot on u that points at v, or nil if none does
// (spec §6: find_neighbor(u, v)).
func (t *Tree) FindNeighbor(u, v NodeID) *Neighbor {
	node := t.Node(u)
	for i := range node.Slots {
		if node.Slots[i].Valid && node.Slots[i].Opposite == v {
			return &node.Slots[i]
		}
	}
	return nil
}

// UpdateNeighbor repoints the slot on u that used to point at oldV so that
// it points at newV with the given length (spec §6:
// update_neighbor(u, old_v, new_v, len)). It does not touch computed flags;
// callers invalidate caches explicitly, matching the original's call
// sites, where clearing is a deliberate, narrow operation rather than an
// automatic deep walk.
func (t *Tree) UpdateNeighbor(u, oldV, newV NodeID, length float64) *Neighbor {
	nei := t.FindNeighbor(u, oldV)
	if nei == nil {
		panic(fmt.Sprintf("Tree: node %d has no neighbor %d to update", u, oldV))
	}
	nei.Opposite = newV
	nei.Length = length
	return nei
}

// ClearComputedFlags marks computed=false for the single slot, leaving its
// bytes untouched (readers must recompute before use, per the §3
// invariant).
func (n *Neighbor) ClearComputedFlags() {
	n.Computed = false
}

// ClearAllComputedFlags marks every populated slot in the tree
// computed=false, mirroring the original's clearAllPartialParsimony(false)
// call immediately ahead of the per-batch ComputeState sweep
// (_examples/original_source/tree/placement.cpp): every batch's refresh
// step (spec.md §4.6 step 5a) must force every target's endpoint slots
// through the cascade again, not just the ones an earlier pass left
// uncomputed, since the tree may have been mutated by an insertion since
// they were last computed.
func (t *Tree) ClearAllComputedFlags() {
	for i := range t.Nodes {
		for j := range t.Nodes[i].Slots {
			if t.Nodes[i].Slots[j].Valid {
				t.Nodes[i].Slots[j].Computed = false
			}
		}
	}
}

// Edge is an unordered pair of nodes, used by TargetBranchRange
// construction and by tests.
type Edge struct {
	A, B NodeID
}

// Edges enumerates every edge exactly once, in a stable order (ascending
// by the lower-numbered endpoint, then in that node's slot order): every edge is
// counted exactly once because NodeID order is total, so "A<B" is a
// consistent dedup rule across both of the edge's two slots.
func (t *Tree) Edges() []Edge {
	edges := make([]Edge, 0, len(t.Nodes))
	for i := range t.Nodes {
		a := NodeID(i)
		for _, s := range t.Nodes[i].Slots {
			if s.Valid && a < s.Opposite {
				edges = append(edges, Edge{A: a, B: s.Opposite})
			}
		}
	}
	return edges
}

// Leaves returns the ids of every leaf node, in id order.
func (t *Tree) Leaves() []NodeID {
	out := make([]NodeID, 0, t.LeafNum)
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// InternalNodeCount returns the number of non-leaf nodes.
func (t *Tree) InternalNodeCount() int {
	return len(t.Nodes) - t.LeafNum
}

// OtherNeighbors calls f for every valid slot on n except the one pointing
// at skip (spec §4.2 step 2: "for every neighbor m of n other than a").
func (t *Tree) OtherNeighbors(n, skip NodeID, f func(slot *Neighbor)) {
	node := t.Node(n)
	for i := range node.Slots {
		s := &node.Slots[i]
		if s.Valid && s.Opposite != skip {
			f(s)
		}
	}
}

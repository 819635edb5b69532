// Package Placement implements the core incremental placement data
// structures of spec §3–§4.5: target branches and their range, taxa
// waiting to be placed, possible placements, cost calculators, search
// heuristics, and the no-op cleanup hooks.
package Placement

import (
	"github.com/g-m-twostay/phyloplace/Alloc"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Parsimony"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// TargetBranch is an edge-as-value: a candidate insertion point, with its
// own summary parsimony vector and (once consumed) the three edges that
// replaced it (spec §3).
type TargetBranch struct {
	Node1, Node2 Tree.NodeID

	ParsBlock Tree.BlockHandle
	LhBlock   Tree.BlockHandle
	ScaleNum  Tree.BlockHandle

	Used         bool
	Replacements []TargetBranchRef
}

// TargetBranchRange is the append-only vector of TargetBranch entries from
// spec §3/§4.3. Entries are only physically dropped by RemoveUsed, which
// may only run when no TargetBranchRef is held by a caller outside the
// driver's batch boundary (spec §4.3's compaction invariant) — callers
// that violate this get a ref whose index now names a different branch.
type TargetBranchRange struct {
	entries []TargetBranch
	tree    *Tree.Tree
	alloc   *Alloc.Allocator
	kernel  Kernel.ParsimonyKernel
}

// NewTargetBranchRange builds the initial range from every edge currently
// in the tree (spec §4.3).
func NewTargetBranchRange(t *Tree.Tree, alloc *Alloc.Allocator, kernel Kernel.ParsimonyKernel, wantsLikelihood bool) *TargetBranchRange {
	edges := t.Edges()
	r := &TargetBranchRange{
		entries: make([]TargetBranch, 0, len(edges)),
		tree:    t,
		alloc:   alloc,
		kernel:  kernel,
	}
	for _, e := range edges {
		r.entries = append(r.entries, r.newEntry(e.A, e.B, wantsLikelihood))
	}
	return r
}

func (r *TargetBranchRange) newEntry(n1, n2 Tree.NodeID, wantsLikelihood bool) TargetBranch {
	tb := TargetBranch{Node1: n1, Node2: n2, ParsBlock: Tree.NoBlock, LhBlock: Tree.NoBlock, ScaleNum: Tree.NoBlock}
	tb.ParsBlock = r.alloc.Arena.NewParsimonyHandle()
	if wantsLikelihood {
		h := r.alloc.Arena.NewLikelihoodHandle()
		tb.LhBlock, tb.ScaleNum = h, h
	}
	return tb
}

// Len reports how many entries the range currently holds.
func (r *TargetBranchRange) Len() int { return len(r.entries) }

// At returns a pointer to entry i. The pointer is invalidated by the next
// AddNewRef or RemoveUsed call (the backing slice may move or shrink).
func (r *TargetBranchRange) At(i int) *TargetBranch { return &r.entries[i] }

// ComputeState recomputes branch i's two endpoint slots via pc, then
// writes the branch's own out-of-tree summary vector (spec §4.3:
// compute_state).
func (r *TargetBranchRange) ComputeState(i int, pc *Parsimony.Calculator) {
	tb := &r.entries[i]
	neigh1, neigh2 := pc.RefreshEndpoints(tb.Node1, tb.Node2)
	r.kernel.Combine(pc.Arena.Parsimony(neigh1.ParsBlock), pc.Arena.Parsimony(neigh2.ParsBlock), pc.Arena.Parsimony(tb.ParsBlock))
}

// AddNewRef appends a new target branch and immediately computes its
// state, returning a ref to it (spec §4.3: add_new_ref).
func (r *TargetBranchRange) AddNewRef(pc *Parsimony.Calculator, n1, n2 Tree.NodeID, wantsLikelihood bool) TargetBranchRef {
	r.entries = append(r.entries, r.newEntry(n1, n2, wantsLikelihood))
	idx := len(r.entries) - 1
	r.ComputeState(idx, pc)
	return TargetBranchRef{rng: r, index: idx}
}

// RemoveUsed compacts the range, dropping every used entry while
// preserving the relative order of survivors (spec §4.3, invariant 6).
func (r *TargetBranchRange) RemoveUsed() {
	w := 0
	for i := range r.entries {
		if !r.entries[i].Used {
			r.entries[w] = r.entries[i]
			w++
		}
	}
	r.entries = r.entries[:w]
}

// TargetBranchRef is (range, index); it is "alive" iff the entry it names
// is not used (spec §3).
type TargetBranchRef struct {
	rng   *TargetBranchRange
	index int
}

// IsUsedUp reports whether the referenced branch has already been
// consumed, or whether this ref is the zero value (never set).
func (ref TargetBranchRef) IsUsedUp() bool {
	if ref.rng == nil {
		return true
	}
	return ref.rng.entries[ref.index].Used
}

// Target returns the branch this ref names.
func (ref TargetBranchRef) Target() *TargetBranch {
	if ref.rng == nil {
		return nil
	}
	return &ref.rng.entries[ref.index]
}

// Index returns the ref's position within its range.
func (ref TargetBranchRef) Index() int { return ref.index }

// Node1/Node2 echo the branch's endpoints without dereferencing Target,
// for callers that just need to identify the branch. Both return NoNode on
// a zero-value ref, matching IsUsedUp/Target's nil-safety.
func (ref TargetBranchRef) Node1() Tree.NodeID {
	if ref.rng == nil {
		return Tree.NoNode
	}
	return ref.rng.entries[ref.index].Node1
}

func (ref TargetBranchRef) Node2() Tree.NodeID {
	if ref.rng == nil {
		return Tree.NoNode
	}
	return ref.rng.entries[ref.index].Node2
}

// HandOverTo transfers tb's summary blocks into nei, clearing tb's own
// handles and marking tb used (spec §4.5 insert_into_tree step 5: the
// target branch's memory is reused for the stub leaf's own slot rather
// than freed and reallocated).
func (tb *TargetBranch) HandOverTo(nei *Tree.Neighbor) {
	nei.ParsBlock = tb.ParsBlock
	nei.LhBlock = tb.LhBlock
	nei.ScaleNum = tb.ScaleNum
	nei.Computed = true

	tb.ParsBlock, tb.LhBlock, tb.ScaleNum = Tree.NoBlock, Tree.NoBlock, Tree.NoBlock
	tb.Used = true
}

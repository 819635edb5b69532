package Parsimony

import (
	"testing"

	"github.com/g-m-twostay/phyloplace/Alloc"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// countingKernel is a minimal Kernel.ParsimonyKernel: one byte per block,
// Combine sums its two inputs, Score returns the absolute difference. Just
// enough structure to tell whether the cascade fed it the right children.
type countingKernel struct{}

func (countingKernel) BlockSize(int) int { return 1 }
func (countingKernel) SeedTip(encoded []byte, out Kernel.ParsimonyVector) {
	out[0] = encoded[0]
}
func (countingKernel) Combine(a, b Kernel.ParsimonyVector, out Kernel.ParsimonyVector) {
	out[0] = a[0] + b[0]
}
func (countingKernel) Score(a, b Kernel.ParsimonyVector) int {
	d := int(a[0]) - int(b[0])
	if d < 0 {
		d = -d
	}
	return d
}

// buildStar builds a small unrooted tree: three leaves (values 1,2,4) hung
// off one internal node. Each leaf's tip partial is seeded on the slot that
// OWNS the tip-facing direction — the slot living on center and pointing at
// the leaf represents "everything on the leaf's side" of that edge, i.e.
// the tip itself, exactly as NewTaxonToPlace seeds it. The reciprocal slot
// (living on the leaf, pointing at center) represents "everything on
// center's side" and is left uncomputed for the cascade to fill in.
func buildStar(t *testing.T, arena *Alloc.Arena) (*Tree.Tree, Tree.NodeID, []Tree.NodeID) {
	t.Helper()
	tr := Tree.New()
	center := tr.NewNode(-1, "")
	leaves := make([]Tree.NodeID, 3)
	values := []byte{1, 2, 4}
	for i, v := range values {
		leaf := tr.NewNode(i, "leaf")
		tr.AddEdge(center, leaf, 1.0)
		leaves[i] = leaf

		fromCenter := tr.FindNeighbor(center, leaf)
		fromCenter.ParsBlock = arena.NewParsimonyHandle()
		vec := arena.Parsimony(fromCenter.ParsBlock)
		vec[0] = v
		fromCenter.Computed = true

		toCenter := tr.FindNeighbor(leaf, center)
		toCenter.ParsBlock = arena.NewParsimonyHandle()
	}
	return tr, center, leaves
}

func TestComputeBranchCombinesChildren(t *testing.T) {
	arena := Alloc.NewArena(1, 0, 0, 8, 0)
	tr, center, leaves := buildStar(t, arena)
	calc := New(tr, countingKernel{}, arena)

	slot := tr.FindNeighbor(leaves[0], center)
	score := calc.ComputeBranch(slot, leaves[0])

	// slot (leaves[0]->center) should combine leaves[1] and leaves[2]'s
	// seeded tip values (2+4=6); leaves[0]'s own tip value is 1 (seeded on
	// the reciprocal, center->leaves[0]), so the branch score is |6-1|=5.
	if !slot.Computed {
		t.Fatalf("expected slot to be computed")
	}
	got := arena.Parsimony(slot.ParsBlock)[0]
	if got != 6 {
		t.Fatalf("got %d, want 6 (2+4)", got)
	}
	if score != 5 {
		t.Fatalf("got score %d, want 5", score)
	}
}

func TestCascadeIsIdempotent(t *testing.T) {
	arena := Alloc.NewArena(1, 0, 0, 8, 0)
	tr, center, leaves := buildStar(t, arena)
	calc := New(tr, countingKernel{}, arena)

	slot := tr.FindNeighbor(leaves[0], center)
	calc.ComputeBranch(slot, leaves[0])
	before := calc.Calls()

	calc.ComputeBranch(slot, leaves[0])
	after := calc.Calls()

	if after != before {
		t.Fatalf("expected zero additional kernel calls on an up-to-date tree, got %d more", after-before)
	}
}

func TestRefreshEndpointsComputesBothDirections(t *testing.T) {
	arena := Alloc.NewArena(1, 0, 0, 8, 0)
	tr, center, leaves := buildStar(t, arena)
	calc := New(tr, countingKernel{}, arena)

	a, b := calc.RefreshEndpoints(leaves[0], center)
	if !a.Computed || !b.Computed {
		t.Fatalf("expected both directed slots computed")
	}
}

package Placement

import (
	"testing"

	"github.com/g-m-twostay/phyloplace/Alloc"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Parsimony"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// diffKernel is a minimal ParsimonyKernel: Score returns the absolute byte
// difference of the two blocks' first entries, Combine sums them.
type diffKernel struct{}

func (diffKernel) BlockSize(int) int { return 1 }
func (diffKernel) SeedTip(encoded []byte, out Kernel.ParsimonyVector) {
	out[0] = encoded[0]
}
func (diffKernel) Combine(a, b Kernel.ParsimonyVector, out Kernel.ParsimonyVector) {
	out[0] = a[0] + b[0]
}
func (diffKernel) Score(a, b Kernel.ParsimonyVector) int {
	d := int(a[0]) - int(b[0])
	if d < 0 {
		d = -d
	}
	return d
}

// newStarTree builds a 3-leaf star (center plus leaves 0,1,2 with tip
// values 1,2,4) with a TargetBranchRange ready over all three edges, plus
// an Allocator/Arena/Calculator sized generously enough for a handful of
// insertions on top.
func newStarTree(t *testing.T) (*Tree.Tree, *Alloc.Allocator, *Parsimony.Calculator, *TargetBranchRange, Tree.NodeID) {
	t.Helper()
	tr := Tree.New()
	arena := Alloc.NewArena(1, 0, 0, 64, 0)
	alloc := Alloc.NewAllocator(arena, false, 1, 1, 0, 0)

	center := tr.NewNode(-1, "")
	values := []byte{1, 2, 4}
	for i, v := range values {
		leaf := tr.NewNode(i, "leaf")
		tr.AddEdge(center, leaf, 1.0)
		s := tr.FindNeighbor(center, leaf)
		s.ParsBlock = arena.NewParsimonyHandle()
		arena.Parsimony(s.ParsBlock)[0] = v
		s.Computed = true
		recip := tr.FindNeighbor(leaf, center)
		recip.ParsBlock = arena.NewParsimonyHandle()
	}

	pc := Parsimony.New(tr, diffKernel{}, arena)
	rng := NewTargetBranchRange(tr, alloc, diffKernel{}, false)
	for i := 0; i < rng.Len(); i++ {
		rng.ComputeState(i, pc)
	}
	return tr, alloc, pc, rng, center
}

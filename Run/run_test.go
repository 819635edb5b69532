package Run

import (
	"errors"
	"testing"

	"github.com/g-m-twostay/phyloplace/Config"
	"github.com/g-m-twostay/phyloplace/FitchKernel"
	"github.com/g-m-twostay/phyloplace/Placement"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// fakeAlignment is a minimal AlignmentSource: one encoded byte per taxon,
// a single pattern, so tests don't need a real Alignment.Alignment or a
// FASTA file on disk.
type fakeAlignment struct {
	seqs map[int][]byte
}

func (f *fakeAlignment) EncodedSequence(taxonID int) []byte { return f.seqs[taxonID] }
func (f *fakeAlignment) NumPatterns() int                   { return 1 }

// newStarRun builds a 3-leaf star tree (taxa 0,1,2, states A/C/G) and a
// PlacementRun ready to grow it, sharing FitchKernel.Fitch as the
// parsimony kernel throughout.
func newStarRun(t *testing.T) (*Tree.Tree, *PlacementRun) {
	t.Helper()
	tr := Tree.New()
	center := tr.NewNode(-1, "")
	states := map[int]byte{0: 0, 1: 1, 2: 2} // A, C, G
	names := map[int]string{0: "A", 1: "B", 2: "C"}
	for id, name := range names {
		leaf := tr.NewNode(id, name)
		tr.AddEdge(center, leaf, 1.0)
	}

	align := &fakeAlignment{seqs: map[int][]byte{
		0: {states[0]},
		1: {states[1]},
		2: {states[2]},
		3: {3}, // T
		4: {0}, // A
		5: {1}, // C
	}}

	cfg, err := Config.Parse("")
	if err != nil {
		t.Fatalf("Config.Parse: %v", err)
	}

	pr := &PlacementRun{
		Tree:            tr,
		Alignment:       align,
		Config:          cfg,
		ParsimonyKernel: FitchKernel.Fitch{},
		CostCalculator: Placement.ParsimonyCost{
			Kernel:               FitchKernel.Fitch{},
			HalfBranchLength:     0.1,
			NewTaxonBranchLength: 0.1,
		},
		Heuristic:     Placement.GlobalHeuristic{},
		TaxonCleaner:  Placement.NoopTaxonCleaner{},
		BatchCleaner:  Placement.NoopBatchCleaner{},
		GlobalCleaner: Placement.NoopGlobalCleaner{},
	}
	return tr, pr
}

func TestAddNewTaxaRejectsMismatchedLengths(t *testing.T) {
	_, pr := newStarRun(t)
	if _, err := pr.AddNewTaxa([]int{3, 4}, []string{"D"}); err == nil {
		t.Fatalf("expected an error for mismatched taxonIDs/names lengths")
	}
}

func TestAddNewTaxaEmptyInputInsertsNothing(t *testing.T) {
	_, pr := newStarRun(t)
	inserted, err := pr.AddNewTaxa(nil, nil)
	if err != nil {
		t.Fatalf("AddNewTaxa with no taxa returned error: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("inserted = %d, want 0", inserted)
	}
}

// TestAddNewTaxaGrowsTreeByBatch is the four-taxon-insert-style scenario:
// starting from a 3-leaf star, growing by a batch of 2 new taxa should
// both report 2 inserted and leave the tree with 5 leaves wired into a
// fully binary shape (every node degree 1 or 3).
func TestAddNewTaxaGrowsTreeByBatch(t *testing.T) {
	tr, pr := newStarRun(t)
	cfg, err := Config.Parse("B2")
	if err != nil {
		t.Fatalf("Config.Parse: %v", err)
	}
	pr.Config = cfg

	inserted, err := pr.AddNewTaxa([]int{3, 4}, []string{"D", "E"})
	if err != nil {
		t.Fatalf("AddNewTaxa returned error: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}
	if tr.LeafNum != 5 {
		t.Fatalf("LeafNum = %d, want 5", tr.LeafNum)
	}
	for i := range tr.Nodes {
		n := &tr.Nodes[i]
		d := n.Degree()
		if n.IsLeaf && d != 1 {
			t.Fatalf("leaf node %d has degree %d, want 1", n.ID, d)
		}
		if !n.IsLeaf && d != 3 {
			t.Fatalf("internal node %d has degree %d, want 3", n.ID, d)
		}
	}
}

// TestAddNewTaxaCarriesUnplacedTaxaForward checks invariant-style
// carry-forward behavior (spec's "deferred taxon" case): with a batch of
// 2 but only 1 insert allowed per pass, both taxa should still end up
// placed across the two resulting passes.
func TestAddNewTaxaCarriesUnplacedTaxaForward(t *testing.T) {
	tr, pr := newStarRun(t)
	cfg, err := Config.Parse("B2+I1")
	if err != nil {
		t.Fatalf("Config.Parse: %v", err)
	}
	pr.Config = cfg

	inserted, err := pr.AddNewTaxa([]int{3, 4}, []string{"D", "E"})
	if err != nil {
		t.Fatalf("AddNewTaxa returned error: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2 across both passes", inserted)
	}
	if tr.LeafNum != 5 {
		t.Fatalf("LeafNum = %d, want 5", tr.LeafNum)
	}
}

// rejectAllHeuristic prunes every candidate placement, so no taxon ever
// finds anywhere to go — the all-or-nothing-batch case (spec's
// ErrNoTaxaInserted condition).
type rejectAllHeuristic struct{}

func (rejectAllHeuristic) IsPlacementWorthTrying(*Placement.TaxonToPlace, *Placement.TargetBranch) bool {
	return false
}
func (rejectAllHeuristic) IsGlobalSearch() bool { return true }

func TestAddNewTaxaReturnsErrNoTaxaInsertedWhenBatchPlacesNothing(t *testing.T) {
	_, pr := newStarRun(t)
	cfg, err := Config.Parse("B2")
	if err != nil {
		t.Fatalf("Config.Parse: %v", err)
	}
	pr.Config = cfg
	pr.Heuristic = rejectAllHeuristic{}

	inserted, err := pr.AddNewTaxa([]int{3, 4}, []string{"D", "E"})
	if !errors.Is(err, ErrNoTaxaInserted) {
		t.Fatalf("err = %v, want ErrNoTaxaInserted", err)
	}
	if inserted != 0 {
		t.Fatalf("inserted = %d, want 0", inserted)
	}
}

// TestStepwiseAdditionBootstrapsEmptyTree exercises the B=1/pure-parsimony/
// global-heuristic fast path from a completely empty starting tree.
func TestStepwiseAdditionBootstrapsEmptyTree(t *testing.T) {
	tr := Tree.New()
	align := &fakeAlignment{seqs: map[int][]byte{
		0: {0}, 1: {1}, 2: {2}, 3: {3},
	}}
	cfg, err := Config.Parse("B1")
	if err != nil {
		t.Fatalf("Config.Parse: %v", err)
	}
	pr := &PlacementRun{
		Tree:            tr,
		Alignment:       align,
		Config:          cfg,
		ParsimonyKernel: FitchKernel.Fitch{},
		CostCalculator: Placement.ParsimonyCost{
			Kernel:               FitchKernel.Fitch{},
			HalfBranchLength:     0.1,
			NewTaxonBranchLength: 0.1,
		},
		Heuristic:     Placement.GlobalHeuristic{},
		TaxonCleaner:  Placement.NoopTaxonCleaner{},
		BatchCleaner:  Placement.NoopBatchCleaner{},
		GlobalCleaner: Placement.NoopGlobalCleaner{},
		Rand:          nil,
	}

	inserted, err := pr.AddNewTaxa([]int{0, 1, 2, 3}, []string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatalf("AddNewTaxa returned error: %v", err)
	}
	if inserted != 4 {
		t.Fatalf("inserted = %d, want 4", inserted)
	}
	if tr.LeafNum != 4 {
		t.Fatalf("LeafNum = %d, want 4", tr.LeafNum)
	}
}

// TestAddNewTaxaOnNonEmptyTreeSeedsExistingLeaves guards against a
// regression of the bootstrap gap seedExistingTree fixes: a tree whose
// leaves were never run through NewTaxonToPlace (as if loaded from
// newick) must still place new taxa correctly, without panicking on an
// unallocated or unseeded existing slot.
func TestAddNewTaxaOnNonEmptyTreeSeedsExistingLeaves(t *testing.T) {
	tr, pr := newStarRun(t)
	inserted, err := pr.AddNewTaxa([]int{3}, []string{"D"})
	if err != nil {
		t.Fatalf("AddNewTaxa returned error: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1", inserted)
	}
	if tr.LeafNum != 4 {
		t.Fatalf("LeafNum = %d, want 4", tr.LeafNum)
	}
}

package Placement

import (
	"errors"

	"github.com/g-m-twostay/phyloplace/Alloc"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Parsimony"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// ErrNoLivePlacement is returned when a taxon has no surviving candidate
// placement left to insert — every target branch it ever considered has
// since been consumed by another taxon (spec §4.5's gazump handling,
// invariant 11).
var ErrNoLivePlacement = errors.New("Placement: taxon has no live placement left")

// PossiblePlacement is one scored candidate insertion point (spec §3).
// Score is always oriented so that lower is better, regardless of which
// CostCalculator produced it (see cost.go's doc comment).
type PossiblePlacement struct {
	Target TargetBranchRef
	Node1  Tree.NodeID
	Node2  Tree.NodeID

	Score float64

	LenToNewTaxon float64
	LenToNode1    float64
	LenToNode2    float64

	// ReplacementStart/ReplacementStop are reserved for recording the pair
	// of replacement branches this placement's insertion will produce,
	// mirroring two fields the original carries but never assigns outside
	// of insertion bookkeeping that already lives on TargetBranch itself.
	ReplacementStart TargetBranchRef
	ReplacementStop  TargetBranchRef
}

// SetTargetBranch points this placement at ref and snapshots its current
// endpoints.
func (p *PossiblePlacement) SetTargetBranch(ref TargetBranchRef) {
	p.Target = ref
	p.Node1 = ref.Node1()
	p.Node2 = ref.Node2()
}

// CanStillUse reports whether the target branch behind this placement is
// still live.
func (p *PossiblePlacement) CanStillUse() bool {
	return p.Target.rng != nil && !p.Target.IsUsedUp()
}

// Less orders placements with the best one first (lowest Score).
func (p *PossiblePlacement) Less(o *PossiblePlacement) bool {
	return p.Score < o.Score
}

// Forget clears this placement back to its zero value, so CanStillUse
// reports false.
func (p *PossiblePlacement) Forget() {
	*p = PossiblePlacement{}
}

// TaxonToPlace is one new leaf waiting for a home: the stub edge
// (NewInterior-NewLeaf) already exists in the tree with its own partial
// parsimony vector seeded from the alignment, but NewInterior has only
// that one neighbor until InsertIntoTree links it to the rest of the tree
// (spec §4.5).
type TaxonToPlace struct {
	TaxonID   int
	TaxonName string

	NewLeaf     Tree.NodeID
	NewInterior Tree.NodeID
	ParsBlock   Tree.BlockHandle

	BestPlacement PossiblePlacement
	Inserted      bool
}

// NewTaxonToPlace creates the stub edge for a taxon and seeds its tip
// partial parsimony vector from its encoded alignment row (spec §4.5:
// the constructor steps before any placement search happens). encoded is
// one kernel-specific state byte per alignment pattern, owned by the
// caller's Alignment collaborator.
func NewTaxonToPlace(t *Tree.Tree, alloc *Alloc.Allocator, kernel Kernel.ParsimonyKernel, taxonID int, taxonName string, encoded []byte) *TaxonToPlace {
	newLeaf := t.NewNode(taxonID, taxonName)
	newInterior := t.NewNode(-1, "")
	t.AddEdge(newInterior, newLeaf, -1)

	tipSlot := t.FindNeighbor(newInterior, newLeaf)
	alloc.AllocateParsimony(tipSlot)
	kernel.SeedTip(encoded, alloc.Arena.Parsimony(tipSlot.ParsBlock))
	tipSlot.Computed = true

	return &TaxonToPlace{
		TaxonID:     taxonID,
		TaxonName:   taxonName,
		NewLeaf:     newLeaf,
		NewInterior: newInterior,
		ParsBlock:   tipSlot.ParsBlock,
	}
}

// ConsiderPlacements is the bulk variant of ConsiderAdditionalPlacement:
// it stores the placement with the smallest Score as BestPlacement (the
// first one wins a tie) and returns its index, or -1 for an empty slice.
// Neither AddNewTaxa nor FindPlacement calls it.
func (taxon *TaxonToPlace) ConsiderPlacements(placements []PossiblePlacement) int {
	if len(placements) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(placements); i++ {
		if placements[i].Score < placements[best].Score {
			best = i
		}
	}
	taxon.BestPlacement = placements[best]
	return best
}

// ConsiderAdditionalPlacement is the path the driver actually uses: keep
// whichever placement has the smallest Score seen so far (spec §4.5 step
// 4's bestPlacement tracking).
func (taxon *TaxonToPlace) ConsiderAdditionalPlacement(p PossiblePlacement) bool {
	best := !taxon.BestPlacement.CanStillUse() || p.Score < taxon.BestPlacement.Score
	if best {
		taxon.BestPlacement = p
	}
	return best
}

// CanInsert reports whether BestPlacement still names a live target
// branch.
func (taxon *TaxonToPlace) CanInsert() bool {
	return taxon.BestPlacement.CanStillUse()
}

// Base returns the taxon itself — the identity case of Candidate that
// every embedder of TaxonToPlace (LessFussyTaxon included) satisfies via
// method promotion.
func (taxon *TaxonToPlace) Base() *TaxonToPlace {
	return taxon
}

// Candidate is implemented by both *TaxonToPlace and *LessFussyTaxon.
// FindPlacement and InsertNearby take a Candidate rather than a bare
// *TaxonToPlace so that a LessFussyTaxon's overridden
// ConsiderAdditionalPlacement/ForgetGazumpedPlacements actually run — a
// plain *TaxonToPlace parameter would always invoke the base methods, even
// when called with a *LessFussyTaxon pointer, since Go has no virtual
// dispatch without an interface in the way (spec §4.5's top-k variant,
// invariant 12).
type Candidate interface {
	Base() *TaxonToPlace
	ForgetGazumpedPlacements()
	ConsiderAdditionalPlacement(PossiblePlacement) bool
	CanInsert() bool
}

// ForgetGazumpedPlacements drops BestPlacement if its target branch has
// since been consumed by another taxon in this batch (spec §4.5's gazump
// handling, invariant 11).
func (taxon *TaxonToPlace) ForgetGazumpedPlacements() {
	if !taxon.BestPlacement.CanStillUse() {
		taxon.BestPlacement.Forget()
	}
}

// FindPlacement scores every target branch the heuristic accepts and keeps
// the best (spec §4.5 steps 1-4). This is the insertion-point-major path:
// each call owns one taxon's full search over the whole TargetBranchRange.
// It scores sequentially, one target at a time — the shared *Parsimony.
// Calculator it reads vectors through is not goroutine-safe (its work
// queue is a plain, unsynchronized slice), so spreading this loop across
// goroutines would need a calculator per worker; see SPEC_FULL.md/DESIGN.md
// for why the driver's actual parallel region is the cascade sweep
// instead (spec §4.2 step 5), not this loop.
func FindPlacement(pc *Parsimony.Calculator, taxon Candidate, targets *TargetBranchRange, heuristic SearchHeuristic, calc CostCalculator) error {
	base := taxon.Base()
	n := targets.Len()
	for i := 0; i < n; i++ {
		target := targets.At(i)
		if target.Used || !heuristic.IsPlacementWorthTrying(base, target) {
			continue
		}
		var p PossiblePlacement
		p.SetTargetBranch(TargetBranchRef{rng: targets, index: i})
		if err := calc.AssessPlacementCost(pc, base, &p); err != nil {
			return err
		}
		taxon.ConsiderAdditionalPlacement(p)
	}
	base.Inserted = false
	return nil
}

// assessNewTargetBranches walks the replacement tree rooted at a consumed
// target branch, scoring every still-live leaf of that tree, used by
// InsertNearby to re-search locally around a gazumped placement instead of
// re-scanning the whole range (spec §4.5's insertNearby: "walk down the
// replacement chain").
func (taxon *TaxonToPlace) assessNewTargetBranches(pc *Parsimony.Calculator, calc CostCalculator, blocked *TargetBranch, out *[]PossiblePlacement) error {
	if blocked == nil || blocked.Replacements == nil {
		return nil
	}
	stack := [][]TargetBranchRef{blocked.Replacements}
	for len(stack) > 0 {
		reps := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ref := range reps {
			if ref.IsUsedUp() {
				if t := ref.Target(); t != nil && t.Replacements != nil {
					stack = append(stack, t.Replacements)
				}
				continue
			}
			var p PossiblePlacement
			p.SetTargetBranch(ref)
			if err := calc.AssessPlacementCost(pc, taxon, &p); err != nil {
				return err
			}
			*out = append(*out, p)
		}
	}
	return nil
}

// InsertNearby re-searches the local neighborhood of a gazumped best
// placement and, if a live candidate survives, inserts there (spec §4.5's
// insertNearby, invariant 11). taxon is a Candidate, not a bare
// *TaxonToPlace, so that a *LessFussyTaxon's top-k PlacementStore is
// actually consulted here instead of being silently skipped.
func InsertNearby(pc *Parsimony.Calculator, alloc *Alloc.Allocator, taxon Candidate, dest *TargetBranchRange, calc CostCalculator) (bool, error) {
	base := taxon.Base()
	blocked := base.BestPlacement.Target.Target()
	taxon.ForgetGazumpedPlacements()

	var placements []PossiblePlacement
	if err := base.assessNewTargetBranches(pc, calc, blocked, &placements); err != nil {
		return false, err
	}
	for _, p := range placements {
		taxon.ConsiderAdditionalPlacement(p)
	}
	if !taxon.CanInsert() {
		return false, ErrNoLivePlacement
	}
	if err := InsertIntoTree(pc, alloc, base, dest, calc); err != nil {
		return false, err
	}
	return true, nil
}

// InsertIntoTree splices the taxon's stub edge into its BestPlacement's
// target branch, hands over cached parsimony state to avoid recomputing
// what's still valid, eagerly recomputes the two newly formed branches,
// and registers the three replacement target branches the consumed one
// produced (spec §4.5 steps 5-9).
func InsertIntoTree(pc *Parsimony.Calculator, alloc *Alloc.Allocator, taxon *TaxonToPlace, dest *TargetBranchRange, calc CostCalculator) error {
	bp := &taxon.BestPlacement
	node1, node2 := bp.Node1, bp.Node2
	target := bp.Target.Target()

	t := pc.Tree
	t.FindNeighbor(taxon.NewInterior, taxon.NewLeaf).Length = bp.LenToNewTaxon
	t.FindNeighbor(taxon.NewLeaf, taxon.NewInterior).Length = bp.LenToNewTaxon

	t.AddNeighbor(taxon.NewInterior, node1, bp.LenToNode1)
	t.AddNeighbor(taxon.NewInterior, node2, bp.LenToNode2)

	alloc.HandOver(t.FindNeighbor(node1, node2), t.FindNeighbor(taxon.NewInterior, node2))
	alloc.HandOver(t.FindNeighbor(node2, node1), t.FindNeighbor(taxon.NewInterior, node1))
	target.HandOverTo(t.FindNeighbor(taxon.NewLeaf, taxon.NewInterior))

	t.UpdateNeighbor(node1, node2, taxon.NewInterior, bp.LenToNode1)
	t.UpdateNeighbor(node2, node1, taxon.NewInterior, bp.LenToNode2)

	pc.ComputeBranch(t.FindNeighbor(node1, taxon.NewInterior), node1)
	pc.ComputeBranch(t.FindNeighbor(node2, taxon.NewInterior), node2)

	taxon.Inserted = true

	reps := []TargetBranchRef{
		dest.AddNewRef(pc, taxon.NewInterior, node1, calc.UsesLikelihood()),
		dest.AddNewRef(pc, taxon.NewInterior, node2, calc.UsesLikelihood()),
		dest.AddNewRef(pc, taxon.NewInterior, taxon.NewLeaf, calc.UsesLikelihood()),
	}
	// Re-fetch target: dest.AddNewRef above may have grown dest's backing
	// slice, invalidating the pointer captured before the appends.
	bp.Target.Target().Replacements = reps
	return nil
}

// LessFussyTaxon keeps the MaxKeep best-scoring placements it has seen
// instead of just one, so that if its single best gets gazumped it can
// fall back to its second-best without a full re-search (spec §4.5's
// top-k variant, invariant 12).
type LessFussyTaxon struct {
	TaxonToPlace
	PlacementStore []PossiblePlacement
	MaxKeep        int
}

// NewLessFussyTaxon wraps a freshly constructed TaxonToPlace. maxKeep<=0
// defaults to 5, matching the original's compiled-in constant.
func NewLessFussyTaxon(base *TaxonToPlace, maxKeep int) *LessFussyTaxon {
	if maxKeep <= 0 {
		maxKeep = 5
	}
	return &LessFussyTaxon{TaxonToPlace: *base, MaxKeep: maxKeep}
}

// ConsiderPlacements overrides the base bulk path: it uses the same
// "smallest wins" choice and also repopulates PlacementStore from scratch.
func (taxon *LessFussyTaxon) ConsiderPlacements(placements []PossiblePlacement) int {
	taxon.PlacementStore = taxon.PlacementStore[:0]
	if len(placements) == 0 {
		return -1
	}
	best := 0
	for i := range placements {
		taxon.ConsiderAdditionalPlacement(placements[i])
		if placements[i].Score < placements[best].Score {
			best = i
		}
	}
	return best
}

// ConsiderAdditionalPlacement keeps PlacementStore sorted ascending by
// Score with at most MaxKeep entries, via a bounded bubble-insert (spec
// §4.5's top-k variant).
func (taxon *LessFussyTaxon) ConsiderAdditionalPlacement(p PossiblePlacement) bool {
	n := len(taxon.PlacementStore)
	if n >= taxon.MaxKeep {
		if !(p.Score < taxon.PlacementStore[n-1].Score) {
			return false
		}
		taxon.PlacementStore = taxon.PlacementStore[:n-1]
	}
	taxon.PlacementStore = append(taxon.PlacementStore, PossiblePlacement{})
	sweep := len(taxon.PlacementStore) - 1
	for sweep > 0 && p.Score < taxon.PlacementStore[sweep-1].Score {
		taxon.PlacementStore[sweep] = taxon.PlacementStore[sweep-1]
		sweep--
	}
	taxon.PlacementStore[sweep] = p
	if sweep == 0 {
		taxon.BestPlacement = p
		return true
	}
	return false
}

// ForgetGazumpedPlacements drops every stored placement whose target has
// since been consumed, then re-anchors BestPlacement to the best survivor
// (spec §4.5's top-k gazump handling — this is the point of carrying more
// than one candidate).
func (taxon *LessFussyTaxon) ForgetGazumpedPlacements() {
	w := 0
	for _, p := range taxon.PlacementStore {
		if p.CanStillUse() {
			taxon.PlacementStore[w] = p
			w++
		}
	}
	taxon.PlacementStore = taxon.PlacementStore[:w]
	if w == 0 {
		taxon.BestPlacement.Forget()
		return
	}
	taxon.BestPlacement = taxon.PlacementStore[0]
}

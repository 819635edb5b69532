// Package Run implements the top-level batch/pass driver of spec.md §4.6:
// AddNewTaxa repeatedly refreshes target branch state, scores every
// pending taxon against every target branch, inserts as many as the
// configuration allows, and carries unplaced/unconsidered taxa forward
// into the next pass. Grounded on addNewTaxaToTree in
// _examples/original_source/tree/placement.cpp.
package Run

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/emirpasic/gods/utils"

	"github.com/g-m-twostay/phyloplace/Alloc"
	"github.com/g-m-twostay/phyloplace/Config"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Logging"
	"github.com/g-m-twostay/phyloplace/Parsimony"
	"github.com/g-m-twostay/phyloplace/Placement"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// ErrNoTaxaInserted is returned when a batch inserts nothing at all — the
// original treats this as a fatal condition (outError("No taxa inserted in
// batch")); here it is a plain error the caller decides how to handle.
var ErrNoTaxaInserted = errors.New("Run: no taxa inserted in batch")

// AlignmentSource supplies the per-taxon encoded sequence a TaxonToPlace
// needs to seed its tip vector; Alignment.Alignment satisfies this.
type AlignmentSource interface {
	EncodedSequence(taxonID int) []byte
	NumPatterns() int
}

// PlacementRun bundles every collaborator AddNewTaxa needs, mirroring the
// original's PlacementRun struct (cost function, heuristic, calculator,
// cleaners) — the difference being that here it is a plain value the
// caller assembles, not a singleton read from global Params.
type PlacementRun struct {
	Tree      *Tree.Tree
	Alignment AlignmentSource
	Config    *Config.Config

	ParsimonyKernel Kernel.ParsimonyKernel
	CostCalculator  Placement.CostCalculator
	Heuristic       Placement.SearchHeuristic

	TaxonCleaner  Placement.TaxonCleaner
	BatchCleaner  Placement.BatchCleaner
	GlobalCleaner Placement.GlobalCleaner

	Logger *Logging.Logger

	// UseLessFussyTaxa wraps every candidate as a Placement.LessFussyTaxon
	// instead of a plain Placement.TaxonToPlace, carrying the top-k
	// fallback described in spec.md §4.5/invariant 12.
	UseLessFussyTaxa bool
	MaxKeep          int

	// Rand drives the stepwise-addition fast path's random taxon order;
	// nil uses a new source seeded with 1, so the order is the same on
	// every run.
	Rand *rand.Rand
}

func (pr *PlacementRun) trackLikelihood() bool {
	return pr.CostCalculator.UsesLikelihood()
}

// seedExistingTree allocates a parsimony block for every neighbor slot
// already present in the tree, and seeds the leaf-facing half of each such
// slot from the alignment. A slot lives on whichever node owns it and
// points at Opposite; by the convention NewTaxonToPlace also follows, a
// slot's content summarizes the endpoint it points at, so only slots
// pointing at a leaf are seeded with that leaf's tip state here, and a
// slot living on a leaf is left for the cascade. Every slot the cascade may ever
// enqueue must already carry an allocated block (Parsimony.Calculator
// never allocates on demand), and every slot pointing at a leaf must
// already be marked computed, or the cascade would try to combine it from
// children that don't exist. A tree built fresh by Newick.Parse (or by any
// caller assembling one directly) has neither, so this is the bootstrap
// step every non-empty starting tree needs before its first pass.
func (pr *PlacementRun) seedExistingTree(allocator *Alloc.Allocator) {
	t := pr.Tree
	for i := range t.Nodes {
		node := &t.Nodes[i]
		for s := range node.Slots {
			slot := &node.Slots[s]
			if !slot.Valid {
				continue
			}
			allocator.AllocateParsimony(slot)
			if opp := t.Node(slot.Opposite); opp.IsLeaf && !slot.Computed {
				pr.ParsimonyKernel.SeedTip(pr.Alignment.EncodedSequence(opp.TaxonID), allocator.Arena.Parsimony(slot.ParsBlock))
				slot.Computed = true
			}
		}
	}
}

func (pr *PlacementRun) logger() *Logging.Logger {
	if pr.Logger != nil {
		return pr.Logger
	}
	return noopLogger
}

var noopLogger = Logging.NewNop()

// scoredCandidate wraps whichever of *Placement.TaxonToPlace or
// *Placement.LessFussyTaxon a run is using, so the batch loop below can
// treat every candidate uniformly regardless of pr.UseLessFussyTaxa.
type scoredCandidate struct {
	plain *Placement.TaxonToPlace
	fussy *Placement.LessFussyTaxon
}

func (c *scoredCandidate) base() *Placement.TaxonToPlace {
	if c.fussy != nil {
		return &c.fussy.TaxonToPlace
	}
	return c.plain
}

func (c *scoredCandidate) Score() float64   { return c.base().BestPlacement.Score }
func (c *scoredCandidate) IsInserted() bool { return c.base().Inserted }
func (c *scoredCandidate) CanInsert() bool  { return c.base().CanInsert() }

// candidate returns c's taxon as a Placement.Candidate — c.fussy itself
// when the run is using top-k taxa, so FindPlacement/InsertNearby dispatch
// to LessFussyTaxon's overrides instead of silently running against the
// embedded base TaxonToPlace.
func (c *scoredCandidate) candidate() Placement.Candidate {
	if c.fussy != nil {
		return c.fussy
	}
	return c.plain
}

func (c *scoredCandidate) findPlacement(pc *Parsimony.Calculator, targets *Placement.TargetBranchRange, heuristic Placement.SearchHeuristic, calc Placement.CostCalculator) error {
	// Placements kept from an earlier pass may name entries that RemoveUsed
	// has since compacted away, so every search starts from nothing.
	c.base().BestPlacement.Forget()
	if c.fussy != nil {
		c.fussy.PlacementStore = c.fussy.PlacementStore[:0]
	}
	return Placement.FindPlacement(pc, c.candidate(), targets, heuristic, calc)
}

func (c *scoredCandidate) insertIntoTree(pc *Parsimony.Calculator, alloc *Alloc.Allocator, dest *Placement.TargetBranchRange, calc Placement.CostCalculator) error {
	return Placement.InsertIntoTree(pc, alloc, c.base(), dest, calc)
}

func (c *scoredCandidate) insertNearby(pc *Parsimony.Calculator, alloc *Alloc.Allocator, dest *Placement.TargetBranchRange, calc Placement.CostCalculator) (bool, error) {
	return Placement.InsertNearby(pc, alloc, c.candidate(), dest, calc)
}

// taxaAdditionWorkEstimate is the progress figure AddNewTaxa logs: the
// number of passes (newTaxaCount / insertsPerBatch) times the number of
// taxa still pending. It does not scale with the size of the tree.
func taxaAdditionWorkEstimate(newTaxaCount, taxaPerBatch, insertsPerBatch int) float64 {
	if taxaPerBatch < 1 {
		taxaPerBatch = 1
	}
	if insertsPerBatch < 1 {
		insertsPerBatch = taxaPerBatch
	}
	passes := float64(newTaxaCount) / float64(insertsPerBatch)
	return passes * float64(newTaxaCount)
}

// AddNewTaxa is the top-level driver (spec.md §4.6). taxonIDs names, in the
// order given, which taxa (already present in pr.Alignment) should be
// grown into the tree. It returns the total number of taxa actually
// inserted.
func (pr *PlacementRun) AddNewTaxa(taxonIDs []int, names []string) (int, error) {
	if len(taxonIDs) != len(names) {
		return 0, fmt.Errorf("Run: taxonIDs and names must have the same length")
	}

	taxaPerBatch := pr.Config.ResolveTaxaPerBatch(len(taxonIDs))
	insertsPerBatch := pr.Config.ResolveInsertsPerBatch(taxaPerBatch)

	if taxaPerBatch == 1 && pr.Heuristic.IsGlobalSearch() &&
		(pr.Config.CostFunction == Config.MaximumParsimony || pr.Config.CostFunction == Config.SankoffParsimony) {
		return pr.stepwiseAddition(taxonIDs, names)
	}

	trackLH := pr.trackLikelihood()
	finalLeafNum := pr.Tree.LeafNum + len(taxonIDs)
	parsBlockSize := pr.ParsimonyKernel.BlockSize(pr.Alignment.NumPatterns())
	// No concrete Kernel.LikelihoodKernel ships with this module (spec §1:
	// the likelihood kernel is an external collaborator), so the
	// likelihood arena is left unsized here; a caller wiring a real one
	// would size it via LikelihoodExtraBlocks and its kernel's BlockSize.
	// Parsimony blocks: every existing edge needs one for each of its two
	// slots and one for its target branch; every new taxon needs one for
	// its tip slot, two for the slots HandOver refills when it is inserted,
	// and three for its replacement target branches.
	arena := Alloc.NewArena(
		parsBlockSize, 0, 0,
		3*len(pr.Tree.Edges())+6*len(taxonIDs),
		Alloc.LikelihoodExtraBlocks(finalLeafNum, len(taxonIDs), trackLH),
	)
	allocator := Alloc.NewAllocator(arena, trackLH, pr.Alignment.NumPatterns(), parsBlockSize, 0, 0)
	pc := Parsimony.New(pr.Tree, pr.ParsimonyKernel, arena)
	pr.seedExistingTree(allocator)

	// The range must be built from the tree's edges before any candidate
	// stub is created below: NewTaxonToPlace adds a disconnected
	// NewInterior<->NewLeaf edge per taxon, and Tree.Edges() has no
	// reachability notion, so building the range after the stubs exist
	// would fold every not-yet-inserted taxon's own stub edge into its
	// initial target list (spec §3: stub nodes are "tree-external" until
	// InsertIntoTree links them in — Edges() doesn't know that).
	targets := Placement.NewTargetBranchRange(pr.Tree, allocator, pr.ParsimonyKernel, trackLH)

	candidates := make([]*scoredCandidate, 0, len(taxonIDs))
	for i, id := range taxonIDs {
		base := Placement.NewTaxonToPlace(pr.Tree, allocator, pr.ParsimonyKernel, id, names[i], pr.Alignment.EncodedSequence(id))
		sc := &scoredCandidate{}
		if pr.UseLessFussyTaxa {
			sc.fussy = Placement.NewLessFussyTaxon(base, pr.MaxKeep)
		} else {
			sc.plain = base
		}
		candidates = append(candidates, sc)
	}

	pr.logger().Med("batch sizing", "taxaPerBatch", taxaPerBatch, "insertsPerBatch", insertsPerBatch)
	pr.logger().Min("work estimate", "units", taxaAdditionWorkEstimate(len(candidates), taxaPerBatch, insertsPerBatch))

	newTaxaCount := len(candidates)
	totalInserted := 0
	for newTaxaCount > 0 {
		if newTaxaCount < taxaPerBatch {
			taxaPerBatch = newTaxaCount
		}
		batchStart := 0
		for batchStart+taxaPerBatch <= newTaxaCount {
			batchStop := batchStart + taxaPerBatch

			pr.Tree.ClearAllComputedFlags()
			for i := 0; i < targets.Len(); i++ {
				// A used target's endpoints are no longer adjacent.
				if targets.At(i).Used {
					continue
				}
				targets.ComputeState(i, pc)
			}

			for i := batchStart; i < batchStop; i++ {
				if err := candidates[i].findPlacement(pc, targets, pr.Heuristic, pr.CostCalculator); err != nil {
					return totalInserted, err
				}
			}

			insertsPerBatch = pr.Config.ResolveInsertsPerBatch(batchStop - batchStart)
			insertStop := batchStart + insertsPerBatch
			if batchStop < insertStop {
				insertStop = batchStop
			}
			batchSlice := candidates[batchStart:batchStop]
			sortCandidatesByScore(batchSlice)

			insertCount := 0
			for i := batchStart; i < insertStop; i++ {
				c := candidates[i]
				var err error
				if c.CanInsert() {
					err = c.insertIntoTree(pc, allocator, targets, pr.CostCalculator)
				} else {
					_, err = c.insertNearby(pc, allocator, targets, pr.CostCalculator)
				}
				if err != nil {
					if !errors.Is(err, Placement.ErrNoLivePlacement) {
						return totalInserted, err
					}
					continue
				}
				insertCount++
				totalInserted++
				pr.logger().Debug("inserted taxon", "taxon", c.base().TaxonName, "score", c.Score())
				pr.TaxonCleaner.CleanAfterTaxon(c.base())
			}
			pr.BatchCleaner.CleanAfterBatch(baseSlice(batchSlice))

			if insertCount == 0 {
				return totalInserted, ErrNoTaxaInserted
			}
			if taxaPerBatch > 1 {
				pr.logger().Med("batch complete", "inserted", insertCount, "batchSize", batchStop-batchStart)
			}
			batchStart = batchStop
		}

		targets.RemoveUsed()
		candidates = carryForward(candidates, batchStart, newTaxaCount)
		newTaxaCount = len(candidates)
		insertsPerBatch = pr.Config.ResolveInsertsPerBatch(taxaPerBatch)
		pr.logger().Max("pass complete", "remaining", newTaxaCount, "workLeft", taxaAdditionWorkEstimate(newTaxaCount, taxaPerBatch, insertsPerBatch))
	}

	pr.GlobalCleaner.CleanAfterRun()
	pr.logger().Min("placement run complete", "totalInserted", totalInserted)
	return totalInserted, nil
}

// carryForward builds the next pass's candidate list: taxa never
// considered this pass (index >= batchStart), followed by taxa considered
// but not inserted (spec.md §4.6's carry-forward rule).
func carryForward(candidates []*scoredCandidate, batchStart, newTaxaCount int) []*scoredCandidate {
	next := make([]*scoredCandidate, 0, newTaxaCount-batchStart)
	next = append(next, candidates[batchStart:newTaxaCount]...)
	for i := 0; i < batchStart; i++ {
		if !candidates[i].IsInserted() {
			next = append(next, candidates[i])
		}
	}
	return next
}

func baseSlice(cs []*scoredCandidate) []*Placement.TaxonToPlace {
	out := make([]*Placement.TaxonToPlace, len(cs))
	for i, c := range cs {
		out[i] = c.base()
	}
	return out
}

// sortCandidatesByScore sorts a batch ascending by best-placement score
// (lowest first, matching PossiblePlacement's "lower is better"
// convention), using gods' comparator-driven sort instead of
// hand-rolling one.
func sortCandidatesByScore(cs []*scoredCandidate) {
	values := make([]interface{}, len(cs))
	for i, c := range cs {
		values[i] = c
	}
	utils.Sort(values, func(a, b interface{}) int {
		sa, sb := a.(*scoredCandidate).Score(), b.(*scoredCandidate).Score()
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	})
	for i := range cs {
		cs[i] = values[i].(*scoredCandidate)
	}
}

// stepwiseAddition is the B=1/pure-parsimony/global-heuristic fast path
// (spec.md §4.6, original's addNewTaxaToTree early-return branch). The
// original rebuilds the whole tree from scratch via a PLL-backed
// computeParsimonyTree; that routine is itself an external collaborator
// (a full stepwise-addition tree builder is out of this module's scope),
// so this reimplements the same idea directly against the engine's own
// insertion machinery: taxa are tried one at a time, in random order,
// each spliced into whichever existing branch parsimony prefers.
func (pr *PlacementRun) stepwiseAddition(taxonIDs []int, names []string) (int, error) {
	order := make([]int, len(taxonIDs))
	for i := range order {
		order[i] = i
	}
	rnd := pr.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	numPatterns := pr.Alignment.NumPatterns()
	blockSize := pr.ParsimonyKernel.BlockSize(numPatterns)
	// Same block count as AddNewTaxa: three per existing edge, six per taxon.
	arena := Alloc.NewArena(blockSize, 0, 0, 3*len(pr.Tree.Edges())+6*len(taxonIDs), 0)
	allocator := Alloc.NewAllocator(arena, false, numPatterns, blockSize, 0, 0)
	pc := Parsimony.New(pr.Tree, pr.ParsimonyKernel, arena)
	calc := pr.CostCalculator

	start := 0
	if len(pr.Tree.Nodes) == 0 {
		if len(order) < 2 {
			return 0, fmt.Errorf("Run: stepwise addition needs at least 2 taxa to start an empty tree")
		}
		id0, id1 := taxonIDs[order[0]], taxonIDs[order[1]]
		leaf0 := pr.Tree.NewNode(id0, names[order[0]])
		leaf1 := pr.Tree.NewNode(id1, names[order[1]])
		pr.Tree.AddEdge(leaf0, leaf1, 1.0)
		// tipSlot0 lives on leaf0 pointing at leaf1, so it carries leaf1's
		// own tip state (the convention NewTaxonToPlace/seedExistingTree
		// also follow: a slot's content is always the tip state of
		// whichever endpoint it points at, not the endpoint it lives on).
		tipSlot0 := pr.Tree.FindNeighbor(leaf0, leaf1)
		tipSlot1 := pr.Tree.FindNeighbor(leaf1, leaf0)
		allocator.AllocateParsimony(tipSlot0)
		allocator.AllocateParsimony(tipSlot1)
		pr.ParsimonyKernel.SeedTip(pr.Alignment.EncodedSequence(id1), arena.Parsimony(tipSlot0.ParsBlock))
		pr.ParsimonyKernel.SeedTip(pr.Alignment.EncodedSequence(id0), arena.Parsimony(tipSlot1.ParsBlock))
		tipSlot0.Computed, tipSlot1.Computed = true, true
		start = 2
	} else {
		pr.seedExistingTree(allocator)
	}

	targets := Placement.NewTargetBranchRange(pr.Tree, allocator, pr.ParsimonyKernel, false)

	inserted := start // the two bootstrap leaves, if any, count as inserted
	for _, idx := range order[start:] {
		id, name := taxonIDs[idx], names[idx]
		taxon := Placement.NewTaxonToPlace(pr.Tree, allocator, pr.ParsimonyKernel, id, name, pr.Alignment.EncodedSequence(id))
		pr.Tree.ClearAllComputedFlags()
		for i := 0; i < targets.Len(); i++ {
			if targets.At(i).Used {
				continue
			}
			targets.ComputeState(i, pc)
		}
		if err := Placement.FindPlacement(pc, taxon, targets, Placement.GlobalHeuristic{}, calc); err != nil {
			return inserted, err
		}
		if !taxon.CanInsert() {
			continue
		}
		if err := Placement.InsertIntoTree(pc, allocator, taxon, targets, calc); err != nil {
			return inserted, err
		}
		inserted++
		pr.logger().Debug("stepwise inserted", "taxon", name)
	}
	targets.RemoveUsed()
	pr.GlobalCleaner.CleanAfterRun()
	pr.logger().Min("stepwise addition complete", "totalInserted", inserted)
	return inserted, nil
}

// scoreNewTaxonMajor is the dormant new-taxon-major scoring path named in
// the original's `#if (NEW_TAXON_MAJOR)` branch (spec.md §9 Open
// Question). It is never called by AddNewTaxa's insertion-point-major
// flow above and has no test; it is kept compiled because the original
// ships it behind a compile-time flag rather than deleting it. It scores
// each candidate through FindPlacement, like the default flow.
func scoreNewTaxonMajor(pc *Parsimony.Calculator, candidates []*Placement.TaxonToPlace, targets *Placement.TargetBranchRange, heuristic Placement.SearchHeuristic, calc Placement.CostCalculator) error {
	for _, c := range candidates {
		if err := Placement.FindPlacement(pc, c, targets, heuristic, calc); err != nil {
			return err
		}
	}
	return nil
}

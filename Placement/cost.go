package Placement

import (
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Parsimony"
)

// CostCalculator scores one (taxon, target branch) pair and fills in a
// PossiblePlacement (spec §4.4). Every calculator stores Score so that
// lower is always better, negating a maximized likelihood internally —
// this keeps PossiblePlacement.Less and every top-k comparison a single
// uniform "<" regardless of which calculator produced the score (spec
// §4.4's "by negation internally" option).
type CostCalculator interface {
	// AssessPlacementCost fills in placement.Score and the three branch
	// lengths from placement.Target, given the taxon's own partial vector.
	AssessPlacementCost(pc *Parsimony.Calculator, taxon *TaxonToPlace, placement *PossiblePlacement) error

	// UsesLikelihood reports whether this calculator needs a target
	// branch's likelihood block populated (so TargetBranchRange knows
	// whether to allocate one).
	UsesLikelihood() bool
}

// ParsimonyCost is the default, cheapest calculator: the out-of-tree
// parsimony score of uniting the taxon's tip vector with a target
// branch's summary vector, split evenly across the new branch. Grounded
// on ParsimonyCostCalculator::assessPlacementCost.
//
// It reads vectors through the Parsimony.Calculator's own Arena (passed
// into AssessPlacementCost) rather than carrying a second Arena pointer of
// its own — the run driver owns exactly one arena per run, sized only
// once batch sizes are known, so a calculator built before that arena
// exists must not cache a stale or nil one.
type ParsimonyCost struct {
	Kernel Kernel.ParsimonyKernel
	// HalfBranchLength is the default length assigned to each half of the
	// branch the stub interior node splits (spec never fixes a value; the
	// original hardcodes a small constant, so this is a parameter here
	// rather than baked in).
	HalfBranchLength float64
	// NewTaxonBranchLength is the pendant length given to the new leaf.
	NewTaxonBranchLength float64
}

func (ParsimonyCost) UsesLikelihood() bool { return false }

func (c ParsimonyCost) AssessPlacementCost(pc *Parsimony.Calculator, taxon *TaxonToPlace, placement *PossiblePlacement) error {
	target := placement.Target.Target()
	score := c.Kernel.Score(pc.Arena.Parsimony(taxon.ParsBlock), pc.Arena.Parsimony(target.ParsBlock))
	placement.Score = float64(score)
	placement.LenToNode1 = c.HalfBranchLength
	placement.LenToNode2 = c.HalfBranchLength
	placement.LenToNewTaxon = c.NewTaxonBranchLength
	return nil
}

// SankoffCost is the generalized-cost-matrix variant: same shape as
// ParsimonyCost but delegates to a kernel that may weight state
// transitions asymmetrically (spec §4.4, grounded on
// SankoffParsimonyCostCalculator in the original).
type SankoffCost struct {
	ParsimonyCost
}

// The "ML" and "FML" likelihood calculators spec §4.4 describes (splice
// the stub interior into the target branch, optimize, read the
// likelihood, un-splice) are not implemented in this package. A faithful
// splice/un-splice needs a partial likelihood vector for the new taxon's
// own tip, and spec §3's TaxonToPlace carries none — only a parsimony
// vector. Kernel.LikelihoodKernel (spec §6) names no tip-seeding
// operation either, so there is no interface-sanctioned way to obtain
// that vector without guessing at a contract the spec never states.
// cmd/placeengine already reports ConfigurationInvalid for C=ML/C=FML
// rather than running an unverified cost calculator; see DESIGN.md's
// "Known scope boundaries" for the full rationale.

// Package Kernel declares the scoring collaborators the placement engine
// drives but does not itself implement: the parsimony kernel and the
// likelihood kernel. Concrete kernels live outside this package (see
// FitchKernel for a runnable parsimony default); Kernel only fixes the
// contract.
package Kernel

import "errors"

// ErrNumeric is returned by a LikelihoodKernel when it hits underflow or
// an otherwise invalid score. The engine does not attempt to recover from
// it; it propagates to the caller of Run.AddNewTaxa.
var ErrNumeric = errors.New("Kernel: invalid numeric result")

// ParsimonyVector is an opaque partial-parsimony vector, one entry per
// alignment pattern (possibly packed, e.g. as bitsets). The engine never
// looks inside it; only a ParsimonyKernel does.
type ParsimonyVector []byte

// ParsimonyKernel scores and combines partial parsimony vectors. Both
// methods are pure: no shared state may be mutated, since Score and
// Combine are invoked from multiple goroutines within a single fork-join
// wave (spec §4.2, §5).
type ParsimonyKernel interface {
	// Score returns the parsimony cost of uniting the two partial vectors,
	// i.e. the out-of-tree combination cost.
	Score(a, b ParsimonyVector) int

	// Combine computes the partial vector for a parent of the two children
	// summarized by a and b, writing into out (which is sized and owned by
	// the caller; Combine must not retain it).
	Combine(a, b ParsimonyVector, out ParsimonyVector)

	// BlockSize returns the number of bytes a ParsimonyVector must have to
	// summarize a subtree under this kernel, given the number of alignment
	// patterns.
	BlockSize(numPatterns int) int

	// SeedTip writes the tip partial vector for a leaf directly from its
	// encoded alignment row (one state byte per pattern), the base case
	// combine never computes from scratch.
	SeedTip(encoded []byte, out ParsimonyVector)
}

// LikelihoodVector is an opaque partial-likelihood vector.
type LikelihoodVector []float64

// ScaleVector holds per-pattern scaling exponents paired with a
// LikelihoodVector.
type ScaleVector []byte

// LikelihoodKernel is the contract for an external likelihood
// collaborator. No implementation ships in this module and no cost
// calculator here calls it; the parsimony path never invokes it.
type LikelihoodKernel interface {
	// LikelihoodBranch evaluates, without mutating branch lengths, the
	// log-likelihood contribution of the branch whose partial likelihood
	// vectors are given.
	LikelihoodBranch(a, b LikelihoodVector, branchLength float64) (float64, error)

	// OptimizeOneBranch adjusts a single branch length in place (between
	// the two named nodes) to a local likelihood optimum, performing at
	// most maxIterations refinements, and returns the optimized length.
	OptimizeOneBranch(nodeA, nodeB int, maxIterations int) (float64, error)

	// LikelihoodFromBuffer returns the whole-tree log-likelihood computed
	// from whatever partial vectors are currently cached; it does not
	// recompute anything.
	LikelihoodFromBuffer() (float64, error)

	// FixNegativeBranch clamps any branch length below a minimum back up
	// to that minimum, tree-wide.
	FixNegativeBranch() error

	// BlockSize returns the number of float64 entries a LikelihoodVector
	// needs, and the number of scale bytes a ScaleVector needs, given the
	// number of alignment patterns.
	BlockSize(numPatterns int) (lhFloats int, scaleBytes int)
}

// Package FitchKernel supplies a concrete Kernel.ParsimonyKernel: classic
// Fitch parsimony over a small nucleotide state set (A/C/G/T, plus a
// fully-ambiguous "any" state), packed one byte per alignment pattern.
// This is the default "parsimony kernel" external collaborator spec.md §1
// leaves unspecified, provided so the engine can run end to end without
// the caller writing their own.
package FitchKernel

import "github.com/g-m-twostay/phyloplace/Kernel"

// stateAny is a bitmask covering all four bases — what an ambiguous or
// gap character encodes to (see Alignment's nucleotideCode).
const stateAny byte = 0x0F

// stateBit maps the encoded bytes Alignment produces (0..3 for A/C/G/T,
// anything else treated as fully ambiguous) to Fitch's one-bit-per-base
// representation.
func stateBit(encoded byte) byte {
	switch encoded {
	case 0, 1, 2, 3:
		return 1 << encoded
	default:
		return stateAny
	}
}

// Fitch implements Kernel.ParsimonyKernel: one bitmask byte per pattern,
// one bit per of the four bases.
type Fitch struct{}

func (Fitch) BlockSize(numPatterns int) int { return numPatterns }

func (Fitch) SeedTip(encoded []byte, out Kernel.ParsimonyVector) {
	for i, e := range encoded {
		out[i] = stateBit(e)
	}
}

// Combine implements the standard Fitch rule per pattern: intersect the
// two children's bitmasks; if empty, union instead (a "cost" site, scored
// in Score below by counting how many patterns needed the union instead
// of the intersection).
func (Fitch) Combine(a, b Kernel.ParsimonyVector, out Kernel.ParsimonyVector) {
	for i := range out {
		inter := a[i] & b[i]
		if inter != 0 {
			out[i] = inter
		} else {
			out[i] = a[i] | b[i]
		}
	}
}

// Score counts, per pattern, whether uniting a and b needed a union
// rather than an intersection — that's one parsimony step per such
// pattern, the out-of-tree branch score spec.md §4.2's compute_branch
// wants.
func (Fitch) Score(a, b Kernel.ParsimonyVector) int {
	steps := 0
	for i := range a {
		if a[i]&b[i] == 0 {
			steps++
		}
	}
	return steps
}

package FitchKernel

import (
	"math"

	"github.com/g-m-twostay/phyloplace/Kernel"
)

// Sankoff implements Kernel.ParsimonyKernel using a weighted cost matrix
// over the same four-state alphabet Fitch uses, instead of Fitch's
// unweighted intersect/union rule. Each ParsimonyVector entry holds, per
// state, the minimum cost of the subtree below given that state at this
// node — the classic Sankoff per-site DP table, one float32 per state
// packed into the byte slice Kernel.ParsimonyVector exposes.
type Sankoff struct {
	// Cost is a 4x4 substitution cost matrix; Cost[i][j] is the cost of
	// changing from state i to state j. NewSankoff(nil) fills in the
	// Fitch-equivalent 0/1 matrix; a zero-value Sankoff has all costs 0.
	Cost [4][4]float32
}

// NewSankoff returns a Sankoff kernel with the given cost matrix, or the
// unweighted 0/1 matrix (cost 0 for a match, 1 otherwise) if cost is nil
// — reducing to ordinary Fitch parsimony under a different vector layout.
func NewSankoff(cost *[4][4]float32) Sankoff {
	if cost != nil {
		return Sankoff{Cost: *cost}
	}
	var s Sankoff
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i != j {
				s.Cost[i][j] = 1
			}
		}
	}
	return s
}

// BlockSize needs 4 float32s (16 bytes) per pattern, one per state's
// running minimum cost.
func (Sankoff) BlockSize(numPatterns int) int { return numPatterns * 4 * 4 }

func putF32(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

func getF32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func (s Sankoff) SeedTip(encoded []byte, out Kernel.ParsimonyVector) {
	for i, e := range encoded {
		base := i * 16
		bit := stateBit(e)
		for st := 0; st < 4; st++ {
			cost := float32(0)
			if bit&(1<<uint(st)) == 0 {
				// Tip is observed in a different state (or ambiguous covers
				// it, in which case every state is free): cost is 0 if this
				// state is among the tip's possibilities, infinite otherwise.
				cost = float32(1e30)
			}
			putF32(out[base+st*4:], cost)
		}
	}
}

// Combine applies the Sankoff recurrence at each pattern and state:
// cost(state) = min_j(a[j]+Cost[state][j]) + min_k(b[k]+Cost[state][k]).
func (s Sankoff) Combine(a, b Kernel.ParsimonyVector, out Kernel.ParsimonyVector) {
	n := len(a) / 16
	for i := 0; i < n; i++ {
		base := i * 16
		var av, bv [4]float32
		for st := 0; st < 4; st++ {
			av[st] = getF32(a[base+st*4:])
			bv[st] = getF32(b[base+st*4:])
		}
		for st := 0; st < 4; st++ {
			bestA := float32(1e30)
			bestB := float32(1e30)
			for j := 0; j < 4; j++ {
				if c := av[j] + s.Cost[st][j]; c < bestA {
					bestA = c
				}
				if c := bv[j] + s.Cost[st][j]; c < bestB {
					bestB = c
				}
			}
			putF32(out[base+st*4:], bestA+bestB)
		}
	}
}

// Score returns the minimum total cost across states at the root of
// uniting a and b, summed across patterns — the whole-alignment
// out-of-tree score spec.md §4.2 wants.
func (s Sankoff) Score(a, b Kernel.ParsimonyVector) int {
	n := len(a) / 16
	total := float32(0)
	for i := 0; i < n; i++ {
		base := i * 16
		best := float32(1e30)
		for st := 0; st < 4; st++ {
			bestA := float32(1e30)
			bestB := float32(1e30)
			for j := 0; j < 4; j++ {
				av := getF32(a[base+j*4:])
				bv := getF32(b[base+j*4:])
				if c := av + s.Cost[st][j]; c < bestA {
					bestA = c
				}
				if c := bv + s.Cost[st][j]; c < bestB {
					bestB = c
				}
			}
			if c := bestA + bestB; c < best {
				best = c
			}
		}
		total += best
	}
	return int(total)
}

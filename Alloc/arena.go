// Package Alloc implements the block allocator of spec §4.1: fixed-size
// parsimony / likelihood / scale-number blocks carved out of pre-sized
// arenas by bumping a counter, never freed individually, plus the
// hand-over primitive used when the tree is mutated during an insertion.
//
// The arena itself is a flat byte/float64 slice sliced into fixed-width
// blocks addressed by Tree.BlockHandle — the same bump-allocate-by-index
// idea as the teacher's Trees/base.go arena, minus the unsafe.Pointer
// arithmetic, which Go's slice indexing makes unnecessary here.
package Alloc

import (
	"fmt"

	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Tree"
)

// Arena owns the three contiguous buffers and their bump counters.
type Arena struct {
	parsBlockSize  int
	lhBlockSize    int
	scaleBlockSize int

	pars      []byte // len == capacity*parsBlockSize
	lh        []float64
	scale     []byte
	nextPars  int
	nextLh    int
	parsCap   int
	lhCap     int
	debugMode bool
}

// NewArena pre-sizes the three arenas. parsCapacity / lhCapacity are the
// maximum number of blocks of each kind that will ever be bound; the
// caller computes them and passes them in, since Arena itself is
// index-width-agnostic.
func NewArena(parsBlockSize, lhBlockSize, scaleBlockSize, parsCapacity, lhCapacity int) *Arena {
	a := &Arena{
		parsBlockSize: parsBlockSize, lhBlockSize: lhBlockSize, scaleBlockSize: scaleBlockSize,
		parsCap: parsCapacity, lhCap: lhCapacity,
	}
	if parsBlockSize > 0 && parsCapacity > 0 {
		a.pars = make([]byte, parsBlockSize*parsCapacity)
	}
	if lhBlockSize > 0 && lhCapacity > 0 {
		a.lh = make([]float64, lhBlockSize*lhCapacity)
		a.scale = make([]byte, scaleBlockSize*lhCapacity)
	}
	return a
}

// SetDebugMode enables the capacity assertions described in spec §9
// ("an implementer should assert this bound in debug builds"). Production
// callers leave it off; tests turn it on to catch pre-sizing bugs as a
// panic instead of silent corruption.
func (a *Arena) SetDebugMode(on bool) { a.debugMode = on }

// NewParsimonyHandle bumps the parsimony counter and returns the handle for
// the freshly reserved block.
func (a *Arena) NewParsimonyHandle() Tree.BlockHandle {
	if a.debugMode && a.nextPars >= a.parsCap {
		panic(fmt.Sprintf("Alloc: parsimony arena exhausted (capacity %d)", a.parsCap))
	}
	h := Tree.BlockHandle(a.nextPars)
	a.nextPars++
	return h
}

// NewLikelihoodHandle bumps the likelihood/scale counter (they are always
// allocated together, as in spec §4.1) and returns the shared index.
func (a *Arena) NewLikelihoodHandle() Tree.BlockHandle {
	if a.debugMode && a.nextLh >= a.lhCap {
		panic(fmt.Sprintf("Alloc: likelihood arena exhausted (capacity %d)", a.lhCap))
	}
	h := Tree.BlockHandle(a.nextLh)
	a.nextLh++
	return h
}

// Parsimony returns the backing bytes for a parsimony handle.
func (a *Arena) Parsimony(h Tree.BlockHandle) Kernel.ParsimonyVector {
	if h == Tree.NoBlock {
		return nil
	}
	off := int(h) * a.parsBlockSize
	return Kernel.ParsimonyVector(a.pars[off : off+a.parsBlockSize])
}

// Likelihood returns the backing floats for a likelihood handle.
func (a *Arena) Likelihood(h Tree.BlockHandle) Kernel.LikelihoodVector {
	if h == Tree.NoBlock || a.lh == nil {
		return nil
	}
	off := int(h) * a.lhBlockSize
	return Kernel.LikelihoodVector(a.lh[off : off+a.lhBlockSize])
}

// Scale returns the backing bytes for a scale-number handle.
func (a *Arena) Scale(h Tree.BlockHandle) Kernel.ScaleVector {
	if h == Tree.NoBlock || a.scale == nil {
		return nil
	}
	off := int(h) * a.scaleBlockSize
	return Kernel.ScaleVector(a.scale[off : off+a.scaleBlockSize])
}

// ParsimonyExtraBlocks implements spec §4.1 / §9's capacity formula for the
// parsimony arena: 2*leafNum - 4 extra blocks beyond the leaves themselves.
func ParsimonyExtraBlocks(leafNum int) int {
	if leafNum < 2 {
		return 0
	}
	return 2*leafNum - 4
}

// LikelihoodExtraBlocks implements spec §4.1 / §9's capacity formula for
// the likelihood arena: 4*leafNum - 4 + |L_new| extra blocks, or 0 if
// likelihood is not tracked.
func LikelihoodExtraBlocks(leafNum, newTaxa int, trackLikelihood bool) int {
	if !trackLikelihood || leafNum < 2 {
		return 0
	}
	return 4*leafNum - 4 + newTaxa
}

package Alloc

import "github.com/g-m-twostay/phyloplace/Tree"

// Allocator binds Tree.Neighbor slots to arena blocks, and performs the
// hand-over transfer used when a target branch is consumed by an insertion
// (spec §4.1).
type Allocator struct {
	Arena          *Arena
	TracksLH       bool
	NumPatterns    int
	ParsBlockSize  int
	LhBlockSize    int
	ScaleBlockSize int
}

// NewAllocator wires an Allocator to an already-sized Arena.
func NewAllocator(arena *Arena, tracksLH bool, numPatterns, parsBlockSize, lhBlockSize, scaleBlockSize int) *Allocator {
	return &Allocator{
		Arena: arena, TracksLH: tracksLH, NumPatterns: numPatterns,
		ParsBlockSize: parsBlockSize, LhBlockSize: lhBlockSize, ScaleBlockSize: scaleBlockSize,
	}
}

// AllocateParsimony binds slot.ParsBlock if it is unset.
func (al *Allocator) AllocateParsimony(slot *Tree.Neighbor) {
	if slot.ParsBlock == Tree.NoBlock {
		slot.ParsBlock = al.Arena.NewParsimonyHandle()
	}
}

// AllocateLikelihood binds slot.LhBlock/ScaleNum if unset and likelihood is
// being tracked.
func (al *Allocator) AllocateLikelihood(slot *Tree.Neighbor) {
	if !al.TracksLH {
		return
	}
	if slot.LhBlock == Tree.NoBlock {
		h := al.Arena.NewLikelihoodHandle()
		slot.LhBlock = h
		slot.ScaleNum = h
	}
}

// AllocateAll assigns any missing blocks to slot (spec §4.1:
// allocate_all(slot)).
func (al *Allocator) AllocateAll(slot *Tree.Neighbor) {
	al.AllocateParsimony(slot)
	al.AllocateLikelihood(slot)
}

// HandOver swaps partial_pars, partial_lh, scale_num and the computed flag
// between from and to, then reallocates from's blocks fresh and marks from
// uncomputed (spec §4.1: hand_over(from, to)).
func (al *Allocator) HandOver(from, to *Tree.Neighbor) {
	from.ParsBlock, to.ParsBlock = to.ParsBlock, from.ParsBlock
	from.LhBlock, to.LhBlock = to.LhBlock, from.LhBlock
	from.ScaleNum, to.ScaleNum = to.ScaleNum, from.ScaleNum
	from.Computed, to.Computed = to.Computed, from.Computed

	from.ParsBlock, from.LhBlock, from.ScaleNum = Tree.NoBlock, Tree.NoBlock, Tree.NoBlock
	al.AllocateAll(from)
	from.Computed = false
}

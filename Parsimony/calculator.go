// Package Parsimony implements the lazy, data-parallel partial-parsimony
// calculator of spec §4.2: a work queue of (slot, anchor) pairs, resolved
// bottom-up in fork-join waves so that every slot is computed before any
// caller observes it, and so that slots at the same depth — which read
// only already-computed deeper slots and write only their own slot — can
// be combined concurrently without locking.
package Parsimony

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/g-m-twostay/phyloplace/Alloc"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Tree"
)

type workItem struct {
	slot  *Tree.Neighbor
	owner Tree.NodeID
}

// Calculator runs the cascade against one tree using one kernel.
type Calculator struct {
	Tree     *Tree.Tree
	Kernel   Kernel.ParsimonyKernel
	Arena    *Alloc.Arena
	workToDo []workItem

	// calls counts the number of kernel.Combine invocations actually made,
	// used by tests to check invariant 9 ("running the cascade on an
	// already-up-to-date tree performs zero kernel calls"). It is written
	// from multiple goroutines inside combineLevel, hence atomic.
	calls atomic.Int64
}

// Calls returns the number of kernel.Combine invocations made so far.
func (c *Calculator) Calls() int64 { return c.calls.Load() }

// New returns a calculator bound to tree/kernel/arena.
func New(t *Tree.Tree, k Kernel.ParsimonyKernel, arena *Alloc.Arena) *Calculator {
	return &Calculator{Tree: t, Kernel: k, Arena: arena}
}

// Enqueue adds (slot, owner) to the work queue if slot is not already
// computed. No duplicate suppression is performed — the computation is
// idempotent, so enqueuing the same slot twice just costs one extra
// (harmless) recombination (spec §4.2: enqueue).
func (c *Calculator) Enqueue(slot *Tree.Neighbor, owner Tree.NodeID) {
	if !slot.Computed {
		c.workToDo = append(c.workToDo, workItem{slot: slot, owner: owner})
	}
}

// ComputeBranch enqueues both slots of the edge (slotA, anchorA) and its
// reciprocal, runs the cascade, then returns the kernel's branch score on
// the freshly computed vectors (spec §4.2: compute_branch).
func (c *Calculator) ComputeBranch(slotA *Tree.Neighbor, anchorA Tree.NodeID) int {
	node := slotA.Opposite
	nodeBranch := c.Tree.FindNeighbor(node, anchorA)

	start := len(c.workToDo)
	c.Enqueue(slotA, anchorA)
	c.Enqueue(nodeBranch, node)
	c.Calculate(start)

	return c.Kernel.Score(c.Arena.Parsimony(slotA.ParsBlock), c.Arena.Parsimony(nodeBranch.ParsBlock))
}

// Calculate resolves every slot enqueued since startIndex, deepest
// dependency first (spec §4.2's recursive cascade).
func (c *Calculator) Calculate(startIndex int) {
	c.calculate(startIndex, false)
}

// calculate is the recursive worker; track controls whether progress is
// reported for this call (reserved for a future Logging hook — currently
// every call is silent, matching the "no task description" inner
// recursion in the original).
func (c *Calculator) calculate(startIndex int, _track bool) {
	stopIndex := len(c.workToDo)
	if stopIndex <= startIndex {
		return
	}

	// 1. Discover one level of dependencies, from the end backwards.
	for i := stopIndex - 1; i >= startIndex; i-- {
		item := c.workToDo[i]
		n := item.slot.Opposite
		c.Tree.OtherNeighbors(n, item.owner, func(nei *Tree.Neighbor) {
			c.Enqueue(nei, n)
		})
	}

	// 2. Resolve those deeper dependencies first.
	c.calculate(stopIndex, false)
	c.workToDo = c.workToDo[:stopIndex]

	// 3. Combine this level's items in parallel; each writes only its own
	// slot and reads only already-computed deeper slots (spec §5).
	c.combineLevel(c.workToDo[startIndex:stopIndex])

	c.workToDo = c.workToDo[:startIndex]
}

func (c *Calculator) combineLevel(items []workItem) {
	if len(items) == 0 {
		return
	}
	if len(items) == 1 {
		c.combineOne(items[0])
		return
	}
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range items {
		item := items[i]
		g.Go(func() error {
			c.combineOne(item)
			return nil
		})
	}
	_ = g.Wait() // combineOne never errors; Wait only joins the goroutines
}

// combineOne computes item.slot's content from the two slots living on
// item.slot.Opposite, other than the one pointing back at item.owner — the
// children discovered for this item one level deeper in the cascade. A
// slot pointing at a leaf has no two children: its bytes hold the tip state
// written by Kernel.SeedTip (in NewTaxonToPlace or Run's seeding step),
// which Tree.ClearAllComputedFlags leaves intact, so such a slot is only
// marked computed again.
func (c *Calculator) combineOne(item workItem) {
	n := item.slot.Opposite
	var children [2]*Tree.Neighbor
	count := 0
	c.Tree.OtherNeighbors(n, item.owner, func(nei *Tree.Neighbor) {
		if count < 2 {
			children[count] = nei
		}
		count++
	})
	if count != 2 {
		// n is a leaf (or malformed degree) — nothing to combine from;
		// the slot keeps its seeded tip bytes.
		item.slot.Computed = true
		return
	}
	out := c.Arena.Parsimony(item.slot.ParsBlock)
	c.Kernel.Combine(c.Arena.Parsimony(children[0].ParsBlock), c.Arena.Parsimony(children[1].ParsBlock), out)
	c.calls.Add(1)
	item.slot.Computed = true
}

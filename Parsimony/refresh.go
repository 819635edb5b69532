package Parsimony

import "github.com/g-m-twostay/phyloplace/Tree"

// RefreshEndpoints ensures the two directed slots of the edge a<->b are
// computed, enqueuing and cascading as needed, and returns them. This is
// the piece of spec §4.3's compute_state that belongs to the parallel
// calculator: "recomputes the two endpoint slots' partials via the
// parallel calculator."
func (c *Calculator) RefreshEndpoints(a, b Tree.NodeID) (slotAtoB, slotBtoA *Tree.Neighbor) {
	slotAtoB = c.Tree.FindNeighbor(a, b)
	slotBtoA = c.Tree.FindNeighbor(b, a)
	start := len(c.workToDo)
	c.Enqueue(slotAtoB, a)
	c.Enqueue(slotBtoA, b)
	c.Calculate(start)
	return slotAtoB, slotBtoA
}

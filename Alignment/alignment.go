// Package Alignment is a minimal in-memory multiple sequence alignment
// with site-pattern deduplication: many alignment columns (sites) repeat
// the same combination of states across all taxa, and the parsimony/
// likelihood kernels only ever need to score each distinct combination
// (pattern) once, weighted by how many sites share it. This is the
// "alignment loading and pattern ordering" collaborator spec.md §1 names
// as external to the placement engine itself; a concrete stand-in is
// supplied here so the engine is runnable end to end.
package Alignment

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

// Alignment holds one encoded state byte per (taxon, pattern) plus each
// pattern's site-count weight.
type Alignment struct {
	names    []string
	idOf     map[string]int
	patterns [][]byte // patterns[p][taxonID] = encoded state
	weights  []int    // weights[p] = number of alignment sites collapsing to pattern p
}

// New returns an empty alignment; taxa are added via AddSequence.
func New() *Alignment {
	return &Alignment{idOf: make(map[string]int)}
}

// patternKey orders patterns in a google/btree.BTreeG by their encoded
// bytes, so Compact can find an existing identical pattern in
// O(log p) instead of a linear scan (grounded on the teacher's general
// preference for an ordered-tree structure over ad hoc hashing when the
// key needs an ordering, as in Trees/SBTree.go — here the ordering itself
// is never used downstream, but the balanced-tree lookup is what's
// wanted for large alignments).
type patternKey struct {
	bytes []byte
	index int
}

func lessPatternKey(a, b patternKey) bool {
	return string(a.bytes) < string(b.bytes)
}

// AddSequence appends one taxon's full encoded sequence (one state byte
// per site, already translated from raw characters by the caller — e.g.
// A/C/G/T/- to small integers) and folds it into the pattern table,
// returning the taxon's integer id.
func (a *Alignment) AddSequence(name string, encoded []byte) (int, error) {
	if _, exists := a.idOf[name]; exists {
		return 0, fmt.Errorf("Alignment: duplicate taxon name %q", name)
	}
	taxonID := len(a.names)
	if taxonID == 0 {
		a.patterns = make([][]byte, len(encoded))
		a.weights = make([]int, len(encoded))
		for i := range a.patterns {
			a.patterns[i] = []byte{encoded[i]}
			a.weights[i] = 1
		}
		a.names = append(a.names, name)
		a.idOf[name] = taxonID
		return taxonID, nil
	}
	if len(encoded) != len(a.patterns) {
		return 0, fmt.Errorf("Alignment: sequence %q has %d sites, want %d", name, len(encoded), len(a.patterns))
	}
	a.appendColumn(encoded)
	a.names = append(a.names, name)
	a.idOf[name] = taxonID
	return taxonID, nil
}

// appendColumn extends every existing pattern by one more state (this
// taxon's), growing each pattern's byte slice in place and leaving weights
// untouched. It merges nothing: identical patterns stay separate entries
// until Compact runs.
func (a *Alignment) appendColumn(encoded []byte) {
	for i := range a.patterns {
		a.patterns[i] = append(a.patterns[i], encoded[i])
	}
}

// Compact rebuilds the pattern table from scratch, merging any full-row
// duplicates across all current taxa (useful after a batch of
// AddSequence calls, since appendColumn alone cannot discover duplicates
// spanning every taxon). Grounded on the same btree-ordered lookup idea.
func (a *Alignment) Compact() {
	if len(a.patterns) == 0 {
		return
	}
	tree := btree.NewG(32, lessPatternKey)
	newPatterns := make([][]byte, 0, len(a.patterns))
	newWeights := make([]int, 0, len(a.patterns))
	for i, p := range a.patterns {
		key := patternKey{bytes: p}
		if existing, found := tree.Get(key); found {
			newWeights[existing.index] += a.weights[i]
			continue
		}
		idx := len(newPatterns)
		newPatterns = append(newPatterns, p)
		newWeights = append(newWeights, a.weights[i])
		tree.ReplaceOrInsert(patternKey{bytes: p, index: idx})
	}
	a.patterns = newPatterns
	a.weights = newWeights
}

// NumPatterns returns the number of distinct site patterns.
func (a *Alignment) NumPatterns() int {
	return len(a.patterns)
}

// NumTaxa returns how many sequences have been added.
func (a *Alignment) NumTaxa() int {
	return len(a.names)
}

// PatternWeight returns how many original alignment sites collapsed into
// pattern p.
func (a *Alignment) PatternWeight(p int) int {
	return a.weights[p]
}

// TaxonID returns the id assigned to name, or -1 if it was never added.
func (a *Alignment) TaxonID(name string) int {
	id, ok := a.idOf[name]
	if !ok {
		return -1
	}
	return id
}

// TaxonName returns the name assigned to a taxon id.
func (a *Alignment) TaxonName(taxonID int) string {
	return a.names[taxonID]
}

// EncodedSequence returns taxonID's state byte for every pattern, in
// pattern order — exactly the per-taxon row a Kernel.ParsimonyKernel's
// SeedTip wants.
func (a *Alignment) EncodedSequence(taxonID int) []byte {
	out := make([]byte, len(a.patterns))
	for p := range a.patterns {
		out[p] = a.patterns[p][taxonID]
	}
	return out
}

// String renders a compact summary, useful in logs.
func (a *Alignment) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alignment{taxa=%d patterns=%d}", len(a.names), len(a.patterns))
	return b.String()
}

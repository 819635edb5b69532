// Package Newick reads and writes the newick tree format, just enough to
// round-trip the trees this module builds: named leaves, unnamed internal
// nodes, and branch lengths. This is the "newick parser" collaborator
// spec.md §1 names as external to the placement engine.
package Newick

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/g-m-twostay/phyloplace/Tree"
)

// Parse reads a single newick tree (terminated by ';') into a fresh
// Tree.Tree, returning the root node id it was built around. Supports an
// unrooted multifurcating root (a leading "(a,b,c);" with three children)
// as well as the usual bifurcating form.
func Parse(s string) (*Tree.Tree, Tree.NodeID, error) {
	p := &parser{s: strings.TrimSpace(s)}
	t := Tree.New()
	root, err := p.parseClade(t)
	if err != nil {
		return nil, Tree.NoNode, err
	}
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ';' {
		p.pos++
	}
	return t, root, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t' || p.s[p.pos] == '\n') {
		p.pos++
	}
}

// parseClade parses one subtree — either a leaf name, or a
// parenthesized, comma-separated list of child clades — followed by an
// optional ":<length>", and links it to a freshly created node.
func (p *parser) parseClade(t *Tree.Tree) (Tree.NodeID, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return Tree.NoNode, fmt.Errorf("Newick: unexpected end of input")
	}

	if p.s[p.pos] == '(' {
		p.pos++
		node := t.NewNode(-1, "")
		for {
			childID, err := p.parseClade(t)
			if err != nil {
				return Tree.NoNode, err
			}
			length, err := p.parseOptionalLength()
			if err != nil {
				return Tree.NoNode, err
			}
			t.AddEdge(node, childID, length)
			p.skipSpace()
			if p.pos >= len(p.s) {
				return Tree.NoNode, fmt.Errorf("Newick: unterminated clade list")
			}
			if p.s[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.s[p.pos] == ')' {
				p.pos++
				break
			}
			return Tree.NoNode, fmt.Errorf("Newick: expected ',' or ')' at position %d", p.pos)
		}
		// An internal node may itself carry a label (the original's
		// internal-node support names) before its length; newick allows
		// it, even though this module never writes one back out.
		p.parseLabel()
		return node, nil
	}

	name := p.parseLabel()
	if name == "" {
		return Tree.NoNode, fmt.Errorf("Newick: expected a taxon name at position %d", p.pos)
	}
	taxonID := t.LeafNum
	return t.NewNode(taxonID, name), nil
}

func (p *parser) parseLabel() string {
	start := p.pos
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ',', ')', '(', ':', ';':
			return p.s[start:p.pos]
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *parser) parseOptionalLength() (float64, error) {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ':' {
		p.pos++
		start := p.pos
		for p.pos < len(p.s) {
			switch p.s[p.pos] {
			case ',', ')', ';':
				goto done
			}
			p.pos++
		}
	done:
		return strconv.ParseFloat(p.s[start:p.pos], 64)
	}
	return -1, nil
}

// Write renders the tree rooted at root as a newick string, recursing
// outward from root and treating its own neighbors as children (root
// itself has no parent edge, matching how an unrooted tree's unrooted-ness
// is expressed by picking an arbitrary node to hang the string from).
func Write(t *Tree.Tree, root Tree.NodeID) string {
	var b strings.Builder
	writeClade(t, &b, root, Tree.NoNode)
	b.WriteByte(';')
	return b.String()
}

func writeClade(t *Tree.Tree, b *strings.Builder, node, parent Tree.NodeID) {
	n := t.Node(node)
	var children []Tree.Neighbor
	for _, s := range n.Slots {
		if s.Valid && s.Opposite != parent {
			children = append(children, s)
		}
	}
	if len(children) == 0 {
		b.WriteString(n.Name)
		return
	}
	b.WriteByte('(')
	for i, c := range children {
		if i > 0 {
			b.WriteByte(',')
		}
		writeClade(t, b, c.Opposite, node)
		if c.Length >= 0 {
			fmt.Fprintf(b, ":%g", c.Length)
		}
	}
	b.WriteByte(')')
}

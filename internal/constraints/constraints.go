// Package constraints implements ConstraintManager (spec.md §4.6): deriving
// SEQ, FB, and NC ordering constraints from the ATG's topology, with SEQ/FB
// transitively closed. Grounded in the original's mission_decomposer_utils.cpp
// (generate_at_constraints / the constraint-generation pass run once the ATG
// is built) and atgraph.hpp's ATEdge, which is where NONCOOP edges already
// live — ConstraintManager only collects and closes, it does not re-derive
// non-cooperative pairs from scratch.
package constraints

import (
	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/rannot"
)

// Pair is an ordered (a, b) node-id tuple: a's relation to b.
type Pair struct {
	A, B int
}

// NC is one non-cooperative constraint pair, carrying the (group, divisible)
// tags inherited from the rannot ancestor that produced it (spec.md §4.6,
// §9 design note: "these flags always inherited from the originating
// non-coop ancestor").
type NC struct {
	A, B      int
	Group     bool
	Divisible bool
}

// Set is the full derived constraint family over one ATG.
type Set struct {
	SEQ map[Pair]bool
	FB  map[Pair]bool
	NC  []NC
}

// HasSEQ reports whether a must occur before b, directly or transitively.
func (s *Set) HasSEQ(a, b int) bool { return s.SEQ[Pair{a, b}] }

// HasFB reports whether a must be attempted before b as fallback alternatives.
func (s *Set) HasFB(a, b int) bool { return s.FB[Pair{a, b}] }

// Derive walks g's OP nodes and builds the SEQ/FB/NC families (spec.md
// §4.6). SEQ and FB are each transitively closed before being returned; NC
// is read directly off the ATG's NONCOOP edges (already symmetric).
func Derive(g *atg.Graph) *Set {
	s := &Set{SEQ: make(map[Pair]bool), FB: make(map[Pair]bool)}

	for _, n := range g.Nodes {
		if n.Kind != atg.NodeOp {
			continue
		}
		children := g.Children(n.ID)
		switch n.Operator {
		case rannot.OpSequential:
			addOrderedPairs(s.SEQ, g, children)
		case rannot.OpFallback:
			addOrderedPairs(s.FB, g, children)
		}
	}

	closeTransitively(s.SEQ)
	closeTransitively(s.FB)

	for _, e := range g.NonCoopPairs() {
		s.NC = append(s.NC, NC{A: e.Source, B: e.Target, Group: e.Group, Divisible: e.Divisible})
	}

	return s
}

// addOrderedPairs records, for every pair of children (i<j) in an operator's
// fixed child order, a constraint between every abstract-task descendant of
// child i and every abstract-task descendant of child j (spec.md §4.6: "b"
// must occur after/be attempted after "a" whenever they are siblings, and
// this applies to whole subtrees, not just leaf tasks — the testable
// property in spec.md §8 is stated over abstract-task pairs).
func addOrderedPairs(dest map[Pair]bool, g *atg.Graph, children []int) {
	for i := 0; i < len(children); i++ {
		left := g.AbstractTaskDescendants(children[i])
		for j := i + 1; j < len(children); j++ {
			right := g.AbstractTaskDescendants(children[j])
			for _, a := range left {
				for _, b := range right {
					dest[Pair{a, b}] = true
				}
			}
		}
	}
}

// closeTransitively adds (a,c) for every (a,b),(b,c) pair already present,
// repeating until a fixed point (spec.md §4.6: "if SEQ(a,b) and SEQ(b,c),
// then SEQ(a,c) is added").
func closeTransitively(rel map[Pair]bool) {
	for {
		added := false
		for p1 := range rel {
			for p2 := range rel {
				if p1.B != p2.A {
					continue
				}
				np := Pair{p1.A, p2.B}
				if !rel[np] {
					rel[np] = true
					added = true
				}
			}
		}
		if !added {
			break
		}
	}
}

package constraints

import (
	"testing"

	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/rannot"
)

// buildChainGraph constructs root(SEQ) -> [a, mid(SEQ) -> [b, c]] so SEQ(a,b)
// and SEQ(b,c) hold and SEQ(a,c) must be in the closed relation (spec.md
// §4.6). addOrderedPairs pairs a with every task under mid, so SEQ(a,c) is
// already recorded before the closure runs.
func buildChainGraph() (*atg.Graph, int, int, int) {
	g := &atg.Graph{}
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpSequential})
	a := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT1"}})
	mid := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpSequential})
	b := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT2"}})
	c := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT3"}})

	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: a})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: mid})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: mid, Target: b})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: mid, Target: c})
	g.Root = root
	return g, a, b, c
}

func TestDeriveClosesSEQTransitively(t *testing.T) {
	g, a, b, c := buildChainGraph()
	cs := Derive(g)

	if !cs.HasSEQ(a, b) {
		t.Fatal("expected direct SEQ(a,b)")
	}
	if !cs.HasSEQ(b, c) {
		t.Fatal("expected direct SEQ(b,c)")
	}
	if !cs.HasSEQ(a, c) {
		t.Fatal("expected transitively closed SEQ(a,c)")
	}
	if cs.HasSEQ(c, a) {
		t.Fatal("SEQ must not be derived in the reverse direction")
	}
}

func TestDeriveKeepsFallbackSeparateFromSEQ(t *testing.T) {
	g := &atg.Graph{}
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpFallback})
	a := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT1"}})
	b := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT2"}})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: a})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: b})
	g.Root = root

	cs := Derive(g)
	if !cs.HasFB(a, b) {
		t.Fatal("expected FB(a,b) under a FALLBACK operator")
	}
	if cs.HasSEQ(a, b) {
		t.Fatal("a FALLBACK sibling pair must not also register as SEQ")
	}
}

func TestDeriveCollectsNonCoopPairs(t *testing.T) {
	g := &atg.Graph{}
	a := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT1"}})
	b := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: "AT2"}})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNonCoop, Source: a, Target: b, Group: false, Divisible: false})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNonCoop, Source: b, Target: a, Group: false, Divisible: false})
	g.Root = a

	cs := Derive(g)
	if len(cs.NC) != 1 {
		t.Fatalf("expected NONCOOP edges to dedupe into one NC pair, got %d", len(cs.NC))
	}
}

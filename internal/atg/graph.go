// Package atg implements MissionDecomposer's ATG assembly (spec.md §4.5):
// turning a built runtime annotation, per-task decomposition paths, and the
// current world state into the abstract-task graph ValidMissionGenerator
// searches over. Grounded in the original's atgraph.hpp (ATNode/ATEdge) and
// mission_decomposer_utils.cpp (node/edge insertion, can_unite_decompositions).
package atg

import (
	"github.com/taipm/mission-decomposer/internal/goalmodel"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/rannot"
)

// NodeKind is one of the three ATG vertex shapes this package builds; goals
// have no vertex kind of their own.
type NodeKind string

const (
	NodeATask         NodeKind = "ATASK"
	NodeOp            NodeKind = "OP"
	NodeDecomposition NodeKind = "DECOMPOSITION"
)

// EdgeKind is one of the three ATG edge shapes (spec.md §4.5).
type EdgeKind string

const (
	EdgeNormal  EdgeKind = "NORMAL"
	EdgeCDepend EdgeKind = "CDEPEND"
	EdgeNonCoop EdgeKind = "NONCOOP"
)

// AbstractTaskRef carries an ATASK node's payload: its runtime-annotation
// instance id, the underlying task name, and the configuration-derived
// location/robot-number/variable-mapping the original's AbstractTask struct
// holds (spec.md §6 Configuration).
type AbstractTaskRef struct {
	ID          string
	Name        string
	Location    string
	RobotNumber goalmodel.RobotNumber
	VarMapping  map[string]string // goal-model variable -> domain variable
	Context     string            // "" means no context condition
}

// Node is one ATG vertex.
type Node struct {
	ID            int
	Kind          NodeKind
	Operator      rannot.OperatorKind          // valid for NodeOp
	Task          *AbstractTaskRef             // valid for NodeATask
	Decomposition *model.DecompositionPath     // valid for NodeDecomposition
	Parent        int
	NonCoop       bool
	Group         bool
	Divisible     bool
}

// Edge is one ATG edge.
type Edge struct {
	Kind      EdgeKind
	Source    int
	Target    int
	Group     bool
	Divisible bool
}

// Graph is the assembled ATG.
type Graph struct {
	Root  int
	Nodes []*Node
	Edges []Edge
}

// AddNode appends n, assigns it its node id, and returns that id. Exported
// so ConstraintManager/ValidMissionGenerator tests (and any future caller
// that assembles an ATG outside Build) can construct fixtures directly.
func (g *Graph) AddNode(n *Node) int {
	n.ID = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

// AddEdge appends e to the graph.
func (g *Graph) AddEdge(e Edge) {
	g.Edges = append(g.Edges, e)
}

// AbstractTaskDescendants returns the NodeATask descendants of root,
// following every outgoing edge regardless of kind — used by the CDEPEND
// target rewrite in Build and by ConstraintManager's ordered-pair pass to
// collect an operator subtree's task nodes.
func (g *Graph) AbstractTaskDescendants(root int) []int {
	var out []int
	visited := make(map[int]struct{})
	stack := []int{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		if g.Nodes[id].Kind == NodeATask {
			out = append(out, id)
		}
		for _, e := range g.Edges {
			if e.Source == id {
				stack = append(stack, e.Target)
			}
		}
	}
	return out
}

// Children returns id's direct NORMAL-edge targets, in insertion order
// (spec.md §5 canonical ordering: "sort children by insertion id"). Used by
// ConstraintManager to find an operator's ordered siblings and by
// ValidMissionGenerator to find an ATASK node's Decomposition children.
func (g *Graph) Children(id int) []int {
	var out []int
	for _, e := range g.Edges {
		if e.Kind == EdgeNormal && e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}

// DecompositionChildren filters Children to NodeDecomposition targets,
// sorted by the path's DecompositionPath index for stable enumeration.
func (g *Graph) DecompositionChildren(ataskID int) []int {
	var out []int
	for _, c := range g.Children(ataskID) {
		if g.Nodes[c].Kind == NodeDecomposition {
			out = append(out, c)
		}
	}
	return out
}

// NonCoopPairs returns every distinct {a,b} pair (a<b) joined by a NONCOOP
// edge, deduplicating the symmetric pair Build inserts.
func (g *Graph) NonCoopPairs() []Edge {
	seen := make(map[[2]int]bool)
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind != EdgeNonCoop {
			continue
		}
		key := [2]int{e.Source, e.Target}
		if e.Source > e.Target {
			key = [2]int{e.Target, e.Source}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

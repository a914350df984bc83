package ihtn

import (
	"testing"

	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/constraints"
	"github.com/taipm/mission-decomposer/internal/missiongen"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

func moveTask(agentVar, locVar string) model.Task {
	return model.Task{
		Name: "move",
		Vars: []model.TypedVar{{Name: agentVar, Sort: "robot"}, {Name: locVar, Sort: "location"}},
	}
}

func onePick(g *atg.Graph, taskName, agentBinding, locBinding string) missiongen.Pick {
	taskID := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: taskName, Name: taskName}})
	return missiongen.Pick{
		DecompNodeID: taskID,
		ATaskNodeID:  taskID,
		Path: model.DecompositionPath{
			RootTask: taskName,
			MethodTrail: []string{"m1"},
			Steps: []model.PathStep{{
				Task:     moveTask("r", "loc"),
				Bindings: map[string]string{"r": agentBinding, "loc": locBinding},
			}},
		},
	}
}

// TestLowerBuildsSingleRootOrdering exercises spec.md scenario 1's emission
// shape: ROOT -> ROOT_M -> task -> method -> action, for one decomposition
// with no ordering constraints.
func TestLowerBuildsSingleRootOrdering(t *testing.T) {
	g := &atg.Graph{}
	pick := onePick(g, "Move", "r_a", "kitchen")
	g.Root = pick.ATaskNodeID

	cs := &constraints.Set{SEQ: map[constraints.Pair]bool{}, FB: map[constraints.Pair]bool{}}
	mission := missiongen.Mission{Picks: []missiongen.Pick{pick}, State: worldstate.New()}

	trees, err := Lower(mission, g, cs)
	if err != nil {
		t.Fatalf("unexpected lowering error: %v", err)
	}
	if len(trees) != 1 {
		t.Fatalf("expected exactly one ordering/tree, got %d", len(trees))
	}

	tr := trees[0]
	if tr.Nodes[0].Name != "ROOT" || tr.Nodes[0].Type != TypeTask || tr.Nodes[0].Parent != -1 {
		t.Fatalf("unexpected root node: %+v", tr.Nodes[0])
	}
	if tr.Nodes[1].Name != "ROOT_M" || tr.Nodes[1].Type != TypeMethod {
		t.Fatalf("unexpected ROOT_M node: %+v", tr.Nodes[1])
	}

	var action *TreeNode
	for i := range tr.Nodes {
		if tr.Nodes[i].Type == TypeAction {
			action = &tr.Nodes[i]
		}
	}
	if action == nil {
		t.Fatal("expected one action leaf in the lowered tree")
	}
	if len(action.Locations) != 1 || action.Locations[0] != "kitchen" {
		t.Fatalf("expected action location kitchen, got %v", action.Locations)
	}
	if len(action.Agents) != 1 || action.Agents[0] != "r_a" {
		t.Fatalf("expected ground agent r_a to pass through unchanged, got %v", action.Agents)
	}
}

// TestLowerEnumeratesEveryOrderingConsistentWithSEQ exercises spec.md §8
// scenario 2's combinatorics for a smaller case: two unconstrained picks
// yield 2 orderings; adding SEQ(a,b) collapses it to exactly 1.
func TestLowerEnumeratesEveryOrderingConsistentWithSEQ(t *testing.T) {
	g := &atg.Graph{}
	pickA := onePick(g, "A", "?x", "loc1")
	pickB := onePick(g, "B", "?y", "loc2")
	g.Root = pickA.ATaskNodeID

	mission := missiongen.Mission{Picks: []missiongen.Pick{pickA, pickB}, State: worldstate.New()}

	unconstrained := &constraints.Set{SEQ: map[constraints.Pair]bool{}, FB: map[constraints.Pair]bool{}}
	trees, err := Lower(mission, g, unconstrained)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trees) != 2 {
		t.Fatalf("expected 2 orderings with no constraints, got %d", len(trees))
	}

	constrained := &constraints.Set{
		SEQ: map[constraints.Pair]bool{{A: pickA.ATaskNodeID, B: pickB.ATaskNodeID}: true},
		FB:  map[constraints.Pair]bool{},
	}
	trees, err = Lower(mission, g, constrained)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trees) != 1 {
		t.Fatalf("expected exactly 1 ordering once SEQ(a,b) is imposed, got %d", len(trees))
	}
}

// TestAgentAssignerResolvesFreshSymbolicIDs exercises spec.md §4.8 Agent
// resolution's fallback path: a non-ground agent not covered by any
// NONCOOP-group-sharing predecessor gets a fresh r1, r2, ... id, distinct
// across decompositions.
func TestAgentAssignerResolvesFreshSymbolicIDs(t *testing.T) {
	a := newAgentAssigner()
	cs := &constraints.Set{}
	g := &atg.Graph{}

	id1 := a.resolve(1, "r", nil, 0, cs, g)
	id2 := a.resolve(2, "r", nil, 0, cs, g)
	if id1 == id2 {
		t.Fatalf("expected distinct decompositions to get distinct symbolic agent ids, got %q twice", id1)
	}
	again := a.resolve(1, "r", nil, 0, cs, g)
	if again != id1 {
		t.Fatalf("expected the same (decomposition, var) pair to resolve to the same id, got %q then %q", id1, again)
	}
}

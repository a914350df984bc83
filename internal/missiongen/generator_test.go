package missiongen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/constraints"
	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/rannot"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

func loadedBox(positive bool) model.Literal {
	return model.Literal{Predicate: model.Predicate{Name: "loaded", Arity: 1, ArgSorts: []string{"item"}}, Args: []string{"box"}, Positive: positive}
}

func ataskWithDecomp(g *atg.Graph, taskName string, path model.DecompositionPath) int {
	taskID := g.AddNode(&atg.Node{Kind: atg.NodeATask, Task: &atg.AbstractTaskRef{ID: taskName, Name: taskName}})
	decompID := g.AddNode(&atg.Node{Kind: atg.NodeDecomposition, Decomposition: &path})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: taskID, Target: decompID})
	return taskID
}

// TestGenerateSEQThreadsStateAcrossSiblings exercises spec.md §8 scenario 3:
// Load (effect loaded(box)) before Carry (precondition loaded(box)).
func TestGenerateSEQThreadsStateAcrossSiblings(t *testing.T) {
	g := &atg.Graph{}
	loadID := ataskWithDecomp(g, "Load", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "load", Effects: []model.Literal{loadedBox(true)}}}},
	})
	carryID := ataskWithDecomp(g, "Carry", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "carry", Preconditions: []model.Literal{loadedBox(true)}}}},
	})
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpSequential})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: loadID})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: carryID})
	g.Root = root

	cs := constraints.Derive(g)
	gen := New(g, cs, 0, 0, nil)

	missions, err := gen.Generate(worldstate.New())
	require.NoError(t, err)
	require.Len(t, missions, 1)
	require.Len(t, missions[0].Picks, 2)
}

// TestGenerateSEQPrunesWhenPreconditionNeverHolds mirrors the reverse order
// of the same scenario: Carry before Load can never succeed.
func TestGenerateSEQPrunesWhenPreconditionNeverHolds(t *testing.T) {
	g := &atg.Graph{}
	carryID := ataskWithDecomp(g, "Carry", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "carry", Preconditions: []model.Literal{loadedBox(true)}}}},
	})
	loadID := ataskWithDecomp(g, "Load", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "load", Effects: []model.Literal{loadedBox(true)}}}},
	})
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpSequential})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: carryID})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: loadID})
	g.Root = root

	cs := constraints.Derive(g)
	gen := New(g, cs, 0, 0, nil)

	missions, err := gen.Generate(worldstate.New())
	require.NoError(t, err)
	require.Empty(t, missions)
}

// TestGenerateRespectsSearchTimeout exercises spec.md §5's wall-clock soft
// cap: an already-elapsed deadline aborts the search with
// KindSearchBudgetExceeded even though the candidate-count Budget is nowhere
// near exhausted.
func TestGenerateRespectsSearchTimeout(t *testing.T) {
	g := &atg.Graph{}
	loadID := ataskWithDecomp(g, "Load", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "load", Effects: []model.Literal{loadedBox(true)}}}},
	})
	carryID := ataskWithDecomp(g, "Carry", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "carry", Preconditions: []model.Literal{loadedBox(true)}}}},
	})
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpSequential})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: loadID})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: carryID})
	g.Root = root

	cs := constraints.Derive(g)
	gen := New(g, cs, 0, time.Nanosecond, nil)
	gen.tick = rate.NewLimiter(rate.Inf, 1) // bypass the check-interval throttle so the test is deterministic

	_, err := gen.Generate(worldstate.New())
	require.Error(t, err)
	var pe *errs.PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, errs.KindSearchBudgetExceeded, pe.Kind)
}

// TestGenerateFallbackTakesFirstSucceedingAlternative exercises spec.md §8
// scenario 4: AT1's precondition fails in the initial state, AT2's holds;
// the only surviving mission contains AT2 alone.
func TestGenerateFallbackTakesFirstSucceedingAlternative(t *testing.T) {
	g := &atg.Graph{}
	at1 := ataskWithDecomp(g, "AT1", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "p1", Preconditions: []model.Literal{loadedBox(true)}}}},
	})
	at2 := ataskWithDecomp(g, "AT2", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "p2"}}},
	})
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpFallback})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: at1})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: at2})
	g.Root = root

	cs := constraints.Derive(g)
	gen := New(g, cs, 0, 0, nil)

	missions, err := gen.Generate(worldstate.New())
	require.NoError(t, err)
	require.Len(t, missions, 1)
	require.Len(t, missions[0].Picks, 1)
	require.Equal(t, at2, missions[0].Picks[0].ATaskNodeID)
}

// TestGenerateOptReturnsBothBranches exercises spec.md §4.7 OPT: one branch
// that includes the subtree, one that skips it entirely.
func TestGenerateOptReturnsBothBranches(t *testing.T) {
	g := &atg.Graph{}
	at1 := ataskWithDecomp(g, "AT1", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "p1"}}},
	})
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpOptional})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: at1})
	g.Root = root

	cs := constraints.Derive(g)
	gen := New(g, cs, 0, 0, nil)

	missions, err := gen.Generate(worldstate.New())
	require.NoError(t, err)
	require.Len(t, missions, 2)
}

// TestGeneratePARRejectsConflictingSignEffects exercises spec.md §4.7 PAR:
// any predicate written by two siblings with conflicting sign invalidates
// the combination.
func TestGeneratePARRejectsConflictingSignEffects(t *testing.T) {
	g := &atg.Graph{}
	at1 := ataskWithDecomp(g, "AT1", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "p1", Effects: []model.Literal{loadedBox(true)}}}},
	})
	at2 := ataskWithDecomp(g, "AT2", model.DecompositionPath{
		Steps: []model.PathStep{{Task: model.Task{Name: "p2", Effects: []model.Literal{loadedBox(false)}}}},
	})
	root := g.AddNode(&atg.Node{Kind: atg.NodeOp, Operator: rannot.OpParallel})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: at1})
	g.AddEdge(atg.Edge{Kind: atg.EdgeNormal, Source: root, Target: at2})
	g.Root = root

	cs := constraints.Derive(g)
	gen := New(g, cs, 0, 0, nil)

	missions, err := gen.Generate(worldstate.New())
	require.NoError(t, err)
	require.Empty(t, missions)
}

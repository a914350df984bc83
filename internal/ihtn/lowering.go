// Package ihtn implements iHTNLowering (spec.md §4.8): enumerating every
// total ordering of a valid mission's decomposition ids consistent with the
// SEQ/FB constraints, then lowering each ordering into a rooted, fully
// ground iHTN tree with resolved agents and locations. Grounded in the
// original's ihtngenerator.cpp/ihtngenerator.hpp (ihtn_create, the
// non-ground-agent resolution pass) and utils/ihtn_generator_utils.cpp.
package ihtn

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/constraints"
	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/missiongen"
	"github.com/taipm/mission-decomposer/internal/model"
)

// NodeType is one of the three iHTN node shapes (spec.md §4.8, §6).
type NodeType string

const (
	TypeAction NodeType = "action"
	TypeTask   NodeType = "task"
	TypeMethod NodeType = "method"
)

// TreeNode is one flat node of an emitted iHTN (spec.md §6 Output).
type TreeNode struct {
	Name      string
	Type      NodeType
	Parent    int // -1 for the root
	Children  []int
	Agents    []string
	Locations []string // only populated for TypeAction
}

// Tree is one complete, ground iHTN: ROOT -> ROOT_M -> one task child per
// ordered decomposition (spec.md §4.8 Emission).
type Tree struct {
	Nodes []TreeNode
}

func (t *Tree) add(n TreeNode) int {
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
	return id
}

func (t *Tree) link(parent, child int) {
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, child)
}

// Lower enumerates every total ordering of mission's picks consistent with
// cs's SEQ/FB constraints and returns one Tree per ordering, in the stable
// order spec.md §5 requires (lexicographic over ordering index within this
// mission; the caller orders across missions).
func Lower(mission missiongen.Mission, g *atg.Graph, cs *constraints.Set) ([]*Tree, error) {
	picks := append([]missiongen.Pick(nil), mission.Picks...)
	sort.SliceStable(picks, func(i, j int) bool { return picks[i].DecompNodeID < picks[j].DecompNodeID })

	orderings := enumerateOrderings(picks, cs)
	if len(orderings) == 0 && len(picks) > 0 {
		return nil, errs.New(errs.KindDomainInconsistency, "", "no total ordering satisfies SEQ/FB constraints")
	}

	trees := make([]*Tree, len(orderings))
	for i, ordering := range orderings {
		trees[i] = buildTree(ordering, g, cs)
	}
	return trees, nil
}

// enumerateOrderings returns every permutation of picks that respects every
// SEQ(a,b)/FB(a,b) constraint between their ATaskNodeIDs (spec.md §4.8),
// via the classic backtracking "all topological orders" search: at each
// step, only an element with no unplaced predecessor may be placed next.
func enumerateOrderings(picks []missiongen.Pick, cs *constraints.Set) [][]missiongen.Pick {
	n := len(picks)
	if n == 0 {
		return [][]missiongen.Pick{{}}
	}
	used := make([]bool, n)
	var order []missiongen.Pick
	var out [][]missiongen.Pick

	var rec func()
	rec = func() {
		if len(order) == n {
			out = append(out, append([]missiongen.Pick(nil), order...))
			return
		}
		for i := 0; i < n; i++ {
			if used[i] || !eligible(picks, used, i, cs) {
				continue
			}
			used[i] = true
			order = append(order, picks[i])
			rec()
			order = order[:len(order)-1]
			used[i] = false
		}
	}
	rec()
	return out
}

func eligible(picks []missiongen.Pick, used []bool, i int, cs *constraints.Set) bool {
	for j := range picks {
		if used[j] || j == i {
			continue
		}
		if cs.HasSEQ(picks[j].ATaskNodeID, picks[i].ATaskNodeID) || cs.HasFB(picks[j].ATaskNodeID, picks[i].ATaskNodeID) {
			return false
		}
	}
	return true
}

// buildTree lowers one concrete ordering into a rooted iHTN (spec.md §4.8
// Emission): a synthetic ROOT/ROOT_M pair, then one task subtree per
// ordered pick, with agent resolution threaded across picks in ordering
// order so a later decomposition can reuse an earlier one's bound agent.
func buildTree(ordering []missiongen.Pick, g *atg.Graph, cs *constraints.Set) *Tree {
	t := &Tree{}
	root := t.add(TreeNode{Name: "ROOT", Type: TypeTask, Parent: -1})
	rootM := t.add(TreeNode{Name: "ROOT_M", Type: TypeMethod, Parent: root})
	t.link(root, rootM)

	assigner := newAgentAssigner()
	for idx, pick := range ordering {
		taskID := buildDecomposition(t, rootM, pick, g, cs, assigner, ordering, idx)
		t.link(rootM, taskID)
	}
	return t
}

// buildDecomposition reconstructs the nested task/method/action shape of
// one decomposition path. model.DecompositionPath only retains a flat
// MethodTrail and flat Steps (internal/tdg builds it this way; the
// per-level nesting used during enumeration isn't preserved), so the
// rebuilt tree is the closest faithful skeleton obtainable from that shape:
// the outer task node, one nested method/task pair per trail entry beyond
// the first, and all primitive steps as action leaves under the innermost
// method. See DESIGN.md for this simplification's rationale.
func buildDecomposition(t *Tree, parent int, pick missiongen.Pick, g *atg.Graph, cs *constraints.Set, assigner *agentAssigner, ordering []missiongen.Pick, idx int) int {
	ref := g.Nodes[pick.ATaskNodeID].Task
	taskID := t.add(TreeNode{Name: ref.Name, Type: TypeTask, Parent: parent})

	cur := taskID
	trail := pick.Path.MethodTrail
	if len(trail) == 0 {
		trail = []string{"m1"}
	}
	for i, methodName := range trail {
		mID := t.add(TreeNode{Name: methodName, Type: TypeMethod, Parent: cur})
		t.link(cur, mID)
		cur = mID
		if i < len(trail)-1 {
			subID := t.add(TreeNode{Name: "sub_" + methodName, Type: TypeTask, Parent: cur})
			t.link(cur, subID)
			cur = subID
		}
	}

	for _, step := range pick.Path.Steps {
		locations, agents := resolveArgs(step, ref, pick, g, cs, assigner, ordering, idx)
		leaf := t.add(TreeNode{Name: step.Task.Name, Type: TypeAction, Parent: cur, Locations: locations, Agents: agents})
		t.link(cur, leaf)
	}

	return taskID
}

// resolveArgs partitions one primitive step's grounded arguments into
// locations and agents, resolving non-ground agent variables per spec.md
// §4.8 "Agent resolution": a ground constant passes through unchanged; a
// non-ground var (by convention prefixed "?", matching internal/atg's
// isGroundLiteral convention) is resolved from a preceding, NONCOOP-group
// decomposition if one already bound the position, else assigned a fresh
// symbolic "rN" id.
func resolveArgs(step model.PathStep, ref *atg.AbstractTaskRef, pick missiongen.Pick, g *atg.Graph, cs *constraints.Set, assigner *agentAssigner, ordering []missiongen.Pick, idx int) ([]string, []string) {
	var locations, agents []string
	for _, v := range step.Task.Vars {
		value := step.GroundedArg(v.Name)
		if v.Sort == "location" {
			locations = append(locations, value)
			continue
		}
		if !strings.HasPrefix(value, "?") {
			agents = append(agents, value)
			continue
		}
		agents = append(agents, assigner.resolve(pick.DecompNodeID, v.Name, ordering, idx, cs, g))
	}
	if len(locations) == 0 && ref.Location != "" {
		locations = []string{ref.Location}
	}
	return locations, agents
}

// agentAssigner resolves non-ground agent arguments to stable symbolic ids
// within one iHTN (spec.md §4.8). Each decomposition gets a uuid-backed
// scope tag (replacing the teacher's crypto/rand+hex generateID pattern,
// agent/planner.go, with the pack's dedicated id library) so the same
// variable name in two different decompositions never collides.
type agentAssigner struct {
	counter  int
	scope    map[int]string
	resolved map[string]string
}

func newAgentAssigner() *agentAssigner {
	return &agentAssigner{scope: make(map[int]string), resolved: make(map[string]string)}
}

func (a *agentAssigner) scopeFor(decompNodeID int) string {
	if s, ok := a.scope[decompNodeID]; ok {
		return s
	}
	s := uuid.NewString()
	a.scope[decompNodeID] = s
	return s
}

func (a *agentAssigner) resolve(decompNodeID int, argVar string, ordering []missiongen.Pick, idx int, cs *constraints.Set, g *atg.Graph) string {
	scope := a.scopeFor(decompNodeID)
	key := scope + ":" + argVar
	if id, ok := a.resolved[key]; ok {
		return id
	}

	thisATask := ordering[idx].ATaskNodeID
	for j := 0; j < idx; j++ {
		priorDecomp := ordering[j].DecompNodeID
		priorATask := ordering[j].ATaskNodeID
		if !sharesNonCoopGroup(cs, thisATask, priorATask) {
			continue
		}
		priorScope := a.scopeFor(priorDecomp)
		if v, ok := a.resolved[priorScope+":"+argVar]; ok {
			a.resolved[key] = v
			return v
		}
	}

	a.counter++
	id := "r" + strconv.Itoa(a.counter)
	a.resolved[key] = id
	return id
}

func sharesNonCoopGroup(cs *constraints.Set, a, b int) bool {
	for _, nc := range cs.NC {
		if (nc.A == a && nc.B == b) || (nc.A == b && nc.B == a) {
			return nc.Group
		}
	}
	return false
}

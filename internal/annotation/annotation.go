// Package annotation implements AnnotationEngine (spec.md §4.2): parsing
// each goal's runtime-annotation text into a tree shaped by the goal
// model's AND-refinement, binding Query-goal variables, replicating forAll
// Achieve subtrees, and finally renaming abstract-task leaf instances.
// Grounded in the original's annotmanager.cpp/annotmanagerutils.cpp
// (recursive_fill_up_runtime_annot, recursive_child_replacement,
// rename_at_instances_in_runtime_annot).
package annotation

import (
	"fmt"

	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/goalmodel"
	"github.com/taipm/mission-decomposer/internal/rannot"
)

// Node is one vertex of a built runtime-annotation tree: either an operator
// (sequential/parallel/fallback/optional) or a leaf referencing a
// goal-model task-node instance.
type Node struct {
	Kind        rannot.NodeKind
	Operator    rannot.OperatorKind
	TaskRef     string // valid for a LEAF: the goal-model task node id, later renamed to "<id>_<i>"
	Children    []*Node
	RelatedGoal string
	NonCoop     bool
	Group       bool
	Divisible   bool
	// VarBindings carries goal-variable -> ground-element bindings derived
	// while building this subtree — currently only a forAll's IterationVar,
	// bound per replicated copy (spec.md §4.2 "binding a controlled
	// iteration variable to each element"). internal/atg folds this into
	// each leaf instance's TaskInstanceMeta.VarBindings so the config-
	// derived mapping the caller supplies never has to hardcode which of
	// the bound elements a given replicated instance corresponds to.
	VarBindings map[string]string
}

// QueryResolver binds a Query goal's QueriedProperty to the ids of the
// knowledge-tree elements satisfying it (spec.md §4.3). The pipeline wires
// this against internal/query's Parse/Solve over the world database's
// knowledge tree.
type QueryResolver interface {
	Resolve(prop *goalmodel.QueriedProperty) ([]string, error)
}

// binding is what a Query goal leaves behind at its depth for descendant
// forAll Achieve goals to consult (spec.md §4.2).
type binding struct {
	elements []string
}

// Build walks gm depth-first from its root and returns the runtime
// annotation tree, with abstract-task leaves still carrying their original
// goal-model ids — call Rename on the result before using it (spec.md
// §4.2's "Instance renaming" is a distinct final pass).
func Build(gm *goalmodel.GoalModel, resolver QueryResolver) (*Node, error) {
	b := &builder{gm: gm, resolver: resolver}
	return b.build(gm.RootID, map[string]binding{})
}

type builder struct {
	gm       *goalmodel.GoalModel
	resolver QueryResolver
}

func (b *builder) build(id string, bindings map[string]binding) (*Node, error) {
	n, ok := b.gm.Node(id)
	if !ok {
		return nil, errs.New(errs.KindMalformedGoalModel, id, "goal-model node not found")
	}

	if n.Type == goalmodel.NodeTask || n.IsLeaf() {
		return &Node{Kind: rannot.NodeLeaf, TaskRef: id}, nil
	}

	childBindings := bindings
	if n.Goal != nil && n.Goal.Kind == goalmodel.KindQuery && n.Goal.QueriedProp != nil && len(n.Goal.ControlledVars) > 0 {
		elems, err := b.resolver.Resolve(n.Goal.QueriedProp)
		if err != nil {
			return nil, err
		}
		childBindings = copyBindings(bindings)
		childBindings[n.Goal.ControlledVars[0]] = binding{elements: elems}
	}

	subtree, err := b.buildChildren(n, childBindings)
	if err != nil {
		return nil, err
	}

	if n.Goal != nil {
		subtree.RelatedGoal = n.Goal.Text
		subtree.NonCoop = !n.Goal.Group || (n.Goal.Group && !n.Goal.Divisible)
		subtree.Group = n.Goal.Group
		subtree.Divisible = n.Goal.Divisible

		if n.Goal.Kind == goalmodel.KindAchieve && n.Goal.AchieveCond != nil && n.Goal.AchieveCond.ForAll != nil {
			replicated, err := b.replicateForAll(subtree, n.Goal.AchieveCond.ForAll, childBindings)
			if err != nil {
				return nil, err
			}
			subtree = replicated
		}
	}

	return subtree, nil
}

// buildChildren replaces n with its parsed rannot expression, substituting
// each leaf child-id reference with the recursively built subtree for that
// goal-model child. An empty rannot with more than one child synthesizes a
// sequential operator (spec.md §4.2); an empty rannot with exactly one
// child wraps it the same way, to keep "every operator's children set is
// non-empty" trivially true.
func (b *builder) buildChildren(n *goalmodel.Node, bindings map[string]binding) (*Node, error) {
	var expr *rannot.Node
	var err error

	rannotText := ""
	if n.Goal != nil {
		rannotText = n.Goal.Rannot
	}

	if rannotText != "" {
		expr, err = rannot.Parse(rannotText)
		if err != nil {
			return nil, err
		}
	} else {
		if len(n.Children) == 0 {
			return nil, errs.New(errs.KindMalformedGoalModel, n.ID, "non-leaf node has no rannot and no children")
		}
		leaves := make([]*rannot.Node, len(n.Children))
		for i, c := range n.Children {
			leaves[i] = rannot.Leaf(c)
		}
		expr = rannot.Op(rannot.OpSequential, leaves...)
	}

	return b.substitute(expr, bindings)
}

// substitute walks a parsed rannot expression, replacing each LEAF node
// (which references a goal-model child id) with that child's built subtree.
func (b *builder) substitute(expr *rannot.Node, bindings map[string]binding) (*Node, error) {
	if expr.Kind == rannot.NodeLeaf {
		return b.build(expr.ChildID, bindings)
	}

	children := make([]*Node, len(expr.Children))
	for i, c := range expr.Children {
		built, err := b.substitute(c, bindings)
		if err != nil {
			return nil, err
		}
		children[i] = built
	}
	return &Node{Kind: rannot.NodeOperator, Operator: expr.Operator, Children: children}, nil
}

// replicateForAll converts subtree into a parallel-operator node with one
// deep copy per bound element, when the forAll's collection has more than
// one element (spec.md §4.2). Each copy is an independent *Node so instance
// renaming can later distinguish them, and has fa.IterationVar bound to its
// corresponding element threaded onto every node in the copy (spec.md
// Concrete Scenario 2: three Move instances each bound to a distinct one of
// {r_a, r_b, r_c}), so internal/atg can recover the binding per instance
// without the caller re-deriving the Query binding order.
func (b *builder) replicateForAll(subtree *Node, fa *goalmodel.ForAll, bindings map[string]binding) (*Node, error) {
	bound, ok := bindings[fa.Collection]
	if !ok {
		return nil, errs.New(errs.KindMalformedGoalModel, "", fmt.Sprintf("forAll collection %q was never bound by a Query goal", fa.Collection))
	}
	n := len(bound.elements)
	if n <= 1 {
		if n == 1 {
			bindVar(subtree, fa.IterationVar, bound.elements[0])
		}
		return subtree, nil
	}

	copies := make([]*Node, n)
	for i := 0; i < n; i++ {
		cp := deepCopy(subtree)
		bindVar(cp, fa.IterationVar, bound.elements[i])
		copies[i] = cp
	}
	return &Node{Kind: rannot.NodeOperator, Operator: rannot.OpParallel, Children: copies}, nil
}

// bindVar merges key->value into n and every descendant's VarBindings, so a
// forAll's per-copy binding reaches every leaf instance within that copy's
// subtree regardless of how deeply nested the leaf is.
func bindVar(n *Node, key, value string) {
	if n == nil {
		return
	}
	if n.VarBindings == nil {
		n.VarBindings = make(map[string]string, 1)
	}
	n.VarBindings[key] = value
	for _, c := range n.Children {
		bindVar(c, key, value)
	}
}

func deepCopy(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.VarBindings != nil {
		cp.VarBindings = make(map[string]string, len(n.VarBindings))
		for k, v := range n.VarBindings {
			cp.VarBindings[k] = v
		}
	}
	cp.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = deepCopy(c)
	}
	return &cp
}

func copyBindings(b map[string]binding) map[string]binding {
	out := make(map[string]binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

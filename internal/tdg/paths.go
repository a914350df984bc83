package tdg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/taipm/mission-decomposer/internal/cache"
	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

// enumerator threads the per-path mutable state through the recursive
// expansion: the running list of primitive steps, the method trail, the
// detected expansion fragments, and the repeated-abstract-task suffix
// counters.
type enumerator struct {
	steps       []model.PathStep
	trail       []string
	fragments   []model.ExpansionFragment
	suffixCount map[string]int
}

// Paths enumerates every decomposition path of g against initial, consulting
// pc for a cached result first and populating it afterward (spec.md §3:
// "DecompositionPaths are built once and cached per abstract task"). Returns
// DomainInconsistency if every branch is pruned by a falsified precondition.
func Paths(ctx context.Context, g *TDG, initial *worldstate.State, pc cache.PathCache) ([]model.DecompositionPath, error) {
	root := g.Nodes[g.Root]
	key := root.Task.Name
	if raw, err := json.Marshal(g.Domain); err == nil {
		sum := sha256.Sum256(raw)
		key += ":" + hex.EncodeToString(sum[:8])
	}

	if pc != nil {
		if cached, ok, err := pc.Get(ctx, key); err == nil && ok {
			return cached, nil
		}
	}

	rootBindings := make(map[string]string, len(root.Task.Vars))
	for _, v := range root.Task.Vars {
		rootBindings[v.Name] = v.Name
	}

	e := &enumerator{suffixCount: make(map[string]int)}
	var results []model.DecompositionPath
	e.expandNode(g, g.Root, rootBindings, initial, func(*worldstate.State) {
		results = append(results, model.DecompositionPath{
			RootTask:    root.Task.Name,
			MethodTrail: append([]string(nil), e.trail...),
			Steps:       append([]model.PathStep(nil), e.steps...),
			Fragments:   append([]model.ExpansionFragment(nil), e.fragments...),
		})
	})

	if len(results) == 0 {
		return nil, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("no valid decomposition for %q: every branch pruned", root.Task.Name))
	}

	if pc != nil {
		_ = pc.Set(ctx, key, results, 0)
	}
	return results, nil
}

// expandNode walks node, invoking cont once per complete sub-decomposition
// rooted at it, with e.steps/e.trail/e.fragments holding that subtree's
// contribution for the duration of the call (popped again on return, so
// siblings never see another branch's partial state).
func (e *enumerator) expandNode(g *TDG, nodeID int, bindings map[string]string, state *worldstate.State, cont func(*worldstate.State)) {
	node := g.Nodes[nodeID]

	switch node.Kind {
	case NodePrimitiveTask:
		e.expandPrimitive(node, bindings, state, cont)

	case NodeAbstractTask:
		if node.BelongsToCycles {
			return // not followed further during path enumeration (spec.md §4.1)
		}
		e.suffixCount[node.Task.Name]++
		suffixed := bindings
		if e.suffixCount[node.Task.Name] > 1 {
			suffixed = suffixVars(bindings, fmt.Sprintf("__%d", e.suffixCount[node.Task.Name]))
		}
		for _, methodID := range node.Children {
			e.expandMethod(g, methodID, node.Task, suffixed, state, cont)
		}
		e.suffixCount[node.Task.Name]--
	}
}

func (e *enumerator) expandPrimitive(node *Node, bindings map[string]string, state *worldstate.State, cont func(*worldstate.State)) {
	resolved := make(map[string]string, len(node.Task.Vars))
	for _, v := range node.Task.Vars {
		resolved[v.Name] = resolveArg(v.Name, bindings)
	}

	for _, pre := range node.Task.Preconditions {
		lit, ground := groundLiteral(pre, resolved)
		if ground && !state.HoldsLiteral(lit) {
			return // grounded precondition falsified: prune this branch
		}
	}

	e.steps = append(e.steps, model.PathStep{Task: node.Task, Bindings: resolved})

	next := state.Clone()
	for _, eff := range node.Task.Effects {
		if lit, ground := groundLiteral(eff, resolved); ground {
			next.ApplyEffect(worldstate.Effect{Literal: &lit})
		}
	}

	cont(next)

	e.steps = e.steps[:len(e.steps)-1]
}

func (e *enumerator) expandMethod(g *TDG, methodID int, parentTask model.Task, inherited map[string]string, state *worldstate.State, cont func(*worldstate.State)) {
	node := g.Nodes[methodID]
	method := node.Method

	methodBindings := make(map[string]string, len(method.Vars))
	for i, v := range method.Vars {
		if i < len(parentTask.Vars) {
			methodBindings[v.Name] = resolveArg(parentTask.Vars[i].Name, inherited)
		} else {
			methodBindings[v.Name] = v.Name
		}
	}

	e.trail = append(e.trail, method.Name)
	startIndex := len(e.steps)

	var walk func(idx int, st *worldstate.State)
	walk = func(idx int, st *worldstate.State) {
		if idx == len(node.Children) {
			mark := len(e.fragments)
			e.recordFragments(startIndex, len(e.steps))
			cont(st)
			e.fragments = e.fragments[:mark]
			return
		}

		childID := node.Children[idx]
		childNode := g.Nodes[childID]

		childBindings := make(map[string]string, len(childNode.Task.Vars))
		if idx < len(method.SubtaskRefs) {
			sub := method.SubtaskRefs[idx]
			for i, v := range childNode.Task.Vars {
				if i < len(sub.Args) {
					childBindings[v.Name] = resolveArg(sub.Args[i], methodBindings)
				} else {
					childBindings[v.Name] = v.Name
				}
			}
		}

		e.expandNode(g, childID, childBindings, st, func(nextState *worldstate.State) {
			walk(idx+1, nextState)
		})
	}
	walk(0, state)

	e.trail = e.trail[:len(e.trail)-1]
}

// recordFragments marks, for every primitive task in [start, end) whose
// precondition includes a function-literal comparison, the containing
// method span as an expansion fragment deferred to ValidMissionGenerator
// (spec.md §4.1).
func (e *enumerator) recordFragments(start, end int) {
	for i := start; i < end && i < len(e.steps); i++ {
		for _, fp := range e.steps[i].Task.FunctionPreconditions {
			e.fragments = append(e.fragments, model.ExpansionFragment{
				StartIndex: start,
				EndIndex:   end,
				Function:   fp,
				Threshold:  fp.Target,
			})
		}
	}
}

// resolveArg resolves arg through bindings: if arg names a bound variable,
// returns its bound value; otherwise arg is already a constant, returned
// unchanged.
func resolveArg(arg string, bindings map[string]string) string {
	if v, ok := bindings[arg]; ok {
		return v
	}
	return arg
}

// groundLiteral resolves every argument of l through resolved, reporting
// ground=false if any argument remains an unresolved free variable (i.e. it
// maps to itself) — such literals are left unchecked at this stage
// (spec.md §4.1: "local" pruning only fires on grounded preconditions).
func groundLiteral(l model.Literal, resolved map[string]string) (model.Literal, bool) {
	out := model.Literal{Predicate: l.Predicate, Positive: l.Positive, Args: make([]string, len(l.Args))}
	for i, a := range l.Args {
		v, isVar := resolved[a]
		if !isVar {
			out.Args[i] = a
			continue
		}
		if v == a {
			return out, false // still free
		}
		out.Args[i] = v
	}
	return out, true
}

// suffixVars returns a copy of bindings with every key renamed with suffix,
// used when the same abstract task is encountered more than once along one
// decomposition path (spec.md §4.1: "monotonically increasing suffix to
// preserve uniqueness").
func suffixVars(bindings map[string]string, suffix string) map[string]string {
	out := make(map[string]string, len(bindings))
	for k, v := range bindings {
		out[k+suffix] = v
	}
	return out
}

// Package tdg implements DomainTDG (spec.md §4.1): building a per-top-level-task
// decomposition DAG and enumerating its leaf-chain decomposition paths.
// Grounded in the original's TDG class (src/tdg/tdg.hpp/tdg.cpp): an
// OR-tree of method choices under each abstract task, AND-ordered subtasks
// under each method, primitive tasks as leaves.
package tdg

import (
	"fmt"

	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/model"
)

// NodeKind distinguishes the three node shapes a TDG holds.
type NodeKind string

const (
	NodeAbstractTask  NodeKind = "ABSTRACT_TASK"
	NodeMethod        NodeKind = "METHOD"
	NodePrimitiveTask NodeKind = "PRIMITIVE_TASK"
)

// Node is one TDG vertex. Edges from an ABSTRACT_TASK node to its METHOD
// children are OR (a choice); edges from a METHOD node to its subtask
// children are AND (all occur, in order).
type Node struct {
	ID              int
	Kind            NodeKind
	Task            model.Task   // valid for ABSTRACT_TASK/PRIMITIVE_TASK
	Method          model.Method // valid for METHOD
	Children        []int
	BelongsToCycles bool // an ancestor of this node shares its task name; not expanded further
}

// TDG is the decomposition graph for one top-level abstract task.
type TDG struct {
	Root   int
	Nodes  []*Node
	Domain model.Domain
}

func (g *TDG) addNode(n *Node) int {
	n.ID = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

// Build constructs the decomposition graph rooted at rootTask, expanding
// methods depth-first (spec.md §4.1). Returns DomainInconsistency if
// rootTask (or any task it transitively references) is undefined, if a
// method's subtask arity does not match the referenced task's parameter
// count, or if an abstract task declares no methods at all.
func Build(domain model.Domain, rootTask string) (*TDG, error) {
	g := &TDG{Domain: domain}
	root, err := g.expand(rootTask, nil)
	if err != nil {
		return nil, err
	}
	g.Root = root
	return g, nil
}

func (g *TDG) expand(taskName string, ancestors []string) (int, error) {
	task, ok := g.Domain.TaskByName(taskName)
	if !ok {
		return 0, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("undefined task %q", taskName))
	}

	if !task.Abstract {
		return g.addNode(&Node{Kind: NodePrimitiveTask, Task: task}), nil
	}

	for _, a := range ancestors {
		if a == taskName {
			return g.addNode(&Node{Kind: NodeAbstractTask, Task: task, BelongsToCycles: true}), nil
		}
	}
	if len(task.Methods) == 0 {
		return 0, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("abstract task %q has no methods", taskName))
	}

	id := g.addNode(&Node{Kind: NodeAbstractTask, Task: task})
	nested := append(append([]string(nil), ancestors...), taskName)

	for _, m := range task.Methods {
		methodID := g.addNode(&Node{Kind: NodeMethod, Method: m})
		g.Nodes[id].Children = append(g.Nodes[id].Children, methodID)

		for _, sub := range m.SubtaskRefs {
			subTask, ok := g.Domain.TaskByName(sub.TaskName)
			if !ok {
				return 0, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("method %q references undefined task %q", m.Name, sub.TaskName))
			}
			if len(sub.Args) != len(subTask.Vars) {
				return 0, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("method %q binds %d args to task %q expecting %d", m.Name, len(sub.Args), sub.TaskName, len(subTask.Vars)))
			}
			childID, err := g.expand(sub.TaskName, nested)
			if err != nil {
				return 0, err
			}
			g.Nodes[methodID].Children = append(g.Nodes[methodID].Children, childID)
		}
	}

	return id, nil
}

package goalmodel

import "sort"

// DFSNodes returns every node id reachable from root in depth-first order,
// with siblings visited in ascending X (falling back to insertion order on a
// tie), mirroring the original's get_dfs_gm_nodes/DFSVisitor (gm.hpp) and
// satisfying spec.md §5's canonical-ordering requirement ("sort children by
// insertion id"). Work-list based, no recursion (spec.md §5).
func (gm *GoalModel) DFSNodes() []string {
	if gm.RootID == "" {
		return nil
	}
	var order []string
	visited := make(map[string]struct{})
	stack := []string{gm.RootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		order = append(order, id)

		node, ok := gm.Nodes[id]
		if !ok {
			continue
		}
		children := append([]string(nil), node.Children...)
		sort.SliceStable(children, func(i, j int) bool {
			ni, nj := gm.Nodes[children[i]], gm.Nodes[children[j]]
			if ni == nil || nj == nil {
				return false
			}
			return ni.X < nj.X
		})
		// push in reverse so the stack pops them in ascending X order
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return order
}

// ExistsPath reports whether target is reachable from source via
// AND-refinement children, mirroring the original's exists_path (gm.hpp).
func (gm *GoalModel) ExistsPath(source, target string) bool {
	visited := make(map[string]struct{})
	stack := []string{source}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		node, ok := gm.Nodes[id]
		if !ok {
			continue
		}
		stack = append(stack, node.Children...)
	}
	return false
}

// Ancestors returns the chain of ancestor ids from id's parent up to the
// root, nearest first — used by Validate's MalformedGoalModel
// variable-scoping checks (spec.md §3 invariants).
func (gm *GoalModel) Ancestors(id string) []string {
	var chain []string
	node, ok := gm.Nodes[id]
	if !ok {
		return nil
	}
	for node.ParentID != "" {
		chain = append(chain, node.ParentID)
		node, ok = gm.Nodes[node.ParentID]
		if !ok {
			break
		}
	}
	return chain
}

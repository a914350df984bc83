package annotation

import (
	"fmt"

	"github.com/taipm/mission-decomposer/internal/rannot"
)

// Rename assigns each abstract-task leaf a unique id of the form "T_i",
// where T is the goal-model task node id it was built from and i counts
// occurrences of that same base id across the tree, advancing in DFS order
// (spec.md §4.2 "Instance renaming"). Call once after Build.
func Rename(root *Node) {
	counters := make(map[string]int)
	rename(root, counters)
}

func rename(n *Node, counters map[string]int) {
	if n == nil {
		return
	}
	if n.Kind == rannot.NodeLeaf {
		base := n.TaskRef
		i := counters[base]
		counters[base] = i + 1
		n.TaskRef = fmt.Sprintf("%s_%d", base, i)
		return
	}
	for _, c := range n.Children {
		rename(c, counters)
	}
}

package ihtn

import (
	"encoding/json"
	"fmt"
	"sort"
)

// outputNode is one flat-map entry of an emitted iHTN (spec.md §6 Output):
// "a flat map '0'..'n-1' of nodes, each with name, type, parent, children[]
// and agents[]; actions additionally carry locations[]."
type outputNode struct {
	Name      string   `json:"name"`
	Type      NodeType `json:"type"`
	Parent    int      `json:"parent"`
	Children  []int    `json:"children"`
	Agents    []string `json:"agents"`
	Locations []string `json:"locations,omitempty"`
}

// MarshalJSON renders t as the spec.md §6 flat map keyed by decimal node id,
// "0".."n-1", so json.Marshal(t) is the exact output the driver writes to
// one ihtn_k.json file.
func (t *Tree) MarshalJSON() ([]byte, error) {
	out := make(map[string]outputNode, len(t.Nodes))
	for id, n := range t.Nodes {
		children := n.Children
		if children == nil {
			children = []int{}
		}
		agents := n.Agents
		if agents == nil {
			agents = []string{}
		}
		out[fmt.Sprintf("%d", id)] = outputNode{
			Name:      n.Name,
			Type:      n.Type,
			Parent:    n.Parent,
			Children:  children,
			Agents:    agents,
			Locations: n.Locations,
		}
	}
	return json.Marshal(out)
}

// FileName returns the spec.md §4.8/§6 emission filename for the k-th
// iHTN across all missions and orderings ("name the file ihtn_k.json for
// k = 1, 2, ..."), where k is a 1-based global counter owned by the caller.
func FileName(k int) string {
	return fmt.Sprintf("ihtn_%d.json", k)
}

// SortKeys is a convenience for tests and driver code that need the stable,
// numerically-ordered (not lexicographic-string-ordered) key sequence of a
// marshaled flat map.
func SortKeys(t *Tree) []int {
	keys := make([]int, len(t.Nodes))
	for i := range t.Nodes {
		keys[i] = i
	}
	sort.Ints(keys)
	return keys
}

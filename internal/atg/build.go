package atg

import (
	"sort"
	"strconv"

	"github.com/taipm/mission-decomposer/internal/annotation"
	"github.com/taipm/mission-decomposer/internal/contextcheck"
	"github.com/taipm/mission-decomposer/internal/goalmodel"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/rannot"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

// TaskInstanceMeta is the configuration-derived payload MissionDecomposer
// attaches to one renamed abstract-task instance (spec.md §4.5 "Node
// insertion": "variable mappings derived from the configuration's
// variable-mapping table"). VarBindings maps every variable name that
// appears in the task's decomposition-path args, its context condition, and
// its triggering events to the constant it resolves to for this instance
// (the goal-model variable already bound by a Query/forAll ancestor, looked
// up through the config's var_mapping/type_mapping tables by the caller).
type TaskInstanceMeta struct {
	DomainTask  string // the planning-domain task name this instance decomposes (key into Paths)
	Location    string
	RobotNumber goalmodel.RobotNumber
	VarBindings map[string]string
	Context     string // "" means no context condition; else "[!]var.attr"
}

// BuildInput bundles everything MissionDecomposer needs to assemble the ATG
// (spec.md §4.5).
type BuildInput struct {
	Annotation *annotation.Node
	Paths      map[string][]model.DecompositionPath // domain task name -> cached paths (internal/tdg output)
	Meta       map[string]TaskInstanceMeta           // renamed instance id (e.g. "AT1_0") -> meta
	Mappings   []contextcheck.SemanticMapping
	World      *worldstate.State
}

// Build assembles the ATG from a built+renamed runtime annotation (spec.md
// §4.5). Grounded in the original's mission_decomposer.cpp/
// mission_decomposer_utils.cpp (generate_mission_decomposition's node/edge
// insertion pass).
func Build(in BuildInput) (*Graph, error) {
	b := &builder{in: in, g: &Graph{}}
	root := b.insert(in.Annotation, -1)
	b.g.Root = root
	b.wireNonCoop(in.Annotation)
	rewriteCDependTargets(b.g)
	return b.g, nil
}

// rewriteCDependTargets implements spec.md §4.4's final pass: "rewrites each
// CDEPEND that targets a non-task node into one edge per reachable
// abstract-task descendant of the target." Build only ever creates
// ATask-targeted CDEPEND edges directly, but a future Goal-level context
// (inherited onto an OP node) would need this rewrite, so it is applied
// unconditionally and is a no-op when every CDEPEND already targets a task.
func rewriteCDependTargets(g *Graph) {
	var rewritten []Edge
	for _, e := range g.Edges {
		if e.Kind != EdgeCDepend || g.Nodes[e.Target].Kind == NodeATask {
			rewritten = append(rewritten, e)
			continue
		}
		for _, descID := range g.AbstractTaskDescendants(e.Target) {
			rewritten = append(rewritten, Edge{Kind: EdgeCDepend, Source: e.Source, Target: descID})
		}
	}
	g.Edges = rewritten
}

type builder struct {
	in          BuildInput
	g           *Graph
	seenDecomps []contextcheck.DecompositionEffect // DFS-order record for CDEPEND candidate search
}

func (b *builder) insert(n *annotation.Node, parent int) int {
	if n.Kind == rannot.NodeOperator {
		id := b.g.AddNode(&Node{
			Kind: NodeOp, Operator: n.Operator, Parent: parent,
			NonCoop: n.NonCoop, Group: n.Group, Divisible: n.Divisible,
		})
		for _, c := range n.Children {
			childID := b.insert(c, id)
			b.g.AddEdge(Edge{Kind: EdgeNormal, Source: id, Target: childID})
		}
		return id
	}
	return b.insertTask(n, parent)
}

func (b *builder) insertTask(n *annotation.Node, parent int) int {
	meta := b.in.Meta[n.TaskRef]
	// n.VarBindings carries per-instance bindings AnnotationEngine derived
	// itself (currently a forAll's IterationVar -> bound element, spec.md
	// §4.2); it overlays the caller-supplied config mapping rather than
	// replacing it, since the two cover disjoint variables in practice.
	varBindings := mergeVarBindings(meta.VarBindings, n.VarBindings)
	meta.VarBindings = varBindings

	ref := &AbstractTaskRef{
		ID: n.TaskRef, Name: meta.DomainTask, Location: meta.Location,
		RobotNumber: meta.RobotNumber, VarMapping: varBindings, Context: meta.Context,
	}
	taskID := b.g.AddNode(&Node{
		Kind: NodeATask, Task: ref, Parent: parent,
		NonCoop: n.NonCoop, Group: n.Group, Divisible: n.Divisible,
	})

	// snapshot prior-DFS-order decompositions before adding this task's own,
	// so a task's context can never depend on one of its own decompositions
	// (spec.md §4.4 searches "earlier" decompositions only).
	priorDecomps := append([]contextcheck.DecompositionEffect(nil), b.seenDecomps...)

	paths := b.in.Paths[meta.DomainTask]
	sorted := make([]model.DecompositionPath, len(paths))
	copy(sorted, paths)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RootTask < sorted[j].RootTask })

	for _, p := range sorted {
		grounded := instantiateDecompositionPredicates(p, varBindings)
		decompID := b.g.AddNode(&Node{
			Kind: NodeDecomposition, Decomposition: &grounded, Parent: taskID,
			NonCoop: n.NonCoop, Group: n.Group, Divisible: n.Divisible,
		})
		b.g.AddEdge(Edge{Kind: EdgeNormal, Source: taskID, Target: decompID})
		b.seenDecomps = append(b.seenDecomps, contextcheck.DecompositionEffect{
			DecompositionID: decompID2Str(decompID),
			Effects:         decompositionEffects(grounded),
		})
	}

	if meta.Context != "" {
		b.wireContext(taskID, meta, priorDecomps)
	}

	return taskID
}

// mergeVarBindings overlays overlay onto base, returning nil if both are
// empty so a task instance with no bindings at all keeps VarMapping nil
// rather than an allocated empty map.
func mergeVarBindings(base, overlay map[string]string) map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// wireContext parses the task's context condition and, if it is not already
// active in the initial world state, searches prior DFS-order decompositions
// for one whose effects would make it active, adding the CDEPEND edge found
// (spec.md §4.4, §4.5).
func (b *builder) wireContext(taskID int, meta TaskInstanceMeta, priorDecomps []contextcheck.DecompositionEffect) {
	pc, err := contextcheck.Parse(meta.Context, b.in.Mappings)
	if err != nil {
		return // SemanticMappingFailure/InvalidExpression: surfaced by the driver via a separate validation pass
	}
	if contextcheck.Active(pc, b.in.World, meta.VarBindings) {
		return
	}
	srcID, ok := contextcheck.Resolve(pc, b.in.World, meta.VarBindings, priorDecomps)
	if !ok {
		return
	}
	b.g.AddEdge(Edge{Kind: EdgeCDepend, Source: decompIDFromStr(srcID), Target: taskID})
}

// wireNonCoop adds the symmetric NONCOOP edge pairs for every rannot subtree
// rooted at a non_coop node, over its abstract-task descendants (spec.md
// §4.5). It walks the same annotation tree Build walked, so it must run
// after node insertion has populated the ATG.
func (b *builder) wireNonCoop(n *annotation.Node) {
	if n.NonCoop {
		ids := b.taskInstanceIDs(n)
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				b.g.AddEdge(Edge{Kind: EdgeNonCoop, Source: ids[i], Target: ids[j], Group: n.Group, Divisible: n.Divisible})
				b.g.AddEdge(Edge{Kind: EdgeNonCoop, Source: ids[j], Target: ids[i], Group: n.Group, Divisible: n.Divisible})
			}
		}
	}
	for _, c := range n.Children {
		b.wireNonCoop(c)
	}
}

// taskInstanceIDs maps an annotation subtree to the ATG ATask node ids it was
// inserted as, by matching on the renamed instance id (unique per instance).
func (b *builder) taskInstanceIDs(n *annotation.Node) []int {
	var refs []string
	collectLeafRefs(n, &refs)
	want := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		want[r] = struct{}{}
	}
	var ids []int
	for _, node := range b.g.Nodes {
		if node.Kind == NodeATask {
			if _, ok := want[node.Task.ID]; ok {
				ids = append(ids, node.ID)
			}
		}
	}
	return ids
}

func collectLeafRefs(n *annotation.Node, out *[]string) {
	if n == nil {
		return
	}
	if n.Kind == rannot.NodeLeaf {
		*out = append(*out, n.TaskRef)
		return
	}
	for _, c := range n.Children {
		collectLeafRefs(c, out)
	}
}

// instantiateDecompositionPredicates grounds as many of p's step
// preconditions/effects as possible using the task's variable mapping
// (spec.md §4.5 "ground as many predicates as possible using the task's
// variable mapping"), returning a copy so the cached path in internal/tdg's
// PathCache is never mutated.
func instantiateDecompositionPredicates(p model.DecompositionPath, varMapping map[string]string) model.DecompositionPath {
	out := p
	out.Steps = make([]model.PathStep, len(p.Steps))
	for i, s := range p.Steps {
		bindings := make(map[string]string, len(s.Bindings))
		for k, v := range s.Bindings {
			if resolved, isMapped := varMapping[v]; isMapped {
				bindings[k] = resolved
			} else {
				bindings[k] = v
			}
		}
		out.Steps[i] = model.PathStep{Task: s.Task, Bindings: bindings}
	}
	return out
}

// decompositionEffects flattens every step's ground effect literals, in
// step order, the shape contextcheck.Resolve needs to simulate a candidate
// decomposition's contribution to the world state.
func decompositionEffects(p model.DecompositionPath) []model.Literal {
	var out []model.Literal
	for _, s := range p.Steps {
		for _, eff := range s.Task.Effects {
			if lit, ground := model.Ground(eff, s.Bindings); ground {
				out = append(out, lit)
			}
		}
	}
	return out
}

// CanUniteDecompositions reports whether uniting d1 and d2 within one PAR
// (or NONCOOP-constrained) combination is coherent: every precondition
// literal of d2 that shares a (predicate, args) key with one of d1's
// effects must agree in sign with that effect (the effect "wins", since it
// runs first). When nonCoop is true, non-ground literals are checked too,
// requiring only sign coherence without full binding (spec.md §4.5
// "Decomposition pruning"). Grounded in the original's
// mission_decomposer_utils.cpp can_unite_decompositions.
func CanUniteDecompositions(d1Effects, d2Preconds []model.Literal, nonCoop bool) bool {
	for _, p := range d2Preconds {
		ground := isGroundLiteral(p)
		if !nonCoop && !ground {
			continue
		}
		for _, e := range d1Effects {
			if e.Predicate.Name != p.Predicate.Name || len(e.Args) != len(p.Args) {
				continue
			}
			if !argsEqual(e.Args, p.Args) {
				continue
			}
			if e.Positive != p.Positive {
				return false
			}
			break
		}
	}
	return true
}

func isGroundLiteral(l model.Literal) bool {
	for _, a := range l.Args {
		if len(a) == 0 || a[0] == '?' {
			return false
		}
	}
	return true
}

func argsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func decompID2Str(id int) string {
	return "d" + strconv.Itoa(id)
}

func decompIDFromStr(s string) int {
	n, _ := strconv.Atoi(s[1:])
	return n
}

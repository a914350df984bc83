// Package missiongen implements ValidMissionGenerator (spec.md §4.7):
// depth-first search over the ATG, simulating world-state effects to
// enumerate every valid mission — a set of (decomposition, grounded path)
// picks that are mutually consistent under the initial world state.
// Grounded in the original's validmissiongenerator.cpp/
// utils/validmissiongeneratorutils.cpp (expand_decomposition,
// check_decomposition_preconditions, the operator-kind combination loop).
package missiongen

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/taipm/mission-decomposer/internal/atg"
	"github.com/taipm/mission-decomposer/internal/constraints"
	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/logging"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/rannot"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

// DefaultBudget is the fallback max_candidates_per_operator_node (spec.md
// §5's "adequate" default).
const DefaultBudget = 10_000

// DefaultTimeout is the fallback search_timeout soft cap (spec.md §5's
// "30-second soft cap" default), mirroring config.DefaultRunConfig.
const DefaultTimeout = 30 * time.Second

// deadlineCheckInterval throttles how often checkDeadline compares the clock
// against the deadline while Generate walks a hot search loop, the same way
// the teacher's agent/rate_limiter_token_bucket.go throttled outbound request
// attempts. The limiter's own Allow call still reads the clock each time.
const deadlineCheckInterval = 20 * time.Millisecond

// Pick is one decomposition chosen for a mission: the ATG node id (so
// ConstraintManager's SEQ/FB/NC families and iHTNLowering can find it again)
// plus its fully grounded, fragment-expanded path.
type Pick struct {
	DecompNodeID int
	ATaskNodeID  int
	Path         model.DecompositionPath
}

// Mission is one surviving combination at the ATG root: spec.md §4.7's
// output, "a list of (decomposition_node_id, Decomposition) pairs."
type Mission struct {
	Picks []Pick
	State *worldstate.State
}

// Generator holds the immutable search inputs: the ATG, its derived
// constraints, a search budget, an optional wall-clock soft cap, and an
// optional logger.
type Generator struct {
	Graph       *atg.Graph
	Constraints *constraints.Set
	Budget      int
	Timeout     time.Duration
	Logger      logging.Logger

	ncIndex  map[[2]int]constraints.NC
	tick     *rate.Limiter
	deadline time.Time
}

// New builds a Generator. budget <= 0 falls back to DefaultBudget; timeout <=
// 0 falls back to DefaultTimeout. Both are acceptable search-budget
// mechanisms (spec.md §5) and are enforced independently: whichever is hit
// first ends the search.
func New(g *atg.Graph, cs *constraints.Set, budget int, timeout time.Duration, logger logging.Logger) *Generator {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Noop()
	}
	gen := &Generator{
		Graph: g, Constraints: cs, Budget: budget, Timeout: timeout, Logger: logger,
		tick: rate.NewLimiter(rate.Every(deadlineCheckInterval), 1),
	}
	gen.ncIndex = make(map[[2]int]constraints.NC, len(cs.NC))
	for _, nc := range cs.NC {
		gen.ncIndex[unordered(nc.A, nc.B)] = nc
	}
	return gen
}

// Generate runs the search from the ATG root against initial, returning
// every valid mission (spec.md §4.7). An empty result with a nil error is
// the documented boundary case: no decomposition possible is not itself an
// error (spec.md §8 Boundary).
func (g *Generator) Generate(initial *worldstate.State) ([]Mission, error) {
	g.deadline = time.Now().Add(g.Timeout)
	candidates, err := g.eval(g.Graph.Root, initial)
	if err != nil {
		return nil, err
	}
	missions := make([]Mission, len(candidates))
	for i, c := range candidates {
		missions[i] = Mission{Picks: c.picks, State: c.state}
	}
	return missions, nil
}

// checkDeadline enforces the search_timeout soft cap (spec.md §5), consulted
// at the same growth points as the candidate-count Budget check. tick gates
// the deadline comparison to at most once per deadlineCheckInterval;
// tick.Allow itself reads the clock on every call.
func (g *Generator) checkDeadline() error {
	if !g.tick.Allow() {
		return nil
	}
	if time.Now().After(g.deadline) {
		return errs.New(errs.KindSearchBudgetExceeded, "", "search exceeded search_timeout soft cap")
	}
	return nil
}

type candidate struct {
	picks []Pick
	state *worldstate.State
}

func (g *Generator) eval(nodeID int, w *worldstate.State) ([]candidate, error) {
	n := g.Graph.Nodes[nodeID]
	switch n.Kind {
	case atg.NodeATask:
		return g.evalATask(n, w)
	case atg.NodeOp:
		children := g.Graph.Children(n.ID)
		switch n.Operator {
		case rannot.OpSequential:
			return g.evalSeq(children, w)
		case rannot.OpParallel:
			return g.evalPar(children, w)
		case rannot.OpFallback:
			return g.evalFallback(children, w)
		case rannot.OpOptional:
			return g.evalOpt(children, w)
		}
		return nil, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("unknown operator %q", n.Operator))
	}
	return nil, errs.New(errs.KindDomainInconsistency, "", fmt.Sprintf("unexpected ATG node kind %q", n.Kind))
}

// evalATask enumerates an abstract task's Decomposition children, retaining
// every one whose (fragment-expanded) precondition chain holds against w
// (spec.md §4.7 step 1).
func (g *Generator) evalATask(n *atg.Node, w *worldstate.State) ([]candidate, error) {
	var out []candidate
	for _, decompID := range g.Graph.DecompositionChildren(n.ID) {
		path := expandFragments(*g.Graph.Nodes[decompID].Decomposition, w)
		next, ok := simulateDecomposition(path, w)
		if !ok {
			continue
		}
		out = append(out, candidate{
			picks: []Pick{{DecompNodeID: decompID, ATaskNodeID: n.ID, Path: path}},
			state: next,
		})
	}
	return out, nil
}

// evalSeq threads world state through children in their fixed written order
// (spec.md §4.7 step 2 SEQ): child i+1 is evaluated against every surviving
// branch's post-effect state from child i, so a later child's precondition
// can depend on an earlier child's effects (spec.md scenario 3).
func (g *Generator) evalSeq(children []int, w *worldstate.State) ([]candidate, error) {
	results := []candidate{{picks: nil, state: w}}
	for _, child := range children {
		var next []candidate
		for _, r := range results {
			childResults, err := g.eval(child, r.state)
			if err != nil {
				return nil, err
			}
			for _, cr := range childResults {
				next = append(next, candidate{
					picks: append(append([]Pick(nil), r.picks...), cr.picks...),
					state: cr.state,
				})
				if len(next) > g.Budget {
					return nil, errs.New(errs.KindSearchBudgetExceeded, "", "SEQ combination exceeded max_candidates_per_operator_node")
				}
				if err := g.checkDeadline(); err != nil {
					return nil, err
				}
			}
		}
		results = next
	}
	return results, nil
}

// evalPar takes the Cartesian product of every child's own results (each
// evaluated against the same incoming w, since parallel children do not
// see each other's effects going in), rejecting any combination that
// violates a spanning NONCOOP pair's can_unite_decompositions check or
// writes a predicate with conflicting sign (spec.md §4.7 step 2 PAR).
func (g *Generator) evalPar(children []int, w *worldstate.State) ([]candidate, error) {
	perChild := make([][]candidate, len(children))
	for i, c := range children {
		r, err := g.eval(c, w)
		if err != nil {
			return nil, err
		}
		perChild[i] = r
	}

	var out []candidate
	var recur func(i int, picks []Pick) error
	recur = func(i int, picks []Pick) error {
		if i == len(perChild) {
			if !g.picksCoherent(picks) {
				return nil
			}
			state, ok := applyPicksEffects(w, picks)
			if !ok {
				return nil
			}
			out = append(out, candidate{picks: append([]Pick(nil), picks...), state: state})
			if len(out) > g.Budget {
				return errs.New(errs.KindSearchBudgetExceeded, "", "PAR combination exceeded max_candidates_per_operator_node")
			}
			return g.checkDeadline()
		}
		for _, cr := range perChild[i] {
			if err := recur(i+1, append(picks, cr.picks...)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := recur(0, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// evalFallback returns the first alternative (in written order) that
// produces at least one valid candidate, discarding the rest: "a must be
// attempted before b; b only runs if a fails" (spec.md §4.6, §4.7 step 2
// FALLBACK, scenario 4).
func (g *Generator) evalFallback(children []int, w *worldstate.State) ([]candidate, error) {
	for _, c := range children {
		r, err := g.eval(c, w)
		if err != nil {
			return nil, err
		}
		if len(r) > 0 {
			return r, nil
		}
	}
	return nil, nil
}

// evalOpt returns the union of "include the subtree" and "skip it entirely"
// (spec.md §4.7 step 2 OPT).
func (g *Generator) evalOpt(children []int, w *worldstate.State) ([]candidate, error) {
	if len(children) != 1 {
		return nil, errs.New(errs.KindInvalidExpression, "", "OPT operator must have exactly one child")
	}
	included, err := g.eval(children[0], w)
	if err != nil {
		return nil, err
	}
	return append(included, candidate{picks: nil, state: w}), nil
}

// picksCoherent checks every NONCOOP-constrained pair of picks spanning
// different abstract tasks via atg.CanUniteDecompositions, in both
// directions (spec.md §4.5 "Decomposition pruning").
func (g *Generator) picksCoherent(picks []Pick) bool {
	for i := 0; i < len(picks); i++ {
		for j := i + 1; j < len(picks); j++ {
			a, b := picks[i], picks[j]
			if a.ATaskNodeID == b.ATaskNodeID {
				continue
			}
			nc, isNC := g.ncIndex[unordered(a.ATaskNodeID, b.ATaskNodeID)]
			if !isNC {
				continue
			}
			_ = nc // group/divisible tags are consumed by iHTNLowering's agent-sharing check
			aEff, aPre := preconEffect(a.Path)
			bEff, bPre := preconEffect(b.Path)
			if !atg.CanUniteDecompositions(aEff, bPre, true) || !atg.CanUniteDecompositions(bEff, aPre, true) {
				return false
			}
		}
	}
	return true
}

func preconEffect(p model.DecompositionPath) (effects, preconds []model.Literal) {
	for _, s := range p.Steps {
		for _, eff := range s.Task.Effects {
			if lit, ok := model.Ground(eff, s.Bindings); ok {
				effects = append(effects, lit)
			} else {
				effects = append(effects, eff)
			}
		}
		for _, pre := range s.Task.Preconditions {
			if lit, ok := model.Ground(pre, s.Bindings); ok {
				preconds = append(preconds, lit)
			} else {
				preconds = append(preconds, pre)
			}
		}
	}
	return effects, preconds
}

func applyPicksEffects(w *worldstate.State, picks []Pick) (*worldstate.State, bool) {
	cur := w.Clone()
	for _, p := range picks {
		for _, s := range p.Path.Steps {
			for _, eff := range s.Task.Effects {
				lit, ground := model.Ground(eff, s.Bindings)
				if !ground {
					continue
				}
				e := worldstate.Effect{Literal: &lit}
				if cur.ConflictingSign(e) {
					return nil, false
				}
				cur.ApplyEffect(e)
			}
		}
	}
	return cur, true
}

// simulateDecomposition walks path's steps in order against w, checking
// each step's grounded precondition before applying its grounded effects,
// the same local-simulation discipline DomainTDG uses at build time
// (internal/tdg/paths.go) but now against the mission-level running state
// instead of the domain's initial state (spec.md §4.7 step 1).
func simulateDecomposition(path model.DecompositionPath, w *worldstate.State) (*worldstate.State, bool) {
	cur := w.Clone()
	for _, step := range path.Steps {
		for _, pre := range step.Task.Preconditions {
			if lit, ground := model.Ground(pre, step.Bindings); ground {
				if !cur.HoldsLiteral(lit) {
					return nil, false
				}
			}
		}
		for _, fp := range step.Task.FunctionPreconditions {
			if gfp, ground := model.GroundFunction(fp, step.Bindings); ground {
				if !cur.SatisfiesFunction(gfp) {
					return nil, false
				}
			}
		}
		for _, eff := range step.Task.Effects {
			if lit, ground := model.Ground(eff, step.Bindings); ground {
				cur.ApplyEffect(worldstate.Effect{Literal: &lit})
			}
		}
	}
	return cur, true
}

// expandFragments materializes any deferred expansion-fragment ranges by
// inspecting the current value of the fragment's function literal in w,
// repeating the fragment's task span (expansion_number = value - threshold
// - 1) times (spec.md §4.7 step 1; grounded in the original's
// validmissiongeneratorutils.cpp expand_decomposition). A fragment whose
// function is absent from w is left unexpanded.
func expandFragments(path model.DecompositionPath, w *worldstate.State) model.DecompositionPath {
	if len(path.Fragments) == 0 {
		return path
	}
	out := path
	out.Steps = append([]model.PathStep(nil), path.Steps...)

	frags := append([]model.ExpansionFragment(nil), path.Fragments...)
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].StartIndex > frags[j].StartIndex })

	for _, f := range frags {
		if f.StartIndex < 0 || f.StartIndex > f.EndIndex || f.EndIndex > len(out.Steps) {
			continue
		}
		val, ok := w.FunctionValue(f.Function.Key())
		if !ok {
			continue
		}
		count := int(val) - int(f.Threshold) - 1
		if count < 0 {
			count = 0
		}
		span := append([]model.PathStep(nil), out.Steps[f.StartIndex:f.EndIndex]...)
		var expansion []model.PathStep
		for i := 0; i < count; i++ {
			expansion = append(expansion, span...)
		}
		tail := append([]model.PathStep(nil), out.Steps[f.EndIndex:]...)
		out.Steps = append(append(out.Steps[:f.EndIndex:f.EndIndex], expansion...), tail...)
	}
	out.Fragments = nil
	return out
}

func unordered(a, b int) [2]int {
	if a <= b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

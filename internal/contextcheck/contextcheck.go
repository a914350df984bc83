// Package contextcheck implements ContextEvaluator (spec.md §4.4): parsing a
// goal's context condition into a signed predicate reference, checking it
// against a world state, and resolving context dependencies across earlier
// decompositions when the condition does not already hold. Grounded in the
// original's contextmanager.cpp (check_context/get_pred_from_context) and
// mission_decomposer_utils.cpp (check_context_dependency,
// final_context_dependency_links_generation).
package contextcheck

import (
	"strings"

	"github.com/taipm/mission-decomposer/internal/errs"
	"github.com/taipm/mission-decomposer/internal/model"
	"github.com/taipm/mission-decomposer/internal/worldstate"
)

// MappingType mirrors the original's SemanticMapping mapping_type field;
// ContextEvaluator only ever resolves the "attribute" kind (spec.md §4.4).
type MappingType string

const (
	MappingAttribute   MappingType = "attribute"
	MappingOwnership   MappingType = "ownership"
	MappingRelationship MappingType = "relationship"
)

// PredicateRef identifies the ground predicate an attribute mapping resolves
// to, and the sort of the argument it is attached to.
type PredicateRef struct {
	Name string
	Sort string
}

// SemanticMapping is one entry of the configuration's semantic_mapping table
// (spec.md §6).
type SemanticMapping struct {
	Type      MappingType
	Attribute string // the goal-model attribute name this entry maps, for MappingAttribute
	Predicate PredicateRef
}

// ParsedContext is a context condition reduced to a sign and the variable it
// is attached to, plus the resolved predicate.
type ParsedContext struct {
	Positive  bool
	Var       string
	Predicate PredicateRef
}

// Parse parses a context condition of the form "[not ]var.attr" or
// "[!]var.attr", resolving attr against the semantic-mapping table. Returns
// SemanticMappingFailure if no attribute mapping matches (spec.md §7).
func Parse(condition string, mappings []SemanticMapping) (*ParsedContext, error) {
	condition = strings.TrimSpace(condition)
	positive := true

	if strings.HasPrefix(condition, "!") {
		positive = false
		condition = strings.TrimSpace(condition[1:])
	} else if strings.HasPrefix(strings.ToLower(condition), "not ") {
		positive = false
		condition = strings.TrimSpace(condition[4:])
	}

	sep := strings.Index(condition, ".")
	if sep < 0 {
		return nil, errs.New(errs.KindInvalidExpression, "", "context condition missing '.': "+condition)
	}
	v := condition[:sep]
	attr := condition[sep+1:]

	for _, m := range mappings {
		if m.Type == MappingAttribute && m.Attribute == attr {
			return &ParsedContext{Positive: positive, Var: v, Predicate: m.Predicate}, nil
		}
	}
	return nil, errs.New(errs.KindSemanticMappingFailure, "", "no attribute mapping for "+attr)
}

// Active reports whether a parsed context condition holds in the given world
// state, with instantiatedVars mapping the condition's variable to a ground
// constant (spec.md §4.4).
func Active(pc *ParsedContext, state *worldstate.State, instantiatedVars map[string]string) bool {
	ground, ok := instantiatedVars[pc.Var]
	if !ok {
		return false
	}
	lit := model.Literal{
		Predicate: model.Predicate{Name: pc.Predicate.Name, Arity: 1, ArgSorts: []string{pc.Predicate.Sort}},
		Args:      []string{ground},
		Positive:  pc.Positive,
	}
	return state.HoldsLiteral(lit)
}

// DecompositionEffect is the minimal shape ContextEvaluator needs from a
// candidate abstract-task decomposition to simulate its effects: the
// decomposition's node id and the ground literal effects its path produces,
// once lifted into a world-state delta by the caller (the original's
// instantiate_decomposition_predicates). The caller (internal/atg) is
// responsible for grounding a task path's symbolic effects against the
// abstract task's variable mapping before calling Resolve.
type DecompositionEffect struct {
	DecompositionID string
	Effects         []model.Literal
}

// Resolve searches candidates — which the caller must already have ordered
// DFS-from-parent per spec.md §4.4 — for the first decomposition whose
// effects, applied atop a copy of state, make pc active. Returns the
// satisfying decomposition id and true, or "" and false if none satisfy it.
func Resolve(pc *ParsedContext, state *worldstate.State, instantiatedVars map[string]string, candidates []DecompositionEffect) (string, bool) {
	for _, c := range candidates {
		copy := state.Clone()
		copy.ApplyLiterals(c.Effects)
		if Active(pc, copy, instantiatedVars) {
			return c.DecompositionID, true
		}
	}
	return "", false
}

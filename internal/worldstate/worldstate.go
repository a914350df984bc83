// Package worldstate implements the closed-world simulated state spec.md §3
// defines: an unordered set of ground literals plus function literals with
// numeric values, with idempotent effect application (spec.md §4.7).
package worldstate

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/taipm/mission-decomposer/internal/model"
)

// floatEpsilon is the tolerance spec.md §4.7 requires for float/float and
// float/int numeric comparisons, backed by gonum (teacher: agent/tools/math.go
// uses gonum.org/v1/gonum/stat for the same "professional library over
// hand-rolled math" preference).
const floatEpsilon = 1e-9

// State is a simulated world state: closed-world ground literals (absent
// implies false) plus numeric function values. Exactly one entry per
// (predicate, args) key in each set (spec.md §3 invariant).
type State struct {
	literals  map[string]bool // key -> positive?
	functions map[string]float64
}

// New returns an empty state.
func New() *State {
	return &State{literals: make(map[string]bool), functions: make(map[string]float64)}
}

// Clone returns a deep copy, used whenever a branch needs an independent
// simulated state (DomainTDG local pruning, ContextEvaluator candidate
// simulation, ValidMissionGenerator's per-branch states).
func (s *State) Clone() *State {
	c := &State{
		literals:  make(map[string]bool, len(s.literals)),
		functions: make(map[string]float64, len(s.functions)),
	}
	for k, v := range s.literals {
		c.literals[k] = v
	}
	for k, v := range s.functions {
		c.functions[k] = v
	}
	return c
}

// SetLiteral records a ground literal's truth value directly (used to seed
// initial states; effect application goes through ApplyEffect).
func (s *State) SetLiteral(l model.Literal) {
	s.literals[l.Key()] = l.Positive
}

// SetFunction records a function literal's current numeric value.
func (s *State) SetFunction(key string, value float64) {
	s.functions[key] = value
}

// HoldsLiteral reports a ground literal's truth under closed-world semantics:
// absent from the literal set means false regardless of the queried sign.
func (s *State) HoldsLiteral(l model.Literal) bool {
	sign, present := s.literals[l.Key()]
	if !present {
		return false
	}
	return sign == l.Positive
}

// FunctionValue returns the current numeric value for key and whether it is
// present at all (an absent function literal has no defined value).
func (s *State) FunctionValue(key string) (float64, bool) {
	v, ok := s.functions[key]
	return v, ok
}

// Satisfies reports whether every literal and function-comparison in preconds
// holds against this state.
func (s *State) Satisfies(preconds []model.Literal, funcPreconds []model.FunctionLiteral) bool {
	for _, l := range preconds {
		if !s.HoldsLiteral(l) {
			return false
		}
	}
	for _, f := range funcPreconds {
		if !s.SatisfiesFunction(f) {
			return false
		}
	}
	return true
}

// SatisfiesFunction evaluates one function-literal comparison against the
// current numeric value, using an epsilon tolerance for float comparisons.
func (s *State) SatisfiesFunction(f model.FunctionLiteral) bool {
	v, ok := s.functions[f.Key()]
	if !ok {
		return false
	}
	return compare(v, f.Op, f.Target)
}

func compare(v float64, op model.ComparisonOp, target float64) bool {
	switch op {
	case model.CmpEqual:
		return floats.EqualWithinAbs(v, target, floatEpsilon)
	case model.CmpNotEqual:
		return !floats.EqualWithinAbs(v, target, floatEpsilon)
	case model.CmpGreater:
		return v > target && !floats.EqualWithinAbs(v, target, floatEpsilon)
	case model.CmpGreaterEqual:
		return v > target || floats.EqualWithinAbs(v, target, floatEpsilon)
	case model.CmpLess:
		return v < target && !floats.EqualWithinAbs(v, target, floatEpsilon)
	case model.CmpLessEqual:
		return v < target || floats.EqualWithinAbs(v, target, floatEpsilon)
	default:
		return false
	}
}

// Effect is an atomic write this state applies: either a literal assertion
// or a numeric assign/add against a function.
type Effect struct {
	Literal  *model.Literal
	Function *FunctionEffect
}

// FunctionEffectKind distinguishes assign from add effects (spec.md §4.7).
type FunctionEffectKind string

const (
	FunctionAssign FunctionEffectKind = "assign"
	FunctionAdd    FunctionEffectKind = "add"
)

// FunctionEffect mutates a function literal's numeric value.
type FunctionEffect struct {
	Key   string
	Kind  FunctionEffectKind
	Value float64
}

// ApplyEffect writes one effect, overwriting any prior value at the same key
// within this state (spec.md §4.7: "a later effect overwrites an earlier
// one" for literal effects; assign/add for function effects).
func (s *State) ApplyEffect(e Effect) {
	if e.Literal != nil {
		s.literals[e.Literal.Key()] = e.Literal.Positive
	}
	if e.Function != nil {
		switch e.Function.Kind {
		case FunctionAssign:
			s.functions[e.Function.Key] = e.Function.Value
		case FunctionAdd:
			s.functions[e.Function.Key] += e.Function.Value
		}
	}
}

// ApplyLiterals applies a task's ground effect literals in order, the common
// case for primitive-task effects.
func (s *State) ApplyLiterals(effects []model.Literal) {
	for _, l := range effects {
		s.ApplyEffect(Effect{Literal: &l})
	}
}

// ConflictingSign reports whether this state already holds e's key with the
// opposite sign, whatever put that entry there (the initial state or an
// earlier effect) — used by ValidMissionGenerator's PAR effect-commit check
// (spec.md §4.7).
func (s *State) ConflictingSign(e Effect) bool {
	if e.Literal == nil {
		return false
	}
	sign, present := s.literals[e.Literal.Key()]
	return present && sign != e.Literal.Positive
}

// String renders the state for debug logging.
func (s *State) String() string {
	return fmt.Sprintf("State{literals=%d, functions=%d}", len(s.literals), len(s.functions))
}

// Package model defines the planning-domain data model: predicates, literals,
// tasks, methods, and decomposition paths (spec.md §3).
package model

import "fmt"

// ComparisonOp is the operator a function literal compares its numeric value against.
type ComparisonOp string

const (
	CmpEqual        ComparisonOp = "="
	CmpNotEqual     ComparisonOp = "<>"
	CmpGreater      ComparisonOp = ">"
	CmpGreaterEqual ComparisonOp = ">="
	CmpLess         ComparisonOp = "<"
	CmpLessEqual    ComparisonOp = "<="
)

// Predicate is a named relation over typed argument sorts.
type Predicate struct {
	Name     string
	Arity    int
	ArgSorts []string
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s/%d", p.Name, p.Arity)
}

// Literal is a predicate applied to arguments, with a polarity.
// Args may be variable names (unbound) or constants (ground).
type Literal struct {
	Predicate Predicate
	Args      []string
	Positive  bool
}

// IsGround reports whether every argument is a constant, i.e. none of the
// args appear in the given variable set.
func (l Literal) IsGround(vars map[string]struct{}) bool {
	for _, a := range l.Args {
		if _, isVar := vars[a]; isVar {
			return false
		}
	}
	return true
}

// Key returns the (predicate, args) identity used by world-state lookups.
// Two literals with the same Key refer to the same world-state slot
// regardless of sign (spec.md §3 invariant: exactly one entry per key).
func (l Literal) Key() string {
	s := l.Predicate.Name
	for _, a := range l.Args {
		s += "|" + a
	}
	return s
}

// FunctionLiteral is a numeric function application compared against a target.
type FunctionLiteral struct {
	Predicate Predicate
	Args      []string
	Op        ComparisonOp
	Target    float64
}

// Key mirrors Literal.Key for function literals.
func (f FunctionLiteral) Key() string {
	s := f.Predicate.Name
	for _, a := range f.Args {
		s += "|" + a
	}
	return s
}

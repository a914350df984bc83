package query

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/taipm/mission-decomposer/internal/errs"
)

// Binding is a previously-bound goal variable's value: either a collection
// (spec.md §4.3 "var.attr in otherVar") or a single element (spec.md §4.3
// "var.attr in otherVar.otherAttr", where otherAttr is a list-valued
// attribute of the single bound element otherVar).
type Binding struct {
	Collection []string // element IDs, for a collection-typed binding
	Element    *Element // for a value-typed binding
}

// Eval evaluates a parsed query AST against one knowledge-tree element.
// bound supplies previously-bound goal-model variables referenced by
// membership atoms. Per spec.md §4.3 Guarantees: missing attributes are
// silently treated as false, never an error.
func Eval(node *Node, elem *Element, bound map[string]Binding) (bool, error) {
	if node.Atom != nil {
		return evalAtom(node.Atom, elem, bound)
	}
	left, err := Eval(node.Left, elem, bound)
	if err != nil {
		return false, err
	}
	right, err := Eval(node.Right, elem, bound)
	if err != nil {
		return false, err
	}
	if node.IsAnd {
		return left && right, nil
	}
	return left || right, nil
}

// Solve filters elements to those satisfying node, the top-level operation
// QuerySolver performs to bind a Query goal's controlled variable(s) to a
// subset of a typed collection (spec.md §4.3).
func Solve(node *Node, elements []*Element, bound map[string]Binding) ([]*Element, error) {
	var out []*Element
	for _, e := range elements {
		ok, err := Eval(node, e, bound)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func evalAtom(a *Atom, elem *Element, bound map[string]Binding) (bool, error) {
	switch a.Kind {
	case AtomBoolean:
		v, ok := elem.Attr(a.Attr)
		if !ok {
			return false, nil
		}
		truthy := strings.EqualFold(v, "true") || v == "1"
		if a.Negated {
			return !truthy, nil
		}
		return truthy, nil

	case AtomEquality:
		v, ok := elem.Attr(a.Attr)
		if !ok {
			return false, nil
		}
		equal, err := evalEquality(v, a)
		if err != nil {
			return false, err
		}
		if a.Op == "<>" {
			return !equal, nil
		}
		return equal, nil

	case AtomComparison:
		v, ok := elem.Attr(a.Attr)
		if !ok {
			return false, nil
		}
		return evalComparison(v, a)

	case AtomMembership:
		v, ok := elem.Attr(a.Attr)
		if !ok {
			return false, nil
		}
		return evalMembership(v, a, bound)

	default:
		return false, errs.New(errs.KindInvalidExpression, "", fmt.Sprintf("unknown atom kind %q", a.Kind))
	}
}

// evalEquality delegates the numeric half to govaluate so the comparison
// logic lives in one well-tested expression engine rather than a hand-rolled
// parser, matching the teacher's preference for govaluate over ad hoc math
// (agent/tools/math.go).
func evalEquality(value string, a *Atom) (bool, error) {
	if a.IsNumber {
		n, ok := parseFloat(value)
		if !ok {
			return false, nil
		}
		return evalNumericExpr(fmt.Sprintf("%v == %v", n, a.Number))
	}
	return value == a.String, nil
}

func evalComparison(value string, a *Atom) (bool, error) {
	n, ok := parseFloat(value)
	if !ok {
		return false, nil
	}
	return evalNumericExpr(fmt.Sprintf("%v %s %v", n, a.Op, a.Number))
}

func evalNumericExpr(expr string) (bool, error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, errs.Wrap(errs.KindInvalidExpression, "", expr, err)
	}
	result, err := e.Evaluate(nil)
	if err != nil {
		return false, errs.Wrap(errs.KindInvalidExpression, "", expr, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, errs.New(errs.KindInvalidExpression, "", fmt.Sprintf("expression %q did not evaluate to a boolean", expr))
	}
	return b, nil
}

func evalMembership(value string, a *Atom, bound map[string]Binding) (bool, error) {
	b, ok := bound[a.InVar]
	if !ok {
		return false, errs.New(errs.KindMalformedGoalModel, "", fmt.Sprintf("%q is not a previously bound variable", a.InVar))
	}

	if a.InAttr == "" {
		if b.Collection == nil {
			return false, errs.New(errs.KindMalformedGoalModel, "", fmt.Sprintf("%q is not a collection-typed variable", a.InVar))
		}
		for _, v := range b.Collection {
			if v == value {
				return true, nil
			}
		}
		return false, nil
	}

	if b.Element == nil {
		return false, errs.New(errs.KindMalformedGoalModel, "", fmt.Sprintf("%q is not a value-typed variable", a.InVar))
	}
	list, ok := b.Element.ListAttr(a.InAttr)
	if !ok {
		return false, nil
	}
	for _, v := range list {
		if v == value {
			return true, nil
		}
	}
	return false, nil
}

func parseFloat(s string) (float64, bool) {
	var f float64
	n, err := fmt.Sscanf(s, "%g", &f)
	if err != nil || n != 1 {
		return 0, false
	}
	return f, true
}

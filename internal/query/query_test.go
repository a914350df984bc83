package query

import (
	"fmt"
	"testing"
)

func robotElement(id, status string, battery float64, skills []string) *Element {
	return &Element{
		ID: id,
		Attrs: map[string]string{
			"status":  status,
			"battery": fmt.Sprintf("%g", battery),
		},
		ListAttrs: map[string][]string{"skills": skills},
	}
}

func TestParseAndEvalBooleanAtom(t *testing.T) {
	node, err := Parse("r.idle")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"idle": "true"}}
	ok, err := Eval(node, elem, nil)
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if !ok {
		t.Fatal("expected idle atom to hold")
	}
}

func TestParseAndEvalNegatedBooleanAtom(t *testing.T) {
	node, err := Parse("!r.idle")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"idle": "true"}}
	ok, err := Eval(node, elem, nil)
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if ok {
		t.Fatal("expected negated idle atom to be false")
	}
}

func TestEvalMissingAttributeIsFalseNotError(t *testing.T) {
	node, err := Parse("r.charged")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{}}
	ok, err := Eval(node, elem, nil)
	if err != nil {
		t.Fatalf("expected no error for missing attribute, got %v", err)
	}
	if ok {
		t.Fatal("expected missing attribute to evaluate false")
	}
}

func TestEvalComparisonAtom(t *testing.T) {
	node, err := Parse("r.battery > 50")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	high := &Element{ID: "r1", Attrs: map[string]string{"battery": "80"}}
	low := &Element{ID: "r2", Attrs: map[string]string{"battery": "10"}}

	ok, err := Eval(node, high, nil)
	if err != nil || !ok {
		t.Fatalf("expected high battery element to satisfy > 50, ok=%v err=%v", ok, err)
	}
	ok, err = Eval(node, low, nil)
	if err != nil || ok {
		t.Fatalf("expected low battery element to fail > 50, ok=%v err=%v", ok, err)
	}
}

func TestEvalEqualityStringAtom(t *testing.T) {
	node, err := Parse(`r.status = "idle"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"status": "idle"}}
	ok, err := Eval(node, elem, nil)
	if err != nil || !ok {
		t.Fatalf("expected status = idle to hold, ok=%v err=%v", ok, err)
	}
}

func TestEvalAndConjunctionRecursesBothBranches(t *testing.T) {
	node, err := Parse("r.idle = \"true\" and r.battery > 50")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"idle": "true", "battery": "80"}}
	ok, err := Eval(node, elem, nil)
	if err != nil || !ok {
		t.Fatalf("expected both conjuncts to hold, ok=%v err=%v", ok, err)
	}

	partial := &Element{ID: "r2", Attrs: map[string]string{"idle": "true", "battery": "10"}}
	ok, err = Eval(node, partial, nil)
	if err != nil || ok {
		t.Fatalf("expected conjunction to fail when one conjunct fails, ok=%v err=%v", ok, err)
	}
}

func TestEvalOrDisjunctionRecursesBothBranches(t *testing.T) {
	node, err := Parse("r.battery > 90 or r.status = \"charging\"")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"battery": "10", "status": "charging"}}
	ok, err := Eval(node, elem, nil)
	if err != nil || !ok {
		t.Fatalf("expected disjunction to hold via second branch, ok=%v err=%v", ok, err)
	}
}

func TestEvalMembershipAgainstBoundCollection(t *testing.T) {
	node, err := Parse("r.id in deployed")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"id": "r1"}}
	bound := map[string]Binding{"deployed": {Collection: []string{"r1", "r2"}}}
	ok, err := Eval(node, elem, bound)
	if err != nil || !ok {
		t.Fatalf("expected membership to hold, ok=%v err=%v", ok, err)
	}

	notDeployed := &Element{ID: "r3", Attrs: map[string]string{"id": "r3"}}
	ok, err = Eval(node, notDeployed, bound)
	if err != nil || ok {
		t.Fatalf("expected membership to fail for unlisted id, ok=%v err=%v", ok, err)
	}
}

func TestEvalMembershipAgainstBoundElementListAttr(t *testing.T) {
	node, err := Parse("r.id in base.fleet")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"id": "r1"}}
	base := &Element{ID: "base1", ListAttrs: map[string][]string{"fleet": {"r1", "r2"}}}
	bound := map[string]Binding{"base": {Element: base}}
	ok, err := Eval(node, elem, bound)
	if err != nil || !ok {
		t.Fatalf("expected membership via list attr to hold, ok=%v err=%v", ok, err)
	}
}

func TestEvalMembershipUnboundVariableIsError(t *testing.T) {
	node, err := Parse("r.id in unknownVar")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	elem := &Element{ID: "r1", Attrs: map[string]string{"id": "r1"}}
	if _, err := Eval(node, elem, nil); err == nil {
		t.Fatal("expected error for reference to an unbound variable")
	}
}

func TestSolveFiltersElementsSatisfyingExpression(t *testing.T) {
	node, err := Parse("r.battery > 50")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	tree := NewTree()
	tree.Add("robot", robotElement("r1", "idle", 80, nil))
	tree.Add("robot", robotElement("r2", "idle", 10, nil))
	tree.Add("robot", robotElement("r3", "idle", 90, nil))

	matched, err := Solve(node, tree.Elements("robot"), nil)
	if err != nil {
		t.Fatalf("unexpected solve error: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 matching robots, got %d", len(matched))
	}
}

func TestTreeElementsBySort(t *testing.T) {
	tree := NewTree()
	tree.Add("robot", robotElement("r1", "idle", 80, []string{"lift"}))
	tree.Add("robot", robotElement("r2", "busy", 20, []string{"scan"}))
	elems := tree.Elements("robot")
	if len(elems) != 2 {
		t.Fatalf("expected 2 robot elements, got %d", len(elems))
	}
}

// Package query implements QuerySolver (spec.md §4.3): evaluating OCL-style
// select expressions against a knowledge tree to bind a Query goal's
// controlled variable(s).
package query

// Element is one instance in the knowledge tree (a child of world_db under a
// given sort), carrying scalar and list-valued attributes. Mirrors the
// original's pt::ptree per-sort instance shape (gm.hpp/querysolver.cpp),
// simplified to a typed record since parsing the world-database file is out
// of scope (spec.md §1).
type Element struct {
	ID        string
	Attrs     map[string]string   // scalar attribute name -> value (bools as "true"/"false")
	ListAttrs map[string][]string // list-valued attribute name -> values
}

// Attr returns a scalar attribute value, reporting absence distinctly so
// callers can implement "missing ⇒ false" (spec.md §4.3 Guarantees).
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// ListAttr returns a list-valued attribute, reporting absence.
func (e *Element) ListAttr(name string) ([]string, bool) {
	v, ok := e.ListAttrs[name]
	return v, ok
}

// Tree is the world database's per-sort instance tree QuerySolver evaluates
// select expressions against.
type Tree struct {
	BySort map[string][]*Element
}

// NewTree returns an empty knowledge tree.
func NewTree() *Tree { return &Tree{BySort: make(map[string][]*Element)} }

// Add registers an element under a sort.
func (t *Tree) Add(sort string, e *Element) {
	t.BySort[sort] = append(t.BySort[sort], e)
}

// Elements returns every element of the given sort.
func (t *Tree) Elements(sort string) []*Element {
	return t.BySort[sort]
}

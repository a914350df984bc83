package query

import (
	"github.com/taipm/mission-decomposer/internal/annotation"
	"github.com/taipm/mission-decomposer/internal/goalmodel"
)

// Resolver adapts a knowledge Tree to AnnotationEngine's QueryResolver
// interface (spec.md §4.2, §4.3): it parses the QueriedProperty's select
// expression once, evaluates it against every element of the declared
// binder type, and returns the ids of the elements that satisfy it.
//
// AnnotationEngine's QueryResolver contract carries no cross-goal binding
// map, so Resolve calls Solve with no bound variables. A membership atom
// ("var.attr in otherVar") therefore returns an error for any element that
// has attr (elements lacking attr are skipped as usual); filtering against a
// sibling Query goal's result is not available through Resolve.
type Resolver struct {
	Tree *Tree
}

// NewResolver wraps tree for use as an annotation.QueryResolver.
func NewResolver(tree *Tree) *Resolver { return &Resolver{Tree: tree} }

// Resolve implements annotation.QueryResolver.
func (r *Resolver) Resolve(prop *goalmodel.QueriedProperty) ([]string, error) {
	ast, err := Parse(prop.Expr)
	if err != nil {
		return nil, err
	}
	elements := r.Tree.Elements(prop.BinderType)
	matched, err := Solve(ast, elements, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matched))
	for i, e := range matched {
		ids[i] = e.ID
	}
	return ids, nil
}

var _ annotation.QueryResolver = (*Resolver)(nil)

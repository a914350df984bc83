package goalmodel

import (
	"fmt"

	"github.com/taipm/mission-decomposer/internal/errs"
)

// Validate enforces spec.md §3's GoalNode invariants, returning a
// MalformedGoalModel PipelineError (spec.md §7) on the first violation found
// in DFS order.
func (gm *GoalModel) Validate() error {
	controlledBy := make(map[string]string) // controlled var -> declaring node id

	for _, id := range gm.DFSNodes() {
		node := gm.Nodes[id]
		if node.Type != NodeGoal || node.Goal == nil {
			continue
		}
		g := node.Goal

		for _, cv := range g.ControlledVars {
			if owner, ok := controlledBy[cv]; ok {
				return errs.New(errs.KindMalformedGoalModel, id,
					fmt.Sprintf("controlled variable %q redeclared (first declared at %q)", cv, owner))
			}
			controlledBy[cv] = id
		}

		for _, mv := range g.MonitoredVars {
			if !gm.declaredByAncestor(id, mv, controlledBy) {
				return errs.New(errs.KindMalformedGoalModel, id,
					fmt.Sprintf("monitored variable %q has no declaring ancestor", mv))
			}
		}

		if g.AchieveCond != nil && g.Kind != KindAchieve {
			return errs.New(errs.KindMalformedGoalModel, id, "AchieveCondition present on non-Achieve goal")
		}
		if g.Kind == KindAchieve && g.AchieveCond == nil {
			return errs.New(errs.KindMalformedGoalModel, id, "Achieve goal missing AchieveCondition")
		}

		if g.AchieveCond != nil && g.AchieveCond.ForAll != nil {
			fa := g.AchieveCond.ForAll
			if fa.IteratedVar == "" || fa.Collection == "" || fa.IterationVar == "" {
				return errs.New(errs.KindMalformedGoalModel, id, "forAll missing required declarations")
			}
			if !contains(g.MonitoredVars, fa.IteratedVar) {
				return errs.New(errs.KindMalformedGoalModel, id,
					fmt.Sprintf("forAll iterated_var %q must be monitored", fa.IteratedVar))
			}
			if !contains(g.ControlledVars, fa.IterationVar) {
				return errs.New(errs.KindMalformedGoalModel, id,
					fmt.Sprintf("forAll iteration variable %q must be controlled", fa.IterationVar))
			}
		}

		if g.Kind == KindQuery {
			if g.QueriedProp == nil || len(g.ControlledVars) == 0 {
				return errs.New(errs.KindMalformedGoalModel, id, "Query goal without controlled variable")
			}
		}
	}
	return nil
}

func (gm *GoalModel) declaredByAncestor(id, varName string, controlledBy map[string]string) bool {
	owner, ok := controlledBy[varName]
	if !ok {
		return false
	}
	for _, anc := range gm.Ancestors(id) {
		if anc == owner {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

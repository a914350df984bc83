package worldstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taipm/mission-decomposer/internal/model"
)

func litCharged(pos bool) model.Literal {
	return model.Literal{
		Predicate: model.Predicate{Name: "charged", Arity: 1, ArgSorts: []string{"robot"}},
		Args:      []string{"r1"},
		Positive:  pos,
	}
}

func TestClosedWorldAbsentMeansFalse(t *testing.T) {
	s := New()
	require.False(t, s.HoldsLiteral(litCharged(true)))
}

func TestApplyEffectOverwrites(t *testing.T) {
	s := New()
	s.ApplyLiterals([]model.Literal{litCharged(true)})
	require.True(t, s.HoldsLiteral(litCharged(true)))

	s.ApplyLiterals([]model.Literal{litCharged(false)})
	require.False(t, s.HoldsLiteral(litCharged(true)))
	require.True(t, s.HoldsLiteral(litCharged(false)))
}

func TestFunctionEpsilonComparison(t *testing.T) {
	s := New()
	s.SetFunction("battery|r1", 3.0000000001)

	f := model.FunctionLiteral{
		Predicate: model.Predicate{Name: "battery", Arity: 1},
		Args:      []string{"r1"},
		Op:        model.CmpEqual,
		Target:    3.0,
	}
	require.True(t, s.SatisfiesFunction(f))
}

func TestFunctionAddEffect(t *testing.T) {
	s := New()
	s.SetFunction("load|r1", 1.0)
	s.ApplyEffect(Effect{Function: &FunctionEffect{Key: "load|r1", Kind: FunctionAdd, Value: 2.5}})

	v, ok := s.FunctionValue("load|r1")
	require.True(t, ok)
	require.InDelta(t, 3.5, v, floatEpsilon)
}

func TestConflictingSign(t *testing.T) {
	s := New()
	s.ApplyLiterals([]model.Literal{litCharged(true)})

	conflict := litCharged(false)
	require.True(t, s.ConflictingSign(Effect{Literal: &conflict}))

	same := litCharged(true)
	require.False(t, s.ConflictingSign(Effect{Literal: &same}))
}

func TestSatisfiesRequiresAllPreconditions(t *testing.T) {
	s := New()
	s.ApplyLiterals([]model.Literal{litCharged(true)})

	loaded := model.Literal{
		Predicate: model.Predicate{Name: "loaded", Arity: 1},
		Args:      []string{"box"},
		Positive:  true,
	}
	require.False(t, s.Satisfies([]model.Literal{litCharged(true), loaded}, nil))
	require.True(t, s.Satisfies([]model.Literal{litCharged(true)}, nil))
}

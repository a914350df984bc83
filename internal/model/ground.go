package model

// Ground resolves every argument of l through bindings, reporting ground=false
// if any argument is still a free variable (it maps to itself); an argument
// absent from bindings is taken as a constant. Used by MissionDecomposer's
// decomposition grounding and ValidMissionGenerator's step-by-step
// precondition simulation (spec.md §4.5, §4.7); DomainTDG's local pruning
// applies the same rule through its own groundLiteral.
func Ground(l Literal, bindings map[string]string) (Literal, bool) {
	out := Literal{Predicate: l.Predicate, Positive: l.Positive, Args: make([]string, len(l.Args))}
	for i, a := range l.Args {
		v, bound := bindings[a]
		if !bound {
			out.Args[i] = a
			continue
		}
		if v == a {
			return out, false
		}
		out.Args[i] = v
	}
	return out, true
}

// GroundFunction mirrors Ground for a FunctionLiteral's argument list.
func GroundFunction(f FunctionLiteral, bindings map[string]string) (FunctionLiteral, bool) {
	out := FunctionLiteral{Predicate: f.Predicate, Op: f.Op, Target: f.Target, Args: make([]string, len(f.Args))}
	for i, a := range f.Args {
		v, bound := bindings[a]
		if !bound {
			out.Args[i] = a
			continue
		}
		if v == a {
			return out, false
		}
		out.Args[i] = v
	}
	return out, true
}

// IsGroundArgs reports whether every element of args is already a constant
// with respect to vars (none of them are keys of vars), used where a literal
// itself isn't available but a raw arg slice is.
func IsGroundArgs(args []string, vars map[string]struct{}) bool {
	for _, a := range args {
		if _, isVar := vars[a]; isVar {
			return false
		}
	}
	return true
}

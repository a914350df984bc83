// Package errs defines the pipeline's error taxonomy (spec.md §7) and the
// exit-code mapping (spec.md §6). It mirrors the teacher's CodedError/
// ErrorContext pattern: a small set of typed error kinds, each carrying the
// offending node's user id and the failing construct, wrapping an optional
// underlying cause for errors.Is/As.
package errs

import "fmt"

// Kind is one of the seven error categories spec.md §7 defines.
type Kind string

const (
	KindMalformedGoalModel    Kind = "MALFORMED_GOAL_MODEL"
	KindMalformedConfig       Kind = "MALFORMED_CONFIG"
	KindDomainInconsistency   Kind = "DOMAIN_INCONSISTENCY"
	KindInvalidExpression     Kind = "INVALID_EXPRESSION"
	KindSemanticMappingFailure Kind = "SEMANTIC_MAPPING_FAILURE"
	KindUnsupported           Kind = "UNSUPPORTED"
	KindSearchBudgetExceeded  Kind = "SEARCH_BUDGET_EXCEEDED"
)

// ExitCode returns the process exit code spec.md §6 assigns to this kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindSearchBudgetExceeded:
		return 4
	case KindMalformedGoalModel, KindMalformedConfig, KindDomainInconsistency, KindInvalidExpression, KindSemanticMappingFailure:
		return 2
	case KindUnsupported:
		return 3
	default:
		return 1
	}
}

// PipelineError is the error type every pipeline stage returns on failure.
// Policy (spec.md §7): the first error halts the pipeline and surfaces the
// offending node's user id plus the failing construct.
type PipelineError struct {
	Kind      Kind
	NodeID    string // offending node's user id, "" if not node-scoped
	Construct string // the failing construct (expression text, task name, ...)
	Err       error  // wrapped cause, may be nil
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Kind)
	if e.NodeID != "" {
		msg += fmt.Sprintf(" node %q:", e.NodeID)
	}
	if e.Construct != "" {
		msg += fmt.Sprintf(" %s", e.Construct)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ExitCode delegates to the wrapped Kind, defaulting to a generic failure
// code for pipeline errors that (incorrectly) carry an empty Kind.
func (e *PipelineError) ExitCode() int {
	if e.Kind == "" {
		return 1
	}
	return e.Kind.ExitCode()
}

// New builds a PipelineError with no wrapped cause.
func New(kind Kind, nodeID, construct string) *PipelineError {
	return &PipelineError{Kind: kind, NodeID: nodeID, Construct: construct}
}

// Wrap builds a PipelineError wrapping an underlying cause.
func Wrap(kind Kind, nodeID, construct string, err error) *PipelineError {
	return &PipelineError{Kind: kind, NodeID: nodeID, Construct: construct, Err: err}
}

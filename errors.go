package plandomain

import (
	"fmt"

	"github.com/joeycumines/go-plandomain/ground"
)

// ConfigurationError is returned by New when the problem cannot be
// grounded. See ground.ConfigurationError.
type ConfigurationError = ground.ConfigurationError

// InapplicableActionError reports a transition attempted with an action
// whose precondition does not hold in the given state. Search procedures
// treat it as a dead branch, not a fault; it is recorded as the domain's
// last error.
type InapplicableActionError struct {
	// Action is the grounded action name.
	Action string
	// Precondition is the source of the first violated precondition.
	Precondition string
}

func (e *InapplicableActionError) Error() string {
	return fmt.Sprintf("precondition %q of action %q is not satisfied", e.Precondition, e.Action)
}

// EvaluationError reports an expression that failed to evaluate to a
// concrete value of the required shape where one is mandatory (goal test,
// precondition test, effect guard or value, simulated effect output). It
// signals a malformed problem or unsupported expression; it is fatal and
// never retried.
type EvaluationError struct {
	// Expression is the source of the offending expression, or a
	// description of the failing construct.
	Expression string
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("expression %q did not evaluate to a usable value: %v", e.Expression, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func evalErrf(expression, format string, args ...any) *EvaluationError {
	return &EvaluationError{Expression: expression, Err: fmt.Errorf(format, args...)}
}

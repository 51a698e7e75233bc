// Package engine runs generic solvers over a transition domain and packages
// the outcome: a solver produces a sequence of grounded actions, the engine
// replays it against the domain to validate and cost it, and the validated
// plan is rewritten back onto the original problem's actions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	plandomain "github.com/joeycumines/go-plandomain"
	"github.com/joeycumines/go-plandomain/ground"
	"github.com/joeycumines/go-plandomain/problem"
)

// ErrNoPlan is returned by solvers that exhaust their search space without
// reaching the goal.
var ErrNoPlan = errors.New("no plan found")

// Solver searches a domain for a goal-reaching action sequence. Solvers
// respect ctx cancellation and return ErrNoPlan (possibly wrapped) when the
// search space is exhausted.
type Solver interface {
	Name() string
	Solve(ctx context.Context, d *plandomain.Domain) ([]*ground.Action, error)
}

// Result is a validated solve outcome.
type Result struct {
	// ID uniquely identifies this solve run.
	ID     string
	Engine string
	// Grounded is the raw plan over grounded actions.
	Grounded []*ground.Action
	// Plan is Grounded rewritten onto the original problem's actions.
	Plan    problem.Plan
	Cost    float64
	Length  int
	Elapsed time.Duration
}

// Solve runs the solver and validates its plan by replaying it from the
// initial state: every step must be applicable and the final state must
// satisfy the goal. The replay also accumulates the plan's transition cost.
func Solve(ctx context.Context, d *plandomain.Domain, s Solver) (*Result, error) {
	start := time.Now()
	grounded, err := s.Solve(ctx, d)
	if err != nil {
		return nil, err
	}

	st := d.Reset()
	var cost float64
	for i, a := range grounded {
		next, err := d.Successor(st, a)
		if err != nil {
			return nil, fmt.Errorf("solver %q produced an invalid plan: step %d (%s): %w", s.Name(), i, a.Name, err)
		}
		cost += d.TransitionValue(st, a, next)
		st = next
	}
	ok, err := d.IsGoal(st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("solver %q produced an invalid plan: %d steps do not reach the goal", s.Name(), len(grounded))
	}

	plan, err := d.RewriteBack(grounded)
	if err != nil {
		return nil, err
	}
	return &Result{
		ID:       uuid.NewString(),
		Engine:   s.Name(),
		Grounded: grounded,
		Plan:     plan,
		Cost:     cost,
		Length:   len(grounded),
		Elapsed:  time.Since(start),
	}, nil
}

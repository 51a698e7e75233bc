// Package plandomain exposes a grounded planning problem as a deterministic
// state-transition domain: an initial state, a successor function over
// grounded actions, a goal test, and applicable-action filtering, in the
// shape a generic state-space search procedure consumes. Plans found over
// the grounded actions are rewritten back onto the original problem's
// actions through the recorded grounding map.
//
// A Domain instance is a read-only snapshot built once from a
// problem.Problem; states are immutable value vectors over a fixed key
// sequence. All evaluation is pure function application, so a Domain is
// safe for any single-threaded solver loop; it performs no I/O and has no
// blocking operations.
package plandomain

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeycumines/go-plandomain/ground"
	"github.com/joeycumines/go-plandomain/problem"
)

// TransitionCostFunc computes the value (cost) of one transition. It is
// supplied explicitly by the caller; the domain never infers a cost formula
// from the problem.
type TransitionCostFunc func(s *State, a *ground.Action, next *State) float64

// Option configures a Domain.
type Option func(*Domain)

// WithTransitionCost sets the transition value function. The default is a
// constant cost of 1 per transition.
func WithTransitionCost(fn TransitionCostFunc) Option {
	return func(d *Domain) { d.costFn = fn }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Domain) { d.logger = l }
}

// Domain is the transition adapter over a grounded problem. One Domain
// instance is driven by one solver invocation at a time; transitions
// produce fresh states rather than sharing mutable ones, so nothing beyond
// the last-error slot needs locking.
type Domain struct {
	gp       *ground.Problem
	rewriter *ground.Rewriter
	initial  *State
	costFn   TransitionCostFunc
	logger   *slog.Logger

	// nullary maps zero-parameter fluent names to their key index; nary
	// lists the names of fluents that appear as calls in expressions.
	nullary map[string]int
	nary    []string

	mu      sync.Mutex
	lastErr error
}

// New grounds the problem and builds the transition adapter. Grounding
// failures are reported as *ConfigurationError.
func New(p *problem.Problem, opts ...Option) (*Domain, error) {
	gp, rewriter, err := ground.Ground(p)
	if err != nil {
		return nil, err
	}
	d := &Domain{
		gp:       gp,
		rewriter: rewriter,
		logger:   slog.Default(),
		nullary:  make(map[string]int),
	}
	for _, o := range opts {
		o(d)
	}
	index := make(map[string]int, len(gp.Keys))
	for i, k := range gp.Keys {
		index[k] = i
	}
	d.initial = &State{
		keys:   gp.Keys,
		index:  index,
		values: append([]problem.Value(nil), gp.Initial...),
	}
	for _, f := range p.Fluents {
		if len(f.Params) == 0 {
			if i, ok := index[f.Name]; ok {
				d.nullary[f.Name] = i
			}
			continue
		}
		d.nary = append(d.nary, f.Name)
	}
	d.logger.Debug("domain constructed",
		"problem", p.Name,
		"keys", len(gp.Keys),
		"actions", len(gp.Actions),
		"goals", len(gp.Goals))
	return d, nil
}

// Ground returns the grounded problem snapshot.
func (d *Domain) Ground() *ground.Problem { return d.gp }

// Rewriter returns the recorded grounding map.
func (d *Domain) Rewriter() *ground.Rewriter { return d.rewriter }

// Reset returns the initial state and clears the last error.
func (d *Domain) Reset() *State {
	d.setLastErr(nil)
	return d.initial
}

// ActionSpace returns every grounded action, in the grounded problem's
// declared order. The returned slice is shared; callers must not modify it.
func (d *Domain) ActionSpace() []*ground.Action { return d.gp.Actions }

// ApplicableActions filters the grounded action set to those whose full
// precondition set evaluates to concrete true in the given state, in
// declared order. Evaluation failures are *EvaluationError.
func (d *Domain) ApplicableActions(s *State) ([]*ground.Action, error) {
	if err := d.checkState(s); err != nil {
		return nil, err
	}
	var out []*ground.Action
	for _, a := range d.gp.Actions {
		ok, err := d.preconditionsHold(s, a)
		if err != nil {
			d.setLastErr(err)
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// RewriteBack maps a plan over grounded actions onto the original problem's
// actions, preserving order.
func (d *Domain) RewriteBack(plan []*ground.Action) (problem.Plan, error) {
	return d.rewriter.Rewrite(plan)
}

// TransitionValue returns the configured cost of the transition from s to
// next via a. Without WithTransitionCost it is the constant 1.
func (d *Domain) TransitionValue(s *State, a *ground.Action, next *State) float64 {
	if d.costFn != nil {
		return d.costFn(s, a, next)
	}
	return 1
}

// LastError returns the error recorded by the most recent failed operation,
// or nil. Reset clears it.
func (d *Domain) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Domain) setLastErr(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

func (d *Domain) checkState(s *State) error {
	if s == nil {
		return fmt.Errorf("nil state")
	}
	if len(s.values) != len(d.gp.Keys) {
		return fmt.Errorf("state has %d values, domain has %d keys", len(s.values), len(d.gp.Keys))
	}
	return nil
}

// Package pabt solves a transition domain by backward chaining: goal
// conditions that do not hold select actions whose advertised effects would
// satisfy them, and the resulting behavior tree is ticked until the goal
// holds or expansion bottoms out. Each condition must be pinned to exactly
// one grounded state variable, which this package extracts from the
// condition's expression.
package pabt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"
	plandomain "github.com/joeycumines/go-plandomain"
	"github.com/joeycumines/go-plandomain/engine"
	"github.com/joeycumines/go-plandomain/ground"
	"github.com/joeycumines/go-plandomain/problem"
)

// DefaultMaxTicks bounds the tick loop of a single solve.
const DefaultMaxTicks = 10000

// Solver runs backward-chaining behavior-tree planning over a domain.
type Solver struct {
	// MaxTicks caps root-node ticks per solve. Zero means DefaultMaxTicks.
	MaxTicks int
	Logger   *slog.Logger
}

var _ engine.Solver = (*Solver)(nil)

func (s *Solver) Name() string { return "pabt" }

func (s *Solver) Solve(ctx context.Context, d *plandomain.Domain) ([]*ground.Action, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ps := &planState{domain: d, state: d.Reset(), logger: logger}

	src := d.Ground().Source
	for _, ga := range d.ActionSpace() {
		var group pabtpkg.IConditions
		for _, pre := range ga.Preconditions {
			key, err := conditionKey(src, pre, ga.Binding)
			if err != nil {
				return nil, fmt.Errorf("action %q: precondition %q: %w", ga.Name, pre.Source, err)
			}
			group = append(group, &cond{state: ps, expr: pre, binding: ga.Binding, key: key})
		}
		ps.actions = append(ps.actions, &action{
			state:      ps,
			grounded:   ga,
			conditions: []pabtpkg.IConditions{group},
			node:       bt.New(ps.tick(ga)),
		})
	}

	var goal pabtpkg.IConditions
	for _, g := range d.Ground().Goals {
		key, err := conditionKey(src, g, nil)
		if err != nil {
			return nil, fmt.Errorf("goal %q: %w", g.Source, err)
		}
		goal = append(goal, &cond{state: ps, expr: g, key: key})
	}

	plan, err := pabtpkg.INew(ps, []pabtpkg.IConditions{goal})
	if err != nil {
		return nil, err
	}
	node := plan.Node()

	maxTicks := s.MaxTicks
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	for i := 0; i < maxTicks; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		status, err := node.Tick()
		if err != nil {
			return nil, err
		}
		switch status {
		case bt.Success:
			ok, err := d.IsGoal(ps.current())
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("tree succeeded short of the goal: %w", engine.ErrNoPlan)
			}
			logger.Debug("goal reached", "ticks", i+1, "steps", len(ps.trace))
			return ps.executed(), nil
		case bt.Failure:
			return nil, engine.ErrNoPlan
		}
	}
	return nil, fmt.Errorf("no plan after %d ticks: %w", maxTicks, engine.ErrNoPlan)
}

// planState adapts the domain to the planner's state interface. It owns the
// live state: action nodes advance it as they execute, and conditions and
// advertised effects always evaluate against the current value.
type planState struct {
	domain  *plandomain.Domain
	logger  *slog.Logger
	actions []*action

	mu    sync.Mutex
	state *plandomain.State
	trace []*ground.Action
}

var _ pabtpkg.IState = (*planState)(nil)

func (s *planState) current() *plandomain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *planState) executed() []*ground.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ground.Action(nil), s.trace...)
}

// Variable returns the live value of a grounded fluent instance, or nil for
// unknown keys.
func (s *planState) Variable(key any) (any, error) {
	ks, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("unsupported variable key type %T", key)
	}
	v, ok := s.current().Value(ks)
	if !ok {
		return nil, nil
	}
	return v.Native(), nil
}

// Actions returns the actions whose advertised effects could satisfy the
// failed condition. A nil condition returns every action.
func (s *planState) Actions(failed pabtpkg.Condition) ([]pabtpkg.IAction, error) {
	var out []pabtpkg.IAction
	for _, a := range s.actions {
		if failed == nil || a.relevantTo(failed) {
			out = append(out, a)
		}
	}
	return out, nil
}

// tick builds the behavior that executes one grounded action against the
// live state. An unsatisfied precondition is a plain Failure; evaluation
// faults abort the solve.
func (s *planState) tick(ga *ground.Action) bt.Tick {
	return func([]bt.Node) (bt.Status, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		next, err := s.domain.Successor(s.state, ga)
		if err != nil {
			var inap *plandomain.InapplicableActionError
			if errors.As(err, &inap) {
				s.logger.Debug("action not applicable", "action", ga.Name, "precondition", inap.Precondition)
				return bt.Failure, nil
			}
			return bt.Failure, err
		}
		s.state = next
		s.trace = append(s.trace, ga)
		s.logger.Debug("action executed", "action", ga.Name, "steps", len(s.trace))
		return bt.Success, nil
	}
}

// cond pins a compiled condition expression to the single grounded key it
// reads.
type cond struct {
	state   *planState
	expr    *ground.Expr
	binding map[string]string
	key     string
}

var _ pabtpkg.Condition = (*cond)(nil)

func (c *cond) Key() any { return c.key }

// Match reports whether the condition would hold in the live state with the
// pinned key bound to the given value.
func (c *cond) Match(value any) bool {
	v, err := problem.FromNative(value)
	if err != nil {
		return false
	}
	ok, err := c.state.domain.HoldsWith(c.state.current(), c.expr, c.binding, c.key, v)
	return err == nil && ok
}

type action struct {
	state      *planState
	grounded   *ground.Action
	conditions []pabtpkg.IConditions
	node       bt.Node
}

var _ pabtpkg.IAction = (*action)(nil)

func (a *action) Conditions() []pabtpkg.IConditions { return a.conditions }

// Effects advertises what the action would write, with each effect's value
// computed against the live state. Effects whose value cannot be computed
// yet (such as arithmetic over variables this action does not control) are
// omitted rather than advertised wrongly.
func (a *action) Effects() pabtpkg.Effects {
	st := a.state.current()
	out := make(pabtpkg.Effects, 0, len(a.grounded.Effects))
	for _, e := range a.grounded.Effects {
		v, err := a.state.domain.EffectValue(st, a.grounded, e)
		if err != nil {
			a.state.logger.Debug("effect value unavailable", "action", a.grounded.Name, "key", e.Key, "error", err)
			continue
		}
		out = append(out, &effect{key: e.Key, value: v.Native()})
	}
	return out
}

func (a *action) Node() bt.Node { return a.node }

func (a *action) relevantTo(failed pabtpkg.Condition) bool {
	for _, e := range a.Effects() {
		if e.Key() == failed.Key() && failed.Match(e.Value()) {
			return true
		}
	}
	return false
}

type effect struct {
	key   string
	value any
}

var _ pabtpkg.Effect = (*effect)(nil)

func (e *effect) Key() any   { return e.key }
func (e *effect) Value() any { return e.value }

package plandomain

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/joeycumines/go-plandomain/ground"
	"github.com/joeycumines/go-plandomain/problem"
)

// override substitutes the value of a single grounded key during
// evaluation, without touching the state itself.
type override struct {
	key string
	val problem.Value
}

// env builds the expression environment for evaluating lifted expressions
// against a state: object names bound to themselves, zero-parameter fluents
// bound to their current values, parameterized fluents bound to lookup
// functions, and the action's parameter binding merged last.
func (d *Domain) env(s *State, binding map[string]string, ov *override) map[string]any {
	env := make(map[string]any, len(d.gp.Source.Objects)+len(d.nullary)+len(d.nary)+len(binding))
	for _, o := range d.gp.Source.Objects {
		env[o.Name] = o.Name
	}
	for name, idx := range d.nullary {
		if ov != nil && ov.key == name {
			env[name] = ov.val.Native()
			continue
		}
		env[name] = s.values[idx].Native()
	}
	for _, name := range d.nary {
		name := name
		env[name] = func(args ...any) (any, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				str, ok := a.(string)
				if !ok {
					return nil, fmt.Errorf("fluent %s: argument %d is not an object (got %T)", name, i+1, a)
				}
				parts[i] = str
			}
			key := problem.InstanceKey(name, parts...)
			if ov != nil && ov.key == key {
				return ov.val.Native(), nil
			}
			v, ok := s.Value(key)
			if !ok {
				return nil, fmt.Errorf("unknown fluent instance %q", key)
			}
			return v.Native(), nil
		}
	}
	for param, obj := range binding {
		env[param] = obj
	}
	return env
}

func runExpr(e *ground.Expr, env map[string]any) (any, error) {
	return expr.Run(e.Program(), env)
}

// Successor applies a grounded action to a state, producing the successor
// state. Every precondition must evaluate to concrete true, otherwise the
// transition fails with *InapplicableActionError. All effects (including
// guards and increase/decrease operands) observe only the pre-transition
// state; the input state is never mutated. Failures are recorded as the
// domain's last error.
func (d *Domain) Successor(s *State, a *ground.Action) (*State, error) {
	if err := d.checkState(s); err != nil {
		return nil, err
	}
	env := d.env(s, a.Binding, nil)

	for _, pre := range a.Preconditions {
		v, err := runExpr(pre, env)
		if err != nil {
			e := &EvaluationError{Expression: pre.Source, Err: err}
			d.setLastErr(e)
			return nil, e
		}
		if b, ok := v.(bool); !ok || !b {
			e := &InapplicableActionError{Action: a.Name, Precondition: pre.Source}
			d.setLastErr(e)
			d.logger.Debug("inapplicable action", "action", a.Name, "precondition", pre.Source)
			return nil, e
		}
	}

	// Simultaneous-update semantics: compute every update against the
	// pre-transition state first, then apply in declared order (later
	// effects on the same key win).
	var updates []update
	for _, e := range a.Effects {
		if e.Guard != nil {
			gv, err := runExpr(e.Guard, env)
			if err != nil {
				ee := &EvaluationError{Expression: e.Guard.Source, Err: err}
				d.setLastErr(ee)
				return nil, ee
			}
			gb, ok := gv.(bool)
			if !ok {
				ee := evalErrf(e.Guard.Source, "effect guard evaluated to %T, want bool", gv)
				d.setLastErr(ee)
				return nil, ee
			}
			if !gb {
				continue
			}
		}
		val, err := d.effectValue(s, env, e)
		if err != nil {
			d.setLastErr(err)
			return nil, err
		}
		idx, _ := d.gp.KeyIndex(e.Key)
		updates = append(updates, update{idx: idx, val: val})
	}

	if a.Simulated != nil {
		assigns, err := a.Simulated(s)
		if err != nil {
			ee := &EvaluationError{Expression: "simulated effect of " + a.Name, Err: err}
			d.setLastErr(ee)
			return nil, ee
		}
		for _, as := range assigns {
			idx, ok := d.gp.KeyIndex(as.Key)
			if !ok {
				ee := evalErrf("simulated effect of "+a.Name, "unknown fluent instance %q", as.Key)
				d.setLastErr(ee)
				return nil, ee
			}
			val, err := problem.Coerce(as.Value.Native(), d.gp.Fluents[idx].Kind)
			if err != nil {
				ee := &EvaluationError{Expression: "simulated effect of " + a.Name, Err: err}
				d.setLastErr(ee)
				return nil, ee
			}
			updates = append(updates, update{idx: idx, val: val})
		}
	}

	return s.with(updates), nil
}

// effectValue computes the post-transition value of one effect against the
// pre-transition state.
func (d *Domain) effectValue(s *State, env map[string]any, e *ground.Effect) (problem.Value, error) {
	raw, err := runExpr(e.Value, env)
	if err != nil {
		return problem.Value{}, &EvaluationError{Expression: e.Value.Source, Err: err}
	}
	switch e.Kind {
	case problem.Assign:
		val, err := problem.Coerce(raw, e.Fluent.Kind)
		if err != nil {
			return problem.Value{}, &EvaluationError{Expression: e.Value.Source, Err: err}
		}
		if e.Fluent.Kind == problem.KindObject && d.gp.Source.Object(val.Object()) == nil {
			return problem.Value{}, evalErrf(e.Value.Source, "unknown object %q", val.Object())
		}
		return val, nil
	case problem.Increase, problem.Decrease:
		cur, _ := s.Value(e.Key)
		delta, err := problem.FromNative(raw)
		if err != nil {
			return problem.Value{}, &EvaluationError{Expression: e.Value.Source, Err: err}
		}
		sign := int64(1)
		if e.Kind == problem.Decrease {
			sign = -1
		}
		// Integer fluents stay in integer arithmetic, real fluents in real
		// arithmetic; a real operand never flows into an integer fluent.
		switch e.Fluent.Kind {
		case problem.Int:
			if delta.Kind() != problem.Int {
				return problem.Value{}, evalErrf(e.Value.Source, "%s on int fluent %q requires an integer operand, got %s", e.Kind, e.Fluent.Name, delta.Kind())
			}
			return problem.IntValue(cur.Int() + sign*delta.Int()), nil
		case problem.Real:
			var f float64
			switch delta.Kind() {
			case problem.Int:
				f = float64(delta.Int())
			case problem.Real:
				f = delta.Real()
			default:
				return problem.Value{}, evalErrf(e.Value.Source, "%s on real fluent %q requires a numeric operand, got %s", e.Kind, e.Fluent.Name, delta.Kind())
			}
			return problem.RealValue(cur.Real() + float64(sign)*f), nil
		default:
			return problem.Value{}, evalErrf(e.Value.Source, "%s on non-numeric fluent %q", e.Kind, e.Fluent.Name)
		}
	default:
		return problem.Value{}, evalErrf(e.Value.Source, "unknown effect kind %d", e.Kind)
	}
}

// EffectValue computes the value an effect of a grounded action would write
// in the given state, without applying the transition. Guards are not
// consulted.
func (d *Domain) EffectValue(s *State, a *ground.Action, e *ground.Effect) (problem.Value, error) {
	if err := d.checkState(s); err != nil {
		return problem.Value{}, err
	}
	return d.effectValue(s, d.env(s, a.Binding, nil), e)
}

// IsGoal reports whether every goal expression evaluates to concrete true
// in the given state. A goal expression that does not evaluate to a boolean
// at all is an *EvaluationError, not a normal false.
func (d *Domain) IsGoal(s *State) (bool, error) {
	if err := d.checkState(s); err != nil {
		return false, err
	}
	env := d.env(s, nil, nil)
	for _, g := range d.gp.Goals {
		v, err := runExpr(g, env)
		if err != nil {
			e := &EvaluationError{Expression: g.Source, Err: err}
			d.setLastErr(e)
			return false, e
		}
		b, ok := v.(bool)
		if !ok {
			e := evalErrf(g.Source, "goal evaluated to %T, want bool", v)
			d.setLastErr(e)
			return false, e
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

// Holds evaluates a compiled condition against a state under an optional
// parameter binding, requiring a concrete boolean result.
func (d *Domain) Holds(s *State, e *ground.Expr, binding map[string]string) (bool, error) {
	return d.holds(s, e, binding, nil)
}

// HoldsWith is Holds with the value of one grounded key substituted. It
// lets backward-chaining solvers ask whether a hypothetical value for a
// single fluent would satisfy the condition.
func (d *Domain) HoldsWith(s *State, e *ground.Expr, binding map[string]string, key string, val problem.Value) (bool, error) {
	return d.holds(s, e, binding, &override{key: key, val: val})
}

func (d *Domain) holds(s *State, e *ground.Expr, binding map[string]string, ov *override) (bool, error) {
	if err := d.checkState(s); err != nil {
		return false, err
	}
	v, err := runExpr(e, d.env(s, binding, ov))
	if err != nil {
		return false, &EvaluationError{Expression: e.Source, Err: err}
	}
	b, ok := v.(bool)
	if !ok {
		return false, evalErrf(e.Source, "condition evaluated to %T, want bool", v)
	}
	return b, nil
}

// preconditionsHold reports whether every precondition of a evaluates to
// concrete true in s. Non-boolean results count as not satisfied, matching
// the applicability filter's semantics; evaluation failures propagate.
func (d *Domain) preconditionsHold(s *State, a *ground.Action) (bool, error) {
	env := d.env(s, a.Binding, nil)
	for _, pre := range a.Preconditions {
		v, err := runExpr(pre, env)
		if err != nil {
			return false, &EvaluationError{Expression: pre.Source, Err: err}
		}
		if b, ok := v.(bool); !ok || !b {
			return false, nil
		}
	}
	return true, nil
}

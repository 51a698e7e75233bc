// Package problem defines the lifted planning problem model: typed objects,
// fluents (state variables), actions with preconditions and effects, and
// goals. Preconditions, goals, guards, and effect values are expr-lang
// source strings; fluents appear in them as calls (at(r, l)), zero-parameter
// fluents as bare identifiers, and objects as bare identifiers bound to
// their own names.
//
// A Problem is declarative and inert. Grounding it into an executable
// state-transition domain is the job of the ground package.
package problem

import (
	"fmt"
	"strings"
)

// Type declares an object type. Parent, when non-empty, makes every object
// of this type also acceptable wherever the parent type is expected.
type Type struct {
	Name   string
	Parent string
}

// Object is a named, typed constant.
type Object struct {
	Name string
	Type string
}

// Param is a typed parameter of a fluent or an action.
type Param struct {
	Name string
	Type string
}

// Fluent declares a state variable template. Each combination of parameter
// objects yields one grounded instance.
type Fluent struct {
	Name   string
	Params []Param
	Kind   Kind
	// Default, when non-nil, supplies the initial value for instances not
	// listed in Problem.Initial.
	Default *Value
}

// EffectKind selects how an effect changes its target fluent.
type EffectKind int

const (
	// Assign replaces the target value with the effect's value expression.
	Assign EffectKind = iota
	// Increase adds the value expression to the current value.
	Increase
	// Decrease subtracts the value expression from the current value.
	Decrease
)

// String returns the yaml/CLI spelling of the effect kind.
func (k EffectKind) String() string {
	switch k {
	case Assign:
		return "assign"
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// ParseEffectKind parses the yaml/CLI spelling of an effect kind.
func ParseEffectKind(s string) (EffectKind, error) {
	switch s {
	case "assign", "":
		return Assign, nil
	case "increase":
		return Increase, nil
	case "decrease":
		return Decrease, nil
	default:
		return 0, fmt.Errorf("unknown effect kind %q", s)
	}
}

// Effect describes one state change performed by an action. The target
// fluent instance is Fluent applied to Args, where each argument is either
// an action parameter name or a declared object name. Condition, when
// non-empty, guards the effect: it must evaluate to a concrete boolean, and
// the effect is skipped when it is false.
type Effect struct {
	Fluent    string
	Args      []string
	Kind      EffectKind
	Value     string
	Condition string
}

// StateView is a read-only view of a grounded state, passed to simulated
// effects. Keys are grounded fluent instance keys in the problem's fixed
// order.
type StateView interface {
	Value(key string) (Value, bool)
	Keys() []string
}

// Assignment is one fluent update produced by a simulated effect.
type Assignment struct {
	Key   string
	Value Value
}

// SimulatedEffect is a native effect hook. It observes the pre-transition
// state and returns additional assignments, applied after the action's
// declared effects. It must not retain or mutate the view.
type SimulatedEffect func(view StateView) ([]Assignment, error)

// Action declares a lifted action: typed parameters, a conjunctive set of
// precondition expressions, and a set of effects. Simulated, when non-nil,
// runs after the declared effects on every transition.
type Action struct {
	Name          string
	Params        []Param
	Preconditions []string
	Effects       []Effect
	Simulated     SimulatedEffect
}

// ActionInstance is a lifted action applied to actual parameters. It is the
// unit plans are expressed in.
type ActionInstance struct {
	Action *Action
	Params []string
}

// String renders the instance as name(p1, p2).
func (ai ActionInstance) String() string {
	if len(ai.Params) == 0 {
		return ai.Action.Name
	}
	return ai.Action.Name + "(" + strings.Join(ai.Params, ", ") + ")"
}

// Plan is an ordered sequence of action instances.
type Plan []ActionInstance

// String renders the plan one action per line.
func (p Plan) String() string {
	var b strings.Builder
	for i, ai := range p {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ai.String())
	}
	return b.String()
}

// Problem is a complete lifted planning problem.
type Problem struct {
	Name    string
	Types   []Type
	Objects []Object
	Fluents []*Fluent
	Actions []*Action
	// Initial maps grounded instance keys (see InstanceKey) to explicit
	// initial values. Instances not listed fall back to their fluent's
	// Default.
	Initial map[string]Value
	Goals   []string
}

// InstanceKey builds the canonical grounded key for a fluent or action
// name applied to concrete objects: "at(r1,l2)", or just "done" for
// zero-parameter names.
func InstanceKey(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + "(" + strings.Join(args, ",") + ")"
}

// Fluent returns the declared fluent with the given name, or nil.
func (p *Problem) Fluent(name string) *Fluent {
	for _, f := range p.Fluents {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Action returns the declared action with the given name, or nil.
func (p *Problem) Action(name string) *Action {
	for _, a := range p.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Object returns the declared object with the given name, or nil.
func (p *Problem) Object(name string) *Object {
	for i := range p.Objects {
		if p.Objects[i].Name == name {
			return &p.Objects[i]
		}
	}
	return nil
}

// Type returns the declared type with the given name, or nil.
func (p *Problem) Type(name string) *Type {
	for i := range p.Types {
		if p.Types[i].Name == name {
			return &p.Types[i]
		}
	}
	return nil
}

// ObjectsOfType returns the names of all objects assignable to the given
// type, honoring the parent chain, in declaration order.
func (p *Problem) ObjectsOfType(typeName string) []string {
	var out []string
	for _, o := range p.Objects {
		if p.typeAssignable(o.Type, typeName) {
			out = append(out, o.Name)
		}
	}
	return out
}

// typeAssignable reports whether an object of type `from` can be used where
// type `to` is expected.
func (p *Problem) typeAssignable(from, to string) bool {
	for cur := from; cur != ""; {
		if cur == to {
			return true
		}
		t := p.Type(cur)
		if t == nil {
			return false
		}
		cur = t.Parent
	}
	return false
}

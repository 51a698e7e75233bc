// Package ground compiles a lifted problem.Problem into a grounded,
// executable form: parameter-free actions, a fixed ordered fluent-key
// sequence with aligned initial values, and expr-lang programs compiled
// once for every precondition, goal, guard, and value expression. It also
// produces the Rewriter that maps grounded plans back onto the lifted
// problem's actions.
package ground

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/joeycumines/go-plandomain/internal/exprlru"
	"github.com/joeycumines/go-plandomain/problem"
)

// ConfigurationError reports that a problem cannot be grounded: invalid
// declarations, uncompilable expressions, or unsupported shapes. It is
// fatal; retrying with the same input yields the same error.
type ConfigurationError struct {
	Stage string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("grounding failed (%s): %v", e.Stage, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(stage, format string, args ...any) error {
	return &ConfigurationError{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Expr is a compiled expression together with its lifted source.
type Expr struct {
	Source  string
	program *vm.Program
}

// Program returns the compiled expr-lang program.
func (e *Expr) Program() *vm.Program { return e.program }

// Effect is a grounded effect: its target resolved to a concrete state key,
// its guard and value expressions compiled.
type Effect struct {
	// Key is the grounded fluent instance the effect writes.
	Key    string
	Fluent *problem.Fluent
	Kind   problem.EffectKind
	// Guard is nil for unconditional effects.
	Guard *Expr
	Value *Expr
}

// Action is a grounded, parameter-free action instance.
type Action struct {
	// Name is the canonical instance key, e.g. "move(r1,l2)".
	Name   string
	Origin *problem.Action
	// Params holds the actual objects bound to Origin's parameters, in
	// declaration order.
	Params []string
	// Binding maps parameter names to the bound object names; it is merged
	// into the evaluation environment when the shared lifted expressions
	// run for this instance.
	Binding       map[string]string
	Preconditions []*Expr
	Effects       []*Effect
	Simulated     problem.SimulatedEffect
}

// String returns the grounded action name.
func (a *Action) String() string { return a.Name }

// Problem is a grounded problem: the fixed key sequence, aligned initial
// values, the full grounded action set in declaration order, and the
// compiled goal set.
type Problem struct {
	Source *problem.Problem
	// Keys is the fixed, ordered fluent-key sequence. It never changes
	// after grounding; states are value vectors aligned to it.
	Keys []string
	// Fluents is aligned to Keys and holds each key's declaring fluent.
	Fluents []*problem.Fluent
	// Initial is aligned to Keys.
	Initial []problem.Value
	Actions []*Action
	Goals   []*Expr
	index   map[string]int
}

// KeyIndex returns the position of a grounded key in the key sequence.
func (g *Problem) KeyIndex(key string) (int, bool) {
	i, ok := g.index[key]
	return i, ok
}

// Action returns the grounded action with the given instance name, or nil.
func (g *Problem) Action(name string) *Action {
	for _, a := range g.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Ground validates and grounds a lifted problem. The returned Rewriter maps
// grounded action sequences back onto the lifted problem's actions.
func Ground(p *problem.Problem) (*Problem, *Rewriter, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, &ConfigurationError{Stage: "validate", Err: err}
	}

	g := &Problem{Source: p, index: make(map[string]int)}

	// The key sequence follows fluent declaration order, then object
	// enumeration order per parameter. It is fixed from here on.
	for _, f := range p.Fluents {
		domains := make([][]string, len(f.Params))
		for i, pr := range f.Params {
			domains[i] = p.ObjectsOfType(pr.Type)
		}
		for _, args := range cartesian(domains) {
			key := problem.InstanceKey(f.Name, args...)
			init, ok := p.Initial[key]
			if !ok {
				if f.Default == nil {
					return nil, nil, configErr("initial", "no initial value for %q and fluent %q has no default", key, f.Name)
				}
				init = *f.Default
			}
			// Validate accepts Int literals for Real fluents; normalize here
			// so states are kind-uniform.
			init, err := problem.Coerce(init.Native(), f.Kind)
			if err != nil {
				return nil, nil, configErr("initial", "initial value for %q: %v", key, err)
			}
			g.index[key] = len(g.Keys)
			g.Keys = append(g.Keys, key)
			g.Fluents = append(g.Fluents, f)
			g.Initial = append(g.Initial, init)
		}
	}

	cache := exprlru.New(exprlru.DefaultSize)

	rewriter := &Rewriter{instances: make(map[string]problem.ActionInstance)}
	for _, a := range p.Actions {
		domains := make([][]string, len(a.Params))
		for i, pr := range a.Params {
			domains[i] = p.ObjectsOfType(pr.Type)
		}
		for _, objs := range cartesian(domains) {
			ga, err := groundAction(g, cache, a, objs)
			if err != nil {
				return nil, nil, err
			}
			g.Actions = append(g.Actions, ga)
			rewriter.instances[ga.Name] = problem.ActionInstance{Action: a, Params: ga.Params}
		}
	}

	for _, src := range p.Goals {
		ge, err := compile(cache, src)
		if err != nil {
			return nil, nil, configErr("goals", "goal %q: %v", src, err)
		}
		g.Goals = append(g.Goals, ge)
	}

	return g, rewriter, nil
}

func groundAction(g *Problem, cache *exprlru.Cache, a *problem.Action, objs []string) (*Action, error) {
	binding := make(map[string]string, len(a.Params))
	for i, pr := range a.Params {
		binding[pr.Name] = objs[i]
	}
	ga := &Action{
		Name:      problem.InstanceKey(a.Name, objs...),
		Origin:    a,
		Params:    objs,
		Binding:   binding,
		Simulated: a.Simulated,
	}
	for _, src := range a.Preconditions {
		ce, err := compile(cache, src)
		if err != nil {
			return nil, configErr("preconditions", "action %q: precondition %q: %v", ga.Name, src, err)
		}
		ga.Preconditions = append(ga.Preconditions, ce)
	}
	for i := range a.Effects {
		e := &a.Effects[i]
		args := make([]string, len(e.Args))
		for j, arg := range e.Args {
			if obj, ok := binding[arg]; ok {
				args[j] = obj
			} else {
				args[j] = arg
			}
		}
		key := problem.InstanceKey(e.Fluent, args...)
		idx, ok := g.index[key]
		if !ok {
			return nil, configErr("effects", "action %q: effect targets unknown instance %q", ga.Name, key)
		}
		ge := &Effect{Key: key, Fluent: g.Fluents[idx], Kind: e.Kind}
		var err error
		if ge.Value, err = compile(cache, e.Value); err != nil {
			return nil, configErr("effects", "action %q: effect value %q: %v", ga.Name, e.Value, err)
		}
		if e.Condition != "" {
			if ge.Guard, err = compile(cache, e.Condition); err != nil {
				return nil, configErr("effects", "action %q: effect guard %q: %v", ga.Name, e.Condition, err)
			}
		}
		ga.Effects = append(ga.Effects, ge)
	}
	return ga, nil
}

// compile compiles an expression source, reusing programs already compiled
// for the same source anywhere in the problem.
func compile(cache *exprlru.Cache, source string) (*Expr, error) {
	if prog, ok := cache.Get(source); ok {
		return &Expr{Source: source, program: prog}, nil
	}
	prog, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	cache.Put(source, prog)
	return &Expr{Source: source, program: prog}, nil
}

// cartesian enumerates every combination of one element per domain, the
// first domain varying slowest. A zero-length input yields one empty
// combination; an empty domain yields none.
func cartesian(domains [][]string) [][]string {
	total := 1
	for _, d := range domains {
		total *= len(d)
	}
	if total == 0 {
		return nil
	}
	out := make([][]string, 0, total)
	combo := make([]string, len(domains))
	var rec func(i int)
	rec = func(i int) {
		if i == len(domains) {
			out = append(out, append(make([]string, 0, len(combo)), combo...))
			return
		}
		for _, v := range domains[i] {
			combo[i] = v
			rec(i + 1)
		}
	}
	rec(0)
	return out
}

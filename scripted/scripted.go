// Package scripted builds simulated effects from JavaScript functions. A
// scripted effect receives the pre-transition state as a plain object keyed
// by grounded fluent instance and returns an object mapping the instances
// it updates to their new values. It covers the effects that are easier to
// state as code than as declarative expressions, such as lookups over
// tables or piecewise computations.
package scripted

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-plandomain/problem"
)

// Effect is a compiled JavaScript simulated effect. A goja runtime is not
// safe for concurrent use, so calls are serialized; each Effect owns its
// runtime and shares nothing.
type Effect struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	fn     goja.Callable
	source string
}

// New compiles a JavaScript function expression, e.g.
//
//	function (state) { return { fuel: state.fuel * 0.5 }; }
//
// Arrow functions work too. The source must evaluate to a function.
func New(source string) (*Effect, error) {
	vm := goja.New()
	v, err := vm.RunString("(" + source + "\n)")
	if err != nil {
		return nil, fmt.Errorf("compile simulated effect: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("simulated effect source does not evaluate to a function")
	}
	return &Effect{vm: vm, fn: fn, source: source}, nil
}

// Source returns the JavaScript source the effect was compiled from.
func (e *Effect) Source() string { return e.source }

// Func returns the effect as a problem.SimulatedEffect.
func (e *Effect) Func() problem.SimulatedEffect { return e.run }

func (e *Effect) run(view problem.StateView) ([]problem.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obj := e.vm.NewObject()
	for _, k := range view.Keys() {
		v, _ := view.Value(k)
		if err := obj.Set(k, v.Native()); err != nil {
			return nil, fmt.Errorf("simulated effect: bind %q: %w", k, err)
		}
	}
	res, err := e.fn(goja.Undefined(), obj)
	if err != nil {
		return nil, fmt.Errorf("simulated effect: %w", err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	out, ok := res.Export().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("simulated effect returned %T, want an object", res.Export())
	}

	// Sorted output keeps transitions deterministic regardless of JS object
	// iteration order.
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assigns := make([]problem.Assignment, 0, len(keys))
	for _, k := range keys {
		val, err := problem.FromNative(out[k])
		if err != nil {
			return nil, fmt.Errorf("simulated effect: key %q: %w", k, err)
		}
		assigns = append(assigns, problem.Assignment{Key: k, Value: val})
	}
	return assigns, nil
}

// Attach compiles source and installs it as the simulated effect of the
// named action.
func Attach(p *problem.Problem, action, source string) error {
	a := p.Action(action)
	if a == nil {
		return fmt.Errorf("unknown action %q", action)
	}
	e, err := New(source)
	if err != nil {
		return fmt.Errorf("action %q: %w", action, err)
	}
	a.Simulated = e.Func()
	return nil
}

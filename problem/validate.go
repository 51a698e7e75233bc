package problem

import (
	"fmt"
	"strings"
)

// ParseInstanceKey splits a grounded instance key produced by InstanceKey
// back into its name and arguments.
func ParseInstanceKey(key string) (string, []string, error) {
	open := strings.IndexByte(key, '(')
	if open < 0 {
		if key == "" {
			return "", nil, fmt.Errorf("empty instance key")
		}
		return key, nil, nil
	}
	if !strings.HasSuffix(key, ")") || open == 0 {
		return "", nil, fmt.Errorf("malformed instance key %q", key)
	}
	name := key[:open]
	inner := key[open+1 : len(key)-1]
	if inner == "" {
		return "", nil, fmt.Errorf("malformed instance key %q", key)
	}
	args := strings.Split(inner, ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if args[i] == "" {
			return "", nil, fmt.Errorf("malformed instance key %q", key)
		}
	}
	return name, args, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Validate checks the declarative consistency of the problem: name
// uniqueness, identifier validity, type references, effect arities and
// kinds, and initial value shapes. Expression compilation is deferred to
// grounding.
func (p *Problem) Validate() error {
	types := make(map[string]bool, len(p.Types))
	for _, t := range p.Types {
		if !validIdent(t.Name) {
			return fmt.Errorf("type name %q is not a valid identifier", t.Name)
		}
		if types[t.Name] {
			return fmt.Errorf("duplicate type %q", t.Name)
		}
		types[t.Name] = true
	}
	for _, t := range p.Types {
		if t.Parent != "" && !types[t.Parent] {
			return fmt.Errorf("type %q has unknown parent %q", t.Name, t.Parent)
		}
	}
	for _, t := range p.Types {
		if err := p.checkTypeChain(t.Name); err != nil {
			return err
		}
	}

	// Objects and fluents share the expression namespace.
	names := make(map[string]string)
	for _, o := range p.Objects {
		if !validIdent(o.Name) {
			return fmt.Errorf("object name %q is not a valid identifier", o.Name)
		}
		if prev, ok := names[o.Name]; ok {
			return fmt.Errorf("name %q declared as both %s and object", o.Name, prev)
		}
		names[o.Name] = "object"
		if !types[o.Type] {
			return fmt.Errorf("object %q has unknown type %q", o.Name, o.Type)
		}
	}
	for _, f := range p.Fluents {
		if !validIdent(f.Name) {
			return fmt.Errorf("fluent name %q is not a valid identifier", f.Name)
		}
		if prev, ok := names[f.Name]; ok {
			return fmt.Errorf("name %q declared as both %s and fluent", f.Name, prev)
		}
		names[f.Name] = "fluent"
		if err := p.checkParams(f.Params, names, fmt.Sprintf("fluent %q", f.Name)); err != nil {
			return err
		}
		if f.Default != nil {
			if err := p.checkValue(*f.Default, f, fmt.Sprintf("default of fluent %q", f.Name)); err != nil {
				return err
			}
		}
	}

	actions := make(map[string]bool, len(p.Actions))
	for _, a := range p.Actions {
		if !validIdent(a.Name) {
			return fmt.Errorf("action name %q is not a valid identifier", a.Name)
		}
		if actions[a.Name] {
			return fmt.Errorf("duplicate action %q", a.Name)
		}
		actions[a.Name] = true
		if err := p.checkParams(a.Params, names, fmt.Sprintf("action %q", a.Name)); err != nil {
			return err
		}
		for i, pre := range a.Preconditions {
			if strings.TrimSpace(pre) == "" {
				return fmt.Errorf("action %q: precondition %d is empty", a.Name, i)
			}
		}
		for i := range a.Effects {
			if err := p.checkEffect(a, &a.Effects[i]); err != nil {
				return fmt.Errorf("action %q: effect %d: %w", a.Name, i, err)
			}
		}
	}

	for key, v := range p.Initial {
		f, err := p.resolveInstance(key)
		if err != nil {
			return fmt.Errorf("initial value %q: %w", key, err)
		}
		if err := p.checkValue(v, f, fmt.Sprintf("initial value %q", key)); err != nil {
			return err
		}
	}

	for i, g := range p.Goals {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("goal %d is empty", i)
		}
	}
	return nil
}

func (p *Problem) checkTypeChain(name string) error {
	seen := make(map[string]bool)
	for cur := name; cur != ""; {
		if seen[cur] {
			return fmt.Errorf("type %q has a cyclic parent chain", name)
		}
		seen[cur] = true
		t := p.Type(cur)
		if t == nil {
			break
		}
		cur = t.Parent
	}
	return nil
}

func (p *Problem) checkParams(params []Param, reserved map[string]string, where string) error {
	seen := make(map[string]bool, len(params))
	for _, pr := range params {
		if !validIdent(pr.Name) {
			return fmt.Errorf("%s: parameter name %q is not a valid identifier", where, pr.Name)
		}
		if seen[pr.Name] {
			return fmt.Errorf("%s: duplicate parameter %q", where, pr.Name)
		}
		seen[pr.Name] = true
		if kind, ok := reserved[pr.Name]; ok {
			return fmt.Errorf("%s: parameter %q shadows a declared %s", where, pr.Name, kind)
		}
		if p.Type(pr.Type) == nil {
			return fmt.Errorf("%s: parameter %q has unknown type %q", where, pr.Name, pr.Type)
		}
	}
	return nil
}

func (p *Problem) checkEffect(a *Action, e *Effect) error {
	f := p.Fluent(e.Fluent)
	if f == nil {
		return fmt.Errorf("unknown fluent %q", e.Fluent)
	}
	if len(e.Args) != len(f.Params) {
		return fmt.Errorf("fluent %q takes %d arguments, got %d", f.Name, len(f.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		want := f.Params[i].Type
		if par := paramOf(a, arg); par != nil {
			if !p.typeAssignable(par.Type, want) {
				return fmt.Errorf("argument %q (type %q) is not assignable to %q", arg, par.Type, want)
			}
			continue
		}
		if obj := p.Object(arg); obj != nil {
			if !p.typeAssignable(obj.Type, want) {
				return fmt.Errorf("argument %q (type %q) is not assignable to %q", arg, obj.Type, want)
			}
			continue
		}
		return fmt.Errorf("argument %q is neither a parameter nor an object", arg)
	}
	switch e.Kind {
	case Assign:
	case Increase, Decrease:
		if f.Kind != Int && f.Kind != Real {
			return fmt.Errorf("%s requires an int or real fluent, %q is %s", e.Kind, f.Name, f.Kind)
		}
	default:
		return fmt.Errorf("unknown effect kind %d", e.Kind)
	}
	if strings.TrimSpace(e.Value) == "" {
		return fmt.Errorf("missing value expression")
	}
	return nil
}

// resolveInstance checks that a grounded key names a declared fluent applied
// to declared objects with assignable types, returning the fluent.
func (p *Problem) resolveInstance(key string) (*Fluent, error) {
	name, args, err := ParseInstanceKey(key)
	if err != nil {
		return nil, err
	}
	f := p.Fluent(name)
	if f == nil {
		return nil, fmt.Errorf("unknown fluent %q", name)
	}
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("fluent %q takes %d arguments, got %d", name, len(f.Params), len(args))
	}
	for i, arg := range args {
		obj := p.Object(arg)
		if obj == nil {
			return nil, fmt.Errorf("unknown object %q", arg)
		}
		if !p.typeAssignable(obj.Type, f.Params[i].Type) {
			return nil, fmt.Errorf("object %q (type %q) is not assignable to %q", arg, obj.Type, f.Params[i].Type)
		}
	}
	return f, nil
}

func (p *Problem) checkValue(v Value, f *Fluent, where string) error {
	if v.Kind() == f.Kind || (f.Kind == Real && v.Kind() == Int) {
		if f.Kind == KindObject {
			if p.Object(v.Object()) == nil {
				return fmt.Errorf("%s: unknown object %q", where, v.Object())
			}
		}
		return nil
	}
	return fmt.Errorf("%s: expected %s, got %s", where, f.Kind, v.Kind())
}

func paramOf(a *Action, name string) *Param {
	for i := range a.Params {
		if a.Params[i].Name == name {
			return &a.Params[i]
		}
	}
	return nil
}

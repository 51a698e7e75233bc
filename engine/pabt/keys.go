package pabt

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/joeycumines/go-plandomain/ground"
	"github.com/joeycumines/go-plandomain/problem"
)

// keyVisitor collects the grounded fluent instances an expression reads,
// resolving parameter names through the action's binding.
type keyVisitor struct {
	problem *problem.Problem
	binding map[string]string
	keys    map[string]bool
	err     error
}

func (v *keyVisitor) Visit(node *ast.Node) {
	if v.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.CallNode:
		ident, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return
		}
		f := v.problem.Fluent(ident.Value)
		if f == nil {
			return
		}
		args := make([]string, len(n.Arguments))
		for i, arg := range n.Arguments {
			name, ok := argName(arg)
			if !ok {
				v.err = fmt.Errorf("fluent %s: argument %d is not a plain name", f.Name, i+1)
				return
			}
			if obj, ok := v.binding[name]; ok {
				name = obj
			}
			args[i] = name
		}
		v.keys[problem.InstanceKey(f.Name, args...)] = true
	case *ast.IdentifierNode:
		if f := v.problem.Fluent(n.Value); f != nil && len(f.Params) == 0 {
			v.keys[n.Value] = true
		}
	}
}

func argName(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, true
	case *ast.StringNode:
		return n.Value, true
	default:
		return "", false
	}
}

// conditionKey determines the single grounded fluent instance a condition
// expression depends on. Backward chaining needs every condition pinned to
// one state variable; expressions reading zero or several are rejected.
func conditionKey(p *problem.Problem, e *ground.Expr, binding map[string]string) (string, error) {
	tree, err := parser.Parse(e.Source)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", e.Source, err)
	}
	v := &keyVisitor{problem: p, binding: binding, keys: make(map[string]bool)}
	ast.Walk(&tree.Node, v)
	if v.err != nil {
		return "", v.err
	}
	if len(v.keys) != 1 {
		return "", fmt.Errorf("condition %q reads %d fluent instances, want exactly 1", e.Source, len(v.keys))
	}
	for key := range v.keys {
		return key, nil
	}
	panic("unreachable")
}

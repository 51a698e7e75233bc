package ground

import (
	"fmt"

	"github.com/joeycumines/go-plandomain/problem"
)

// Rewriter maps grounded action sequences back onto the lifted problem's
// actions. It is the recorded grounding map: purely structural, no
// re-evaluation of any expression.
type Rewriter struct {
	instances map[string]problem.ActionInstance
}

// Rewrite translates a plan over grounded actions into a plan over the
// original problem's actions, preserving sequence order position by
// position.
func (r *Rewriter) Rewrite(plan []*Action) (problem.Plan, error) {
	out := make(problem.Plan, 0, len(plan))
	for i, a := range plan {
		inst, ok := r.instances[a.Name]
		if !ok {
			return nil, fmt.Errorf("plan step %d: action %q is not an instance of this problem", i, a.Name)
		}
		out = append(out, inst)
	}
	return out, nil
}

// Instance returns the lifted action instance for a grounded action name.
func (r *Rewriter) Instance(name string) (problem.ActionInstance, bool) {
	inst, ok := r.instances[name]
	return inst, ok
}

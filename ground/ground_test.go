package ground

import (
	"errors"
	"testing"

	"github.com/joeycumines/go-plandomain/problem"
	"github.com/stretchr/testify/require"
)

func valp(v problem.Value) *problem.Value { return &v }

func deliveryProblem() *problem.Problem {
	return &problem.Problem{
		Name: "delivery",
		Types: []problem.Type{
			{Name: "location"},
		},
		Objects: []problem.Object{
			{Name: "l1", Type: "location"},
			{Name: "l2", Type: "location"},
		},
		Fluents: []*problem.Fluent{
			{Name: "at", Params: []problem.Param{{Name: "l", Type: "location"}}, Kind: problem.Bool, Default: valp(problem.BoolValue(false))},
			{Name: "battery", Kind: problem.Int},
		},
		Actions: []*problem.Action{{
			Name:          "move",
			Params:        []problem.Param{{Name: "from", Type: "location"}, {Name: "to", Type: "location"}},
			Preconditions: []string{"at(from)", "from != to", "battery >= 10"},
			Effects: []problem.Effect{
				{Fluent: "at", Args: []string{"from"}, Value: "false"},
				{Fluent: "at", Args: []string{"to"}, Value: "true"},
				{Fluent: "battery", Kind: problem.Decrease, Value: "10"},
			},
		}},
		Initial: map[string]problem.Value{
			"at(l1)":  problem.BoolValue(true),
			"battery": problem.IntValue(30),
		},
		Goals: []string{"at(l2)"},
	}
}

func TestGroundKeySequence(t *testing.T) {
	g, _, err := Ground(deliveryProblem())
	require.NoError(t, err)

	// Fluent declaration order, then object enumeration order per parameter.
	require.Equal(t, []string{"at(l1)", "at(l2)", "battery"}, g.Keys)
	require.Equal(t, []problem.Value{
		problem.BoolValue(true),
		problem.BoolValue(false),
		problem.IntValue(30),
	}, g.Initial)

	i, ok := g.KeyIndex("at(l2)")
	require.True(t, ok)
	require.Equal(t, 1, i)
	_, ok = g.KeyIndex("at(l3)")
	require.False(t, ok)
}

func TestGroundActions(t *testing.T) {
	g, _, err := Ground(deliveryProblem())
	require.NoError(t, err)

	names := make([]string, len(g.Actions))
	for i, a := range g.Actions {
		names[i] = a.Name
	}
	require.Equal(t, []string{
		"move(l1,l1)", "move(l1,l2)", "move(l2,l1)", "move(l2,l2)",
	}, names)

	a := g.Action("move(l1,l2)")
	require.NotNil(t, a)
	require.Equal(t, []string{"l1", "l2"}, a.Params)
	require.Equal(t, map[string]string{"from": "l1", "to": "l2"}, a.Binding)
	require.Len(t, a.Preconditions, 3)
	require.Len(t, a.Effects, 3)
	require.Equal(t, "at(l1)", a.Effects[0].Key)
	require.Equal(t, "at(l2)", a.Effects[1].Key)
	require.Equal(t, "battery", a.Effects[2].Key)
	require.Equal(t, problem.Decrease, a.Effects[2].Kind)
	require.NotNil(t, a.Effects[2].Value.Program())

	require.Nil(t, g.Action("fly(l1,l2)"))
}

func TestGroundSharesCompiledPrograms(t *testing.T) {
	g, _, err := Ground(deliveryProblem())
	require.NoError(t, err)

	// The lifted precondition source is identical across instantiations, so
	// the compiled program must be shared.
	a1 := g.Action("move(l1,l2)")
	a2 := g.Action("move(l2,l1)")
	require.Equal(t, a1.Preconditions[0].Source, a2.Preconditions[0].Source)
	require.Same(t, a1.Preconditions[0].Program(), a2.Preconditions[0].Program())
}

func TestGroundMissingInitial(t *testing.T) {
	p := deliveryProblem()
	delete(p.Initial, "battery")

	_, _, err := Ground(p)
	require.Error(t, err)
	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
	require.Equal(t, "initial", cfg.Stage)
	require.Contains(t, err.Error(), "battery")
}

func TestGroundNormalizesIntInitialForRealFluent(t *testing.T) {
	p := deliveryProblem()
	p.Fluents = append(p.Fluents, &problem.Fluent{Name: "fuel", Kind: problem.Real})
	p.Initial["fuel"] = problem.IntValue(5)

	g, _, err := Ground(p)
	require.NoError(t, err)
	i, ok := g.KeyIndex("fuel")
	require.True(t, ok)
	require.Equal(t, problem.RealValue(5), g.Initial[i])
}

func TestGroundRejectsBadExpression(t *testing.T) {
	p := deliveryProblem()
	p.Goals = []string{"at(l2) &&"}

	_, _, err := Ground(p)
	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
	require.Equal(t, "goals", cfg.Stage)
}

func TestGroundValidatesFirst(t *testing.T) {
	p := deliveryProblem()
	p.Actions[0].Effects[0].Fluent = "fuel"

	_, _, err := Ground(p)
	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
	require.Equal(t, "validate", cfg.Stage)
}

func TestGroundActionWithoutParams(t *testing.T) {
	p := &problem.Problem{
		Name:    "trivial",
		Fluents: []*problem.Fluent{{Name: "done", Kind: problem.Bool}},
		Actions: []*problem.Action{{
			Name:          "finish",
			Preconditions: []string{"!done"},
			Effects:       []problem.Effect{{Fluent: "done", Value: "true"}},
		}},
		Initial: map[string]problem.Value{"done": problem.BoolValue(false)},
		Goals:   []string{"done"},
	}
	g, _, err := Ground(p)
	require.NoError(t, err)
	require.Len(t, g.Actions, 1)
	require.Equal(t, "finish", g.Actions[0].Name)
	require.Empty(t, g.Actions[0].Params)
}

func TestGroundEmptyParameterDomain(t *testing.T) {
	p := deliveryProblem()
	p.Types = append(p.Types, problem.Type{Name: "cargo"})
	p.Fluents = append(p.Fluents, &problem.Fluent{
		Name:   "loaded",
		Params: []problem.Param{{Name: "c", Type: "cargo"}},
		Kind:   problem.Bool,
	})

	// No cargo objects exist, so "loaded" grounds to zero instances.
	g, _, err := Ground(p)
	require.NoError(t, err)
	require.Equal(t, []string{"at(l1)", "at(l2)", "battery"}, g.Keys)
}

func TestRewrite(t *testing.T) {
	g, rw, err := Ground(deliveryProblem())
	require.NoError(t, err)

	plan, err := rw.Rewrite([]*Action{g.Action("move(l1,l2)"), g.Action("move(l2,l1)")})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, "move(l1, l2)", plan[0].String())
	require.Equal(t, "move(l2, l1)", plan[1].String())
	require.Equal(t, "move", plan[0].Action.Name)
}

func TestRewriteUnknownAction(t *testing.T) {
	_, rw, err := Ground(deliveryProblem())
	require.NoError(t, err)

	_, err = rw.Rewrite([]*Action{{Name: "teleport(l1,l2)"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "teleport(l1,l2)")

	_, ok := rw.Instance("teleport(l1,l2)")
	require.False(t, ok)
	inst, ok := rw.Instance("move(l1,l2)")
	require.True(t, ok)
	require.Equal(t, []string{"l1", "l2"}, inst.Params)
}

func TestCartesian(t *testing.T) {
	require.Equal(t, [][]string{{}}, cartesian(nil))
	require.Nil(t, cartesian([][]string{{"a", "b"}, {}}))
	require.Equal(t, [][]string{
		{"a", "x"}, {"a", "y"}, {"b", "x"}, {"b", "y"},
	}, cartesian([][]string{{"a", "b"}, {"x", "y"}}))
}

func TestConfigurationErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ConfigurationError{Stage: "effects", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "effects")
}

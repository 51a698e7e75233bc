package plandomain

import (
	"testing"

	"github.com/joeycumines/go-plandomain/ground"
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

func mustDomain(t *testing.T, p *problem.Problem, opts ...Option) *Domain {
	t.Helper()
	d, err := New(p, opts...)
	require.NoError(t, err)
	return d
}

func TestNewGroundingFailure(t *testing.T) {
	p := deliveryProblem()
	delete(p.Initial, "battery")

	_, err := New(p)
	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
}

func TestResetReturnsInitialState(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()
	require.Equal(t, []string{"at(l1)", "at(l2)", "battery"}, s.Keys())
	v, _ := s.Value("at(l1)")
	require.Equal(t, problem.BoolValue(true), v)
	v, _ = s.Value("battery")
	require.Equal(t, problem.IntValue(30), v)
}

func TestKeySequenceStableAcrossTransitions(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()
	keys := s.Keys()

	next, err := d.Successor(s, d.Ground().Action("move(l1,l2)"))
	require.NoError(t, err)
	require.Equal(t, keys, next.Keys())

	back, err := d.Successor(next, d.Ground().Action("move(l2,l1)"))
	require.NoError(t, err)
	require.Equal(t, keys, back.Keys())
}

func TestApplicableActions(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()

	acts, err := d.ApplicableActions(s)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "move(l1,l2)", acts[0].Name)

	// After two moves the battery is down to 10; after three, below the
	// precondition threshold.
	for _, name := range []string{"move(l1,l2)", "move(l2,l1)"} {
		var err error
		s, err = d.Successor(s, d.Ground().Action(name))
		require.NoError(t, err)
	}
	acts, err = d.ApplicableActions(s)
	require.NoError(t, err)
	require.Len(t, acts, 1)

	s, err = d.Successor(s, acts[0])
	require.NoError(t, err)
	acts, err = d.ApplicableActions(s)
	require.NoError(t, err)
	require.Empty(t, acts)
}

func TestSuccessorInapplicable(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()

	_, err := d.Successor(s, d.Ground().Action("move(l2,l1)"))
	var inap *InapplicableActionError
	require.ErrorAs(t, err, &inap)
	require.Equal(t, "move(l2,l1)", inap.Action)
	require.Equal(t, "at(from)", inap.Precondition)

	require.ErrorAs(t, d.LastError(), &inap)
	d.Reset()
	require.NoError(t, d.LastError())
}

func TestSuccessorSimultaneousUpdate(t *testing.T) {
	p := &problem.Problem{
		Name: "counter",
		Fluents: []*problem.Fluent{
			{Name: "x", Kind: problem.Int},
			{Name: "y", Kind: problem.Int},
		},
		Actions: []*problem.Action{{
			Name:          "bump",
			Preconditions: []string{"x >= 0"},
			Effects: []problem.Effect{
				{Fluent: "x", Value: "x + 1"},
				{Fluent: "y", Value: "x"},
			},
		}},
		Initial: map[string]problem.Value{"x": problem.IntValue(1), "y": problem.IntValue(0)},
		Goals:   []string{"y >= 1"},
	}
	d := mustDomain(t, p)
	s := d.Reset()

	next, err := d.Successor(s, d.Ground().Action("bump"))
	require.NoError(t, err)

	// Both effects observed the pre-transition x.
	v, _ := next.Value("x")
	require.Equal(t, problem.IntValue(2), v)
	v, _ = next.Value("y")
	require.Equal(t, problem.IntValue(1), v)

	// The input state is untouched.
	v, _ = s.Value("x")
	require.Equal(t, problem.IntValue(1), v)
}

func TestSuccessorGuardedEffect(t *testing.T) {
	p := &problem.Problem{
		Name:    "charge",
		Fluents: []*problem.Fluent{{Name: "battery", Kind: problem.Int}},
		Actions: []*problem.Action{{
			Name:          "charge",
			Preconditions: []string{"battery >= 0"},
			Effects: []problem.Effect{
				{Fluent: "battery", Kind: problem.Increase, Value: "10", Condition: "battery < 30"},
			},
		}},
		Initial: map[string]problem.Value{"battery": problem.IntValue(25)},
		Goals:   []string{"battery >= 35"},
	}
	d := mustDomain(t, p)
	s := d.Reset()

	s, err := d.Successor(s, d.Ground().Action("charge"))
	require.NoError(t, err)
	v, _ := s.Value("battery")
	require.Equal(t, problem.IntValue(35), v)

	// Guard now fails, so the charge is a no-op.
	s, err = d.Successor(s, d.Ground().Action("charge"))
	require.NoError(t, err)
	v, _ = s.Value("battery")
	require.Equal(t, problem.IntValue(35), v)
}

func TestSuccessorRealArithmetic(t *testing.T) {
	p := &problem.Problem{
		Name:    "tank",
		Fluents: []*problem.Fluent{{Name: "fuel", Kind: problem.Real}},
		Actions: []*problem.Action{{
			Name:          "refill",
			Preconditions: []string{"fuel < 10.0"},
			Effects: []problem.Effect{
				{Fluent: "fuel", Kind: problem.Increase, Value: "2"},
			},
		}},
		Initial: map[string]problem.Value{"fuel": problem.RealValue(1.5)},
		Goals:   []string{"fuel >= 3.0"},
	}
	d := mustDomain(t, p)

	// Integer operands are fine in real arithmetic.
	s, err := d.Successor(d.Reset(), d.Ground().Action("refill"))
	require.NoError(t, err)
	v, _ := s.Value("fuel")
	require.Equal(t, problem.RealValue(3.5), v)
}

func TestSuccessorRejectsRealOperandOnIntFluent(t *testing.T) {
	p := &problem.Problem{
		Name:    "strict",
		Fluents: []*problem.Fluent{{Name: "count", Kind: problem.Int}},
		Actions: []*problem.Action{{
			Name:          "drift",
			Preconditions: []string{"count >= 0"},
			Effects: []problem.Effect{
				{Fluent: "count", Kind: problem.Increase, Value: "0.5"},
			},
		}},
		Initial: map[string]problem.Value{"count": problem.IntValue(0)},
		Goals:   []string{"count > 0"},
	}
	d := mustDomain(t, p)

	_, err := d.Successor(d.Reset(), d.Ground().Action("drift"))
	var ev *EvaluationError
	require.ErrorAs(t, err, &ev)
	require.ErrorAs(t, d.LastError(), &ev)
}

func TestSuccessorSimulatedEffect(t *testing.T) {
	p := deliveryProblem()
	p.Actions[0].Simulated = func(view problem.StateView) ([]problem.Assignment, error) {
		// Observes the pre-transition battery (30), not the declared
		// effect's result (20), and its assignment is applied last.
		v, ok := view.Value("battery")
		if !ok {
			t.Fatal("battery missing from view")
		}
		return []problem.Assignment{
			{Key: "battery", Value: problem.IntValue(v.Int() - 5)},
		}, nil
	}
	d := mustDomain(t, p)

	s, err := d.Successor(d.Reset(), d.Ground().Action("move(l1,l2)"))
	require.NoError(t, err)
	v, _ := s.Value("battery")
	require.Equal(t, problem.IntValue(25), v)
}

func TestSuccessorSimulatedEffectUnknownKey(t *testing.T) {
	p := deliveryProblem()
	p.Actions[0].Simulated = func(problem.StateView) ([]problem.Assignment, error) {
		return []problem.Assignment{{Key: "fuel", Value: problem.IntValue(1)}}, nil
	}
	d := mustDomain(t, p)

	_, err := d.Successor(d.Reset(), d.Ground().Action("move(l1,l2)"))
	var ev *EvaluationError
	require.ErrorAs(t, err, &ev)
	require.Contains(t, err.Error(), "fuel")
}

func TestIsGoal(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()

	ok, err := d.IsGoal(s)
	require.NoError(t, err)
	require.False(t, ok)

	next, err := d.Successor(s, d.Ground().Action("move(l1,l2)"))
	require.NoError(t, err)
	ok, err = d.IsGoal(next)
	require.NoError(t, err)
	require.True(t, ok)

	// The goal test mutates nothing: asking again answers the same.
	ok, err = d.IsGoal(s)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsGoalNonBoolean(t *testing.T) {
	p := deliveryProblem()
	p.Goals = []string{"battery + 1"}
	d := mustDomain(t, p)

	_, err := d.IsGoal(d.Reset())
	var ev *EvaluationError
	require.ErrorAs(t, err, &ev)
	require.Equal(t, "battery + 1", ev.Expression)
}

func TestHoldsWith(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()
	goal := d.Ground().Goals[0] // at(l2)

	ok, err := d.Holds(s, goal, nil)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = d.HoldsWith(s, goal, nil, "at(l2)", problem.BoolValue(true))
	require.NoError(t, err)
	require.True(t, ok)

	// Overriding a zero-parameter fluent.
	a := d.Ground().Action("move(l1,l2)")
	ok, err = d.HoldsWith(s, a.Preconditions[2], a.Binding, "battery", problem.IntValue(5))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEffectValue(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()
	a := d.Ground().Action("move(l1,l2)")

	v, err := d.EffectValue(s, a, a.Effects[1])
	require.NoError(t, err)
	require.Equal(t, problem.BoolValue(true), v)

	v, err = d.EffectValue(s, a, a.Effects[2])
	require.NoError(t, err)
	require.Equal(t, problem.IntValue(20), v)
}

func TestTransitionValue(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	s := d.Reset()
	a := d.Ground().Action("move(l1,l2)")
	next, err := d.Successor(s, a)
	require.NoError(t, err)
	require.Equal(t, 1.0, d.TransitionValue(s, a, next))

	weighted := mustDomain(t, deliveryProblem(), WithTransitionCost(func(s *State, a *ground.Action, next *State) float64 {
		before, _ := s.Value("battery")
		after, _ := next.Value("battery")
		return float64(before.Int() - after.Int())
	}))
	ws := weighted.Reset()
	wa := weighted.Ground().Action("move(l1,l2)")
	wn, err := weighted.Successor(ws, wa)
	require.NoError(t, err)
	require.Equal(t, 10.0, weighted.TransitionValue(ws, wa, wn))
}

func TestRewriteBackPreservesOrder(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	g := d.Ground()

	plan, err := d.RewriteBack([]*ground.Action{
		g.Action("move(l1,l2)"),
		g.Action("move(l2,l1)"),
		g.Action("move(l1,l2)"),
	})
	require.NoError(t, err)
	require.Equal(t, "move(l1, l2)\nmove(l2, l1)\nmove(l1, l2)", plan.String())
}

func TestEndToEndSingleFluent(t *testing.T) {
	d := mustDomain(t, &problem.Problem{
		Name:    "trivial",
		Fluents: []*problem.Fluent{{Name: "done", Kind: problem.Bool}},
		Actions: []*problem.Action{{
			Name:          "finish",
			Preconditions: []string{"!done"},
			Effects:       []problem.Effect{{Fluent: "done", Value: "true"}},
		}},
		Initial: map[string]problem.Value{"done": problem.BoolValue(false)},
		Goals:   []string{"done"},
	})

	s := d.Reset()
	require.Equal(t, "{done: false}", s.String())

	acts, err := d.ApplicableActions(s)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "finish", acts[0].Name)

	next, err := d.Successor(s, acts[0])
	require.NoError(t, err)
	require.Equal(t, "{done: true}", next.String())

	ok, err := d.IsGoal(next)
	require.NoError(t, err)
	require.True(t, ok)

	plan, err := d.RewriteBack(acts)
	require.NoError(t, err)
	require.Equal(t, "finish", plan.String())
}

func TestCheckStateMismatch(t *testing.T) {
	d := mustDomain(t, deliveryProblem())
	other := mustDomain(t, &problem.Problem{
		Name:    "tiny",
		Fluents: []*problem.Fluent{{Name: "done", Kind: problem.Bool}},
		Actions: []*problem.Action{{
			Name:          "finish",
			Preconditions: []string{"!done"},
			Effects:       []problem.Effect{{Fluent: "done", Value: "true"}},
		}},
		Initial: map[string]problem.Value{"done": problem.BoolValue(false)},
		Goals:   []string{"done"},
	})

	_, err := d.IsGoal(other.Reset())
	require.Error(t, err)
	_, err = d.IsGoal(nil)
	require.Error(t, err)
}

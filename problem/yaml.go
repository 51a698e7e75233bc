package problem

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// yamlType accepts either a bare scalar ("block") or a mapping
// ({name: truck, parent: vehicle}).
type yamlType struct {
	Name   string
	Parent string
}

func (t *yamlType) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&t.Name)
	}
	var m struct {
		Name   string `yaml:"name"`
		Parent string `yaml:"parent"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	t.Name, t.Parent = m.Name, m.Parent
	return nil
}

type yamlParam struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type yamlFluent struct {
	Name    string      `yaml:"name"`
	Params  []yamlParam `yaml:"params"`
	Kind    string      `yaml:"kind"`
	Default any         `yaml:"default"`
}

type yamlEffect struct {
	Fluent string   `yaml:"fluent"`
	Args   []string `yaml:"args"`
	Kind   string   `yaml:"kind"`
	Value  string   `yaml:"value"`
	When   string   `yaml:"when"`
}

type yamlAction struct {
	Name          string       `yaml:"name"`
	Params        []yamlParam  `yaml:"params"`
	Preconditions []string     `yaml:"preconditions"`
	Effects       []yamlEffect `yaml:"effects"`
}

type yamlProblem struct {
	Name    string            `yaml:"name"`
	Types   []yamlType        `yaml:"types"`
	Objects map[string]string `yaml:"objects"`
	Fluents []yamlFluent      `yaml:"fluents"`
	Initial map[string]any    `yaml:"initial"`
	Actions []yamlAction      `yaml:"actions"`
	Goals   []string          `yaml:"goals"`
}

// Load reads and validates a YAML problem definition.
func Load(r io.Reader) (*Problem, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// LoadFile reads and validates a YAML problem definition from a file.
func LoadFile(path string) (*Problem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML problem definition.
func Parse(raw []byte) (*Problem, error) {
	var y yamlProblem
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	p, err := y.toProblem()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (y *yamlProblem) toProblem() (*Problem, error) {
	p := &Problem{
		Name:    y.Name,
		Initial: make(map[string]Value, len(y.Initial)),
	}
	for _, t := range y.Types {
		p.Types = append(p.Types, Type{Name: t.Name, Parent: t.Parent})
	}
	// Object declaration order matters for grounding; yaml maps are
	// unordered, so sort by name for a stable order.
	objNames := make([]string, 0, len(y.Objects))
	for name := range y.Objects {
		objNames = append(objNames, name)
	}
	sort.Strings(objNames)
	for _, name := range objNames {
		p.Objects = append(p.Objects, Object{Name: name, Type: y.Objects[name]})
	}
	for _, f := range y.Fluents {
		kind, err := ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("fluent %q: %w", f.Name, err)
		}
		fl := &Fluent{Name: f.Name, Kind: kind, Params: toParams(f.Params)}
		if f.Default != nil {
			v, err := coerceYAML(f.Default, kind)
			if err != nil {
				return nil, fmt.Errorf("fluent %q default: %w", f.Name, err)
			}
			fl.Default = &v
		}
		p.Fluents = append(p.Fluents, fl)
	}
	for key, raw := range y.Initial {
		name, _, err := ParseInstanceKey(key)
		if err != nil {
			return nil, fmt.Errorf("initial value %q: %w", key, err)
		}
		f := findYAMLFluent(y.Fluents, name)
		if f == nil {
			return nil, fmt.Errorf("initial value %q: unknown fluent %q", key, name)
		}
		kind, _ := ParseKind(f.Kind)
		v, err := coerceYAML(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("initial value %q: %w", key, err)
		}
		p.Initial[key] = v
	}
	for _, a := range y.Actions {
		act := &Action{
			Name:          a.Name,
			Params:        toParams(a.Params),
			Preconditions: a.Preconditions,
		}
		for _, e := range a.Effects {
			kind, err := ParseEffectKind(e.Kind)
			if err != nil {
				return nil, fmt.Errorf("action %q: %w", a.Name, err)
			}
			act.Effects = append(act.Effects, Effect{
				Fluent:    e.Fluent,
				Args:      e.Args,
				Kind:      kind,
				Value:     e.Value,
				Condition: e.When,
			})
		}
		p.Actions = append(p.Actions, act)
	}
	p.Goals = y.Goals
	return p, nil
}

func toParams(in []yamlParam) []Param {
	out := make([]Param, 0, len(in))
	for _, pr := range in {
		out = append(out, Param{Name: pr.Name, Type: pr.Type})
	}
	return out
}

func findYAMLFluent(fs []yamlFluent, name string) *yamlFluent {
	for i := range fs {
		if fs[i].Name == name {
			return &fs[i]
		}
	}
	return nil
}

// coerceYAML converts a decoded YAML scalar into a Value of the given kind.
func coerceYAML(x any, kind Kind) (Value, error) {
	switch kind {
	case Bool:
		if b, ok := x.(bool); ok {
			return BoolValue(b), nil
		}
	case Int:
		switch t := x.(type) {
		case int:
			return IntValue(int64(t)), nil
		case int64:
			return IntValue(t), nil
		}
	case Real:
		switch t := x.(type) {
		case float64:
			return RealValue(t), nil
		case int:
			return RealValue(float64(t)), nil
		case int64:
			return RealValue(float64(t)), nil
		}
	case KindObject:
		if s, ok := x.(string); ok {
			return ObjectValue(s), nil
		}
	}
	return Value{}, fmt.Errorf("cannot use %v (%T) as %s", x, x, kind)
}

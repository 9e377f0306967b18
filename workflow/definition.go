package workflow

import (
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
)

// GuardAnyOf is the combinator name accepted in guard lists. Its argument is
// a list of branches, each branch a guard list.
const GuardAnyOf = "any_of"

// Name is the state type of workflows built from a Definition.
type Name string

func (n Name) String() string { return string(n) }

// Definition is the declarative form of a workflow.
type Definition struct {
	Name        string                 `yaml:"name" json:"name"`
	States      []string               `yaml:"states" json:"states"`
	Default     string                 `yaml:"default" json:"default"`
	Transitions []TransitionDefinition `yaml:"transitions" json:"transitions"`
}

// TransitionDefinition declares one edge.
type TransitionDefinition struct {
	Name   string            `yaml:"name" json:"name"`
	Title  string            `yaml:"title" json:"title"`
	From   string            `yaml:"from" json:"from"`
	To     string            `yaml:"to" json:"to"`
	Guards []GuardDefinition `yaml:"guards" json:"guards"`
}

// GuardDefinition references a guard by name. In YAML it is written either
// as a bare name (`- published`) or as a single-key map (`- role: owner`).
type GuardDefinition struct {
	Name string
	Args any
}

// UnmarshalYAML accepts the bare-name and single-key map forms.
func (g *GuardDefinition) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		g.Name = value.Value
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: guard must have exactly one key", value.Line)
		}
		g.Name = value.Content[0].Value
		var args any
		if err := value.Content[1].Decode(&args); err != nil {
			return err
		}
		g.Args = args
		return nil
	default:
		return fmt.Errorf("line %d: guard must be a name or a single-key map", value.Line)
	}
}

// ParseDefinition decodes YAML (or JSON) into a validated Definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		// yaml handles JSON too, so a single attempt is enough
		return def, dispatch.WrapError(dispatch.ErrInvalidDefinition, "cannot decode workflow definition", err, nil)
	}
	return def, def.Validate()
}

// LoadDefinitionFile reads and parses a definition from disk.
func LoadDefinitionFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, dispatch.WrapError(dispatch.ErrInvalidDefinition, "cannot read workflow definition", err, map[string]any{
			"path": path,
		})
	}
	return ParseDefinition(data)
}

// Validate reports every structural problem of the definition.
func (d Definition) Validate() error {
	var errs error
	fail := func(msg string, meta map[string]any) {
		errs = errors.Join(errs, dispatch.NewError(dispatch.ErrInvalidDefinition, msg, meta))
	}

	if len(d.States) == 0 {
		fail("workflow requires at least one state", map[string]any{"workflow": d.Name})
	}
	known := make(map[string]bool, len(d.States))
	for _, st := range d.States {
		if strings.TrimSpace(st) == "" {
			fail("state name cannot be empty", nil)
			continue
		}
		if known[st] {
			fail("state declared twice", map[string]any{"state": st})
		}
		known[st] = true
	}
	if d.Default != "" && !known[d.Default] {
		fail("default state is not declared", map[string]any{"state": d.Default})
	}

	edges := make(map[[2]string]bool, len(d.Transitions))
	for i, tr := range d.Transitions {
		if strings.TrimSpace(tr.Name) == "" {
			fail("transition name is required", map[string]any{"index": i})
		}
		if !known[tr.From] {
			fail("transition origin is not declared", map[string]any{"transition": tr.Name, "from": tr.From})
		}
		if !known[tr.To] {
			fail("transition target is not declared", map[string]any{"transition": tr.Name, "to": tr.To})
		}
		edge := [2]string{tr.From, tr.To}
		if edges[edge] {
			fail("transition declared twice", map[string]any{"from": tr.From, "to": tr.To})
		}
		edges[edge] = true
	}
	return errs
}

// DefaultState returns the declared default, or the first state.
func (d Definition) DefaultState() Name {
	if d.Default != "" {
		return Name(d.Default)
	}
	if len(d.States) > 0 {
		return Name(d.States[0])
	}
	return ""
}

// Build turns a definition into a workflow, resolving guard names through
// guards.
func Build[T Stateful[Name]](def Definition, guards *constraint.Registry[T], opts ...Option[Name, T]) (*Workflow[Name, T], error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	names := make([]Name, 0, len(def.States))
	for _, st := range def.States {
		names = append(names, Name(st))
	}
	states, err := NewStates(names...)
	if err != nil {
		return nil, err
	}

	list := make([]Transition[Name, T], 0, len(def.Transitions))
	for _, tr := range def.Transitions {
		set, err := resolveGuards(tr.Guards, guards)
		if err != nil {
			return nil, dispatch.WrapError(dispatch.ErrInvalidDefinition, "cannot resolve transition guards", err, map[string]any{
				"transition": tr.Name,
			})
		}
		list = append(list, Transition[Name, T]{
			Origin: Name(tr.From),
			Target: Name(tr.To),
			Action: Action[T]{Name: tr.Name, Title: tr.Title, Constraints: set},
		})
	}
	transitions, err := NewTransitions(list...)
	if err != nil {
		return nil, err
	}

	all := append([]Option[Name, T]{WithName[Name, T](def.Name)}, opts...)
	return New(states, transitions, def.DefaultState(), all...)
}

func resolveGuards[T any](defs []GuardDefinition, guards *constraint.Registry[T]) (constraint.Set[T], error) {
	if len(defs) == 0 {
		return nil, nil
	}
	set := make(constraint.Set[T], 0, len(defs))
	for _, def := range defs {
		if def.Name == GuardAnyOf {
			pred, err := resolveAnyOf(def.Args, guards)
			if err != nil {
				return nil, err
			}
			set = append(set, pred)
			continue
		}
		if guards == nil {
			return nil, dispatch.NewError(dispatch.ErrNotFound, "no guard registry configured", map[string]any{
				"name": def.Name,
			})
		}
		pred, err := guards.Resolve(def.Name, def.Args)
		if err != nil {
			return nil, err
		}
		set = append(set, pred)
	}
	return set, nil
}

func resolveAnyOf[T any](args any, guards *constraint.Registry[T]) (constraint.Predicate[T], error) {
	raw, ok := args.([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%s expects a list of branches", GuardAnyOf)
	}
	branches := make([]constraint.Set[T], 0, len(raw))
	for _, b := range raw {
		defs, err := branchFromValue(b)
		if err != nil {
			return nil, err
		}
		set, err := resolveGuards(defs, guards)
		if err != nil {
			return nil, err
		}
		branches = append(branches, set)
	}
	return constraint.Or(branches...), nil
}

func branchFromValue(v any) ([]GuardDefinition, error) {
	items, ok := v.([]any)
	if !ok {
		g, err := guardFromValue(v)
		if err != nil {
			return nil, err
		}
		return []GuardDefinition{g}, nil
	}
	out := make([]GuardDefinition, 0, len(items))
	for _, item := range items {
		g, err := guardFromValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func guardFromValue(v any) (GuardDefinition, error) {
	switch val := v.(type) {
	case string:
		return GuardDefinition{Name: val}, nil
	case map[string]any:
		if len(val) != 1 {
			return GuardDefinition{}, fmt.Errorf("guard must have exactly one key, got %d", len(val))
		}
		for name, args := range val {
			return GuardDefinition{Name: name, Args: args}, nil
		}
	}
	return GuardDefinition{}, fmt.Errorf("unsupported guard value %T", v)
}

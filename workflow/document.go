package workflow

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-dispatch/constraint"
)

// Document is a generic item for workflows loaded from a Definition: a
// named state plus free-form fields that guards can inspect.
type Document struct {
	Status Name           `yaml:"state" json:"state"`
	Fields map[string]any `yaml:"fields" json:"fields"`
}

func (d *Document) State() Name { return d.Status }

func (d *Document) SetState(s Name) { d.Status = s }

// Field returns the value stored under key.
func (d *Document) Field(key string) (any, bool) {
	if d == nil || d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[key]
	return v, ok
}

// DocumentGuards returns a registry with the guards understood by
// definitions driving Documents:
//
//	role: <name>                          namespace role must equal name
//	non_empty: <field>                    field must be present and non blank
//	field_equals: {field: <f>, value: v}  field must equal v
func DocumentGuards() *constraint.Registry[*Document] {
	reg := constraint.NewRegistry[*Document]()
	_ = reg.Register("role", roleGuard)
	_ = reg.Register("non_empty", nonEmptyGuard)
	_ = reg.Register("field_equals", fieldEqualsGuard)
	return reg
}

func roleGuard(args any) (constraint.Predicate[*Document], error) {
	role, ok := args.(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("role expects a role name")
	}
	return constraint.HasRole[*Document](role), nil
}

func nonEmptyGuard(args any) (constraint.Predicate[*Document], error) {
	field, ok := args.(string)
	if !ok || field == "" {
		return nil, fmt.Errorf("non_empty expects a field name")
	}
	return func(doc *Document, _ constraint.Namespace) error {
		v, ok := doc.Field(field)
		if !ok || v == nil || strings.TrimSpace(fmt.Sprint(v)) == "" {
			return constraint.Violate("Field `%s` is empty.", field)
		}
		return nil
	}, nil
}

func fieldEqualsGuard(args any) (constraint.Predicate[*Document], error) {
	fields, ok := args.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field_equals expects {field, value}")
	}
	field, _ := fields["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("field_equals requires a field")
	}
	want := fields["value"]
	return func(doc *Document, _ constraint.Namespace) error {
		got, ok := doc.Field(field)
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return constraint.Violate("Field `%s` must equal %v.", field, want)
		}
		return nil
	}, nil
}

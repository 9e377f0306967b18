// Package action keeps named, condition-guarded actions (menu entries,
// links, buttons) per event kind and resolves the ones that apply to a
// subject.
package action

import (
	"maps"
	"slices"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-dispatch/constraint"
)

// DefaultOrder is the sort key of actions without an "order" attribute.
const DefaultOrder = 99

const ErrCodeNoClassifiers = "NO_CLASSIFIERS"

// ErrNoClassifiers is returned by classifier lookups called without any.
var ErrNoClassifiers = errors.New("at least one classifier is required", errors.CategoryBadInput).
	WithTextCode(ErrCodeNoClassifiers)

// Resolver computes the target of an action, typically a URL, for subject.
type Resolver[T any] func(subject T, ns constraint.Namespace) (string, error)

// Classifiers is a set of tags used to group actions.
type Classifiers map[string]struct{}

// NewClassifiers builds a set from names.
func NewClassifiers(names ...string) Classifiers {
	c := make(Classifiers, len(names))
	for _, n := range names {
		c[n] = struct{}{}
	}
	return c
}

func (c Classifiers) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Names returns the classifiers, sorted.
func (c Classifiers) Names() []string {
	return slices.Sorted(maps.Keys(c))
}

// Contains reports whether every classifier of other is in c.
func (c Classifiers) Contains(other Classifiers) bool {
	for n := range other {
		if !c.Has(n) {
			return false
		}
	}
	return true
}

// Equal reports whether c and other hold the same classifiers.
func (c Classifiers) Equal(other Classifiers) bool {
	return len(c) == len(other) && c.Contains(other)
}

// Intersects reports whether c and other share a classifier.
func (c Classifiers) Intersects(other Classifiers) bool {
	for n := range other {
		if c.Has(n) {
			return true
		}
	}
	return false
}

// Action is a named operation offered on a subject. Conditions gate it.
type Action[T any] struct {
	Name        string
	Title       string
	Resolve     Resolver[T]
	Classifiers Classifiers
	Attributes  map[string]any
	Conditions  constraint.Set[T]
}

// Evaluate runs the conditions; nil means the action applies to subject.
func (a Action[T]) Evaluate(subject T, ns constraint.Namespace) error {
	return a.Conditions.Evaluate(subject, ns)
}

// Order reads the "order" attribute, DefaultOrder when missing.
func (a Action[T]) Order() int {
	switch v := a.Attributes["order"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return DefaultOrder
}

// CSS reads the "css" attribute.
func (a Action[T]) CSS() string {
	s, _ := a.Attributes["css"].(string)
	return s
}

func requireClassifiers(names []string) (Classifiers, error) {
	if len(names) == 0 {
		return nil, ErrNoClassifiers.Clone()
	}
	return NewClassifiers(names...), nil
}

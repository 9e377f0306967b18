package workflow

import (
	dispatch "github.com/goliatone/go-dispatch"
)

// State is a value from a closed, per-workflow set.
type State interface {
	comparable
	String() string
}

// Stateful is implemented by items driven through a workflow. The workflow
// only reads and writes the state; persisting it is up to the caller.
type Stateful[S State] interface {
	State() S
	SetState(S)
}

// States is the closed set of states of one workflow, in declaration order.
type States[S State] struct {
	order  []S
	byName map[string]S
}

// NewStates builds a state set. Values and their names must be unique.
func NewStates[S State](values ...S) (*States[S], error) {
	s := &States[S]{
		order:  make([]S, 0, len(values)),
		byName: make(map[string]S, len(values)),
	}
	for _, v := range values {
		name := v.String()
		if _, exists := s.byName[name]; exists {
			return nil, dispatch.NewError(dispatch.ErrDuplicate, "state declared twice", map[string]any{
				"state": name,
			})
		}
		s.byName[name] = v
		s.order = append(s.order, v)
	}
	return s, nil
}

// MustStates is NewStates for static declarations.
func MustStates[S State](values ...S) *States[S] {
	s, err := NewStates(values...)
	if err != nil {
		panic(err)
	}
	return s
}

// Contains reports whether v belongs to the set.
func (s *States[S]) Contains(v S) bool {
	if s == nil {
		return false
	}
	got, ok := s.byName[v.String()]
	return ok && got == v
}

// Parse resolves a state by name.
func (s *States[S]) Parse(name string) (S, error) {
	if s != nil {
		if v, ok := s.byName[name]; ok {
			return v, nil
		}
	}
	var zero S
	return zero, dispatch.NewError(dispatch.ErrNotFound, "unknown state", map[string]any{
		"state": name,
	})
}

// All returns the states in declaration order.
func (s *States[S]) All() []S {
	if s == nil {
		return nil
	}
	out := make([]S, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of states.
func (s *States[S]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

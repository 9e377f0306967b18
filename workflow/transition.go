package workflow

import (
	"fmt"
	"iter"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
)

// Action names a transition and carries the guards that gate it.
type Action[T any] struct {
	Name        string
	Title       string
	Constraints constraint.Set[T]
}

// Check evaluates the action constraints against (item, ns).
func (a Action[T]) Check(item T, ns constraint.Namespace) error {
	return a.Constraints.Evaluate(item, ns)
}

// Transition is a directed edge between two states.
type Transition[S State, T any] struct {
	Origin S
	Target S
	Action Action[T]
}

func (t Transition[S, T]) String() string {
	return fmt.Sprintf("%s: %s -> %s", t.Action.Name, t.Origin, t.Target)
}

// Transitions is the fixed edge list of a workflow, indexed by
// origin and target.
type Transitions[S State, T any] struct {
	list  []Transition[S, T]
	index map[S]map[S]int
}

// NewTransitions indexes list. At most one transition may exist for a given
// (origin, target) pair.
func NewTransitions[S State, T any](list ...Transition[S, T]) (*Transitions[S, T], error) {
	t := &Transitions[S, T]{
		list:  make([]Transition[S, T], 0, len(list)),
		index: make(map[S]map[S]int),
	}
	for _, tr := range list {
		targets, ok := t.index[tr.Origin]
		if !ok {
			targets = make(map[S]int)
			t.index[tr.Origin] = targets
		}
		if _, exists := targets[tr.Target]; exists {
			return nil, dispatch.NewError(dispatch.ErrDuplicate, "transition declared twice", map[string]any{
				"origin": tr.Origin.String(),
				"target": tr.Target.String(),
			})
		}
		targets[tr.Target] = len(t.list)
		t.list = append(t.list, tr)
	}
	return t, nil
}

// MustTransitions is NewTransitions for static declarations.
func MustTransitions[S State, T any](list ...Transition[S, T]) *Transitions[S, T] {
	t, err := NewTransitions(list...)
	if err != nil {
		panic(err)
	}
	return t
}

// Find returns the transition from origin to target.
func (t *Transitions[S, T]) Find(origin, target S) (Transition[S, T], error) {
	if t != nil {
		if targets, ok := t.index[origin]; ok {
			if idx, ok := targets[target]; ok {
				return t.list[idx], nil
			}
		}
	}
	return Transition[S, T]{}, dispatch.NewError(dispatch.ErrNoSuchTransition,
		fmt.Sprintf("No transition from %s to %s", origin, target),
		map[string]any{
			"origin": origin.String(),
			"target": target.String(),
		})
}

// Available yields, in declaration order, every transition leaving origin
// whose constraints pass for (item, ns). The sequence is lazy and can be
// ranged over again; each pass re-evaluates the guards.
func (t *Transitions[S, T]) Available(origin S, item T, ns constraint.Namespace) iter.Seq[Transition[S, T]] {
	return func(yield func(Transition[S, T]) bool) {
		if t == nil {
			return
		}
		for _, tr := range t.list {
			if tr.Origin != origin {
				continue
			}
			if err := tr.Action.Check(item, ns); err != nil {
				continue
			}
			if !yield(tr) {
				return
			}
		}
	}
}

// All yields every transition in declaration order.
func (t *Transitions[S, T]) All() iter.Seq[Transition[S, T]] {
	return func(yield func(Transition[S, T]) bool) {
		if t == nil {
			return
		}
		for _, tr := range t.list {
			if !yield(tr) {
				return
			}
		}
	}
}

// At returns the i-th declared transition. ok is false when i is out of range.
func (t *Transitions[S, T]) At(i int) (tr Transition[S, T], ok bool) {
	if t == nil || i < 0 || i >= len(t.list) {
		return tr, false
	}
	return t.list[i], true
}

// Len returns the number of transitions.
func (t *Transitions[S, T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.list)
}

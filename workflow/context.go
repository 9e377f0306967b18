package workflow

import (
	"context"
	"iter"

	"github.com/goliatone/go-dispatch/constraint"
)

// Context binds one item and its namespace to a workflow. It is created per
// operation and is not meant to be retained.
type Context[S State, T Stateful[S]] struct {
	workflow  *Workflow[S, T]
	item      T
	namespace constraint.Namespace
}

// Item returns the bound item.
func (c *Context[S, T]) Item() T { return c.item }

// Namespace returns the bound namespace.
func (c *Context[S, T]) Namespace() constraint.Namespace { return c.namespace }

// State returns the item state, or the workflow default when the item holds
// the zero state.
func (c *Context[S, T]) State() S {
	var zero S
	if st := c.item.State(); st != zero {
		return st
	}
	return c.workflow.defaultState
}

// Available lazily yields the transitions currently open to the item.
func (c *Context[S, T]) Available() iter.Seq[Transition[S, T]] {
	return c.workflow.transitions.Available(c.State(), c.item, c.namespace)
}

// PossibleTransitions collects Available into a slice.
func (c *Context[S, T]) PossibleTransitions() []Transition[S, T] {
	var out []Transition[S, T]
	for tr := range c.Available() {
		out = append(out, tr)
	}
	return out
}

// Transition finds the edge from the current state to target.
func (c *Context[S, T]) Transition(target S) (Transition[S, T], error) {
	return c.workflow.transitions.Find(c.State(), target)
}

// ApplyTransition re-checks tr's constraints, moves the item to tr.Target and
// emits a TransitionEvent. When the constraints fail the item is left
// untouched and the aggregated violations are returned. The state change is
// not rolled back if a subscriber fails; its error is returned as is.
func (c *Context[S, T]) ApplyTransition(ctx context.Context, tr Transition[S, T]) error {
	if err := tr.Action.Check(c.item, c.namespace); err != nil {
		return err
	}
	c.item.SetState(tr.Target)

	w := c.workflow
	_, err := w.subscribers.Notify(ctx, TransitionEvent[S, T]{
		ID:         w.newID(),
		OccurredAt: w.now(),
		Workflow:   w.name,
		Transition: tr,
		Item:       c.item,
		Namespace:  c.namespace,
	})
	return err
}

// TransitionTo looks up the edge to target and applies it.
func (c *Context[S, T]) TransitionTo(ctx context.Context, target S) error {
	tr, err := c.Transition(target)
	if err != nil {
		return err
	}
	return c.ApplyTransition(ctx, tr)
}

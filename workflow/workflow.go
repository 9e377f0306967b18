package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/event"
)

// Workflow binds a closed state set to its transitions and owns the
// subscriber registry transition events are emitted through.
type Workflow[S State, T Stateful[S]] struct {
	name         string
	states       *States[S]
	transitions  *Transitions[S, T]
	defaultState S
	subscribers  *event.Registry
	now          func() time.Time
	newID        func() uuid.UUID
}

// Option customizes a Workflow.
type Option[S State, T Stateful[S]] func(*Workflow[S, T])

// WithName sets the workflow name carried by emitted events.
func WithName[S State, T Stateful[S]](name string) Option[S, T] {
	return func(w *Workflow[S, T]) {
		w.name = name
	}
}

// WithSubscribers emits transition events through reg instead of a
// private registry. The workflow kinds are added to its hierarchy. Workflows
// sharing reg need distinct names unless their state and item types match.
func WithSubscribers[S State, T Stateful[S]](reg *event.Registry) Option[S, T] {
	return func(w *Workflow[S, T]) {
		if reg != nil {
			w.subscribers = reg
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock[S State, T Stateful[S]](now func() time.Time) Option[S, T] {
	return func(w *Workflow[S, T]) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIDGenerator overrides how event ids are produced.
func WithIDGenerator[S State, T Stateful[S]](fn func() uuid.UUID) Option[S, T] {
	return func(w *Workflow[S, T]) {
		if fn != nil {
			w.newID = fn
		}
	}
}

// New validates the definition and builds a workflow.
func New[S State, T Stateful[S]](
	states *States[S],
	transitions *Transitions[S, T],
	defaultState S,
	opts ...Option[S, T],
) (*Workflow[S, T], error) {
	if states == nil || states.Len() == 0 {
		return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "workflow requires states", nil)
	}
	if !states.Contains(defaultState) {
		return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "default state is not a workflow state", map[string]any{
			"state": defaultState.String(),
		})
	}
	if transitions == nil {
		transitions = MustTransitions[S, T]()
	}
	for tr := range transitions.All() {
		if !states.Contains(tr.Origin) || !states.Contains(tr.Target) {
			return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "transition references an unknown state", map[string]any{
				"transition": tr.String(),
			})
		}
	}

	w := &Workflow[S, T]{
		states:       states,
		transitions:  transitions,
		defaultState: defaultState,
		now:          time.Now,
		newID:        uuid.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.subscribers == nil {
		w.subscribers = event.NewRegistry(event.NewHierarchy())
	}
	if err := defineKinds[S, T](w.subscribers.Hierarchy(), w.name); err != nil {
		return nil, err
	}
	return w, nil
}

// Name returns the configured workflow name.
func (w *Workflow[S, T]) Name() string { return w.name }

// States returns the closed state set.
func (w *Workflow[S, T]) States() *States[S] { return w.states }

// Transitions returns the declared transitions.
func (w *Workflow[S, T]) Transitions() *Transitions[S, T] { return w.transitions }

// DefaultState is used for items that do not hold a state yet.
func (w *Workflow[S, T]) DefaultState() S { return w.defaultState }

// Subscribers returns the registry transition events are emitted through.
func (w *Workflow[S, T]) Subscribers() *event.Registry { return w.subscribers }

// Get resolves a state by name.
func (w *Workflow[S, T]) Get(name string) (S, error) {
	return w.states.Parse(name)
}

// TransitionKind returns the kind this workflow emits transition events under.
func (w *Workflow[S, T]) TransitionKind() event.Kind { return TransitionKind(w.name) }

// OnTransition subscribes fn to transition events of this workflow.
func (w *Workflow[S, T]) OnTransition(
	fn func(ctx context.Context, evt TransitionEvent[S, T]) (any, error),
	guards ...constraint.Predicate[event.Event],
) (*event.Subscription, error) {
	return event.SubscribeFunc(w.subscribers, w.TransitionKind(), fn, guards...)
}

// Context binds item and namespace to the workflow for one operation.
func (w *Workflow[S, T]) Context(item T, ns constraint.Namespace) *Context[S, T] {
	return &Context[S, T]{workflow: w, item: item, namespace: ns}
}

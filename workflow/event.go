package workflow

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/event"
)

const (
	// KindWorkflow groups every workflow event.
	KindWorkflow event.Kind = "workflow"
	// KindTransition groups the transition kinds of every workflow. Each
	// workflow emits under its own child kind, see TransitionKind.
	KindTransition event.Kind = "workflow.transition"
)

const unnamed = "unnamed"

// TransitionKind returns the kind carried by transition events of the
// workflow called name.
func TransitionKind(name string) event.Kind {
	if name == "" {
		name = unnamed
	}
	return KindTransition + event.Kind("."+name)
}

// TransitionEvent is emitted through the workflow subscribers once an
// item has moved to the transition target.
type TransitionEvent[S State, T any] struct {
	ID         uuid.UUID
	OccurredAt time.Time
	Workflow   string
	Transition Transition[S, T]
	Item       T
	Namespace  constraint.Namespace
}

func (e TransitionEvent[S, T]) Kind() event.Kind { return TransitionKind(e.Workflow) }

// defineKinds registers the workflow kinds on h. The transition kind of a
// workflow may be shared only by workflows over the same state and item types.
func defineKinds[S State, T any](h *event.Hierarchy, name string) error {
	if !h.Has(KindWorkflow) {
		if err := h.DefineAbstract(KindWorkflow, event.Root); err != nil {
			return err
		}
	}
	if !h.Has(KindTransition) {
		if err := h.DefineAbstract(KindTransition, KindWorkflow); err != nil {
			return err
		}
	}

	kind := TransitionKind(name)
	proto := TransitionEvent[S, T]{Workflow: name}
	if !h.Has(kind) {
		return h.Define(kind, KindTransition, proto)
	}
	if bound := h.Type(kind); bound != reflect.TypeOf(proto) {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "transition kind is bound to another workflow type", map[string]any{
			"kind":  kind,
			"bound": fmt.Sprint(bound),
		})
	}
	return nil
}

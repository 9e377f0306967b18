package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/event"
)

type status string

func (s status) String() string { return string(s) }

const (
	draft     status = "draft"
	submitted status = "submitted"
	published status = "published"
)

type article struct {
	body  string
	state status
}

func (a *article) State() status     { return a.state }
func (a *article) SetState(s status) { a.state = s }

func bodyNotEmpty(a *article, _ constraint.Namespace) error {
	if strings.TrimSpace(a.body) == "" {
		return constraint.Violate("Body is empty.")
	}
	return nil
}

func newPublishing(t *testing.T, opts ...Option[status, *article]) *Workflow[status, *article] {
	t.Helper()
	states := MustStates(draft, submitted, published)
	transitions := MustTransitions(
		Transition[status, *article]{
			Origin: draft,
			Target: submitted,
			Action: Action[*article]{
				Name:        "submit",
				Constraints: constraint.Set[*article]{bodyNotEmpty, constraint.HasRole[*article]("owner")},
			},
		},
		Transition[status, *article]{
			Origin: submitted,
			Target: published,
			Action: Action[*article]{
				Name:        "publish",
				Constraints: constraint.Set[*article]{bodyNotEmpty, constraint.HasRole[*article]("publisher")},
			},
		},
		Transition[status, *article]{
			Origin: submitted,
			Target: draft,
			Action: Action[*article]{Name: "retract"},
		},
	)
	wf, err := New(states, transitions, draft, opts...)
	require.NoError(t, err)
	return wf
}

func names(trs []Transition[status, *article]) []string {
	out := make([]string, 0, len(trs))
	for _, tr := range trs {
		out = append(out, tr.Action.Name)
	}
	return out
}

func TestWorkflow_AvailableDependsOnGuards(t *testing.T) {
	wf := newPublishing(t)
	doc := &article{state: draft}

	empty := wf.Context(doc, constraint.Namespace{"role": "owner"})
	assert.Empty(t, empty.PossibleTransitions())

	doc.body = "hello"
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})
	assert.Equal(t, []string{"submit"}, names(ctx.PossibleTransitions()))

	editor := wf.Context(doc, constraint.Namespace{"role": "editor"})
	assert.Empty(t, editor.PossibleTransitions())
}

func TestWorkflow_AvailableIsRepeatable(t *testing.T) {
	wf := newPublishing(t)
	doc := &article{body: "hello", state: submitted}
	ctx := wf.Context(doc, constraint.Namespace{"role": "publisher"})

	first := names(ctx.PossibleTransitions())
	second := names(ctx.PossibleTransitions())
	assert.Equal(t, []string{"publish", "retract"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, submitted, doc.State())
}

func TestWorkflow_AvailableStopsEarly(t *testing.T) {
	wf := newPublishing(t)
	doc := &article{body: "hello", state: submitted}
	ctx := wf.Context(doc, constraint.Namespace{"role": "publisher"})

	count := 0
	for range ctx.Available() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestWorkflow_ApplyTransitionEmitsOneEvent(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.MustParse("6f1c3f7e-9a51-4c55-8c6b-2f0a3a3b9d11")
	wf := newPublishing(t,
		WithName[status, *article]("publishing"),
		WithClock[status, *article](func() time.Time { return fixed }),
		WithIDGenerator[status, *article](func() uuid.UUID { return id }),
	)

	var got []TransitionEvent[status, *article]
	_, err := wf.OnTransition(func(_ context.Context, evt TransitionEvent[status, *article]) (any, error) {
		got = append(got, evt)
		return nil, nil
	})
	require.NoError(t, err)

	doc := &article{body: "hello", state: draft}
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})
	trs := ctx.PossibleTransitions()
	require.Len(t, trs, 1)

	require.NoError(t, ctx.ApplyTransition(context.Background(), trs[0]))
	assert.Equal(t, submitted, doc.State())

	require.Len(t, got, 1)
	assert.Equal(t, "submit", got[0].Transition.Action.Name)
	assert.Equal(t, "publishing", got[0].Workflow)
	assert.Equal(t, fixed, got[0].OccurredAt)
	assert.Equal(t, id, got[0].ID)
	assert.Same(t, doc, got[0].Item)
	assert.Equal(t, "owner", got[0].Namespace.String("role"))
}

func TestWorkflow_RoundTripRestoresState(t *testing.T) {
	wf := newPublishing(t)
	events := 0
	_, err := wf.OnTransition(func(context.Context, TransitionEvent[status, *article]) (any, error) {
		events++
		return nil, nil
	})
	require.NoError(t, err)

	doc := &article{body: "hello", state: draft}
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})

	require.NoError(t, ctx.TransitionTo(context.Background(), submitted))
	require.NoError(t, ctx.TransitionTo(context.Background(), draft))

	assert.Equal(t, draft, doc.State())
	assert.Equal(t, 2, events)
}

func TestWorkflow_NoSuchTransition(t *testing.T) {
	wf := newPublishing(t)
	doc := &article{body: "hello", state: draft}
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})

	_, err := ctx.Transition(published)
	require.Error(t, err)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeNoSuchTransition))
	assert.Contains(t, err.Error(), "No transition from draft to published")

	err = ctx.TransitionTo(context.Background(), published)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeNoSuchTransition))
	assert.Equal(t, draft, doc.State())
}

func TestWorkflow_GuardFailureLeavesStateUntouched(t *testing.T) {
	wf := newPublishing(t)
	events := 0
	_, err := wf.OnTransition(func(context.Context, TransitionEvent[status, *article]) (any, error) {
		events++
		return nil, nil
	})
	require.NoError(t, err)

	doc := &article{state: draft}
	ctx := wf.Context(doc, constraint.Namespace{"role": "guest"})

	err = ctx.TransitionTo(context.Background(), submitted)
	require.Error(t, err)

	var agg *constraint.Errors
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, []string{"Body is empty.", "Unauthorized. Missing the `owner` role."}, agg.Messages())
	assert.Equal(t, draft, doc.State())
	assert.Zero(t, events)
}

func TestWorkflow_SubscriberErrorAfterCommit(t *testing.T) {
	wf := newPublishing(t)
	boom := errors.New("boom")
	_, err := wf.OnTransition(func(context.Context, TransitionEvent[status, *article]) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	doc := &article{body: "hello", state: draft}
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})

	err = ctx.TransitionTo(context.Background(), submitted)
	assert.Same(t, boom, err)
	assert.Equal(t, submitted, doc.State())
}

func TestWorkflow_ZeroStateUsesDefault(t *testing.T) {
	wf := newPublishing(t)
	doc := &article{body: "hello"}
	ctx := wf.Context(doc, constraint.Namespace{"role": "owner"})

	assert.Equal(t, draft, ctx.State())
	require.NoError(t, ctx.TransitionTo(context.Background(), submitted))
	assert.Equal(t, submitted, doc.State())
}

func TestWorkflow_NewValidates(t *testing.T) {
	states := MustStates(draft, submitted)

	_, err := New[status, *article](states, nil, published)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))

	bad := MustTransitions(Transition[status, *article]{Origin: draft, Target: published})
	_, err = New(states, bad, draft)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))

	_, err = New[status, *article](nil, nil, draft)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))
}

func TestTransitions_RejectDuplicatePair(t *testing.T) {
	_, err := NewTransitions(
		Transition[status, *article]{Origin: draft, Target: submitted, Action: Action[*article]{Name: "a"}},
		Transition[status, *article]{Origin: draft, Target: submitted, Action: Action[*article]{Name: "b"}},
	)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeDuplicate))
}

func TestStates_Parse(t *testing.T) {
	states := MustStates(draft, submitted)

	got, err := states.Parse("submitted")
	require.NoError(t, err)
	assert.Equal(t, submitted, got)

	_, err = states.Parse("archived")
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeNotFound))

	_, err = NewStates(draft, draft)
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeDuplicate))
}

func TestWorkflow_SharedSubscriberRegistry(t *testing.T) {
	reg := event.NewRegistry(event.NewHierarchy(), event.WithStrict(true))
	wf := newPublishing(t, WithSubscribers[status, *article](reg))
	assert.Same(t, reg, wf.Subscribers())
	assert.True(t, reg.Hierarchy().IsAbstract(KindWorkflow))
	assert.True(t, reg.Hierarchy().IsAbstract(KindTransition))
	assert.Equal(t, event.Kind("workflow.transition.unnamed"), wf.TransitionKind())
	assert.Equal(t, []event.Kind{wf.TransitionKind(), KindTransition, KindWorkflow}, reg.Hierarchy().Lineage(wf.TransitionKind()))

	_, err := reg.Subscribe(KindWorkflow, func(context.Context, event.Event) (any, error) { return nil, nil })
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidSubscriber))
	_, err = reg.Subscribe(KindTransition, func(context.Context, event.Event) (any, error) { return nil, nil })
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidSubscriber))

	seen := 0
	_, err = wf.OnTransition(func(context.Context, TransitionEvent[status, *article]) (any, error) {
		seen++
		return nil, nil
	})
	require.NoError(t, err)

	doc := &article{body: "hello"}
	require.NoError(t, wf.Context(doc, constraint.Namespace{"role": "owner"}).TransitionTo(context.Background(), submitted))
	assert.Equal(t, 1, seen)
}

func TestWorkflow_SharedRegistryKeepsWorkflowsApart(t *testing.T) {
	reg := event.NewRegistry(event.NewHierarchy())
	articles := newPublishing(t,
		WithName[status, *article]("articles"),
		WithSubscribers[status, *article](reg),
	)

	def, err := ParseDefinition([]byte(publishingYAML))
	require.NoError(t, err)
	docs, err := Build(def, DocumentGuards(), WithSubscribers[Name, *Document](reg))
	require.NoError(t, err)
	assert.Equal(t, event.Kind("workflow.transition.publishing"), docs.TransitionKind())

	var articleEvents, docEvents []string
	_, err = articles.OnTransition(func(_ context.Context, evt TransitionEvent[status, *article]) (any, error) {
		articleEvents = append(articleEvents, evt.Transition.Action.Name)
		return nil, nil
	})
	require.NoError(t, err)
	_, err = docs.OnTransition(func(_ context.Context, evt TransitionEvent[Name, *Document]) (any, error) {
		docEvents = append(docEvents, evt.Workflow+":"+evt.Transition.Action.Name)
		return nil, nil
	})
	require.NoError(t, err)

	art := &article{body: "hello"}
	require.NoError(t, articles.Context(art, constraint.Namespace{"role": "owner"}).TransitionTo(context.Background(), submitted))

	doc := &Document{Fields: map[string]any{"body": "hello"}}
	require.NoError(t, docs.Context(doc, constraint.Namespace{"role": "owner"}).TransitionTo(context.Background(), "submitted"))

	assert.Equal(t, []string{"submit"}, articleEvents)
	assert.Equal(t, []string{"publishing:submit"}, docEvents)
}

func TestWorkflow_SharedRegistryRejectsConflictingName(t *testing.T) {
	reg := event.NewRegistry(event.NewHierarchy())
	newPublishing(t,
		WithName[status, *article]("publishing"),
		WithSubscribers[status, *article](reg),
	)

	def, err := ParseDefinition([]byte(publishingYAML))
	require.NoError(t, err)
	_, err = Build(def, DocumentGuards(), WithSubscribers[Name, *Document](reg))
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))

	// same types under the same name share the kind
	again := newPublishing(t,
		WithName[status, *article]("publishing"),
		WithSubscribers[status, *article](reg),
	)
	assert.Equal(t, event.Kind("workflow.transition.publishing"), again.TransitionKind())
}

func TestTransitions_At(t *testing.T) {
	wf := newPublishing(t)

	tr, ok := wf.Transitions().At(1)
	require.True(t, ok)
	assert.Equal(t, "publish", tr.Action.Name)

	_, ok = wf.Transitions().At(wf.Transitions().Len())
	assert.False(t, ok)
	_, ok = wf.Transitions().At(-1)
	assert.False(t, ok)

	var missing *Transitions[status, *article]
	_, ok = missing.At(0)
	assert.False(t, ok)
	assert.Zero(t, missing.Len())
}

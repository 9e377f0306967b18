package action

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/event"
)

const (
	kindContent  event.Kind = "content"
	kindDocument event.Kind = "document"
)

type content struct{}

func (content) Kind() event.Kind { return kindContent }

type document struct {
	content
	published bool
}

func (document) Kind() event.Kind { return kindDocument }

func newHierarchy(t *testing.T) *event.Hierarchy {
	t.Helper()
	h := event.NewHierarchy()
	require.NoError(t, h.Define(kindContent, event.Root, content{}))
	require.NoError(t, h.Define(kindDocument, kindContent, document{}))
	return h
}

func names(seq iter.Seq[Action[event.Event]]) []string {
	var out []string
	for a := range seq {
		out = append(out, a.Name)
	}
	return out
}

func resolvedNames(list []Resolved[event.Event]) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.Action.Name)
	}
	return out
}

func adminOnly(_ event.Event, ns constraint.Namespace) error {
	if ns.String("user") != "admin" {
		return constraint.Violate("User should be \"admin\".")
	}
	return nil
}

func TestAction_Evaluate(t *testing.T) {
	open := Action[event.Event]{Name: "view"}
	assert.NoError(t, open.Evaluate(content{}, nil))

	guarded := Action[event.Event]{Name: "edit", Conditions: constraint.Set[event.Event]{adminOnly}}
	err := guarded.Evaluate(content{}, constraint.Namespace{"user": "test"})
	var agg *constraint.Errors
	require.True(t, errors.As(err, &agg))
	assert.Equal(t, []string{"User should be \"admin\"."}, agg.Messages())
	assert.NoError(t, guarded.Evaluate(content{}, constraint.Namespace{"user": "admin"}))
}

func TestAction_Attributes(t *testing.T) {
	a := Action[event.Event]{Name: "edit", Attributes: map[string]any{"css": "icon-edit", "order": 3}}
	assert.Equal(t, "icon-edit", a.CSS())
	assert.Equal(t, 3, a.Order())

	assert.Equal(t, 2, Action[event.Event]{Attributes: map[string]any{"order": 2.0}}.Order())
	assert.Equal(t, DefaultOrder, Action[event.Event]{}.Order())
	assert.Empty(t, Action[event.Event]{}.CSS())
}

func TestStore_RegistrationOverrideKeepsPosition(t *testing.T) {
	s := NewStore[event.Event]()
	assert.Zero(t, s.Len())
	assert.Empty(t, names(s.All()))

	require.NoError(t, s.Add(Action[event.Event]{Name: "someid", Title: "first"}))
	require.NoError(t, s.Add(Action[event.Event]{Name: "other"}))
	require.NoError(t, s.Add(Action[event.Event]{Name: "someid", Title: "second"}))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"someid", "other"}, names(s.All()))
	got, ok := s.Get("someid")
	require.True(t, ok)
	assert.Equal(t, "second", got.Title)
	assert.NotNil(t, got.Classifiers)

	err := s.Add(Action[event.Event]{Name: " "})
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeInvalidDefinition))
}

func TestStore_Classifiers(t *testing.T) {
	s := NewStore[event.Event]()
	require.NoError(t, s.Add(Action[event.Event]{
		Name:        "satay",
		Title:       "Satay Soup",
		Classifiers: NewClassifiers("soup", "phô"),
	}))

	for _, lookup := range []func(...string) (iter.Seq[Action[event.Event]], error){
		func(c ...string) (iter.Seq[Action[event.Event]], error) { return s.Partial(c...) },
		func(c ...string) (iter.Seq[Action[event.Event]], error) { return s.Exact(c...) },
		func(c ...string) (iter.Seq[Action[event.Event]], error) { return s.OneOf(c...) },
	} {
		_, err := lookup()
		assert.True(t, dispatch.IsCode(err, ErrCodeNoClassifiers))
	}

	partial := func(c ...string) []string {
		seq, err := s.Partial(c...)
		require.NoError(t, err)
		return names(seq)
	}
	assert.Empty(t, partial("bobun"))
	assert.Equal(t, []string{"satay"}, partial("soup"))
	assert.Equal(t, []string{"satay"}, partial("soup", "phô"))

	oneOf := func(c ...string) []string {
		seq, err := s.OneOf(c...)
		require.NoError(t, err)
		return names(seq)
	}
	assert.Empty(t, oneOf("bobun"))
	assert.Equal(t, []string{"satay"}, oneOf("soup", "bobun", "beef"))

	exact := func(c ...string) []string {
		seq, err := s.Exact(c...)
		require.NoError(t, err)
		return names(seq)
	}
	assert.Empty(t, exact("bobun"))
	assert.Empty(t, exact("soup", "bobun", "beef"))
	assert.Empty(t, exact("soup"))
	assert.Equal(t, []string{"satay"}, exact("phô", "soup"))
}

func TestClassifiers(t *testing.T) {
	c := NewClassifiers("b", "a", "b")
	assert.Equal(t, []string{"a", "b"}, c.Names())
	assert.True(t, c.Contains(NewClassifiers("a")))
	assert.False(t, c.Equal(NewClassifiers("a")))
	assert.True(t, c.Equal(NewClassifiers("a", "b")))
	assert.False(t, c.Intersects(NewClassifiers("z")))
}

func newLibrary(t *testing.T) *Library[event.Event] {
	t.Helper()
	lib := NewLibrary[event.Event](newHierarchy(t))
	require.NoError(t, lib.Add(kindContent, Action[event.Event]{
		Name:        "view",
		Title:       "View",
		Classifiers: NewClassifiers("menu"),
		Attributes:  map[string]any{"order": 1},
		Resolve:     func(event.Event, constraint.Namespace) (string, error) { return "/view", nil },
	}))
	require.NoError(t, lib.Add(kindContent, Action[event.Event]{
		Name:        "delete",
		Classifiers: NewClassifiers("menu", "danger"),
		Conditions:  constraint.Set[event.Event]{adminOnly},
	}))
	require.NoError(t, lib.Add(kindDocument, Action[event.Event]{
		Name:        "publish",
		Classifiers: NewClassifiers("menu", "workflow"),
		Attributes:  map[string]any{"order": 5},
		Conditions: constraint.Set[event.Event]{
			constraint.Check(func(evt event.Event) bool { return !evt.(document).published }, "Already published."),
		},
		Resolve: func(event.Event, constraint.Namespace) (string, error) { return "/publish", nil },
	}))
	return lib
}

func TestLibrary_LineageLookups(t *testing.T) {
	lib := newLibrary(t)

	assert.Equal(t, []string{"publish", "view", "delete"}, names(lib.All(kindDocument)))
	assert.Equal(t, []string{"view", "delete"}, names(lib.All(kindContent)))

	_, ok := lib.Get(kindDocument, "view")
	assert.False(t, ok)
	_, ok = lib.Get(kindContent, "view")
	assert.True(t, ok)

	seq, err := lib.Partial(kindDocument, "menu", "danger")
	require.NoError(t, err)
	assert.Equal(t, []string{"delete"}, names(seq))

	seq, err = lib.OneOf(kindDocument, "workflow", "danger")
	require.NoError(t, err)
	assert.Equal(t, []string{"publish", "delete"}, names(seq))

	seq, err = lib.Exact(kindDocument, "menu")
	require.NoError(t, err)
	assert.Equal(t, []string{"view"}, names(seq))

	_, err = lib.Exact(kindDocument)
	assert.True(t, dispatch.IsCode(err, ErrCodeNoClassifiers))

	err = lib.Add("missing", Action[event.Event]{Name: "x"})
	assert.True(t, dispatch.IsCode(err, dispatch.ErrCodeNotFound))
}

func TestLibrary_Available(t *testing.T) {
	lib := newLibrary(t)

	got, err := lib.Available(document{}, constraint.Namespace{"user": "guest"})
	require.NoError(t, err)
	assert.Equal(t, []string{"view", "publish"}, resolvedNames(got))
	assert.Equal(t, "/view", got[0].Target)
	assert.Equal(t, "View", got[0].Title())

	got, err = lib.Available(document{published: true}, constraint.Namespace{"user": "admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"view", "delete"}, resolvedNames(got))

	got, err = lib.Available(document{}, constraint.Namespace{"user": "admin"}, "danger")
	require.NoError(t, err)
	assert.Equal(t, []string{"delete"}, resolvedNames(got))
	assert.Empty(t, got[0].Target)
}

func TestLibrary_AvailablePropagatesErrors(t *testing.T) {
	lib := NewLibrary[event.Event](newHierarchy(t))
	boom := errors.New("boom")
	require.NoError(t, lib.Add(kindContent, Action[event.Event]{
		Name:    "broken",
		Resolve: func(event.Event, constraint.Namespace) (string, error) { return "", boom },
	}))

	_, err := lib.Available(content{}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestLibrary_Lookup(t *testing.T) {
	lib := newLibrary(t)

	res, ok, err := lib.Lookup(content{}, constraint.Namespace{"user": "admin"}, "delete")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "delete", res.Action.Name)

	_, ok, err = lib.Lookup(content{}, constraint.Namespace{"user": "guest"}, "delete")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = lib.Lookup(content{}, nil, "publish")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolved_Active(t *testing.T) {
	r := Resolved[event.Event]{Target: "/docs"}
	assert.True(t, r.Active("/docs"))
	assert.True(t, r.Active("/docs/intro/"))
	assert.False(t, r.Active("/docsearch"))
	assert.False(t, Resolved[event.Event]{}.Active("/docs"))

	root := Resolved[event.Event]{Target: "/"}
	assert.True(t, root.Active("/anything"))
}

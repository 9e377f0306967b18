package action

import (
	"iter"
	"path"
	"slices"
	"strings"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/event"
)

// Library keeps one Store per event kind. Lookups for a kind also see the
// actions of its ancestors, most derived kind first.
type Library[T event.Event] struct {
	mu        sync.RWMutex
	hierarchy *event.Hierarchy
	stores    map[event.Kind]*Store[T]
}

// NewLibrary resolves lineages through h. A nil h gets a fresh hierarchy.
func NewLibrary[T event.Event](h *event.Hierarchy) *Library[T] {
	if h == nil {
		h = event.NewHierarchy()
	}
	return &Library[T]{hierarchy: h, stores: make(map[event.Kind]*Store[T])}
}

func (l *Library[T]) Hierarchy() *event.Hierarchy { return l.hierarchy }

// Add registers a for subjects of kind. kind must be defined in the hierarchy.
func (l *Library[T]) Add(kind event.Kind, a Action[T]) error {
	if !l.hierarchy.Has(kind) {
		return dispatch.NewError(dispatch.ErrNotFound, "kind is not part of the event hierarchy", map[string]any{
			"kind":   kind,
			"action": a.Name,
		})
	}
	l.mu.Lock()
	store, ok := l.stores[kind]
	if !ok {
		store = NewStore[T]()
		l.stores[kind] = store
	}
	l.mu.Unlock()
	return store.Add(a)
}

// Store returns the actions registered directly on kind.
func (l *Library[T]) Store(kind event.Kind) (*Store[T], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.stores[kind]
	return s, ok
}

// Get returns the action called name registered directly on kind.
func (l *Library[T]) Get(kind event.Kind, name string) (Action[T], bool) {
	if s, ok := l.Store(kind); ok {
		return s.Get(name)
	}
	return Action[T]{}, false
}

// All yields the actions of kind and its ancestors.
func (l *Library[T]) All(kind event.Kind) iter.Seq[Action[T]] {
	return l.lineage(kind, nil)
}

// Partial yields the actions along the lineage carrying every classifier.
func (l *Library[T]) Partial(kind event.Kind, classifiers ...string) (iter.Seq[Action[T]], error) {
	want, err := requireClassifiers(classifiers)
	if err != nil {
		return nil, err
	}
	return l.lineage(kind, func(c Classifiers) bool { return c.Contains(want) }), nil
}

// Exact yields the actions along the lineage with exactly these classifiers.
func (l *Library[T]) Exact(kind event.Kind, classifiers ...string) (iter.Seq[Action[T]], error) {
	want, err := requireClassifiers(classifiers)
	if err != nil {
		return nil, err
	}
	return l.lineage(kind, func(c Classifiers) bool { return c.Equal(want) }), nil
}

// OneOf yields the actions along the lineage sharing a classifier.
func (l *Library[T]) OneOf(kind event.Kind, classifiers ...string) (iter.Seq[Action[T]], error) {
	want, err := requireClassifiers(classifiers)
	if err != nil {
		return nil, err
	}
	return l.lineage(kind, func(c Classifiers) bool { return c.Intersects(want) }), nil
}

func (l *Library[T]) lineage(kind event.Kind, match func(Classifiers) bool) iter.Seq[Action[T]] {
	return func(yield func(Action[T]) bool) {
		for _, k := range l.hierarchy.Lineage(kind) {
			store, ok := l.Store(k)
			if !ok {
				continue
			}
			for a := range store.filter(match) {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// Resolved is an action that passed its conditions for one subject.
type Resolved[T any] struct {
	Action    Action[T]
	Subject   T
	Namespace constraint.Namespace
	Target    string
}

func (r Resolved[T]) Title() string { return r.Action.Title }

// Active reports whether current lies under the resolved target path.
func (r Resolved[T]) Active(current string) bool {
	if r.Target == "" || current == "" {
		return false
	}
	target := path.Clean(r.Target)
	current = path.Clean(current)
	return current == target || strings.HasPrefix(current, strings.TrimSuffix(target, "/")+"/")
}

// Lookup resolves the action called name registered on the subject kind.
// ok is false when it does not exist or its conditions are not met.
func (l *Library[T]) Lookup(subject T, ns constraint.Namespace, name string) (res Resolved[T], ok bool, err error) {
	a, found := l.Get(subject.Kind(), name)
	if !found {
		return res, false, nil
	}
	return resolve(a, subject, ns)
}

// Available resolves the actions applying to subject, sorted by their order
// attribute and, for equal orders, by lineage and registration order. With
// classifiers only actions carrying all of them are considered. Actions
// whose conditions fail are left out; other condition or resolver errors
// are returned.
func (l *Library[T]) Available(subject T, ns constraint.Namespace, classifiers ...string) ([]Resolved[T], error) {
	seq := l.All(subject.Kind())
	if len(classifiers) > 0 {
		var err error
		if seq, err = l.Partial(subject.Kind(), classifiers...); err != nil {
			return nil, err
		}
	}

	candidates := slices.Collect(seq)
	slices.SortStableFunc(candidates, func(a, b Action[T]) int {
		return a.Order() - b.Order()
	})

	out := make([]Resolved[T], 0, len(candidates))
	for _, a := range candidates {
		res, ok, err := resolve(a, subject, ns)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, res)
		}
	}
	return out, nil
}

func resolve[T any](a Action[T], subject T, ns constraint.Namespace) (Resolved[T], bool, error) {
	if err := a.Evaluate(subject, ns); err != nil {
		if constraint.IsViolation(err) {
			return Resolved[T]{}, false, nil
		}
		return Resolved[T]{}, false, err
	}
	res := Resolved[T]{Action: a, Subject: subject, Namespace: ns}
	if a.Resolve != nil {
		target, err := a.Resolve(subject, ns)
		if err != nil {
			return Resolved[T]{}, false, err
		}
		res.Target = target
	}
	return res, true, nil
}

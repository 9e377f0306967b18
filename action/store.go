package action

import (
	"iter"
	"strings"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
)

// Store holds actions by name in registration order. Adding a name again
// replaces the action but keeps its position.
type Store[T any] struct {
	mu      sync.RWMutex
	names   []string
	actions map[string]Action[T]
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{actions: make(map[string]Action[T])}
}

// Add registers a under its name.
func (s *Store[T]) Add(a Action[T]) error {
	if strings.TrimSpace(a.Name) == "" {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "action name is required", nil)
	}
	if a.Classifiers == nil {
		a.Classifiers = Classifiers{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[a.Name]; !ok {
		s.names = append(s.names, a.Name)
	}
	s.actions[a.Name] = a
	return nil
}

// Get returns the action called name.
func (s *Store[T]) Get(name string) (Action[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[name]
	return a, ok
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// All yields every action in registration order.
func (s *Store[T]) All() iter.Seq[Action[T]] {
	return s.filter(nil)
}

// Partial yields the actions carrying every given classifier.
func (s *Store[T]) Partial(classifiers ...string) (iter.Seq[Action[T]], error) {
	want, err := requireClassifiers(classifiers)
	if err != nil {
		return nil, err
	}
	return s.filter(func(c Classifiers) bool { return c.Contains(want) }), nil
}

// Exact yields the actions whose classifiers are exactly the given ones.
func (s *Store[T]) Exact(classifiers ...string) (iter.Seq[Action[T]], error) {
	want, err := requireClassifiers(classifiers)
	if err != nil {
		return nil, err
	}
	return s.filter(func(c Classifiers) bool { return c.Equal(want) }), nil
}

// OneOf yields the actions carrying at least one given classifier.
func (s *Store[T]) OneOf(classifiers ...string) (iter.Seq[Action[T]], error) {
	want, err := requireClassifiers(classifiers)
	if err != nil {
		return nil, err
	}
	return s.filter(func(c Classifiers) bool { return c.Intersects(want) }), nil
}

func (s *Store[T]) filter(match func(Classifiers) bool) iter.Seq[Action[T]] {
	return func(yield func(Action[T]) bool) {
		for _, a := range s.snapshot() {
			if match != nil && !match(a.Classifiers) {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

func (s *Store[T]) snapshot() []Action[T] {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Action[T], 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.actions[n])
	}
	return out
}

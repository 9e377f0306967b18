package constraint

import (
	"sort"
	"strings"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
)

// Factory builds a predicate from declarative arguments (for example the
// value that follows a guard name in a YAML definition).
type Factory[T any] func(args any) (Predicate[T], error)

// Registry stores named predicate factories.
type Registry[T any] struct {
	mu         sync.RWMutex
	factories  map[string]Factory[T]
	namespacer func(string, string) string
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		factories:  make(map[string]Factory[T]),
		namespacer: defaultNamespace,
	}
}

// SetNamespacer customizes how names are namespaced.
func (r *Registry[T]) SetNamespacer(fn func(string, string) string) {
	if fn != nil {
		r.mu.Lock()
		r.namespacer = fn
		r.mu.Unlock()
	}
}

// Register stores a factory by name.
func (r *Registry[T]) Register(name string, factory Factory[T]) error {
	return r.RegisterNamespaced("", name, factory)
}

// RegisterPredicate stores a fixed predicate that ignores its arguments.
func (r *Registry[T]) RegisterPredicate(name string, pred Predicate[T]) error {
	if pred == nil {
		return r.Register(name, nil)
	}
	return r.Register(name, func(any) (Predicate[T], error) { return pred, nil })
}

// RegisterNamespaced stores a factory using namespace+name.
func (r *Registry[T]) RegisterNamespaced(namespace, name string, factory Factory[T]) error {
	if strings.TrimSpace(name) == "" || factory == nil {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "guard name and factory are required", map[string]any{
			"name": name,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.factories == nil {
		r.factories = make(map[string]Factory[T])
	}
	key := name
	if r.namespacer != nil {
		key = r.namespacer(namespace, name)
	}
	if _, exists := r.factories[key]; exists {
		return dispatch.NewError(dispatch.ErrDuplicate, "guard already registered", map[string]any{
			"name": key,
		})
	}
	r.factories[key] = factory
	return nil
}

// Resolve builds the predicate registered under name.
func (r *Registry[T]) Resolve(name string, args any) (Predicate[T], error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, dispatch.NewError(dispatch.ErrNotFound, "unknown guard", map[string]any{
			"name": name,
		})
	}
	pred, err := factory(args)
	if err != nil {
		return nil, dispatch.WrapError(dispatch.ErrInvalidDefinition, "guard arguments rejected", err, map[string]any{
			"name": name,
		})
	}
	return pred, nil
}

// Lookup returns the factory stored under name.
func (r *Registry[T]) Lookup(name string) (Factory[T], bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultNamespace joins namespace and name with ::, trimming whitespace.
func defaultNamespace(namespace, name string) string {
	ns := strings.TrimSpace(namespace)
	ident := strings.TrimSpace(name)
	if ns == "" {
		return ident
	}
	return ns + "::" + ident
}

package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
)

// Registry stores known plugins by name so they can be installed from
// configuration.
type Registry[A any] struct {
	mu    sync.RWMutex
	store map[string]*Plugin[A]
}

// NewRegistry registers candidates. Later candidates replace earlier ones
// with the same name.
func NewRegistry[A any](candidates ...*Plugin[A]) *Registry[A] {
	r := &Registry[A]{store: make(map[string]*Plugin[A], len(candidates))}
	for _, p := range candidates {
		if p != nil {
			r.store[p.name] = p
		}
	}
	return r
}

// Register adds p, failing when the name is taken.
func (r *Registry[A]) Register(p *Plugin[A]) error {
	if p == nil || p.name == "" {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "plugin name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.store[p.name]; exists {
		return dispatch.NewError(dispatch.ErrDuplicate, "plugin already registered", map[string]any{
			"plugin": p.name,
		})
	}
	r.store[p.name] = p
	return nil
}

// Get returns the plugin registered under name.
func (r *Registry[A]) Get(name string) (*Plugin[A], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.store[name]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry[A]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.store))
	for n := range r.store {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InstallByName installs the named plugins in the given order. Nothing is
// installed when any name is unknown.
func (r *Registry[A]) InstallByName(ctx context.Context, target A, installed Set, names ...string) (Set, error) {
	plugins := make([]*Plugin[A], 0, len(names))
	var missing []string

	r.mu.RLock()
	for _, name := range names {
		p, ok := r.store[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		plugins = append(plugins, p)
	}
	r.mu.RUnlock()

	if len(missing) > 0 {
		sort.Strings(missing)
		return installed.Clone(), dispatch.NewError(dispatch.ErrNotFound,
			fmt.Sprintf("Missing plugins: %s.", strings.Join(missing, ", ")),
			map[string]any{"missing": missing})
	}
	return Install(ctx, target, installed, plugins...)
}

// Install installs plugins in order, threading the installed set through.
func Install[A any](ctx context.Context, target A, installed Set, plugins ...*Plugin[A]) (Set, error) {
	set := installed.Clone()
	for _, p := range plugins {
		if p == nil {
			continue
		}
		next, err := p.Install(ctx, target, set)
		set = next
		if err != nil {
			return set, err
		}
	}
	return set, nil
}

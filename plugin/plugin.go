// Package plugin installs application extensions in dependency order.
//
// A Plugin names the plugins it depends on and carries setup steps plus
// before/after hooks. Installation is idempotent per name and the set of
// installed names is passed explicitly, so the same plugin can be installed
// into several targets without shared state.
package plugin

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"

	dispatch "github.com/goliatone/go-dispatch"
)

// Hook runs around the setup steps of a plugin.
type Hook[A any] func(ctx context.Context, p *Plugin[A], target A) error

// Setup applies the plugin to its target, for example by registering
// middleware or subscribers.
type Setup[A any] func(ctx context.Context, target A) error

type stage int

const (
	beforeInstall stage = iota
	afterInstall
	beforeUninstall
	afterUninstall
)

// Plugin is a named, dependency-aware unit of setup.
type Plugin[A any] struct {
	name         string
	dependencies []*Plugin[A]
	setups       []Setup[A]
	hooks        map[stage][]Hook[A]
	logger       dispatch.Logger
}

// Option configures a Plugin.
type Option[A any] func(*Plugin[A])

// WithDependencies declares plugins that must be installed first.
func WithDependencies[A any](deps ...*Plugin[A]) Option[A] {
	return func(p *Plugin[A]) {
		for _, dep := range deps {
			if dep != nil {
				p.dependencies = append(p.dependencies, dep)
			}
		}
	}
}

// WithSetup appends setup steps, run in order between the hooks.
func WithSetup[A any](steps ...Setup[A]) Option[A] {
	return func(p *Plugin[A]) {
		for _, s := range steps {
			if s != nil {
				p.setups = append(p.setups, s)
			}
		}
	}
}

// WithLogger sets the logger used to report installation.
func WithLogger[A any](logger dispatch.Logger) Option[A] {
	return func(p *Plugin[A]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a plugin.
func New[A any](name string, opts ...Option[A]) *Plugin[A] {
	p := &Plugin[A]{
		name:   strings.TrimSpace(name),
		hooks:  make(map[stage][]Hook[A]),
		logger: dispatch.NewFmtLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Plugin[A]) Name() string { return p.name }

func (p *Plugin[A]) String() string { return "plugin " + p.name }

// Dependencies returns the direct dependencies.
func (p *Plugin[A]) Dependencies() []*Plugin[A] {
	out := make([]*Plugin[A], len(p.dependencies))
	copy(out, p.dependencies)
	return out
}

func (p *Plugin[A]) BeforeInstall(h Hook[A]) *Plugin[A] { return p.hook(beforeInstall, h) }

func (p *Plugin[A]) AfterInstall(h Hook[A]) *Plugin[A] { return p.hook(afterInstall, h) }

func (p *Plugin[A]) BeforeUninstall(h Hook[A]) *Plugin[A] { return p.hook(beforeUninstall, h) }

func (p *Plugin[A]) AfterUninstall(h Hook[A]) *Plugin[A] { return p.hook(afterUninstall, h) }

func (p *Plugin[A]) hook(s stage, h Hook[A]) *Plugin[A] {
	if h != nil {
		p.hooks[s] = append(p.hooks[s], h)
	}
	return p
}

// Lineage lists every transitive dependency, dependencies first, followed
// by p itself. Each name appears once.
func (p *Plugin[A]) Lineage() []*Plugin[A] {
	seen := make(map[string]bool)
	var out []*Plugin[A]
	var walk func(*Plugin[A])
	walk = func(cur *Plugin[A]) {
		if seen[cur.name] {
			return
		}
		seen[cur.name] = true
		for _, dep := range cur.dependencies {
			walk(dep)
		}
		out = append(out, cur)
	}
	walk(p)
	return out
}

// Install installs the dependencies of p and then p into target, skipping
// names already present in installed. It returns the updated set; installed
// itself is not modified. On failure the returned set holds the plugins
// that did install.
func (p *Plugin[A]) Install(ctx context.Context, target A, installed Set) (Set, error) {
	set := installed.Clone()
	err := p.install(ctx, target, set, make(map[string]bool))
	return set, err
}

func (p *Plugin[A]) install(ctx context.Context, target A, installed Set, visiting map[string]bool) error {
	logger := dispatch.WithLoggerFields(p.logger.WithContext(ctx), map[string]any{"plugin": p.name})

	if installed.Has(p.name) {
		logger.Debug("plugin %q already installed: skip", p.name)
		return nil
	}
	if visiting[p.name] {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "plugin dependency cycle", map[string]any{
			"plugin": p.name,
		})
	}
	visiting[p.name] = true
	defer delete(visiting, p.name)

	for _, dep := range p.dependencies {
		if err := dep.install(ctx, target, installed, visiting); err != nil {
			return err
		}
	}

	if err := p.run(ctx, target); err != nil {
		logger.Error("error installing plugin %s: %v", p.name, err)
		return errors.Wrap(err, errors.CategoryHandler, "plugin installation failed").
			WithTextCode("PLUGIN_INSTALL_FAILED").
			WithMetadata(map[string]any{"plugin": p.name})
	}

	installed.Add(p.name)
	logger.Info("plugin %s installed", p.name)
	return nil
}

func (p *Plugin[A]) run(ctx context.Context, target A) error {
	for _, h := range p.hooks[beforeInstall] {
		if err := h(ctx, p, target); err != nil {
			return err
		}
	}
	for _, s := range p.setups {
		if err := s(ctx, target); err != nil {
			return err
		}
	}
	for _, h := range p.hooks[afterInstall] {
		if err := h(ctx, p, target); err != nil {
			return err
		}
	}
	return nil
}

// Uninstall is not supported yet.
func (p *Plugin[A]) Uninstall(context.Context, A) error {
	return dispatch.NewError(dispatch.ErrNotImplemented, "uninstall is not yet implemented", map[string]any{
		"plugin": p.name,
	})
}

// Set holds the names of installed plugins.
type Set map[string]struct{}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Add(name string) { s[name] = struct{}{} }

// Clone returns a copy; a nil set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Names returns the members, sorted.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

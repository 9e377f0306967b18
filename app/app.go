// Package app composes a pipeline, an event registry and an endpoint into a
// request handler with lifecycle events and plugin installation.
package app

import (
	"context"
	"sync"

	"github.com/google/uuid"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/event"
	"github.com/goliatone/go-dispatch/pipeline"
	"github.com/goliatone/go-dispatch/plugin"
)

// Application handles requests by running its endpoint through the
// pipeline. Setup (middleware, subscribers, plugins) happens before Boot;
// Boot seals both registries and freezes the composed handler.
type Application[Req, Res any] struct {
	name        string
	config      pipeline.Config
	pipeline    *pipeline.Pipeline[Req, Res]
	subscribers *event.Registry
	endpoint    pipeline.Handler[Req, Res]
	logger      dispatch.Logger
	newID       func() uuid.UUID

	installMu sync.Mutex
	mu        sync.RWMutex
	installed plugin.Set
	handler   pipeline.Handler[Req, Res]
}

// Option configures an Application.
type Option[Req, Res any] func(*Application[Req, Res])

func WithName[Req, Res any](name string) Option[Req, Res] {
	return func(a *Application[Req, Res]) { a.name = name }
}

// WithConfig sets the configuration handed to every middleware.
func WithConfig[Req, Res any](cfg pipeline.Config) Option[Req, Res] {
	return func(a *Application[Req, Res]) { a.config = cfg }
}

func WithPipeline[Req, Res any](p *pipeline.Pipeline[Req, Res]) Option[Req, Res] {
	return func(a *Application[Req, Res]) {
		if p != nil {
			a.pipeline = p
		}
	}
}

func WithSubscribers[Req, Res any](reg *event.Registry) Option[Req, Res] {
	return func(a *Application[Req, Res]) {
		if reg != nil {
			a.subscribers = reg
		}
	}
}

func WithLogger[Req, Res any](logger dispatch.Logger) Option[Req, Res] {
	return func(a *Application[Req, Res]) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithIDGenerator overrides how lifecycle event ids are produced.
func WithIDGenerator[Req, Res any](fn func() uuid.UUID) Option[Req, Res] {
	return func(a *Application[Req, Res]) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// New builds an application around endpoint.
func New[Req, Res any](endpoint pipeline.Handler[Req, Res], opts ...Option[Req, Res]) (*Application[Req, Res], error) {
	if endpoint == nil {
		return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "application endpoint is required", nil)
	}
	a := &Application[Req, Res]{
		config:    pipeline.Config{},
		endpoint:  endpoint,
		newID:     uuid.New,
		installed: plugin.NewSet(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.pipeline == nil {
		a.pipeline = pipeline.New[Req, Res]()
	}
	if a.subscribers == nil {
		a.subscribers = event.NewRegistry(event.NewHierarchy())
	}
	a.logger = dispatch.WithLoggerFields(a.logger, map[string]any{"app": a.name})
	if err := defineKinds[Req, Res](a.subscribers.Hierarchy()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Application[Req, Res]) Name() string { return a.name }

func (a *Application[Req, Res]) Config() pipeline.Config { return a.config }

func (a *Application[Req, Res]) Pipeline() *pipeline.Pipeline[Req, Res] { return a.pipeline }

func (a *Application[Req, Res]) Subscribers() *event.Registry { return a.subscribers }

func (a *Application[Req, Res]) Logger() dispatch.Logger { return a.logger }

// Installed returns a copy of the installed plugin names.
func (a *Application[Req, Res]) Installed() plugin.Set {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.installed.Clone()
}

// Booted reports whether Boot ran.
func (a *Application[Req, Res]) Booted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handler != nil
}

// Install installs plugins into the application, skipping those already
// installed.
func (a *Application[Req, Res]) Install(ctx context.Context, plugins ...*plugin.Plugin[*Application[Req, Res]]) error {
	if a.Booted() {
		return dispatch.NewError(dispatch.ErrSealed, "application already booted", map[string]any{
			"app": a.name,
		})
	}
	a.installMu.Lock()
	defer a.installMu.Unlock()

	a.mu.RLock()
	current := a.installed
	a.mu.RUnlock()

	next, err := plugin.Install(ctx, a, current, plugins...)

	a.mu.Lock()
	a.installed = next
	a.mu.Unlock()
	return err
}

// Boot seals the pipeline and the subscribers and composes the handler
// used by Handle. Calling it again is a no-op.
func (a *Application[Req, Res]) Boot() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler != nil {
		return
	}
	a.pipeline.Seal()
	a.subscribers.Seal()
	a.handler = a.pipeline.Wrap(a.endpoint, a.config)
	a.logger.Info("application booted with %d middleware", a.pipeline.Len())
}

// Handle notifies RequestCreated, runs req through the pipeline and
// notifies ResponseCreated. Before Boot the pipeline is composed on every
// call. Subscriber and handler errors are returned unchanged; no
// ResponseCreated is emitted when the handler fails.
func (a *Application[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	var zero Res
	id := a.newID()

	if _, err := a.subscribers.Notify(ctx, RequestCreated[Req]{ID: id, App: a.name, Request: req}); err != nil {
		return zero, err
	}

	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h == nil {
		h = a.pipeline.Wrap(a.endpoint, a.config)
	}

	res, err := h(ctx, req)
	if err != nil {
		return res, err
	}

	if _, err := a.subscribers.Notify(ctx, ResponseCreated[Req, Res]{ID: id, App: a.name, Request: req, Response: res}); err != nil {
		return res, err
	}
	return res, nil
}

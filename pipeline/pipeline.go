package pipeline

import (
	"context"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/chain"
)

// Config is the application configuration handed to every middleware at
// composition time.
type Config map[string]any

// Handler processes a request.
type Handler[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Middleware wraps next into a new handler.
type Middleware[Req, Res any] func(next Handler[Req, Res], cfg Config) Handler[Req, Res]

type entry[Req, Res any] struct {
	id         string
	middleware Middleware[Req, Res]
}

// Pipeline composes ranked middleware around an innermost handler. The
// lowest rank ends up outermost.
type Pipeline[Req, Res any] struct {
	mu    sync.Mutex
	chain *chain.Chain[*entry[Req, Res]]
	byID  map[string]*registered[Req, Res]
}

type registered[Req, Res any] struct {
	rank  int
	entry *entry[Req, Res]
}

// New returns an empty pipeline.
func New[Req, Res any]() *Pipeline[Req, Res] {
	return &Pipeline[Req, Res]{
		chain: chain.New[*entry[Req, Res]](),
		byID:  make(map[string]*registered[Req, Res]),
	}
}

// Add registers middleware under id at rank.
func (p *Pipeline[Req, Res]) Add(id string, mw Middleware[Req, Res], rank int) error {
	if mw == nil {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "middleware cannot be nil", map[string]any{
			"id": id,
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[id]; exists {
		return dispatch.NewError(dispatch.ErrDuplicate, "middleware already registered", map[string]any{
			"id": id,
		})
	}

	e := &entry[Req, Res]{id: id, middleware: mw}
	if err := p.chain.Add(e, rank); err != nil {
		return err
	}
	p.byID[id] = &registered[Req, Res]{rank: rank, entry: e}
	return nil
}

// Remove unregisters the middleware stored under id.
func (p *Pipeline[Req, Res]) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.byID[id]
	if !ok {
		return dispatch.NewError(dispatch.ErrNotFound, "unknown middleware", map[string]any{
			"id": id,
		})
	}
	if err := p.chain.Remove(reg.entry, reg.rank); err != nil {
		return err
	}
	delete(p.byID, id)
	return nil
}

// Clear drops every middleware.
func (p *Pipeline[Req, Res]) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.chain.Clear(); err != nil {
		return err
	}
	p.byID = make(map[string]*registered[Req, Res])
	return nil
}

// Has reports whether id is registered.
func (p *Pipeline[Req, Res]) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byID[id]
	return ok
}

// IDs returns middleware ids from outermost to innermost.
func (p *Pipeline[Req, Res]) IDs() []string {
	var ids []string
	for _, e := range p.chain.All() {
		ids = append(ids, e.id)
	}
	return ids
}

// Len returns the number of registered middleware.
func (p *Pipeline[Req, Res]) Len() int {
	return p.chain.Len()
}

// Seal freezes the pipeline; Add, Remove and Clear fail afterwards.
func (p *Pipeline[Req, Res]) Seal() {
	p.chain.Seal()
}

// Wrap composes the registered middleware around innermost. An empty
// pipeline returns innermost itself. The composition works on a snapshot,
// so handlers already built are not affected by later mutation.
func (p *Pipeline[Req, Res]) Wrap(innermost Handler[Req, Res], cfg Config) Handler[Req, Res] {
	if p.chain.Len() == 0 {
		return innermost
	}
	h := innermost
	for _, e := range p.chain.Backward() {
		h = e.middleware(h, cfg)
	}
	return h
}

package event

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
)

// Subscriber reacts to an event. A non-nil result stops dispatch and is
// returned by Notify.
type Subscriber func(ctx context.Context, evt Event) (any, error)

// Subscription is one guarded subscriber stored under a single kind.
type Subscription struct {
	registry   *Registry
	kind       Kind
	subscriber Subscriber
	guards     constraint.Set[Event]
}

// Kind returns the kind the subscription is stored under.
func (s *Subscription) Kind() Kind {
	return s.kind
}

// Check evaluates the subscription guards against evt.
func (s *Subscription) Check(evt Event) error {
	if len(s.guards) == 0 {
		return nil
	}
	return s.guards.Evaluate(evt, nil)
}

// Unsubscribe removes the subscription from its registry. It fails with
// ErrSealed once the registry is sealed and ErrNotFound when already removed.
func (s *Subscription) Unsubscribe() error {
	if s.registry == nil {
		return dispatch.NewError(dispatch.ErrNotFound, "subscription is not registered", map[string]any{
			"kind": s.kind,
		})
	}
	return s.registry.Remove(s.kind, s)
}

// Registry maps event kinds to sets of guarded subscriptions.
type Registry struct {
	mu        sync.RWMutex
	hierarchy *Hierarchy
	strict    bool
	subs      map[Kind]map[*Subscription]struct{}
	sealed    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrict toggles subscribe-time validation. Strict is the default.
func WithStrict(strict bool) Option {
	return func(r *Registry) {
		r.strict = strict
	}
}

// NewRegistry creates a registry resolving lineages through h. A nil h
// gets a fresh hierarchy holding only Root.
func NewRegistry(h *Hierarchy, opts ...Option) *Registry {
	if h == nil {
		h = NewHierarchy()
	}
	r := &Registry{
		hierarchy: h,
		strict:    true,
		subs:      make(map[Kind]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Hierarchy returns the kind table used for lineage walks.
func (r *Registry) Hierarchy() *Hierarchy {
	return r.hierarchy
}

// Strict reports whether subscribe-time validation is enabled.
func (r *Registry) Strict() bool {
	return r.strict
}

// Subscribe registers fn under kind, gated by guards.
func (r *Registry) Subscribe(kind Kind, fn Subscriber, guards ...constraint.Predicate[Event]) (*Subscription, error) {
	return r.Add(kind, fn, guards)
}

// Add registers fn under kind with an optional guard set.
func (r *Registry) Add(kind Kind, fn Subscriber, guards constraint.Set[Event]) (*Subscription, error) {
	if fn == nil {
		return nil, invalidSubscriber(kind, "subscriber cannot be nil")
	}
	if r.strict {
		if err := r.checkKind(kind); err != nil {
			return nil, err
		}
	}
	if len(guards) == 0 {
		guards = nil
	}
	sub := &Subscription{
		registry:   r,
		kind:       kind,
		subscriber: fn,
		guards:     guards,
	}
	if err := r.insert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeFunc registers a subscriber that accepts a concrete event type.
// In strict mode E must accept the Go type recorded for kind and for every
// concrete descendant of kind: either that exact type or an interface all of
// them implement. An event reaching a strict subscriber with a type E does
// not accept, for a kind defined after subscribing, fails with
// ErrInvalidSubscriber. Non-strict subscribers skip such events.
func SubscribeFunc[E Event](r *Registry, kind Kind, fn func(ctx context.Context, evt E) (any, error), guards ...constraint.Predicate[Event]) (*Subscription, error) {
	if fn == nil {
		return nil, invalidSubscriber(kind, "subscriber cannot be nil")
	}
	strict := r.strict
	if strict {
		if err := r.checkKind(kind); err != nil {
			return nil, err
		}
		if err := r.checkParam(kind, reflect.TypeFor[E]()); err != nil {
			return nil, err
		}
	}
	return r.Add(kind, func(ctx context.Context, evt Event) (any, error) {
		typed, ok := evt.(E)
		if !ok {
			if strict {
				return nil, invalidSubscriber(kind, fmt.Sprintf("subscriber for %s cannot accept %T", reflect.TypeFor[E](), evt))
			}
			return nil, nil
		}
		return fn(ctx, typed)
	}, guards)
}

func (r *Registry) insert(sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return dispatch.NewError(dispatch.ErrSealed, "subscribers are sealed", map[string]any{
			"kind": sub.kind,
		})
	}
	set, ok := r.subs[sub.kind]
	if !ok {
		set = make(map[*Subscription]struct{})
		r.subs[sub.kind] = set
	}
	set[sub] = struct{}{}
	return nil
}

// Remove deletes sub from kind.
func (r *Registry) Remove(kind Kind, sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return dispatch.NewError(dispatch.ErrSealed, "subscribers are sealed", map[string]any{
			"kind": kind,
		})
	}
	set, ok := r.subs[kind]
	if !ok {
		return dispatch.NewError(dispatch.ErrNotFound, "no subscribers registered for kind", map[string]any{
			"kind": kind,
		})
	}
	if _, ok := set[sub]; !ok {
		return dispatch.NewError(dispatch.ErrNotFound, "subscription not registered for kind", map[string]any{
			"kind": kind,
		})
	}
	delete(set, sub)
	return nil
}

// Clear drops every subscription stored under kind. The kind stays known.
func (r *Registry) Clear(kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return dispatch.NewError(dispatch.ErrSealed, "subscribers are sealed", map[string]any{
			"kind": kind,
		})
	}
	if _, ok := r.subs[kind]; !ok {
		return dispatch.NewError(dispatch.ErrNotFound, "no subscribers registered for kind", map[string]any{
			"kind": kind,
		})
	}
	r.subs[kind] = make(map[*Subscription]struct{})
	return nil
}

// Has reports whether kind was ever registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[kind]
	return ok
}

// Get returns the subscriptions stored under kind, in no particular order.
func (r *Registry) Get(kind Kind) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(kind)
}

// Kinds returns every registered kind, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.subs))
	for k := range r.subs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Seal freezes the registry; Subscribe, Remove and Clear fail afterwards.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Notify walks the lineage of evt, most derived kind first. Subscribers
// whose guards fail are skipped. The first non-nil result stops dispatch
// and is returned. Subscriber errors and non-violation guard errors are
// returned unchanged. Order among subscribers of the same kind is not
// defined.
func (r *Registry) Notify(ctx context.Context, evt Event) (any, error) {
	if evt == nil {
		return nil, nil
	}
	for _, kind := range r.hierarchy.Lineage(evt.Kind()) {
		r.mu.RLock()
		subs := r.snapshot(kind)
		r.mu.RUnlock()

		for _, sub := range subs {
			if err := sub.Check(evt); err != nil {
				if constraint.IsViolation(err) {
					continue
				}
				return nil, err
			}
			result, err := sub.subscriber(ctx, evt)
			if err != nil {
				return nil, err
			}
			if result != nil {
				return result, nil
			}
		}
	}
	return nil, nil
}

func (r *Registry) snapshot(kind Kind) []*Subscription {
	set := r.subs[kind]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Subscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (r *Registry) checkKind(kind Kind) error {
	if !r.hierarchy.Has(kind) {
		return invalidSubscriber(kind, "kind is not part of the event hierarchy")
	}
	if r.hierarchy.IsAbstract(kind) {
		return invalidSubscriber(kind, "cannot subscribe to an abstract kind")
	}
	return nil
}

// checkParam verifies that param accepts the recorded type of kind and of
// every concrete kind below it, since Notify reaches kind from all of them.
func (r *Registry) checkParam(kind Kind, param reflect.Type) error {
	if r.hierarchy.Type(kind) == nil {
		return invalidSubscriber(kind, "kind has no recorded type")
	}
	pending := []Kind{kind}
	for len(pending) > 0 {
		k := pending[0]
		pending = append(pending[1:], r.hierarchy.Children(k)...)

		actual := r.hierarchy.Type(k)
		if actual == nil || accepts(param, actual) {
			continue
		}
		if k != kind {
			return invalidSubscriber(kind, fmt.Sprintf("argument %s does not accept %s carried by descendant kind %s", param, actual, k))
		}
		return invalidSubscriber(kind, fmt.Sprintf("argument should accept %s and not %s", actual, param))
	}
	return nil
}

func accepts(param, actual reflect.Type) bool {
	if param.Kind() == reflect.Interface {
		return actual.Implements(param)
	}
	return actual == param
}

func invalidSubscriber(kind Kind, msg string) error {
	return dispatch.NewError(dispatch.ErrInvalidSubscriber, msg, map[string]any{
		"kind": kind,
	})
}

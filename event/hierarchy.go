package event

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	dispatch "github.com/goliatone/go-dispatch"
)

// Kind identifies an event shape and its place in a Hierarchy.
type Kind string

// Root is the abstract root of every hierarchy. It never appears in a lineage.
const Root Kind = "event"

// Event is implemented by every value passed to Registry.Notify.
type Event interface {
	Kind() Kind
}

type node struct {
	kind     Kind
	parent   Kind
	abstract bool
	typ      reflect.Type
	children []Kind
}

// Hierarchy is a parent-pointer table of event kinds, built during
// application bootstrap.
type Hierarchy struct {
	mu    sync.RWMutex
	nodes map[Kind]*node
}

// NewHierarchy returns a hierarchy containing only Root.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		nodes: map[Kind]*node{
			Root: {kind: Root, abstract: true},
		},
	}
}

// Define adds a concrete kind under parent. prototype records the Go type
// that instances of kind carry; it is used by strict subscriber validation.
func (h *Hierarchy) Define(kind, parent Kind, prototype Event) error {
	if prototype == nil {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "concrete kinds need a prototype", map[string]any{
			"kind": kind,
		})
	}
	if got := prototype.Kind(); got != kind {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "prototype reports a different kind", map[string]any{
			"kind":      kind,
			"prototype": got,
		})
	}
	return h.define(kind, parent, false, reflect.TypeOf(prototype))
}

// DefineAbstract adds a kind that groups others but cannot be subscribed to
// in strict mode.
func (h *Hierarchy) DefineAbstract(kind, parent Kind) error {
	return h.define(kind, parent, true, nil)
}

// MustDefine is Define for bootstrap code; it panics on error.
func (h *Hierarchy) MustDefine(kind, parent Kind, prototype Event) *Hierarchy {
	if err := h.Define(kind, parent, prototype); err != nil {
		panic(err)
	}
	return h
}

func (h *Hierarchy) define(kind, parent Kind, abstract bool, typ reflect.Type) error {
	if strings.TrimSpace(string(kind)) == "" {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "kind cannot be empty", nil)
	}
	if parent == "" {
		parent = Root
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[kind]; exists {
		return dispatch.NewError(dispatch.ErrDuplicate, "kind already defined", map[string]any{
			"kind": kind,
		})
	}
	p, ok := h.nodes[parent]
	if !ok {
		return dispatch.NewError(dispatch.ErrNotFound, "unknown parent kind", map[string]any{
			"kind":   kind,
			"parent": parent,
		})
	}
	h.nodes[kind] = &node{kind: kind, parent: parent, abstract: abstract, typ: typ}
	p.children = append(p.children, kind)
	return nil
}

// Has reports whether kind is defined.
func (h *Hierarchy) Has(kind Kind) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[kind]
	return ok
}

// IsAbstract reports whether kind is defined as abstract. Root is abstract.
func (h *Hierarchy) IsAbstract(kind Kind) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.nodes[kind]
	return ok && n.abstract
}

// Parent returns the parent of kind.
func (h *Hierarchy) Parent(kind Kind) (Kind, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.nodes[kind]
	if !ok || kind == Root {
		return "", false
	}
	return n.parent, true
}

// Children returns the direct children of kind, sorted.
func (h *Hierarchy) Children(kind Kind) []Kind {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.nodes[kind]
	if !ok {
		return nil
	}
	out := make([]Kind, len(n.children))
	copy(out, n.children)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Type returns the Go type recorded for a concrete kind.
func (h *Hierarchy) Type(kind Kind) reflect.Type {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n, ok := h.nodes[kind]; ok {
		return n.typ
	}
	return nil
}

// Lineage lists kind and its ancestors, most derived first, excluding Root.
// An undefined kind has the single-element lineage [kind].
func (h *Hierarchy) Lineage(kind Kind) []Kind {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if kind == Root {
		return nil
	}
	if _, ok := h.nodes[kind]; !ok {
		return []Kind{kind}
	}
	var lineage []Kind
	for k := kind; k != Root; {
		n, ok := h.nodes[k]
		if !ok {
			break
		}
		lineage = append(lineage, k)
		k = n.parent
	}
	return lineage
}

// IsA reports whether ancestor appears in the lineage of kind.
func (h *Hierarchy) IsA(kind, ancestor Kind) bool {
	if ancestor == Root {
		return h.Has(kind)
	}
	for _, k := range h.Lineage(kind) {
		if k == ancestor {
			return true
		}
	}
	return false
}

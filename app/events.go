package app

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/event"
)

const (
	KindLifecycle       event.Kind = "app"
	KindRequestCreated  event.Kind = "app.request.created"
	KindResponseCreated event.Kind = "app.response.created"
)

// RequestCreated is emitted before a request enters the pipeline.
type RequestCreated[Req any] struct {
	ID      uuid.UUID
	App     string
	Request Req
}

func (RequestCreated[Req]) Kind() event.Kind { return KindRequestCreated }

// ResponseCreated is emitted once the pipeline produced a response.
type ResponseCreated[Req, Res any] struct {
	ID       uuid.UUID
	App      string
	Request  Req
	Response Res
}

func (ResponseCreated[Req, Res]) Kind() event.Kind { return KindResponseCreated }

// defineKinds registers the lifecycle kinds on h. Applications sharing a
// hierarchy must agree on their request and response types.
func defineKinds[Req, Res any](h *event.Hierarchy) error {
	if !h.Has(KindLifecycle) {
		if err := h.DefineAbstract(KindLifecycle, event.Root); err != nil {
			return err
		}
	}
	if err := define(h, KindRequestCreated, RequestCreated[Req]{}); err != nil {
		return err
	}
	return define(h, KindResponseCreated, ResponseCreated[Req, Res]{})
}

func define(h *event.Hierarchy, kind event.Kind, proto event.Event) error {
	if !h.Has(kind) {
		return h.Define(kind, KindLifecycle, proto)
	}
	if bound := h.Type(kind); bound != reflect.TypeOf(proto) {
		return dispatch.NewError(dispatch.ErrInvalidDefinition, "lifecycle kind is bound to another application type", map[string]any{
			"kind":  kind,
			"bound": fmt.Sprint(bound),
		})
	}
	return nil
}

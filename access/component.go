package access

import "github.com/goliatone/go-dispatch/pipeline"

// DefaultID is the pipeline id used by Filters when Name is empty.
const DefaultID = "access"

// Filters bundles a filter list as a pipeline component.
type Filters[Req, Res any] struct {
	Name string
	List []Filter[Req, Res]
}

func (f Filters[Req, Res]) ID() string {
	if f.Name == "" {
		return DefaultID
	}
	return f.Name
}

func (f Filters[Req, Res]) Wrap(next pipeline.Handler[Req, Res], cfg pipeline.Config) pipeline.Handler[Req, Res] {
	return Filtering(f.List...)(next, cfg)
}

// Package metrics instruments pipelines and workflows.
package metrics

import (
	"context"
	"time"

	"github.com/goliatone/go-dispatch/event"
	"github.com/goliatone/go-dispatch/pipeline"
	"github.com/goliatone/go-dispatch/workflow"
)

// Recorder receives handler timings and outcomes keyed by name.
type Recorder interface {
	RecordDuration(name string, duration time.Duration)
	RecordError(name string)
	RecordSuccess(name string)
}

// TransitionRecorder receives applied workflow transitions.
type TransitionRecorder interface {
	RecordTransition(workflow, action, origin, target string)
}

// Middleware records the duration and outcome of every call to next under
// name. It is meant to sit at the outermost rank.
func Middleware[Req, Res any](name string, rec Recorder) pipeline.Middleware[Req, Res] {
	return func(next pipeline.Handler[Req, Res], _ pipeline.Config) pipeline.Handler[Req, Res] {
		if rec == nil {
			return next
		}
		return func(ctx context.Context, req Req) (Res, error) {
			start := time.Now()
			res, err := next(ctx, req)
			rec.RecordDuration(name, time.Since(start))
			if err != nil {
				rec.RecordError(name)
			} else {
				rec.RecordSuccess(name)
			}
			return res, err
		}
	}
}

// RecordTransitions subscribes rec to the transition events of wf.
func RecordTransitions[S workflow.State, T workflow.Stateful[S]](wf *workflow.Workflow[S, T], rec TransitionRecorder) (*event.Subscription, error) {
	return wf.OnTransition(func(_ context.Context, evt workflow.TransitionEvent[S, T]) (any, error) {
		tr := evt.Transition
		rec.RecordTransition(evt.Workflow, tr.Action.Name, tr.Origin.String(), tr.Target.String())
		return nil, nil
	})
}

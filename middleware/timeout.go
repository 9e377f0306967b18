package middleware

import (
	"context"
	"time"

	"github.com/goliatone/go-dispatch/pipeline"
)

// Timeout bounds each call to next with d. A non-positive d disables it.
func Timeout[Req, Res any](d time.Duration) pipeline.Middleware[Req, Res] {
	return func(next pipeline.Handler[Req, Res], _ pipeline.Config) pipeline.Handler[Req, Res] {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req Req) (Res, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// Deadline bounds each call to next with the absolute time at.
func Deadline[Req, Res any](at time.Time) pipeline.Middleware[Req, Res] {
	return func(next pipeline.Handler[Req, Res], _ pipeline.Config) pipeline.Handler[Req, Res] {
		if at.IsZero() {
			return next
		}
		return func(ctx context.Context, req Req) (Res, error) {
			ctx, cancel := context.WithDeadline(ctx, at)
			defer cancel()
			return next(ctx, req)
		}
	}
}

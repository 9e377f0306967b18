// Package access provides request filters that run before a handler and may
// answer in its place, such as authentication gates or public-path bypasses.
package access

import (
	"context"
	"path"
	"strings"

	"github.com/goliatone/go-dispatch/pipeline"
)

// Filter inspects req before next runs. Returning handled=true stops the
// filter chain and res becomes the response. A non-nil error also stops it.
type Filter[Req, Res any] func(ctx context.Context, next pipeline.Handler[Req, Res], req Req) (res Res, handled bool, err error)

// Deny builds the response returned when a filter refuses a request, for
// example a redirect to a login page.
type Deny[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Filtering returns middleware that asks each filter in order and answers
// with the first handled response. When no filter handles the request next
// is called.
func Filtering[Req, Res any](filters ...Filter[Req, Res]) pipeline.Middleware[Req, Res] {
	list := make([]Filter[Req, Res], 0, len(filters))
	for _, f := range filters {
		if f != nil {
			list = append(list, f)
		}
	}
	return func(next pipeline.Handler[Req, Res], _ pipeline.Config) pipeline.Handler[Req, Res] {
		return func(ctx context.Context, req Req) (Res, error) {
			for _, f := range list {
				res, handled, err := f(ctx, next, req)
				if err != nil {
					var zero Res
					return zero, err
				}
				if handled {
					return res, nil
				}
			}
			return next(ctx, req)
		}
	}
}

// Bypass hands requests whose path lies under one of prefixes straight to
// next, skipping the filters that follow.
func Bypass[Req, Res any](pathOf func(Req) string, prefixes ...string) Filter[Req, Res] {
	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		clean = append(clean, path.Clean("/"+p))
	}
	return func(ctx context.Context, next pipeline.Handler[Req, Res], req Req) (Res, bool, error) {
		p := path.Clean("/" + pathOf(req))
		for _, prefix := range clean {
			if under(p, prefix) {
				res, err := next(ctx, req)
				return res, true, err
			}
		}
		var zero Res
		return zero, false, nil
	}
}

// Secured denies every request for which authenticated reports false.
func Secured[Req, Res any](authenticated func(Req) bool, deny Deny[Req, Res]) Filter[Req, Res] {
	return func(ctx context.Context, _ pipeline.Handler[Req, Res], req Req) (Res, bool, error) {
		if !authenticated(req) {
			res, err := deny(ctx, req)
			return res, true, err
		}
		var zero Res
		return zero, false, nil
	}
}

// Gate denies requests failing check, except requests to target itself
// (the page that lets the user satisfy the check), which go to next.
func Gate[Req, Res any](target string, pathOf func(Req) string, check func(Req) bool, deny Deny[Req, Res]) Filter[Req, Res] {
	return func(ctx context.Context, next pipeline.Handler[Req, Res], req Req) (Res, bool, error) {
		if pathOf(req) == target {
			res, err := next(ctx, req)
			return res, true, err
		}
		if !check(req) {
			res, err := deny(ctx, req)
			return res, true, err
		}
		var zero Res
		return zero, false, nil
	}
}

func under(p, prefix string) bool {
	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

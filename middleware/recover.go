// Package middleware holds general purpose pipeline middleware: panic
// recovery, retries with backoff and call timeouts.
package middleware

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/goliatone/go-errors"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/pipeline"
)

const ErrCodePanic = "PANIC_RECOVERED"

// Recover turns a panic in next into an error and logs the cleaned stack.
func Recover[Req, Res any](logger dispatch.Logger) pipeline.Middleware[Req, Res] {
	logger = dispatch.NormalizeLogger(logger)
	return func(next pipeline.Handler[Req, Res], _ pipeline.Config) pipeline.Handler[Req, Res] {
		return func(ctx context.Context, req Req) (res Res, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				stack := make([]byte, 8096)
				stack = cleanStack(stack[:runtime.Stack(stack, false)])
				logger.WithContext(ctx).Error("recovered from panic: %v\n%s", r, stack)

				var zero Res
				res = zero
				err = panicError(r)
			}()
			return next(ctx, req)
		}
	}
}

func panicError(r any) error {
	msg := fmt.Sprintf("panic: %v", r)
	if cause, ok := r.(error); ok {
		return errors.Wrap(cause, errors.CategoryInternal, msg).
			WithTextCode(ErrCodePanic)
	}
	return errors.New(msg, errors.CategoryInternal).
		WithTextCode(ErrCodePanic).
		WithMetadata(map[string]any{"panic": r})
}

// cleanStack drops the frames above the panic call.
func cleanStack(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			if i+2 < len(lines) {
				lines = lines[i+2:]
			}
			break
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

package middleware

import (
	"context"
	"errors"
	"math"
	"time"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/constraint"
	"github.com/goliatone/go-dispatch/pipeline"
)

// RetryStrategy decides how long to wait before the next attempt. attempt
// starts at 0.
type RetryStrategy interface {
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelay retries immediately.
type NoDelay struct{}

func (NoDelay) SleepDuration(int, error) time.Duration { return 0 }

// ExponentialBackoff waits Base * Factor^attempt, capped at Max when set.
type ExponentialBackoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

func (e ExponentialBackoff) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Duration(float64(e.Base) * math.Pow(e.Factor, float64(attempt)))
	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}

type retryConfig struct {
	strategy  RetryStrategy
	retryable func(error) bool
	logger    dispatch.Logger
}

// RetryOption configures Retry.
type RetryOption func(*retryConfig)

func WithStrategy(s RetryStrategy) RetryOption {
	return func(c *retryConfig) {
		if s != nil {
			c.strategy = s
		}
	}
}

// WithRetryable overrides which errors are worth another attempt.
func WithRetryable(fn func(error) bool) RetryOption {
	return func(c *retryConfig) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

func WithLogger(logger dispatch.Logger) RetryOption {
	return func(c *retryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Retry calls next up to maxRetries+1 times until it succeeds. Constraint
// violations and context errors are not retried by default. The last error
// is returned unchanged.
func Retry[Req, Res any](maxRetries int, opts ...RetryOption) pipeline.Middleware[Req, Res] {
	cfg := retryConfig{
		strategy:  NoDelay{},
		retryable: defaultRetryable,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.logger = dispatch.NormalizeLogger(cfg.logger)
	if maxRetries < 0 {
		maxRetries = 0
	}

	return func(next pipeline.Handler[Req, Res], _ pipeline.Config) pipeline.Handler[Req, Res] {
		return func(ctx context.Context, req Req) (Res, error) {
			var (
				res Res
				err error
			)
			for attempt := 0; attempt <= maxRetries; attempt++ {
				res, err = next(ctx, req)
				if err == nil || attempt == maxRetries || !cfg.retryable(err) {
					return res, err
				}
				cfg.logger.WithContext(ctx).Debug("attempt %d of %d failed: %v", attempt+1, maxRetries+1, err)

				if delay := cfg.strategy.SleepDuration(attempt, err); delay > 0 {
					timer := time.NewTimer(delay)
					select {
					case <-ctx.Done():
						timer.Stop()
						return res, err
					case <-timer.C:
					}
				}
			}
			return res, err
		}
	}
}

func defaultRetryable(err error) bool {
	if constraint.IsViolation(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

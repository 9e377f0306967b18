package schedule

import (
	"fmt"
	"time"

	dispatch "github.com/goliatone/go-dispatch"
)

// LogLevel controls how much of the cron engine output reaches the logger.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

// Parser selects the cron expression dialect.
type Parser int

const (
	// DefaultParser accepts five fields plus descriptors such as @hourly.
	DefaultParser Parser = iota
	// SecondsParser expects a leading seconds field.
	SecondsParser
)

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithLogger(logger dispatch.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithLogLevel(level LogLevel) Option {
	return func(s *Scheduler) {
		s.logLevel = level
	}
}

// WithErrorHandler receives factory, subscriber and panic errors raised
// while emitting.
func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		if handler != nil {
			s.errorHandler = handler
		}
	}
}

func WithParser(p Parser) Option {
	return func(s *Scheduler) {
		s.parser = p
	}
}

// WithClock overrides the time passed to factories.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// cronLogger adapts dispatch.Logger to the cron engine logger.
type cronLogger struct {
	logger dispatch.Logger
	level  LogLevel
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if l.level >= LogLevelInfo {
		l.logger.Info(msg + formatPairs(keysAndValues))
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	if l.level >= LogLevelError {
		l.logger.Error("%s: %v%s", msg, err, formatPairs(keysAndValues))
	}
}

// panicReporter forwards recovered job panics to the error handler.
type panicReporter struct {
	handler func(error)
}

func (panicReporter) Info(string, ...any) {}

func (p panicReporter) Error(err error, msg string, _ ...any) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	p.handler(err)
}

func formatPairs(kv []any) string {
	out := ""
	for i := 0; i+1 < len(kv); i += 2 {
		out += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return out
}

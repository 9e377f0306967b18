// Package schedule emits events into an event registry on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	rcron "github.com/robfig/cron/v3"

	dispatch "github.com/goliatone/go-dispatch"
	"github.com/goliatone/go-dispatch/event"
)

// Factory builds the event emitted for a tick at the given time. Returning
// a nil event skips the tick.
type Factory func(ctx context.Context, at time.Time) (event.Event, error)

// Scheduler notifies events built by factories through a registry, either
// on a cron expression or once at a given time.
type Scheduler struct {
	registry     *event.Registry
	location     *time.Location
	parser       Parser
	logger       dispatch.Logger
	logLevel     LogLevel
	errorHandler func(error)
	now          func() time.Time

	cron *rcron.Cron

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	nextID  int64
	handles map[int64]*handle
}

// NewScheduler creates a scheduler emitting through reg.
func NewScheduler(reg *event.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: reg,
		location: time.Local,
		parser:   DefaultParser,
		logLevel: LogLevelError,
		now:      time.Now,
		handles:  make(map[int64]*handle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = dispatch.WithLoggerFields(s.logger, map[string]any{"component": "schedule"})
	if s.errorHandler == nil {
		s.errorHandler = func(err error) {
			s.logger.Error("scheduled emission failed: %v", err)
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = rcron.New(s.build()...)
	return s
}

// Emit notifies the event built by factory each time expr fires.
func (s *Scheduler) Emit(expr string, factory Factory) (Handle, error) {
	if expr == "" {
		return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "cron expression cannot be empty", nil)
	}
	if factory == nil {
		return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "event factory cannot be nil", map[string]any{
			"expression": expr,
		})
	}

	h := s.newHandle()
	entryID, err := s.cron.AddFunc(expr, func() { s.run(h, factory) })
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid cron expression").
			WithTextCode(dispatch.ErrCodeInvalidDefinition).
			WithMetadata(map[string]any{"expression": expr})
	}
	h.entryID = int(entryID)
	s.store(h)
	return h, nil
}

// EmitAt notifies the event built by factory once, at the given time.
func (s *Scheduler) EmitAt(at time.Time, factory Factory) (Handle, error) {
	if factory == nil {
		return nil, dispatch.NewError(dispatch.ErrInvalidDefinition, "event factory cannot be nil", nil)
	}
	h := s.newHandle()
	s.store(h)

	go func() {
		wait := time.Until(at)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-h.Done():
			return
		}

		s.run(h, factory)
		s.remove(h.id)
		if err := h.Err(); err != nil {
			h.finish(StatusFailed, err)
			return
		}
		h.finish(StatusCompleted, nil)
	}()
	return h, nil
}

// EmitAfter is EmitAt relative to now.
func (s *Scheduler) EmitAfter(delay time.Duration, factory Factory) (Handle, error) {
	if delay < 0 {
		delay = 0
	}
	return s.EmitAt(time.Now().Add(delay), factory)
}

// Len returns the number of live handles.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Start begins running cron entries. Emissions use a context derived from
// ctx until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	return nil
}

// Stop halts the cron engine, waits for running emissions and marks every
// live handle as stopped.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	s.mu.Lock()
	s.cancel()
	handles := s.handles
	s.handles = make(map[int64]*handle)
	s.mu.Unlock()

	for _, h := range handles {
		if h.entryID > 0 {
			s.cron.Remove(rcron.EntryID(h.entryID))
		}
		h.finish(StatusStopped, nil)
	}

	if ctx == nil {
		return nil
	}
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one emission for h.
func (s *Scheduler) run(h *handle, factory Factory) {
	if !h.begin() {
		return
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	err := s.emit(ctx, factory)
	h.end(err)
	if err != nil {
		s.errorHandler(err)
	}
}

func (s *Scheduler) emit(ctx context.Context, factory Factory) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in scheduled emission: %v", r)
		}
	}()

	evt, err := factory(ctx, s.now().In(s.location))
	if err != nil {
		return err
	}
	if evt == nil || s.registry == nil {
		return nil
	}
	_, err = s.registry.Notify(ctx, evt)
	return err
}

func (s *Scheduler) newHandle() *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &handle{
		scheduler: s,
		id:        s.nextID,
		status:    StatusScheduled,
		done:      make(chan struct{}),
	}
}

func (s *Scheduler) store(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.id] = h
}

func (s *Scheduler) remove(id int64) {
	s.mu.Lock()
	h := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()

	if h != nil && h.entryID > 0 {
		s.cron.Remove(rcron.EntryID(h.entryID))
	}
}

func (s *Scheduler) build() []rcron.Option {
	opts := []rcron.Option{rcron.WithLocation(s.location)}

	if s.parser == SecondsParser {
		opts = append(opts, rcron.WithSeconds())
	}

	opts = append(opts, rcron.WithChain(rcron.Recover(panicReporter{handler: s.errorHandler})))

	if s.logLevel > LogLevelSilent {
		opts = append(opts, rcron.WithLogger(cronLogger{logger: s.logger, level: s.logLevel}))
	} else {
		opts = append(opts, rcron.WithLogger(rcron.DiscardLogger))
	}
	return opts
}

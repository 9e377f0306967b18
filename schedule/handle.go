package schedule

import "sync"

// Status reports the lifecycle state of a Handle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether no further emission will happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// Handle controls one scheduled emission.
type Handle interface {
	ID() int64
	Cancel()
	Status() Status
	// Err returns the error of the last run, if any.
	Err() error
	// Runs returns how many times the emission ran.
	Runs() int
	Done() <-chan struct{}
}

type handle struct {
	scheduler *Scheduler
	id        int64
	entryID   int
	done      chan struct{}

	mu     sync.RWMutex
	status Status
	err    error
	runs   int
	once   sync.Once
}

func (h *handle) ID() int64 { return h.id }

func (h *handle) Cancel() {
	h.once.Do(func() {
		if h.scheduler != nil {
			h.scheduler.remove(h.id)
		}
		h.finish(StatusCanceled, nil)
	})
}

func (h *handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *handle) Runs() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.runs
}

func (h *handle) Done() <-chan struct{} { return h.done }

// begin marks a run as started. It returns false when the handle is
// already terminal.
func (h *handle) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return false
	}
	h.status = StatusRunning
	return true
}

// end records the outcome of a run and moves the handle back to idle.
func (h *handle) end(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs++
	h.err = err
	if !h.status.Terminal() {
		h.status = StatusIdle
	}
}

func (h *handle) finish(status Status, err error) {
	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		return
	}
	h.status = status
	if err != nil {
		h.err = err
	}
	h.mu.Unlock()
	close(h.done)
}

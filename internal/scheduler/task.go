package scheduler

import (
	"sync"

	"eikotrace/internal/domain"
)

// RunFunc is the body of a task. It receives the cooperative checkpoint
// it must call between batches of work and returns either a result or
// an error (domain.ErrCancelled for a user abort).
type RunFunc func(cp domain.Checkpoint) (*domain.JobResult, error)

// Task is the handle returned by Submit. Events delivers zero or more
// progress events with non-decreasing percent, then exactly one
// terminal Result or Error event, after which the channel is closed.
type Task struct {
	id   domain.TaskID
	kind domain.JobKind
	pool *Pool

	events   chan domain.Event
	cancelCh chan struct{}
	cancel   sync.Once
	gate     gate

	mu          sync.Mutex
	status      domain.TaskStatus
	lastPercent float64
}

func (t *Task) ID() domain.TaskID { return t.id }

func (t *Task) Kind() domain.JobKind { return t.kind }

// Events is the task's response stream.
func (t *Task) Events() <-chan domain.Event { return t.events }

func (t *Task) Status() domain.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress reports the last observed percent in [0,100].
func (t *Task) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPercent
}

// setStatus moves the task to s unless it already reached a terminal
// state.
func (t *Task) setStatus(s domain.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case domain.StatusCancelled, domain.StatusCompleted, domain.StatusFailed:
		return
	}
	t.status = s
}

// signalCancel closes the cancel channel and wakes a paused task so the
// next checkpoint observes the abort.
func (t *Task) signalCancel() {
	t.cancel.Do(func() {
		close(t.cancelCh)
		t.gate.release()
	})
	t.setStatus(domain.StatusCancelled)
}

// emitProgress delivers a best-effort progress event. Percent is
// clamped to be non-decreasing; a full buffer drops the event rather
// than blocking the execution unit.
func (t *Task) emitProgress(percent float64, message string) {
	t.mu.Lock()
	if percent < t.lastPercent {
		percent = t.lastPercent
	}
	t.lastPercent = percent
	t.mu.Unlock()

	select {
	case t.events <- domain.Event{Type: domain.EventProgress, Percent: percent, Message: message}:
	default:
	}
}

// emitTerminal enqueues the final event, evicting the oldest queued
// progress event if the buffer is full, and closes the stream. Only the
// owning unit calls this, exactly once.
func (t *Task) emitTerminal(ev domain.Event) {
	for {
		select {
		case t.events <- ev:
			close(t.events)
			return
		default:
			select {
			case <-t.events:
			default:
			}
		}
	}
}

// gate is the pause/resume latch a task blocks on at its checkpoints.
// There is no timeout: a task paused forever blocks its unit's slot
// forever, which is a documented limitation rather than a bug.
type gate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	paused   bool
	released bool
}

func (g *gate) init() {
	g.cond = sync.NewCond(&g.mu)
}

func (g *gate) wait() {
	g.mu.Lock()
	for g.paused && !g.released {
		g.cond.Wait()
	}
	g.mu.Unlock()
}

func (g *gate) setPaused(paused bool) {
	g.mu.Lock()
	g.paused = paused
	if !paused {
		g.cond.Broadcast()
	}
	g.mu.Unlock()
}

// release permanently unblocks the gate; used on cancellation and
// shutdown.
func (g *gate) release() {
	g.mu.Lock()
	g.released = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

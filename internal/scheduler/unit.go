package scheduler

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
)

// unitQueueDepth bounds how many assignments a unit can hold before
// Submit reports pool exhaustion.
const unitQueueDepth = 64

// execution pairs a task handle with its body for one unit to run.
type execution struct {
	task *Task
	run  RunFunc
}

// unit is one parallel execution unit. It owns at most one running task
// at a time; queued assignments wait in its channel. No task migrates
// between units mid-flight.
type unit struct {
	id    int
	pool  *Pool
	queue chan *execution
	quit  chan struct{}

	active     int64 // queued + running assignments
	lastActive int64 // unix nanos of last activity
}

func newUnit(id int, pool *Pool) *unit {
	u := &unit{
		id:    id,
		pool:  pool,
		queue: make(chan *execution, unitQueueDepth),
		quit:  make(chan struct{}),
	}
	u.touch()
	return u
}

func (u *unit) activeTasks() int64 { return atomic.LoadInt64(&u.active) }

func (u *unit) touch() { atomic.StoreInt64(&u.lastActive, time.Now().UnixNano()) }

func (u *unit) idleSince() time.Time {
	return time.Unix(0, atomic.LoadInt64(&u.lastActive))
}

// loop runs assignments until the unit is terminated. On termination it
// drains its queue so every assigned task still receives its terminal
// event.
func (u *unit) loop() {
	defer u.pool.wg.Done()
	for {
		select {
		case ex := <-u.queue:
			u.runTask(ex)
		case <-u.quit:
			for {
				select {
				case ex := <-u.queue:
					u.finish(ex.task, nil, domain.ErrCancelled)
					atomic.AddInt64(&u.active, -1)
				default:
					return
				}
			}
		}
	}
}

// runTask executes one assignment to completion. A panic escaping the
// task body is treated as that task's failure; the unit survives.
func (u *unit) runTask(ex *execution) {
	t := ex.task
	t.setStatus(domain.StatusRunning)
	u.touch()

	cp := func(percent float64, message string) error {
		t.gate.wait()
		select {
		case <-t.cancelCh:
			return domain.ErrCancelled
		default:
		}
		t.emitProgress(percent, message)
		runtime.Gosched()
		return nil
	}

	var result *domain.JobResult
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Join(errors.New("task panicked"), toError(r))
				u.pool.logger.Error("task panic",
					zap.Uint64("task", uint64(t.id)),
					zap.Int("unit", u.id),
					zap.Any("panic", r))
			}
		}()
		result, err = ex.run(cp)
	}()

	u.finish(t, result, err)
	atomic.AddInt64(&u.active, -1)
	u.touch()
	u.pool.taskFinished(t)
}

// finish records the outcome and delivers the terminal event.
func (u *unit) finish(t *Task, result *domain.JobResult, err error) {
	switch {
	case err == nil:
		t.setStatus(domain.StatusCompleted)
		t.emitTerminal(domain.Event{Type: domain.EventResult, Percent: 100, Result: result})
	case errors.Is(err, domain.ErrCancelled):
		// A normal outcome, not a fault.
		t.setStatus(domain.StatusCancelled)
		u.pool.logger.Info("task cancelled",
			zap.Uint64("task", uint64(t.id)),
			zap.String("kind", t.kind.String()))
		t.emitTerminal(domain.Event{Type: domain.EventError, Err: err})
	default:
		t.setStatus(domain.StatusFailed)
		u.pool.logger.Error("task failed",
			zap.Uint64("task", uint64(t.id)),
			zap.String("kind", t.kind.String()),
			zap.Error(err))
		t.emitTerminal(domain.Event{Type: domain.EventError, Err: err})
	}
}

func toError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New("non-error panic value")
}

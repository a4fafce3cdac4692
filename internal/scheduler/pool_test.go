package scheduler

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
)

func newTestPool(cfg Config) *Pool {
	return NewPool(zap.NewNop(), cfg)
}

// drain collects every event until the stream closes and returns the
// terminal one.
func drain(t *testing.T, task *Task) domain.Event {
	t.Helper()
	var last domain.Event
	seen := false
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				if !seen {
					t.Fatal("stream closed without a terminal event")
				}
				return last
			}
			last = ev
			seen = last.Type == domain.EventResult || last.Type == domain.EventError
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestPoolRunsTaskToCompletion(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 2})
	defer p.TerminateAll()

	task, err := p.Submit(domain.JobSolveEikonal, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		for i := 1; i <= 5; i++ {
			if err := cp(float64(i)*20, "working"); err != nil {
				return nil, err
			}
		}
		return &domain.JobResult{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	last := drain(t, task)
	if last.Type != domain.EventResult || last.Result == nil {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
	if got := task.Status(); got != domain.StatusCompleted {
		t.Errorf("status = %v, want completed", got)
	}
	// Bookkeeping release trails the terminal event slightly.
	deadline := time.Now().Add(time.Second)
	for p.TaskCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("task table not empty after completion: %d", p.TaskCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoolProgressOrderedTerminalLast(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 1})
	defer p.TerminateAll()

	task, err := p.Submit(domain.JobContours, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		for i := 1; i <= 50; i++ {
			if err := cp(float64(i)*2, ""); err != nil {
				return nil, err
			}
		}
		return &domain.JobResult{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	lastPct := -1.0
	terminalSeen := false
	for ev := range task.Events() {
		if terminalSeen {
			t.Fatal("event delivered after the terminal one")
		}
		switch ev.Type {
		case domain.EventProgress:
			if ev.Percent < lastPct {
				t.Fatalf("progress went backwards: %v after %v", ev.Percent, lastPct)
			}
			lastPct = ev.Percent
		case domain.EventResult, domain.EventError:
			terminalSeen = true
		}
	}
	if !terminalSeen {
		t.Fatal("stream closed without a terminal event")
	}
}

func TestPoolUnitCapRespected(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 3})
	defer p.TerminateAll()

	release := make(chan struct{})
	var tasks []*Task
	for i := 0; i < 9; i++ {
		task, err := p.Submit(domain.JobStipple, func(cp domain.Checkpoint) (*domain.JobResult, error) {
			<-release
			return &domain.JobResult{}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		tasks = append(tasks, task)
	}
	if got := p.UnitCount(); got > 3 {
		t.Errorf("unit count %d exceeds cap 3", got)
	}

	close(release)
	for _, task := range tasks {
		if last := drain(t, task); last.Type != domain.EventResult {
			t.Fatalf("terminal event = %+v, want a result", last)
		}
	}
}

func TestPoolCancelFreesSlotEagerly(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 1})
	defer p.TerminateAll()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	task, err := p.Submit(domain.JobStreamlines, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		close(entered)
		<-proceed
		return nil, cp(10, "after cancel")
	})
	if err != nil {
		t.Fatal(err)
	}

	<-entered
	p.Cancel(task.ID())
	// The table slot is released before the unit acknowledges.
	if got := p.TaskCount(); got != 0 {
		t.Errorf("task count after cancel = %d, want 0", got)
	}

	close(proceed)
	last := drain(t, task)
	if last.Type != domain.EventError || !errors.Is(last.Err, domain.ErrCancelled) {
		t.Fatalf("terminal event = %+v, want ErrCancelled", last)
	}
	if got := task.Status(); got != domain.StatusCancelled {
		t.Errorf("status = %v, want cancelled", got)
	}
}

func TestPoolPauseBlocksAtCheckpoint(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 1})
	defer p.TerminateAll()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	tick := make(chan struct{}, 8)
	task, err := p.Submit(domain.JobHatch, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		entered <- struct{}{}
		<-proceed
		for i := 1; i <= 3; i++ {
			if err := cp(float64(i), ""); err != nil {
				return nil, err
			}
			tick <- struct{}{}
		}
		return &domain.JobResult{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	<-entered
	p.Pause(task.ID())
	close(proceed)

	// The first checkpoint must block on the gate: no tick gets through.
	select {
	case <-tick:
		t.Fatal("task advanced past a checkpoint while paused")
	case <-time.After(100 * time.Millisecond):
	}
	if got := task.Status(); got != domain.StatusPaused {
		t.Errorf("status = %v, want paused", got)
	}

	p.Resume(task.ID())
	for i := 0; i < 3; i++ {
		select {
		case <-tick:
		case <-time.After(5 * time.Second):
			t.Fatal("task did not advance after resume")
		}
	}
	if last := drain(t, task); last.Type != domain.EventResult {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
}

func TestPoolCancelWakesPausedTask(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 1})
	defer p.TerminateAll()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	task, err := p.Submit(domain.JobTour, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		entered <- struct{}{}
		<-proceed
		return nil, cp(50, "")
	})
	if err != nil {
		t.Fatal(err)
	}

	<-entered
	p.Pause(task.ID())
	close(proceed)
	time.Sleep(20 * time.Millisecond) // let the task reach the gate
	p.Cancel(task.ID())

	last := drain(t, task)
	if !errors.Is(last.Err, domain.ErrCancelled) {
		t.Fatalf("terminal err = %v, want ErrCancelled", last.Err)
	}
}

func TestPoolIdleReclamation(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 4, WarmUnits: 1, IdleTimeout: 20 * time.Millisecond})
	defer p.TerminateAll()

	release := make(chan struct{})
	var tasks []*Task
	for i := 0; i < 6; i++ {
		task, err := p.Submit(domain.JobSolveEikonal, func(cp domain.Checkpoint) (*domain.JobResult, error) {
			<-release
			return &domain.JobResult{}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		tasks = append(tasks, task)
	}
	if p.UnitCount() < 2 {
		t.Fatalf("expected multiple units under load, got %d", p.UnitCount())
	}

	close(release)
	for _, task := range tasks {
		drain(t, task)
	}

	deadline := time.Now().Add(3 * time.Second)
	for p.UnitCount() > 1 {
		if time.Now().After(deadline) {
			t.Fatalf("idle units never reclaimed: %d remain", p.UnitCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPoolTaskPanicIsFailure(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 1})
	defer p.TerminateAll()

	task, err := p.Submit(domain.JobContours, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		panic("kernel blew up")
	})
	if err != nil {
		t.Fatal(err)
	}
	last := drain(t, task)
	if last.Type != domain.EventError || last.Err == nil {
		t.Fatalf("terminal event = %+v, want an error", last)
	}
	if got := task.Status(); got != domain.StatusFailed {
		t.Errorf("status = %v, want failed", got)
	}

	// The unit survives the panic and keeps taking work.
	next, err := p.Submit(domain.JobContours, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		return &domain.JobResult{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if last := drain(t, next); last.Type != domain.EventResult {
		t.Fatalf("terminal event after panic = %+v, want a result", last)
	}
}

func TestPoolSubmitAfterTerminate(t *testing.T) {
	p := newTestPool(Config{MaxUnits: 1})
	p.TerminateAll()
	_, err := p.Submit(domain.JobHatch, func(cp domain.Checkpoint) (*domain.JobResult, error) {
		return &domain.JobResult{}, nil
	})
	if !errors.Is(err, domain.ErrPoolExhausted) {
		t.Errorf("err = %v, want ErrPoolExhausted", err)
	}
}

// Package scheduler owns the pool of parallel execution units that run
// extraction tasks: cap-aware least-loaded placement, cooperative
// cancel/pause/resume, idle reclamation and a memory-pressure hook.
package scheduler

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
)

const (
	// DefaultIdleTimeout is how long a unit may sit without activity
	// before reclamation may terminate it.
	DefaultIdleTimeout = 60 * time.Second

	// heapPressureRatio is the observable-heap fraction of the limit
	// past which idle units are culled immediately.
	heapPressureRatio = 0.8
)

// Config tunes the pool. Zero values pick the documented defaults.
type Config struct {
	MaxUnits    int           // cap on units; default host parallelism, min 1
	WarmUnits   int           // always-warm floor; default 1
	IdleTimeout time.Duration // default 60s
	HeapLimit   uint64        // bytes; 0 disables the pressure hook
}

func (c *Config) defaults() {
	if c.MaxUnits < 1 {
		c.MaxUnits = runtime.NumCPU()
	}
	if c.MaxUnits < 1 {
		c.MaxUnits = 1
	}
	if c.WarmUnits < 1 {
		c.WarmUnits = 1
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}

// Pool is the task scheduler. Its unit list and task table are mutated
// only under one mutex — the single-coordinator discipline — never
// concurrently by two scheduling operations.
type Pool struct {
	logger *zap.Logger
	cfg    Config

	mu           sync.Mutex
	units        map[int]*unit
	nextUnitID   int
	tasks        map[domain.TaskID]*Task
	nextTaskID   uint64
	reclaimArmed bool
	closed       bool

	wg sync.WaitGroup
}

func NewPool(logger *zap.Logger, cfg Config) *Pool {
	cfg.defaults()
	return &Pool{
		logger: logger,
		cfg:    cfg,
		units:  make(map[int]*unit),
		tasks:  make(map[domain.TaskID]*Task),
	}
}

// Submit enqueues a task. Placement is cap-aware greedy least-loaded:
// the unit with the fewest active tasks wins, but when every unit
// already holds more than one task and the pool is below its cap, a
// fresh unit is created instead. Tasks always start immediately; there
// is no FIFO queue in front of the pool.
func (p *Pool) Submit(kind domain.JobKind, run RunFunc) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%w: pool terminated", domain.ErrPoolExhausted)
	}

	p.nextTaskID++
	t := &Task{
		id:       domain.TaskID(p.nextTaskID),
		kind:     kind,
		pool:     p,
		events:   make(chan domain.Event, 128),
		cancelCh: make(chan struct{}),
		status:   domain.StatusQueued,
	}
	t.gate.init()

	u, err := p.pickUnitLocked()
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&u.active, 1)
	select {
	case u.queue <- &execution{task: t, run: run}:
	default:
		atomic.AddInt64(&u.active, -1)
		return nil, fmt.Errorf("%w: unit %d queue full", domain.ErrPoolExhausted, u.id)
	}

	p.tasks[t.id] = t
	p.logger.Debug("task submitted",
		zap.Uint64("task", uint64(t.id)),
		zap.String("kind", kind.String()),
		zap.Int("unit", u.id))
	return t, nil
}

// pickUnitLocked implements the placement policy. Caller holds p.mu.
func (p *Pool) pickUnitLocked() (*unit, error) {
	var best *unit
	minActive := int64(1<<62 - 1)
	for _, u := range p.units {
		if a := u.activeTasks(); a < minActive {
			minActive = a
			best = u
		}
	}
	if best == nil || (minActive > 1 && len(p.units) < p.cfg.MaxUnits) {
		return p.spawnUnitLocked()
	}
	return best, nil
}

func (p *Pool) spawnUnitLocked() (*unit, error) {
	if len(p.units) >= p.cfg.MaxUnits {
		// Cap reached and every unit loaded: fall back to least-loaded.
		var best *unit
		minActive := int64(1<<62 - 1)
		for _, u := range p.units {
			if a := u.activeTasks(); a < minActive {
				minActive = a
				best = u
			}
		}
		if best != nil {
			return best, nil
		}
		return nil, fmt.Errorf("%w: unit cap %d reached", domain.ErrPoolExhausted, p.cfg.MaxUnits)
	}
	p.nextUnitID++
	u := newUnit(p.nextUnitID, p)
	p.units[u.id] = u
	p.wg.Add(1)
	go u.loop()
	p.logger.Debug("unit created", zap.Int("unit", u.id), zap.Int("pool_size", len(p.units)))
	return u, nil
}

// Cancel requests a cooperative abort. The signal takes effect at the
// task's next checkpoint, but its slot in the task table is freed
// eagerly so a wedged unit cannot leak bookkeeping. The caller's event
// stream still terminates only when the unit actually reports.
func (p *Pool) Cancel(id domain.TaskID) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	delete(p.tasks, id)
	p.mu.Unlock()
	if ok {
		t.signalCancel()
	}
}

// Pause blocks the task at its next checkpoint until resumed. There is
// no timeout: a task paused forever holds its unit's slot forever.
func (p *Pool) Pause(id domain.TaskID) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	p.mu.Unlock()
	if ok {
		t.gate.setPaused(true)
		t.setStatus(domain.StatusPaused)
	}
}

// Resume unblocks a paused task.
func (p *Pool) Resume(id domain.TaskID) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	p.mu.Unlock()
	if ok {
		t.gate.setPaused(false)
		t.setStatus(domain.StatusRunning)
	}
}

// taskFinished releases bookkeeping after a unit reports and proposes
// reclamation. Repeated completions coalesce into one cleanup pass via
// the single-shot timer.
func (p *Pool) taskFinished(t *Task) {
	p.mu.Lock()
	delete(p.tasks, t.id)
	armed := p.reclaimArmed
	if !armed && !p.closed {
		p.reclaimArmed = true
	}
	closed := p.closed
	p.mu.Unlock()

	p.checkMemoryPressure()
	if !armed && !closed {
		time.AfterFunc(p.cfg.IdleTimeout, p.reclaimIdle)
	}
}

// reclaimIdle terminates units that have had no activity for the idle
// interval, down to the warm floor plus however many units are busy.
func (p *Pool) reclaimIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reclaimArmed = false
	if p.closed {
		return
	}
	cutoff := time.Now().Add(-p.cfg.IdleTimeout)
	p.cullLocked(func(u *unit) bool { return u.idleSince().Before(cutoff) })

	// Units still cooling down get another pass.
	idle := 0
	for _, u := range p.units {
		if u.activeTasks() == 0 {
			idle++
		}
	}
	if idle > p.cfg.WarmUnits {
		p.reclaimArmed = true
		time.AfterFunc(p.cfg.IdleTimeout, p.reclaimIdle)
	}
}

// checkMemoryPressure force-terminates all idle units beyond the floor
// when observable heap usage crosses the pressure ratio, independent of
// the idle timer.
func (p *Pool) checkMemoryPressure() {
	if p.cfg.HeapLimit == 0 {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if float64(m.HeapAlloc) < heapPressureRatio*float64(p.cfg.HeapLimit) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.logger.Warn("heap pressure, culling idle units",
		zap.Uint64("heap_alloc", m.HeapAlloc),
		zap.Uint64("heap_limit", p.cfg.HeapLimit))
	p.cullLocked(func(*unit) bool { return true })
}

// cullLocked terminates idle units matching eligible, keeping the warm
// floor. Caller holds p.mu.
func (p *Pool) cullLocked(eligible func(*unit) bool) {
	idle := 0
	for _, u := range p.units {
		if u.activeTasks() == 0 {
			idle++
		}
	}
	for id, u := range p.units {
		if idle <= p.cfg.WarmUnits {
			break
		}
		if u.activeTasks() != 0 || !eligible(u) {
			continue
		}
		close(u.quit)
		delete(p.units, id)
		idle--
		p.logger.Debug("unit reclaimed", zap.Int("unit", id))
	}
}

// TerminateAll synchronously stops every unit and clears all task
// bookkeeping. Shutdown only.
func (p *Pool) TerminateAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, t := range p.tasks {
		t.signalCancel()
	}
	p.tasks = make(map[domain.TaskID]*Task)
	for id, u := range p.units {
		close(u.quit)
		delete(p.units, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("scheduler terminated")
}

// UnitCount reports the current number of execution units.
func (p *Pool) UnitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.units)
}

// TaskCount reports tasks currently tracked in the table.
func (p *Pool) TaskCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Package app wires the extraction kernels to the scheduler: it maps
// submitted job kinds onto algorithm runs and shapes their results.
package app

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
	"eikotrace/internal/scheduler"
	"eikotrace/pkg/eikonal"
	"eikotrace/pkg/extract"
	"eikotrace/pkg/field"
)

// JobRequest is one unit of work for the engine. Distance may carry a
// precomputed solution; when absent, jobs that need one solve it first
// inside the same task.
type JobRequest struct {
	Kind     domain.JobKind
	Gray     *field.Field
	Distance *field.Field
	Options  domain.JobOptions
}

// Engine submits jobs to the scheduler and turns kernel output into
// tagged geometry results. It is stateless between job invocations
// beyond the pool's warm units.
type Engine struct {
	logger *zap.Logger
	pool   *scheduler.Pool
	solver *eikonal.Solver
}

func NewEngine(logger *zap.Logger, poolCfg scheduler.Config) *Engine {
	return &Engine{
		logger: logger,
		pool:   scheduler.NewPool(logger, poolCfg),
		solver: eikonal.NewSolver(logger),
	}
}

// Pool exposes the scheduler for control messages (cancel, pause,
// resume) addressed by task id.
func (e *Engine) Pool() *scheduler.Pool { return e.pool }

// SetSolverBatch overrides the solver's checkpoint batch size.
func (e *Engine) SetSolverBatch(cells int) {
	if cells > 0 {
		e.solver.BatchSize = cells
	}
}

// Close stops every execution unit. Shutdown only.
func (e *Engine) Close() { e.pool.TerminateAll() }

// Submit validates the request and hands it to the scheduler. The
// returned task's event stream carries progress and the terminal
// result.
func (e *Engine) Submit(req JobRequest) (*scheduler.Task, error) {
	if req.Gray == nil || req.Gray.Width <= 0 || req.Gray.Height <= 0 {
		return nil, fmt.Errorf("%w: missing grayscale field", domain.ErrInvalidInput)
	}
	run := func(cp domain.Checkpoint) (*domain.JobResult, error) {
		return e.run(req, cp)
	}
	return e.pool.Submit(req.Kind, run)
}

func (e *Engine) run(req JobRequest, cp domain.Checkpoint) (*domain.JobResult, error) {
	start := time.Now()
	counters := make(map[string]int)
	rng := rand.New(rand.NewSource(jobSeed(req.Options)))

	geom := &domain.Geometry{Kind: req.Kind}
	var distance *field.Field

	switch req.Kind {
	case domain.JobSolveEikonal:
		dist, cells, err := e.solver.Solve(req.Gray, req.Options.Threshold, cp)
		if err != nil {
			return nil, err
		}
		counters["cellsProcessed"] = cells
		distance = dist
		geom = nil

	case domain.JobContours:
		dist, err := e.ensureDistance(req, counters, cp)
		if err != nil {
			return nil, err
		}
		levels, segs, err := extract.Contours(dist, req.Gray, extract.ContourOptions{
			Interval:        req.Options.Interval,
			EdgeGuidance:    req.Options.EdgeGuidance,
			EdgeSensitivity: req.Options.EdgeSensitivity,
			DetailLevel:     req.Options.DetailLevel,
		}, domain.ScaleCheckpoint(cp, 50, 100))
		if err != nil {
			return nil, err
		}
		counters["linesExtracted"] = segs
		geom.Contours = levels

	case domain.JobStreamlines:
		dist, err := e.ensureDistance(req, counters, cp)
		if err != nil {
			return nil, err
		}
		paths, n, err := extract.Streamlines(dist, req.Gray, extract.StreamlineOptions{
			Interval:  req.Options.Interval,
			Threshold: req.Options.Threshold,
		}, rng, domain.ScaleCheckpoint(cp, 50, 100))
		if err != nil {
			return nil, err
		}
		counters["pathsGenerated"] = n
		geom.Paths = paths

	case domain.JobStipple:
		dots, n, err := extract.Stipple(req.Gray, extract.StippleOptions{
			Interval:  req.Options.Interval,
			Threshold: req.Options.Threshold,
		}, rng, cp)
		if err != nil {
			return nil, err
		}
		counters["dotsGenerated"] = n
		geom.Dots = dots

	case domain.JobTour:
		dots, n, err := extract.Stipple(req.Gray, extract.StippleOptions{
			Interval:  req.Options.Interval,
			Threshold: req.Options.Threshold,
		}, rng, domain.ScaleCheckpoint(cp, 0, 50))
		if err != nil {
			return nil, err
		}
		counters["dotsGenerated"] = n
		tour, connected, err := extract.Tour(dots, domain.ScaleCheckpoint(cp, 50, 100))
		if err != nil {
			return nil, err
		}
		counters["pointsConnected"] = connected
		geom.Paths = [][]domain.Point{tour}

	case domain.JobHatch:
		segs, n, err := extract.Hatch(req.Gray, extract.HatchOptions{
			Interval:  req.Options.Interval,
			Threshold: req.Options.Threshold,
		}, cp)
		if err != nil {
			return nil, err
		}
		counters["linesGenerated"] = n
		geom.Segments = segs

	default:
		return nil, fmt.Errorf("%w: unknown job kind %d", domain.ErrInvalidInput, req.Kind)
	}

	return &domain.JobResult{
		Geometry: geom,
		Distance: distance,
		Performance: &domain.Performance{
			TotalMs:  float64(time.Since(start).Microseconds()) / 1000,
			Counters: counters,
		},
	}, nil
}

// ensureDistance reuses a supplied solution or solves one in the first
// half of the task's progress window.
func (e *Engine) ensureDistance(req JobRequest, counters map[string]int, cp domain.Checkpoint) (*field.Field, error) {
	if req.Distance != nil {
		return req.Distance, nil
	}
	dist, cells, err := e.solver.Solve(req.Gray, req.Options.Threshold, domain.ScaleCheckpoint(cp, 0, 50))
	if err != nil {
		return nil, err
	}
	counters["cellsProcessed"] = cells
	return dist, nil
}

// jobSeed honors an injected seed so randomized extractors stay
// reproducible; an unset seed falls back to the clock.
func jobSeed(opt domain.JobOptions) int64 {
	if opt.Seed != 0 {
		return opt.Seed
	}
	return time.Now().UnixNano()
}

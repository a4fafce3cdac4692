package app

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
	"eikotrace/internal/scheduler"
	"eikotrace/pkg/field"
)

func newTestEngine() *Engine {
	return NewEngine(zap.NewNop(), scheduler.Config{MaxUnits: 2})
}

// waitTerminal consumes the task stream and returns the final event.
func waitTerminal(t *testing.T, task *scheduler.Task) domain.Event {
	t.Helper()
	var last domain.Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				return last
			}
			last = ev
		case <-deadline:
			t.Fatal("timed out waiting for the task to finish")
		}
	}
}

// cornerGray is an all-white field with one dark source cell.
func cornerGray(w, h int) *field.Field {
	gray := field.New(w, h)
	gray.Fill(1)
	gray.Set(0, 0, 0)
	return gray
}

func TestEngineSolveJob(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	task, err := e.Submit(JobRequest{
		Kind:    domain.JobSolveEikonal,
		Gray:    cornerGray(4, 4),
		Options: domain.JobOptions{Threshold: 0.1},
	})
	if err != nil {
		t.Fatal(err)
	}

	last := waitTerminal(t, task)
	if last.Type != domain.EventResult {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
	res := last.Result
	if res.Geometry != nil {
		t.Error("solve job carried geometry")
	}
	if res.Distance == nil {
		t.Fatal("solve job carried no distance field")
	}
	if got := res.Distance.At(1, 0); got != 1 {
		t.Errorf("dist(1,0) = %v, want 1", got)
	}
	if res.Performance.Counters["cellsProcessed"] != 16 {
		t.Errorf("cellsProcessed = %d, want 16", res.Performance.Counters["cellsProcessed"])
	}
}

func TestEngineContourJobSolvesWhenMissing(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	gray := field.New(16, 16)
	gray.Fill(0.5)
	gray.Set(0, 0, 0)
	task, err := e.Submit(JobRequest{
		Kind:    domain.JobContours,
		Gray:    gray,
		Options: domain.JobOptions{Threshold: 0.1, Interval: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	last := waitTerminal(t, task)
	if last.Type != domain.EventResult {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
	res := last.Result
	if res.Geometry == nil || len(res.Geometry.Contours) == 0 {
		t.Fatal("no contour levels in the result")
	}
	if res.Performance.Counters["cellsProcessed"] != 256 {
		t.Errorf("implicit solve processed %d cells, want 256", res.Performance.Counters["cellsProcessed"])
	}
	if res.Performance.Counters["linesExtracted"] == 0 {
		t.Error("no segments extracted from a non-degenerate field")
	}
}

func TestEngineContourJobReusesDistance(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	// Hand the job a precomputed solution: no implicit solve runs, so
	// the cell counter stays absent.
	dist := field.New(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			dist.Set(x, y, float32(x+y))
		}
	}
	task, err := e.Submit(JobRequest{
		Kind:     domain.JobContours,
		Gray:     field.New(8, 8),
		Distance: dist,
		Options:  domain.JobOptions{Interval: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	last := waitTerminal(t, task)
	if last.Type != domain.EventResult {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
	if _, ok := last.Result.Performance.Counters["cellsProcessed"]; ok {
		t.Error("job with a supplied distance field still solved")
	}
	if len(last.Result.Geometry.Contours) == 0 {
		t.Error("no contours over the supplied field")
	}
}

func TestEngineTourJob(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	task, err := e.Submit(JobRequest{
		Kind:    domain.JobTour,
		Gray:    field.New(24, 24), // all dark
		Options: domain.JobOptions{Threshold: 0.5, Interval: 4, Seed: 7},
	})
	if err != nil {
		t.Fatal(err)
	}

	last := waitTerminal(t, task)
	if last.Type != domain.EventResult {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
	res := last.Result
	if len(res.Geometry.Paths) != 1 {
		t.Fatalf("tour produced %d paths, want 1", len(res.Geometry.Paths))
	}
	tour := res.Geometry.Paths[0]
	if len(tour) < 2 {
		t.Fatalf("tour has %d points, want at least 2", len(tour))
	}
	if res.Performance.Counters["pointsConnected"] != len(tour) {
		t.Errorf("pointsConnected = %d, tour length = %d",
			res.Performance.Counters["pointsConnected"], len(tour))
	}
}

func TestEngineHatchJob(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	task, err := e.Submit(JobRequest{
		Kind:    domain.JobHatch,
		Gray:    field.New(32, 32),
		Options: domain.JobOptions{Threshold: 0.5, Interval: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	last := waitTerminal(t, task)
	if last.Type != domain.EventResult {
		t.Fatalf("terminal event = %+v, want a result", last)
	}
	if len(last.Result.Geometry.Segments) == 0 {
		t.Error("dark field produced no hatch segments")
	}
}

func TestEngineRejectsMissingInput(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if _, err := e.Submit(JobRequest{Kind: domain.JobStipple}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestEngineUnknownKindFails(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	task, err := e.Submit(JobRequest{Kind: domain.JobKind(99), Gray: field.New(4, 4)})
	if err != nil {
		t.Fatal(err)
	}
	last := waitTerminal(t, task)
	if last.Type != domain.EventError || !errors.Is(last.Err, domain.ErrInvalidInput) {
		t.Fatalf("terminal event = %+v, want ErrInvalidInput", last)
	}
}

func TestEngineCancelMidSolve(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	// Large enough that the solve spans many checkpoints.
	task, err := e.Submit(JobRequest{
		Kind:    domain.JobSolveEikonal,
		Gray:    cornerGray(512, 512),
		Options: domain.JobOptions{Threshold: 0.1},
	})
	if err != nil {
		t.Fatal(err)
	}
	e.Pool().Cancel(task.ID())

	last := waitTerminal(t, task)
	if last.Type != domain.EventError || !errors.Is(last.Err, domain.ErrCancelled) {
		t.Fatalf("terminal event = %+v, want ErrCancelled", last)
	}
}

package domain

import "errors"

// JobKind identifies which algorithm a task runs.
type JobKind int

const (
	JobSolveEikonal JobKind = iota
	JobContours
	JobStreamlines
	JobStipple
	JobTour
	JobHatch
)

var jobKindNames = map[JobKind]string{
	JobSolveEikonal: "solveEikonalCPU",
	JobContours:     "extractContoursAdaptive",
	JobStreamlines:  "extractStreamlines",
	JobStipple:      "extractStipple",
	JobTour:         "extractTSP",
	JobHatch:        "extractHatch",
}

func (k JobKind) String() string {
	if name, ok := jobKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseJobKind maps a wire-format kind name to its JobKind.
func ParseJobKind(name string) (JobKind, error) {
	for kind, n := range jobKindNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, errors.New("unknown job kind: " + name)
}

// TaskStatus is the lifecycle state of a submitted task.
type TaskStatus int

const (
	StatusQueued TaskStatus = iota
	StatusRunning
	StatusPaused
	StatusCancelled
	StatusCompleted
	StatusFailed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// TaskID uniquely identifies a task within one scheduler.
type TaskID uint64

// Point is a continuous sub-pixel coordinate, as opposed to an integer
// grid index.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a disjoint two-point line segment.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// ContourLevel groups the raw marching-squares segments emitted at one
// iso level. Joining segments into longer polylines is a downstream
// concern and is not performed by the extractor.
type ContourLevel struct {
	Level    float64   `json:"level"`
	Segments []Segment `json:"segments"`
}

// Geometry is the tagged output variant of an extraction job. Exactly
// one payload field is populated, according to Kind.
type Geometry struct {
	Kind     JobKind        `json:"-"`
	Contours []ContourLevel `json:"contours,omitempty"`
	Paths    [][]Point      `json:"paths,omitempty"`
	Dots     []Point        `json:"dots,omitempty"`
	Segments []Segment      `json:"segments,omitempty"`
}

// Performance carries the timing and per-algorithm counters attached to
// a successful result.
type Performance struct {
	TotalMs  float64        `json:"totalMs"`
	Counters map[string]int `json:"counters,omitempty"`
}

// EventType tags entries on a task's response stream.
type EventType int

const (
	EventProgress EventType = iota
	EventResult
	EventError
)

// Event is one entry on a task's response stream: zero or more progress
// events with non-decreasing percent, then exactly one terminal Result
// or Error event.
type Event struct {
	Type    EventType
	Percent float64
	Message string
	Result  *JobResult
	Err     error
}

// Checkpoint is called by long-running kernels between batches of work.
// It reports progress, blocks while the task is paused, and returns
// ErrCancelled once cancellation has been requested. Kernels must call
// it often enough to keep the scheduler responsive.
type Checkpoint func(percent float64, message string) error

// NopCheckpoint ignores progress and never cancels.
func NopCheckpoint(float64, string) error { return nil }

// ScaleCheckpoint remaps a kernel's 0-100 progress range into the
// [lo, hi] window of a larger job.
func ScaleCheckpoint(cp Checkpoint, lo, hi float64) Checkpoint {
	return func(percent float64, message string) error {
		return cp(lo+(hi-lo)*percent/100, message)
	}
}

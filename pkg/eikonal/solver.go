// Package eikonal solves the Eikonal equation on a grayscale grid with
// the Fast Marching Method: dark pixels act as wave sources and a
// distance field propagates outward, slowed by brighter pixels.
package eikonal

import (
	"container/heap"
	"fmt"
	"math"

	"go.uber.org/zap"

	"eikotrace/internal/domain"
	"eikotrace/pkg/field"
)

// DefaultBatchSize is the number of popped cells processed between
// cooperative checkpoints.
const DefaultBatchSize = 1000

// Solver computes a non-negative distance field from seed pixels.
// Solving is deterministic: two runs over the same field and threshold
// produce identical output.
type Solver struct {
	logger    *zap.Logger
	BatchSize int
}

func NewSolver(logger *zap.Logger) *Solver {
	return &Solver{logger: logger, BatchSize: DefaultBatchSize}
}

// Solve runs Fast Marching over gray. Cells with gray < threshold form
// the seed set at distance zero; unreachable cells keep the Unreached
// sentinel. The cell count processed is reported alongside the field.
//
// A cancelled solve produces nothing usable; callers must discard it.
func (s *Solver) Solve(gray *field.Field, threshold float64, cp domain.Checkpoint) (*field.Field, int, error) {
	if gray == nil || gray.Width <= 0 || gray.Height <= 0 {
		return nil, 0, fmt.Errorf("%w: degenerate field dimensions", domain.ErrInvalidInput)
	}
	if cp == nil {
		cp = domain.NopCheckpoint
	}

	w, h := gray.Width, gray.Height
	dist := field.New(w, h)
	dist.Fill(field.Unreached)
	visited := make([]bool, w*h)

	q := &cellQueue{}
	for i, v := range gray.Data {
		if float64(v) < threshold {
			dist.Data[i] = 0
			heap.Push(q, cellEntry{index: int32(i), dist: 0})
		}
	}
	if q.Len() == 0 {
		return nil, 0, fmt.Errorf("%w: empty seed set at threshold %g", domain.ErrInvalidInput, threshold)
	}
	s.logger.Debug("fast marching initialized",
		zap.Int("seeds", q.Len()),
		zap.Int("cells", w*h))

	total := w * h
	processed := 0
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	for q.Len() > 0 {
		entry := heap.Pop(q).(cellEntry)
		i := int(entry.index)
		if visited[i] {
			// Stale duplicate left by lazy deletion.
			continue
		}
		visited[i] = true
		processed++

		if processed%batch == 0 {
			pct := 100 * float64(processed) / float64(total)
			if err := cp(pct, "solving distance field"); err != nil {
				return nil, processed, err
			}
		}

		x, y := i%w, i/w
		for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
			nx, ny := n[0], n[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if visited[ni] {
				continue
			}
			cost := float64(gray.Data[ni])
			val, ok := upwind(dist, nx, ny, cost)
			if !ok {
				continue
			}
			if float32(val) < dist.Data[ni] {
				dist.Data[ni] = float32(val)
				heap.Push(q, cellEntry{index: int32(ni), dist: float32(val)})
			}
		}
	}

	return dist, processed, nil
}

// upwind solves the local first-order upwind finite-difference update
// at cell (x,y). ok is false when neither axis carries information yet.
func upwind(dist *field.Field, x, y int, cost float64) (float64, bool) {
	minX := axisMin(dist, x-1, y, x+1, y)
	minY := axisMin(dist, x, y-1, x, y+1)

	xOK := !math.IsInf(minX, 1)
	yOK := !math.IsInf(minY, 1)
	switch {
	case !xOK && !yOK:
		return 0, false
	case xOK && !yOK:
		return minX + cost, true
	case !xOK && yOK:
		return minY + cost, true
	}

	lo, hi := minX, minY
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi-lo >= cost {
		// The far axis cannot influence the solution.
		return lo + cost, true
	}
	disc := 2*cost*cost - (hi-lo)*(hi-lo)
	if disc < 0 {
		return lo + cost, true
	}
	return (lo + hi + math.Sqrt(disc)) / 2, true
}

// axisMin returns the smaller finite distance of the two cells, or +Inf
// when neither is finite.
func axisMin(dist *field.Field, x0, y0, x1, y1 int) float64 {
	m := math.Inf(1)
	if dist.InBounds(x0, y0) {
		if v := float64(dist.At(x0, y0)); v < m {
			m = v
		}
	}
	if dist.InBounds(x1, y1) {
		if v := float64(dist.At(x1, y1)); v < m {
			m = v
		}
	}
	return m
}

package extract

import (
	"math"
	"math/rand"

	"eikotrace/internal/domain"
	"eikotrace/pkg/field"
)

const (
	// DefaultStepSize is the fixed Euler integration step in field
	// units.
	DefaultStepSize = 2.0

	// DefaultMaxSteps bounds a single trace direction.
	DefaultMaxSteps = 500

	// DefaultMinLength discards paths shorter than this many units.
	DefaultMinLength = 10.0

	// gradientFloor is the magnitude below which flow is undefined.
	gradientFloor = 1e-3

	// streamlineCheckpointSeeds is the seed cadence between
	// checkpoints.
	streamlineCheckpointSeeds = 500
)

// StreamlineOptions control seeding and tracing.
type StreamlineOptions struct {
	Interval  float64
	Threshold float64
	StepSize  float64
	MaxSteps  int
	MinLength float64
}

func (o *StreamlineOptions) defaults() {
	if o.StepSize <= 0 {
		o.StepSize = DefaultStepSize
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.Interval <= 0 {
		o.Interval = 8
	}
}

// occupancy is the coarse grid of cells already claimed by traced
// geometry. Cell size is 0.8× the requested interval so streamlines
// keep their minimum separation.
type occupancy struct {
	cell  float64
	cols  int
	rows  int
	taken []bool
}

func newOccupancy(w, h int, interval float64) *occupancy {
	cell := 0.8 * interval
	if cell < 1 {
		cell = 1
	}
	cols := int(math.Ceil(float64(w)/cell)) + 1
	rows := int(math.Ceil(float64(h)/cell)) + 1
	return &occupancy{cell: cell, cols: cols, rows: rows, taken: make([]bool, cols*rows)}
}

func (o *occupancy) index(x, y float64) int {
	cx := int(x / o.cell)
	cy := int(y / o.cell)
	if cx < 0 {
		cx = 0
	}
	if cy < 0 {
		cy = 0
	}
	if cx >= o.cols {
		cx = o.cols - 1
	}
	if cy >= o.rows {
		cy = o.rows - 1
	}
	return cy*o.cols + cx
}

// Streamlines traces gradient-following paths over the distance field.
// Seeds sit on a regular grid with jitter, restricted to cells below
// the intensity threshold, and are shuffled through rng to avoid
// directional bias in occupancy claiming.
func Streamlines(dist, gray *field.Field, opt StreamlineOptions, rng *rand.Rand, cp domain.Checkpoint) ([][]domain.Point, int, error) {
	if dist == nil || gray == nil || dist.Width <= 0 || dist.Height <= 0 {
		return nil, 0, domain.ErrInvalidInput
	}
	if cp == nil {
		cp = domain.NopCheckpoint
	}
	opt.defaults()

	grad := field.ComputeGradient(dist)
	occ := newOccupancy(dist.Width, dist.Height, opt.Interval)

	spacing := int(math.Max(2, opt.Interval))
	var seeds []domain.Point
	for y := 0; y < gray.Height; y += spacing {
		for x := 0; x < gray.Width; x += spacing {
			if float64(gray.At(x, y)) >= opt.Threshold {
				continue
			}
			jx := (rng.Float64() - 0.5) * float64(spacing)
			jy := (rng.Float64() - 0.5) * float64(spacing)
			seeds = append(seeds, domain.Point{X: float64(x) + jx, Y: float64(y) + jy})
		}
	}
	rng.Shuffle(len(seeds), func(i, j int) { seeds[i], seeds[j] = seeds[j], seeds[i] })

	var paths [][]domain.Point
	for i, seed := range seeds {
		if i > 0 && i%streamlineCheckpointSeeds == 0 {
			pct := 100 * float64(i) / float64(len(seeds))
			if err := cp(pct, "tracing streamlines"); err != nil {
				return nil, len(paths), err
			}
		}
		if occ.taken[occ.index(seed.X, seed.Y)] {
			continue
		}

		forward := trace(seed, 1, grad, dist, occ, opt)
		backward := trace(seed, -1, grad, dist, occ, opt)

		// Stitch: backward reversed, then forward (which includes the
		// seed itself).
		path := make([]domain.Point, 0, len(forward)+len(backward))
		for j := len(backward) - 1; j >= 0; j-- {
			path = append(path, backward[j])
		}
		path = append(path, forward...)

		if pathLength(path) < opt.MinLength {
			continue
		}
		paths = append(paths, path)
	}
	return paths, len(paths), nil
}

// trace follows the gradient from p in the given direction with fixed
// Euler steps. A point is accepted, and its occupancy cell claimed,
// each time the walk enters an unclaimed cell; entering a claimed cell
// ends the trace. The seed's own cell is claimed only on the forward
// pass so the backward pass can leave it.
func trace(p domain.Point, dir float64, grad *field.Gradient, dist *field.Field, occ *occupancy, opt StreamlineOptions) []domain.Point {
	var pts []domain.Point
	cur := p
	curCell := occ.index(cur.X, cur.Y)
	if dir > 0 {
		if occ.taken[curCell] {
			return nil
		}
		occ.taken[curCell] = true
		pts = append(pts, cur)
	}

	for step := 0; step < opt.MaxSteps; step++ {
		gx := grad.GX.Bilinear(cur.X, cur.Y)
		gy := grad.GY.Bilinear(cur.X, cur.Y)
		mag := math.Hypot(gx, gy)
		if mag < gradientFloor {
			break
		}
		next := domain.Point{
			X: cur.X + dir*opt.StepSize*gx/mag,
			Y: cur.Y + dir*opt.StepSize*gy/mag,
		}
		if next.X < 0 || next.Y < 0 || next.X > float64(dist.Width-1) || next.Y > float64(dist.Height-1) {
			break
		}
		cell := occ.index(next.X, next.Y)
		if cell != curCell {
			if occ.taken[cell] {
				break
			}
			occ.taken[cell] = true
			pts = append(pts, next)
			curCell = cell
		}
		cur = next
	}
	return pts
}

func pathLength(path []domain.Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += math.Hypot(path[i].X-path[i-1].X, path[i].Y-path[i-1].Y)
	}
	return total
}

package extract

import (
	"math"
	"math/rand"

	"eikotrace/internal/domain"
	"eikotrace/pkg/field"
	"eikotrace/pkg/spatial"
)

const (
	// MinStippleRadius is the spacing floor in the darkest regions.
	MinStippleRadius = 1.5

	// MaxStipplePoints bounds runtime on dense images.
	MaxStipplePoints = 150000

	// stippleCandidates is the dart attempts per active point before it
	// is retired.
	stippleCandidates = 20

	// stippleInitial is the cap on rejection-sampled starting points.
	stippleInitial = 10

	// stippleCheckpointPoints is the accepted-point cadence between
	// checkpoints.
	stippleCheckpointPoints = 2000
)

// StippleOptions control Poisson-disk placement.
type StippleOptions struct {
	Interval  float64 // spacing ceiling in the brightest regions
	Threshold float64 // intensity mask for initial point placement
}

// Stipple performs variable-radius Poisson-disk dart throwing over the
// grayscale field. The local radius interpolates between
// MinStippleRadius and the requested interval proportionally to the
// gray value, so brighter regions come out sparser. Two accepted points
// always sit at least the average of their local radii apart.
func Stipple(gray *field.Field, opt StippleOptions, rng *rand.Rand, cp domain.Checkpoint) ([]domain.Point, int, error) {
	if gray == nil || gray.Width <= 0 || gray.Height <= 0 {
		return nil, 0, domain.ErrInvalidInput
	}
	if cp == nil {
		cp = domain.NopCheckpoint
	}
	maxR := opt.Interval
	if maxR < MinStippleRadius {
		maxR = MinStippleRadius
	}
	w := float64(gray.Width - 1)
	h := float64(gray.Height - 1)

	radius := func(p domain.Point) float64 {
		g := gray.Bilinear(p.X, p.Y)
		if g < 0 {
			g = 0
		}
		if g > 1 {
			g = 1
		}
		return MinStippleRadius + (maxR-MinStippleRadius)*g
	}

	grid := spatial.NewGrid(0, 0, w, h, maxR)
	fits := func(cand domain.Point) bool {
		ok := true
		rc := radius(cand)
		grid.Near(cand, maxR, func(idx int) {
			if !ok {
				return
			}
			q := grid.Point(idx)
			minDist := (rc + radius(q)) / 2
			if math.Hypot(cand.X-q.X, cand.Y-q.Y) < minDist {
				ok = false
			}
		})
		return ok
	}

	// Initial points: rejection sampling against the intensity mask.
	var active []int
	for attempts := 0; attempts < 1000 && len(active) < stippleInitial; attempts++ {
		p := domain.Point{X: rng.Float64() * w, Y: rng.Float64() * h}
		if gray.Bilinear(p.X, p.Y) >= opt.Threshold {
			continue
		}
		if !fits(p) {
			continue
		}
		active = append(active, grid.Insert(p))
	}

	accepted := grid.Len()
	for len(active) > 0 && accepted < MaxStipplePoints {
		pick := rng.Intn(len(active))
		parent := grid.Point(active[pick])
		r := radius(parent)

		placed := false
		for try := 0; try < stippleCandidates; try++ {
			angle := rng.Float64() * 2 * math.Pi
			d := r * (1 + rng.Float64()) // [r, 2r)
			cand := domain.Point{
				X: parent.X + d*math.Cos(angle),
				Y: parent.Y + d*math.Sin(angle),
			}
			if cand.X < 0 || cand.Y < 0 || cand.X > w || cand.Y > h {
				continue
			}
			if !fits(cand) {
				continue
			}
			active = append(active, grid.Insert(cand))
			accepted++
			placed = true
			if accepted%stippleCheckpointPoints == 0 {
				pct := 100 * float64(accepted) / float64(MaxStipplePoints)
				if err := cp(pct, "placing stipple points"); err != nil {
					return nil, accepted, err
				}
			}
			break
		}
		if !placed {
			// Retired permanently once its candidates are exhausted.
			active[pick] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}

	dots := make([]domain.Point, grid.Len())
	for i := range dots {
		dots[i] = grid.Point(i)
	}
	return dots, len(dots), nil
}

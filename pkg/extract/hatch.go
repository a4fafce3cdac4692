package extract

import (
	"math"

	"eikotrace/internal/domain"
	"eikotrace/pkg/field"
)

const (
	// hatchWalkStep is the sampling step along a scan line, in units.
	hatchWalkStep = 2.0

	// hatchMinRunSteps is the shortest run kept as a segment.
	hatchMinRunSteps = 5

	// hatchThresholdFloor keeps every layer threshold usable.
	hatchThresholdFloor = 0.1
)

// hatchLayer pairs a sweep angle with its threshold offset.
type hatchLayer struct {
	angleDeg    float64
	thresholdUp float64
}

// Descending intensity thresholds: the densest darkness gets all four
// directions, lighter tones progressively fewer.
var hatchLayers = [4]hatchLayer{
	{-45, 0.2},
	{45, 0},
	{0, -0.2},
	{90, -0.3},
}

// HatchOptions control scan-line spacing and the base threshold.
type HatchOptions struct {
	Interval  float64
	Threshold float64
}

// Hatch sweeps parallel scan lines at four fixed angles over the
// grayscale field and accumulates runs of consecutive below-threshold
// pixels into segments, keeping only each run's two endpoints.
func Hatch(gray *field.Field, opt HatchOptions, cp domain.Checkpoint) ([]domain.Segment, int, error) {
	if gray == nil || gray.Width <= 0 || gray.Height <= 0 {
		return nil, 0, domain.ErrInvalidInput
	}
	if cp == nil {
		cp = domain.NopCheckpoint
	}
	interval := opt.Interval
	if interval <= 0 {
		interval = 8
	}

	w := float64(gray.Width - 1)
	h := float64(gray.Height - 1)
	diag := math.Hypot(w, h)
	cxm, cym := w/2, h/2
	lines := int(diag/interval) + 1
	totalLines := 4 * (2*lines + 1)
	line := 0

	var segs []domain.Segment
	for _, layer := range hatchLayers {
		threshold := opt.Threshold + layer.thresholdUp
		if threshold < hatchThresholdFloor {
			threshold = hatchThresholdFloor
		}
		rad := layer.angleDeg * math.Pi / 180
		dirX, dirY := math.Cos(rad), math.Sin(rad)
		nrmX, nrmY := -dirY, dirX

		for k := -lines; k <= lines; k++ {
			line++
			offset := float64(k) * interval
			// Scan-line origin, backed off half a diagonal.
			ox := cxm + nrmX*offset - dirX*diag/2
			oy := cym + nrmY*offset - dirY*diag/2

			runSteps := 0
			var runStart, runEnd domain.Point
			flush := func() {
				if runSteps > hatchMinRunSteps {
					segs = append(segs, domain.Segment{A: runStart, B: runEnd})
				}
				runSteps = 0
			}

			steps := int(diag / hatchWalkStep)
			for s := 0; s <= steps; s++ {
				t := float64(s) * hatchWalkStep
				p := domain.Point{X: ox + dirX*t, Y: oy + dirY*t}
				inside := p.X >= 0 && p.Y >= 0 && p.X <= w && p.Y <= h
				if inside && gray.Bilinear(p.X, p.Y) < threshold {
					if runSteps == 0 {
						runStart = p
					}
					runEnd = p
					runSteps++
				} else {
					flush()
				}
			}
			flush() // field boundary also closes a run

			if err := cp(100*float64(line)/float64(totalLines), "hatching"); err != nil {
				return nil, len(segs), err
			}
		}
	}
	return segs, len(segs), nil
}

// Package extract implements the geometric extraction kernels that run
// over a solved distance field: adaptive marching-squares contours,
// gradient streamlines, Poisson-disk stipples, a greedy point tour and
// directional cross-hatching.
package extract

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"eikotrace/internal/domain"
	"eikotrace/pkg/field"
)

const (
	// contourCheckpointBlocks is the cell-block cadence between
	// cooperative checkpoints.
	contourCheckpointBlocks = 5000

	// levelEpsilon is the numerical tolerance below which a field
	// range counts as degenerate.
	levelEpsilon = 1e-3

	// snapRadius is the fixed search radius, in cells, for edge
	// snapping.
	snapRadius = 3
)

// ContourOptions control level placement and edge guidance.
type ContourOptions struct {
	Interval        float64
	EdgeGuidance    bool
	EdgeSensitivity float64
	DetailLevel     float64
}

// Contours runs adaptive marching squares over dist. gray is the
// source image, used only when edge guidance is enabled. The output is
// raw unconnected segments grouped by level; the segment count is
// reported as the second value.
func Contours(dist, gray *field.Field, opt ContourOptions, cp domain.Checkpoint) ([]domain.ContourLevel, int, error) {
	if dist == nil || dist.Width < 2 || dist.Height < 2 {
		return nil, 0, domain.ErrInvalidInput
	}
	if cp == nil {
		cp = domain.NopCheckpoint
	}
	levels := contourLevels(dist, opt)
	if len(levels) == 0 {
		// Entire field at the sentinel: nothing to contour, which is a
		// no-contribution outcome rather than a fault.
		return nil, 0, nil
	}

	var snap *field.Gradient
	if opt.EdgeGuidance && opt.EdgeSensitivity > 0.1 && gray != nil {
		snap = field.ComputeGradient(gray)
	}

	w, h := dist.Width, dist.Height
	totalBlocks := len(levels) * (w - 1) * (h - 1)
	blocks := 0
	segTotal := 0

	out := make([]domain.ContourLevel, 0, len(levels))
	for _, level := range levels {
		var segs []domain.Segment
		for y := 0; y < h-1; y++ {
			for x := 0; x < w-1; x++ {
				blocks++
				if blocks%contourCheckpointBlocks == 0 {
					pct := 100 * float64(blocks) / float64(totalBlocks)
					if err := cp(pct, "extracting contours"); err != nil {
						return nil, segTotal, err
					}
				}
				segs = marchCell(dist, x, y, level, segs)
			}
		}
		if snap != nil {
			for i := range segs {
				segs[i].A = snapToEdge(segs[i].A, snap.Mag, opt.EdgeSensitivity)
				segs[i].B = snapToEdge(segs[i].B, snap.Mag, opt.EdgeSensitivity)
			}
		}
		segTotal += len(segs)
		out = append(out, domain.ContourLevel{Level: level, Segments: segs})
	}
	return out, segTotal, nil
}

// contourLevels steps through [min+interval, max) uniformly; a positive
// detail level blends the uniform positions toward field quantiles so
// levels concentrate where values do. A range narrower than the
// tolerance collapses to a single mid value.
func contourLevels(dist *field.Field, opt ContourOptions) []float64 {
	lo, hi, ok := dist.Range()
	if !ok {
		return nil
	}
	if hi-lo < levelEpsilon {
		return []float64{(lo + hi) / 2}
	}
	interval := opt.Interval
	if interval <= 0 {
		interval = (hi - lo) / 10
	}
	var levels []float64
	for v := lo + interval; v < hi; v += interval {
		levels = append(levels, v)
	}
	if len(levels) == 0 {
		levels = []float64{(lo + hi) / 2}
	}

	detail := opt.DetailLevel
	if detail <= 0 {
		return levels
	}
	if detail > 1 {
		detail = 1
	}
	vals := dist.FiniteValues()
	sort.Float64s(vals)
	for i := range levels {
		p := float64(i+1) / float64(len(levels)+1)
		q := stat.Quantile(p, stat.Empirical, vals, nil)
		levels[i] = (1-detail)*levels[i] + detail*q
	}
	sort.Float64s(levels)
	return levels
}

// marchCell classifies the 2×2 block whose top-left corner is (x,y)
// against level and appends 0-2 segments per the 16-case table. The two
// saddle cases emit both plausible topologies, always split along the
// same fixed diagonal.
func marchCell(dist *field.Field, x, y int, level float64, segs []domain.Segment) []domain.Segment {
	a := float64(dist.At(x, y))     // top-left
	b := float64(dist.At(x+1, y))   // top-right
	c := float64(dist.At(x+1, y+1)) // bottom-right
	d := float64(dist.At(x, y+1))   // bottom-left

	code := 0
	if a >= level {
		code |= 1
	}
	if b >= level {
		code |= 2
	}
	if c >= level {
		code |= 4
	}
	if d >= level {
		code |= 8
	}

	fx, fy := float64(x), float64(y)
	top := func() domain.Point { return domain.Point{X: fx + edgeT(a, b, level), Y: fy} }
	right := func() domain.Point { return domain.Point{X: fx + 1, Y: fy + edgeT(b, c, level)} }
	bottom := func() domain.Point { return domain.Point{X: fx + edgeT(d, c, level), Y: fy + 1} }
	left := func() domain.Point { return domain.Point{X: fx, Y: fy + edgeT(a, d, level)} }

	switch code {
	case 1, 14:
		segs = append(segs, domain.Segment{A: left(), B: top()})
	case 2, 13:
		segs = append(segs, domain.Segment{A: top(), B: right()})
	case 3, 12:
		segs = append(segs, domain.Segment{A: left(), B: right()})
	case 4, 11:
		segs = append(segs, domain.Segment{A: right(), B: bottom()})
	case 5:
		segs = append(segs, domain.Segment{A: left(), B: top()})
		segs = append(segs, domain.Segment{A: right(), B: bottom()})
	case 6, 9:
		segs = append(segs, domain.Segment{A: top(), B: bottom()})
	case 7, 8:
		segs = append(segs, domain.Segment{A: bottom(), B: left()})
	case 10:
		segs = append(segs, domain.Segment{A: top(), B: right()})
		segs = append(segs, domain.Segment{A: bottom(), B: left()})
	}
	return segs
}

// edgeT is the interpolation fraction of the level crossing between two
// corner values. Sentinel corners default the fraction to 0.5.
func edgeT(v0, v1, level float64) float64 {
	den := v1 - v0
	if math.IsInf(v0, 0) || math.IsInf(v1, 0) || math.IsNaN(den) || den == 0 {
		return 0.5
	}
	t := (level - v0) / den
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// snapToEdge moves p toward the strongest image-gradient magnitude
// within the fixed search radius, blended proportionally to
// sensitivity: 1 snaps fully, 0 leaves the point unmoved.
func snapToEdge(p domain.Point, mag *field.Field, sensitivity float64) domain.Point {
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	best := -1.0
	bx, by := p.X, p.Y
	for dy := -snapRadius; dy <= snapRadius; dy++ {
		for dx := -snapRadius; dx <= snapRadius; dx++ {
			x, y := cx+dx, cy+dy
			if !mag.InBounds(x, y) {
				continue
			}
			if m := float64(mag.At(x, y)); m > best {
				best = m
				bx, by = float64(x), float64(y)
			}
		}
	}
	if best <= 0 {
		return p
	}
	if sensitivity > 1 {
		sensitivity = 1
	}
	return domain.Point{
		X: p.X + (bx-p.X)*sensitivity,
		Y: p.Y + (by-p.Y)*sensitivity,
	}
}

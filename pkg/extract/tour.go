package extract

import (
	"math"

	"eikotrace/internal/domain"
	"eikotrace/pkg/spatial"
)

// tourCheckpointPoints is the remaining-point cadence between
// checkpoints.
const tourCheckpointPoints = 1000

// Tour orders points into a single drawing path with the greedy
// nearest-neighbor heuristic: start at the first point and repeatedly
// jump to the closest unvisited one, found by an expanding ring search
// over a spatial grid. No local-search improvement is applied. Fewer
// than two input points yield an empty tour.
func Tour(points []domain.Point, cp domain.Checkpoint) ([]domain.Point, int, error) {
	if len(points) < 2 {
		return nil, 0, nil
	}
	if cp == nil {
		cp = domain.NopCheckpoint
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	// Cell edge sized for a handful of points per bucket on average.
	area := (maxX - minX + 1) * (maxY - minY + 1)
	cell := math.Sqrt(area / float64(len(points)))
	if cell <= 0 {
		cell = 1
	}
	grid := spatial.NewGrid(minX, minY, maxX-minX, maxY-minY, cell)
	for _, p := range points {
		grid.Insert(p)
	}

	visited := make([]bool, len(points))
	tour := make([]domain.Point, 0, len(points))
	cur := 0
	visited[cur] = true
	tour = append(tour, points[cur])
	remaining := len(points) - 1
	total := remaining

	for remaining > 0 {
		if remaining%tourCheckpointPoints == 0 {
			pct := 100 * float64(total-remaining) / float64(total)
			if err := cp(pct, "building tour"); err != nil {
				return nil, len(tour), err
			}
		}
		next := nearestUnvisited(grid, points, visited, cur)
		if next < 0 {
			// Whole grid scanned with no candidate left.
			break
		}
		visited[next] = true
		tour = append(tour, points[next])
		cur = next
		remaining--
	}
	return tour, len(tour), nil
}

// nearestUnvisited scans bucket rings of growing radius around the
// current point. Once a ring yields candidates, one further ring is
// scanned too, since a point there can still be closer than the far
// corner of the current ring.
func nearestUnvisited(grid *spatial.Grid, points []domain.Point, visited []bool, cur int) int {
	p := points[cur]
	cx, cy := grid.CellOf(p)
	best := -1
	bestDist := math.Inf(1)

	consider := func(idx int) {
		if visited[idx] {
			return
		}
		q := points[idx]
		d := math.Hypot(q.X-p.X, q.Y-p.Y)
		if d < bestDist {
			bestDist = d
			best = idx
		}
	}

	maxRing := grid.MaxRing()
	for ring := 0; ring <= maxRing; ring++ {
		grid.Ring(cx, cy, ring, consider)
		if best >= 0 {
			grid.Ring(cx, cy, ring+1, consider)
			return best
		}
	}
	return best
}

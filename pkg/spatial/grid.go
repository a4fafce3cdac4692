// Package spatial provides a bucket index over 2D points for
// amortized-O(1) neighbor lookup. It backs streamline separation,
// stipple rejection and the tour builder's nearest-neighbor search.
package spatial

import (
	"math"

	"eikotrace/internal/domain"
)

// Grid buckets points by a fixed cell edge length. Every inserted
// point is discoverable by scanning its own bucket and the ring of
// buckets within the search radius.
type Grid struct {
	cell   float64
	minX   float64
	minY   float64
	cols   int
	rows   int
	points []domain.Point
	bucket [][]int32
}

// NewGrid covers the rectangle [minX,minX+width]×[minY,minY+height]
// with buckets of the given cell edge length.
func NewGrid(minX, minY, width, height, cell float64) *Grid {
	if cell <= 0 {
		cell = 1
	}
	cols := int(math.Ceil(width/cell)) + 1
	rows := int(math.Ceil(height/cell)) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Grid{
		cell:   cell,
		minX:   minX,
		minY:   minY,
		cols:   cols,
		rows:   rows,
		bucket: make([][]int32, cols*rows),
	}
}

// CellOf maps a point to its bucket coordinates, clamped to the grid.
func (g *Grid) CellOf(p domain.Point) (int, int) {
	cx := int((p.X - g.minX) / g.cell)
	cy := int((p.Y - g.minY) / g.cell)
	if cx < 0 {
		cx = 0
	}
	if cy < 0 {
		cy = 0
	}
	if cx >= g.cols {
		cx = g.cols - 1
	}
	if cy >= g.rows {
		cy = g.rows - 1
	}
	return cx, cy
}

// Insert stores p and returns its index.
func (g *Grid) Insert(p domain.Point) int {
	idx := len(g.points)
	g.points = append(g.points, p)
	cx, cy := g.CellOf(p)
	b := cy*g.cols + cx
	g.bucket[b] = append(g.bucket[b], int32(idx))
	return idx
}

// Len reports the number of stored points.
func (g *Grid) Len() int { return len(g.points) }

// Point returns the stored point at index idx.
func (g *Grid) Point(idx int) domain.Point { return g.points[idx] }

// MaxRing is the ring count that covers the whole grid from any cell.
func (g *Grid) MaxRing() int {
	if g.cols > g.rows {
		return g.cols
	}
	return g.rows
}

// Near calls fn with the index of every stored point whose bucket lies
// within radius of p. Candidates outside the radius may be included;
// callers filter by exact distance.
func (g *Grid) Near(p domain.Point, radius float64, fn func(idx int)) {
	ring := int(math.Ceil(radius / g.cell))
	cx, cy := g.CellOf(p)
	for dy := -ring; dy <= ring; dy++ {
		y := cy + dy
		if y < 0 || y >= g.rows {
			continue
		}
		for dx := -ring; dx <= ring; dx++ {
			x := cx + dx
			if x < 0 || x >= g.cols {
				continue
			}
			for _, idx := range g.bucket[y*g.cols+x] {
				fn(int(idx))
			}
		}
	}
}

// Ring calls fn with every point index stored in the square ring of
// buckets at the given distance from cell (cx,cy). Ring 0 is the cell
// itself.
func (g *Grid) Ring(cx, cy, ring int, fn func(idx int)) {
	if ring == 0 {
		if cx >= 0 && cx < g.cols && cy >= 0 && cy < g.rows {
			for _, idx := range g.bucket[cy*g.cols+cx] {
				fn(int(idx))
			}
		}
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		g.visit(cx+dx, cy-ring, fn)
		g.visit(cx+dx, cy+ring, fn)
	}
	for dy := -ring + 1; dy <= ring-1; dy++ {
		g.visit(cx-ring, cy+dy, fn)
		g.visit(cx+ring, cy+dy, fn)
	}
}

func (g *Grid) visit(x, y int, fn func(idx int)) {
	if x < 0 || x >= g.cols || y < 0 || y >= g.rows {
		return
	}
	for _, idx := range g.bucket[y*g.cols+x] {
		fn(int(idx))
	}
}

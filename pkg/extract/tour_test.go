package extract

import (
	"math/rand"
	"testing"

	"eikotrace/internal/domain"
)

func TestTourVisitsEveryPointOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	points := make([]domain.Point, 300)
	for i := range points {
		points[i] = domain.Point{X: rng.Float64() * 100, Y: rng.Float64() * 100}
	}

	tour, connected, err := Tour(points, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tour) != len(points) || connected != len(points) {
		t.Fatalf("tour has %d points, want %d", len(tour), len(points))
	}
	seen := map[domain.Point]int{}
	for _, p := range tour {
		seen[p]++
	}
	for p, n := range seen {
		if n != 1 {
			t.Errorf("point %+v visited %d times", p, n)
		}
	}
	if len(seen) != len(points) {
		t.Errorf("tour covers %d distinct points, want %d", len(seen), len(points))
	}
}

func TestTourGreedyOrderOnALine(t *testing.T) {
	points := []domain.Point{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 30, Y: 0},
	}
	tour, _, err := Tour(points, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range points {
		if tour[i] != want {
			t.Fatalf("tour[%d] = %+v, want %+v (nearest-neighbor order)", i, tour[i], want)
		}
	}
}

func TestTourBoundaries(t *testing.T) {
	if tour, _, _ := Tour(nil, nil); len(tour) != 0 {
		t.Error("empty input should yield an empty tour")
	}
	// Exactly one point is also below the minimum: empty, not a singleton.
	if tour, _, _ := Tour([]domain.Point{{X: 5, Y: 5}}, nil); len(tour) != 0 {
		t.Error("single-point input should yield an empty tour")
	}
}

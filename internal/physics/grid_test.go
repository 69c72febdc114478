package physics

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func at(x, y float64) Particle {
	return NewParticle(r2.Vec{X: x, Y: y}, 1, 0, Color{})
}

func TestGridCell(t *testing.T) {
	g := NewGrid(10)

	tests := []struct {
		pos    r2.Vec
		cx, cy int
	}{
		{r2.Vec{X: 0, Y: 0}, 0, 0},
		{r2.Vec{X: 9.99, Y: 10}, 0, 1},
		{r2.Vec{X: -0.5, Y: 15}, -1, 1},
		{r2.Vec{X: -10, Y: -10.1}, -1, -2},
	}

	for _, tt := range tests {
		cx, cy := g.Cell(tt.pos)
		if cx != tt.cx || cy != tt.cy {
			t.Errorf("Cell(%v) = (%d,%d), want (%d,%d)", tt.pos, cx, cy, tt.cx, tt.cy)
		}
	}
}

func TestGridNeighbors(t *testing.T) {
	g := NewGrid(10)
	ps := []Particle{at(5, 5), at(15, 5), at(35, 5), at(5, 15)}
	g.Rebuild(ps)

	var got []int
	g.Neighbors(ps[0].Pos, func(idx int) { got = append(got, idx) })

	want := []int{0, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("neighbors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("neighbors = %v, want %v", got, want)
		}
	}
}

func TestGridYieldsPairsFromBothSides(t *testing.T) {
	g := NewGrid(10)
	ps := []Particle{at(1, 1), at(2, 2), at(50, 50)}
	g.Rebuild(ps)

	seen := make(map[[2]int]int)
	for i := range ps {
		g.Neighbors(ps[i].Pos, func(j int) {
			if i != j {
				seen[[2]int{i, j}]++
			}
		})
	}

	if seen[[2]int{0, 1}] != 1 || seen[[2]int{1, 0}] != 1 {
		t.Errorf("expected pair visited once per direction, got %v", seen)
	}
	if len(seen) != 2 {
		t.Errorf("distant particle should not pair, got %v", seen)
	}
}

func TestGridRebuildClears(t *testing.T) {
	g := NewGrid(10)
	g.Rebuild([]Particle{at(5, 5), at(55, 55), at(105, 105)})
	if g.Occupied() != 3 {
		t.Fatalf("expected 3 cells, got %d", g.Occupied())
	}

	g.Rebuild([]Particle{at(5, 5)})
	if g.Occupied() != 1 {
		t.Errorf("expected 1 cell after rebuild, got %d", g.Occupied())
	}

	count := 0
	g.Neighbors(r2.Vec{X: 55, Y: 55}, func(int) { count++ })
	if count != 0 {
		t.Errorf("stale indices survived rebuild: %d", count)
	}
}

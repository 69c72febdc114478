package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

type cellKey struct {
	x, y int
}

// Grid buckets particle indices into square cells. It owns no particles and
// is only meaningful until the slice it was built from changes.
type Grid struct {
	cellSize float64
	cells    map[cellKey][]int
}

func NewGrid(cellSize float64) *Grid {
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

func (g *Grid) CellSize() float64 { return g.cellSize }

// Cell returns the integer cell coordinates containing pos.
func (g *Grid) Cell(pos r2.Vec) (int, int) {
	return int(math.Floor(pos.X / g.cellSize)), int(math.Floor(pos.Y / g.cellSize))
}

func (g *Grid) Rebuild(particles []Particle) {
	clear(g.cells)
	for i := range particles {
		cx, cy := g.Cell(particles[i].Pos)
		k := cellKey{cx, cy}
		g.cells[k] = append(g.cells[k], i)
	}
}

// Neighbors calls visit for every index in the 3x3 block of cells around pos,
// including the particle at pos itself. Pairs are not deduplicated.
func (g *Grid) Neighbors(pos r2.Vec, visit func(idx int)) {
	cx, cy := g.Cell(pos)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, idx := range g.cells[cellKey{cx + dx, cy + dy}] {
				visit(idx)
			}
		}
	}
}

// Occupied returns the number of non-empty cells.
func (g *Grid) Occupied() int { return len(g.cells) }

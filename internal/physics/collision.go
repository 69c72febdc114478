package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Collider resolves circle overlaps with a single mass-weighted pass.
type Collider struct {
	grid    *Grid
	damping float64
}

func NewCollider(cellSize, damping float64) *Collider {
	return &Collider{grid: NewGrid(cellSize), damping: damping}
}

// Solve rebuilds the grid and pushes every overlapping pair apart once from
// each side. Coincident centres have no normal and are left alone. It returns
// the number of corrections applied.
func (c *Collider) Solve(ps []Particle) int {
	c.grid.Rebuild(ps)
	contacts := 0

	for i := range ps {
		p1 := &ps[i]
		c.grid.Neighbors(p1.Pos, func(j int) {
			if i == j {
				return
			}
			p2 := &ps[j]

			delta := r2.Sub(p1.Pos, p2.Pos)
			distSq := r2.Norm2(delta)
			minDist := p1.radius + p2.radius
			if distSq == 0 || distSq >= minDist*minDist {
				return
			}

			dist := math.Sqrt(distSq)
			n := r2.Vec{X: delta.X / dist, Y: delta.Y / dist}
			overlap := (minDist - dist) * 0.5
			total := p1.mass + p2.mass
			ratio1, ratio2 := p2.mass/total, p1.mass/total

			sep := r2.Scale(overlap, n)
			p1.Pos = r2.Add(p1.Pos, r2.Scale(ratio1*c.damping, sep))
			p2.Pos = r2.Sub(p2.Pos, r2.Scale(ratio2*c.damping, sep))
			contacts++
		})
	}

	return contacts
}

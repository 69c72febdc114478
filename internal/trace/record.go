package trace

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/spherique/internal/physics"
)

// Record is the spawn descriptor of one particle.
type Record struct {
	Step   int
	X, Y   float64
	Radius float64
	PrevX  float64
	PrevY  float64
	Color  physics.Color
}

func FromParticle(p physics.Particle) Record {
	return Record{
		Step:   p.Step,
		X:      p.Pos.X,
		Y:      p.Pos.Y,
		Radius: p.Radius(),
		PrevX:  p.Prev.X,
		PrevY:  p.Prev.Y,
		Color:  p.Color,
	}
}

// Particle rebuilds the particle exactly as it was when the record was taken.
func (r Record) Particle() physics.Particle {
	p := physics.NewParticle(r2.Vec{X: r.X, Y: r.Y}, r.Radius, r.Step, r.Color)
	p.Prev = r2.Vec{X: r.PrevX, Y: r.PrevY}
	return p
}

package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

type Color struct {
	R, G, B uint8
}

// Bounds is the axis-aligned world [0, Width] x [0, Height].
type Bounds struct {
	Width, Height float64
}

// Particle is a Verlet body. Velocity is never stored: it is Pos - Prev.
type Particle struct {
	Pos   r2.Vec
	Prev  r2.Vec
	Acc   r2.Vec
	Step  int
	Color Color

	radius float64
	mass   float64
}

// NewParticle creates a particle at rest at pos. Mass is fixed to π·r².
func NewParticle(pos r2.Vec, radius float64, step int, c Color) Particle {
	return Particle{
		Pos:    pos,
		Prev:   pos,
		Step:   step,
		Color:  c,
		radius: radius,
		mass:   math.Pi * radius * radius,
	}
}

func (p *Particle) Radius() float64 { return p.radius }
func (p *Particle) Mass() float64   { return p.mass }

// Velocity is the displacement over the last integration step.
func (p *Particle) Velocity() r2.Vec { return r2.Sub(p.Pos, p.Prev) }

// Accelerate accumulates force/mass until the next Integrate.
func (p *Particle) Accelerate(force r2.Vec) {
	p.Acc = r2.Add(p.Acc, r2.Vec{X: force.X / p.mass, Y: force.Y / p.mass})
}

// Integrate performs one Störmer-Verlet step and clears the accumulator.
func (p *Particle) Integrate(dt float64) {
	v := r2.Sub(p.Pos, p.Prev)
	p.Prev = p.Pos
	p.Pos = r2.Add(p.Pos, r2.Add(v, r2.Scale(dt*dt, p.Acc)))
	p.Acc = r2.Vec{}
}

// Constrain clamps the circle inside b, reflecting the velocity component of
// every axis that was hit by bounceLoss. The implicit velocity is then rebuilt
// with a further damping factor, so a wall hit loses energy twice.
func (p *Particle) Constrain(b Bounds, bounceLoss, damping float64) {
	v := r2.Sub(p.Pos, p.Prev)
	r := p.radius

	if p.Pos.X-r < 0 {
		p.Pos.X, v.X = r, -v.X*bounceLoss
	} else if p.Pos.X+r > b.Width {
		p.Pos.X, v.X = b.Width-r, -v.X*bounceLoss
	}
	if p.Pos.Y-r < 0 {
		p.Pos.Y, v.Y = r, -v.Y*bounceLoss
	} else if p.Pos.Y+r > b.Height {
		p.Pos.Y, v.Y = b.Height-r, -v.Y*bounceLoss
	}

	p.Prev = r2.Sub(p.Pos, r2.Scale(damping, v))
}

// Inside reports whether the whole circle lies within b, using the same
// tests as Constrain. (W-r)+r can round one ulp above W, so a circle sitting
// exactly on the far-wall clamp value also counts as inside.
func (p *Particle) Inside(b Bounds) bool {
	return within(p.Pos.X, p.radius, b.Width) && within(p.Pos.Y, p.radius, b.Height)
}

func within(x, r, limit float64) bool {
	return x-r >= 0 && (x+r <= limit || x == limit-r)
}

func (p *Particle) IsValid() bool {
	for _, v := range [...]float64{p.Pos.X, p.Pos.Y, p.Prev.X, p.Prev.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

package metrics

import (
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/sim"
)

// Stability is the fraction of steps on which every particle was finite and
// within threshold of the world bounds. Integration runs after the wall
// constraints, so a small overshoot is normal.
type Stability struct {
	name       string
	bounds     physics.Bounds
	threshold  float64
	violations int
	samples    int
}

func NewStability(bounds physics.Bounds, threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		bounds:    bounds,
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(_ int, w *sim.World) {
	s.samples++
	ps := w.Particles()
	for i := range ps {
		if !s.ok(&ps[i]) {
			s.violations++
			break
		}
	}
}

func (s *Stability) ok(p *physics.Particle) bool {
	if !p.IsValid() {
		return false
	}
	r := p.Radius() - s.threshold
	return p.Pos.X >= r && p.Pos.X <= s.bounds.Width-r &&
		p.Pos.Y >= r && p.Pos.Y <= s.bounds.Height-r
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

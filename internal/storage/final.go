package storage

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/spherique/internal/physics"
)

// ParticleState is the on-disk form of a particle at the end of a run.
type ParticleState struct {
	Step   int      `msgpack:"step"`
	X      float64  `msgpack:"x"`
	Y      float64  `msgpack:"y"`
	PrevX  float64  `msgpack:"px"`
	PrevY  float64  `msgpack:"py"`
	Radius float64  `msgpack:"r"`
	Color  [3]uint8 `msgpack:"c"`
}

func StateOf(p physics.Particle) ParticleState {
	return ParticleState{
		Step:   p.Step,
		X:      p.Pos.X,
		Y:      p.Pos.Y,
		PrevX:  p.Prev.X,
		PrevY:  p.Prev.Y,
		Radius: p.Radius(),
		Color:  [3]uint8{p.Color.R, p.Color.G, p.Color.B},
	}
}

func (s ParticleState) Particle() physics.Particle {
	p := physics.NewParticle(r2.Vec{X: s.X, Y: s.Y}, s.Radius, s.Step,
		physics.Color{R: s.Color[0], G: s.Color[1], B: s.Color[2]})
	p.Prev = r2.Vec{X: s.PrevX, Y: s.PrevY}
	return p
}

func writeFinal(path string, particles []physics.Particle) error {
	states := make([]ParticleState, len(particles))
	for i, p := range particles {
		states[i] = StateOf(p)
	}

	data, err := msgpack.Marshal(&states)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFinal returns the particles alive at the end of the run, in arena order.
func (s *Store) LoadFinal(runID string) ([]physics.Particle, error) {
	data, err := os.ReadFile(s.path(runID, finalFile))
	if err != nil {
		return nil, notFound(runID, err)
	}

	var states []ParticleState
	if err := msgpack.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("run %s: decode final state: %w", runID, err)
	}

	particles := make([]physics.Particle, len(states))
	for i, st := range states {
		particles[i] = st.Particle()
	}
	return particles, nil
}

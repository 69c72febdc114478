package metrics

import (
	"math"

	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/sim"
)

// Kinetic returns Σ ½·m·|v|² where v is the last substep displacement divided
// by subDt.
func Kinetic(ps []physics.Particle, subDt float64) float64 {
	var total float64
	for i := range ps {
		v := ps[i].Velocity()
		total += 0.5 * ps[i].Mass() * (v.X*v.X + v.Y*v.Y)
	}
	return total / (subDt * subDt)
}

// Energy is the mean kinetic energy over all observed steps.
type Energy struct {
	name        string
	subDt       float64
	samples     int
	totalEnergy float64
}

func NewEnergy(subDt float64) *Energy {
	return &Energy{
		name:  "kinetic_energy",
		subDt: subDt,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(_ int, w *sim.World) {
	e.totalEnergy += Kinetic(w.Particles(), e.subDt)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift tracks the largest relative change of kinetic energy against
// the first non-zero reading. Spawns add energy, so it is only meaningful
// once the arena is full.
type EnergyDrift struct {
	name          string
	subDt         float64
	initialEnergy float64
	maxDrift      float64
}

func NewEnergyDrift(subDt float64) *EnergyDrift {
	return &EnergyDrift{
		name:  "energy_drift",
		subDt: subDt,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(_ int, w *sim.World) {
	energy := Kinetic(w.Particles(), e.subDt)
	if e.initialEnergy == 0 {
		e.initialEnergy = energy
		return
	}
	drift := math.Abs(energy-e.initialEnergy) / e.initialEnergy
	e.maxDrift = math.Max(e.maxDrift, drift)
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
}

package sim

import (
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/trace"
)

// Metric accumulates a value over a run. Observe is called after every outer
// step with the step count reached so far.
type Metric interface {
	Name() string
	Observe(step int, w *World)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, w *World)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(step int, w *World)

func (f ObserverFunc) OnStep(step int, w *World) { f(step, w) }

type Result struct {
	Trace      []trace.Record
	Particles  []physics.Particle
	Metrics    map[string]float64
	StepsTaken int
	Evicted    int
}

package metrics

import (
	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/sim"
)

// Sample is one row of per-step statistics.
type Sample struct {
	Step     int     `json:"step"`
	Live     int     `json:"live"`
	Kinetic  float64 `json:"kinetic"`
	Contacts int     `json:"contacts"`
}

// Recorder is a sim.Observer that keeps one Sample per outer step.
type Recorder struct {
	subDt   float64
	src     ContactCounter
	samples []Sample
}

// NewRecorder records against cfg's substep length. src may be nil when
// contacts are not available, as in a replay.
func NewRecorder(cfg config.Config, src ContactCounter) *Recorder {
	return &Recorder{
		subDt:   cfg.FixedDt / float64(cfg.Substeps),
		src:     src,
		samples: make([]Sample, 0, cfg.TotalSteps),
	}
}

func (r *Recorder) OnStep(step int, w *sim.World) {
	s := Sample{
		Step:    step,
		Live:    w.Len(),
		Kinetic: Kinetic(w.Particles(), r.subDt),
	}
	if r.src != nil {
		s.Contacts = r.src.Contacts()
	}
	r.samples = append(r.samples, s)
}

func (r *Recorder) Samples() []Sample { return r.samples }

// Series extracts one column for plotting.
func (r *Recorder) Series(field func(Sample) float64) []float64 {
	return Series(r.samples, field)
}

func Series(samples []Sample, field func(Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = field(s)
	}
	return out
}

// Standard returns the metrics attached to every stored run.
func Standard(cfg config.Config, src ContactCounter) []sim.Metric {
	subDt := cfg.FixedDt / float64(cfg.Substeps)
	ms := []sim.Metric{
		NewEnergy(subDt),
		NewEnergyDrift(subDt),
		NewPopulation(),
		NewStability(physics.Bounds{Width: cfg.Width, Height: cfg.Height}, cfg.MaxRadius),
	}
	if src != nil {
		ms = append(ms, NewContacts(src))
	}
	return ms
}

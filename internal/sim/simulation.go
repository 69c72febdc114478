package sim

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/trace"
)

const progressEvery = 100

// Simulation owns the arena, the seeded generator and the spawn trace of a
// single core run.
type Simulation struct {
	cfg       config.Config
	world     *World
	engine    *Engine
	rng       *rand.Rand
	step      int
	trace     []trace.Record
	metrics   []Metric
	observers []Observer
	logger    *log.Logger
}

func New(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new simulation: %w", err)
	}
	return &Simulation{
		cfg:    cfg,
		world:  NewWorld(cfg.MaxObjects),
		engine: NewEngine(cfg),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (s *Simulation) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulation) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// SetLogger enables progress logging. A nil logger silences it.
func (s *Simulation) SetLogger(l *log.Logger) { s.logger = l }

func (s *Simulation) Config() config.Config { return s.cfg }
func (s *Simulation) World() *World         { return s.world }
func (s *Simulation) Engine() *Engine       { return s.engine }
func (s *Simulation) CurrentStep() int      { return s.step }
func (s *Simulation) Done() bool            { return s.step >= s.cfg.TotalSteps }

// Trace returns the spawn records written so far.
func (s *Simulation) Trace() []trace.Record { return s.trace }

// Step runs one outer step: an optional spawn, then the engine update.
func (s *Simulation) Step() {
	if s.step%s.cfg.SpawnInterval == 0 && s.world.Len() < s.cfg.MaxObjects {
		s.spawn()
	}
	s.engine.Update(s.world, s.cfg.FixedDt)
	s.step++

	for _, m := range s.metrics {
		m.Observe(s.step, s.world)
	}
	for _, obs := range s.observers {
		obs.OnStep(s.step, s.world)
	}

	if s.logger != nil && s.step%progressEvery == 0 {
		s.logger.Info("calculated", "step", s.step, "total", s.cfg.TotalSteps, "balls", s.world.Len())
	}
}

// Run executes the remaining steps up to TotalSteps.
func (s *Simulation) Run() *Result {
	for _, m := range s.metrics {
		m.Reset()
	}
	for !s.Done() {
		s.Step()
	}

	result := &Result{
		Trace:      s.trace,
		Particles:  s.world.Snapshot(),
		Metrics:    make(map[string]float64, len(s.metrics)),
		StepsTaken: s.step,
		Evicted:    s.world.Evicted(),
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result
}

// spawn draws radius, colour channels and heading from the generator in
// that order and records the new particle in the trace.
func (s *Simulation) spawn() {
	radius := s.cfg.MinRadius + s.rng.Float64()*(s.cfg.MaxRadius-s.cfg.MinRadius)
	color := physics.Color{
		R: s.channel(),
		G: s.channel(),
		B: s.channel(),
	}
	angle := s.rng.Float64() * 2 * math.Pi

	pos := s.cfg.Origin()
	vel := r2.Vec{X: math.Cos(angle) * s.cfg.SpawnSpeed, Y: math.Sin(angle) * s.cfg.SpawnSpeed}

	p := physics.NewParticle(pos, radius, s.step, color)
	p.Prev = r2.Sub(pos, r2.Scale(s.cfg.FixedDt, vel))

	s.world.Add(p)
	s.trace = append(s.trace, trace.FromParticle(p))
}

func (s *Simulation) channel() uint8 {
	return uint8(s.cfg.ColorMin + s.rng.Intn(s.cfg.ColorMax-s.cfg.ColorMin+1))
}

package sim

import (
	"bytes"
	"context"

	"github.com/charmbracelet/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/trace"
)

func smallConfig(steps int) config.Config {
	cfg, _ := config.GetPreset("small")
	cfg.TotalSteps = steps
	return cfg
}

func mustRun(cfg config.Config) *Result {
	s, err := New(cfg)
	Expect(err).NotTo(HaveOccurred())
	return s.Run()
}

func encode(records []trace.Record) []byte {
	var buf bytes.Buffer
	Expect(trace.Encode(&buf, records)).To(Succeed())
	return buf.Bytes()
}

// updateReordered runs the substep phases with constraints before collisions.
func updateReordered(e *Engine, w *World, dt float64) {
	subDt := dt / float64(e.substeps)
	for i := 0; i < e.substeps; i++ {
		ps := w.Particles()
		e.applyGravity(ps)
		e.applyConstraints(ps)
		e.solveCollisions(ps)
		e.integrate(ps, subDt)
	}
}

var _ = Describe("Simulation", func() {
	It("rejects an invalid configuration", func() {
		cfg := config.DefaultConfig()
		cfg.Substeps = 0
		_, err := New(cfg)
		Expect(err).To(MatchError(config.ErrInvalid))
	})

	Describe("determinism", func() {
		It("produces byte-identical traces and identical finals for the same seed", func() {
			a := mustRun(smallConfig(300))
			b := mustRun(smallConfig(300))

			Expect(a.Trace).To(HaveLen(150))
			Expect(encode(a.Trace)).To(Equal(encode(b.Trace)))
			Expect(a.Particles).To(Equal(b.Particles))
		})

		It("diverges for a different seed", func() {
			cfg := smallConfig(50)
			a := mustRun(cfg)
			cfg.Seed++
			b := mustRun(cfg)
			Expect(encode(a.Trace)).NotTo(Equal(encode(b.Trace)))
		})
	})

	It("draws every radius and colour channel from the configured ranges", func() {
		cfg := smallConfig(150)
		res := mustRun(cfg)

		for _, rec := range res.Trace {
			Expect(rec.Radius).To(BeNumerically(">=", cfg.MinRadius))
			Expect(rec.Radius).To(BeNumerically("<=", cfg.MaxRadius))
			for _, ch := range []uint8{rec.Color.R, rec.Color.G, rec.Color.B} {
				Expect(int(ch)).To(BeNumerically(">=", cfg.ColorMin))
				Expect(int(ch)).To(BeNumerically("<=", cfg.ColorMax))
			}
		}
		for i := range res.Particles {
			Expect(res.Particles[i].Radius()).To(BeNumerically(">=", cfg.MinRadius))
		}
	})

	It("spawns with the configured speed and records the spawn step", func() {
		cfg := smallConfig(10)
		cfg.SpawnInterval = 3
		res := mustRun(cfg)

		Expect(res.Trace).To(HaveLen(4))
		for i, rec := range res.Trace {
			Expect(rec.Step).To(Equal(3 * i))
			Expect(rec.X).To(Equal(cfg.Origin().X))
			Expect(rec.Y).To(Equal(cfg.Origin().Y))
			v := r2.Sub(r2.Vec{X: rec.X, Y: rec.Y}, r2.Vec{X: rec.PrevX, Y: rec.PrevY})
			Expect(r2.Norm(v)).To(BeNumerically("~", cfg.SpawnSpeed*cfg.FixedDt, 1e-12))
		}
	})

	Describe("capacity", func() {
		It("never holds more than MaxObjects particles", func() {
			cfg := smallConfig(200)
			cfg.MaxObjects = 25

			s, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			s.AddObserver(ObserverFunc(func(step int, w *World) {
				Expect(w.Len()).To(BeNumerically("<=", cfg.MaxObjects))
			}))
			res := s.Run()

			Expect(res.Particles).To(HaveLen(25))
			Expect(res.Trace).To(HaveLen(25))
			Expect(res.StepsTaken).To(Equal(200))
		})

		It("evicts the oldest particle when the arena is full", func() {
			w := NewWorld(3)
			for i := 0; i < 5; i++ {
				evicted := w.Add(physics.NewParticle(r2.Vec{}, 1, i, physics.Color{}))
				Expect(evicted).To(Equal(i >= 3))
			}

			steps := []int{}
			for _, p := range w.Particles() {
				steps = append(steps, p.Step)
			}
			Expect(steps).To(Equal([]int{2, 3, 4}))
			Expect(w.Evicted()).To(Equal(2))

			w.Reset()
			Expect(w.Len()).To(BeZero())
			Expect(w.Evicted()).To(BeZero())
		})
	})

	It("keeps every particle inside the world after each constraint pass", func() {
		cfg := smallConfig(400)
		cfg.MaxObjects = 120
		s, err := New(cfg)
		Expect(err).NotTo(HaveOccurred())

		e := s.engine
		bounds := e.Bounds()
		subDt := cfg.FixedDt / float64(cfg.Substeps)
		checked := 0
		for !s.Done() {
			if s.step%cfg.SpawnInterval == 0 && s.world.Len() < cfg.MaxObjects {
				s.spawn()
			}
			for i := 0; i < e.substeps; i++ {
				ps := s.world.Particles()
				e.applyGravity(ps)
				e.solveCollisions(ps)
				e.applyConstraints(ps)
				for j := range ps {
					Expect(ps[j].Inside(bounds)).To(BeTrue(),
						"step %d substep %d: particle %d at %v", s.step, i, ps[j].Step, ps[j].Pos)
					checked++
				}
				e.integrate(ps, subDt)
			}
			s.step++
		}

		Expect(checked).To(BeNumerically(">", 0))
		Expect(s.world.Particles()).To(Equal(mustRun(cfg).Particles))
	})

	It("keeps coincident particles finite", func() {
		cfg := smallConfig(60)
		cfg.MinRadius, cfg.MaxRadius = 8, 8
		cfg.SpawnSpeed = 0
		cfg.MaxObjects = 10
		res := mustRun(cfg)

		Expect(res.Particles).To(HaveLen(10))
		for _, p := range res.Particles {
			Expect(p.IsValid()).To(BeTrue())
			Expect(p.Pos.X).To(Equal(cfg.Origin().X))
		}
	})

	It("settles a single particle on the floor", func() {
		cfg, _ := config.GetPreset("settle")
		res := mustRun(cfg)

		Expect(res.Particles).To(HaveLen(1))
		p := res.Particles[0]
		Expect(p.Radius()).To(Equal(10.0))
		Expect(p.Pos.X).To(Equal(500.0))
		Expect(p.Pos.Y).To(BeNumerically("~", 990, 0.01))
	})

	It("logs progress every hundred steps", func() {
		var buf bytes.Buffer
		s, err := New(smallConfig(250))
		Expect(err).NotTo(HaveOccurred())
		s.SetLogger(log.New(&buf))
		s.Run()

		Expect(buf.String()).To(ContainSubstring("step=100"))
		Expect(buf.String()).To(ContainSubstring("step=200"))
		Expect(buf.String()).NotTo(ContainSubstring("step=250"))
	})
})

var _ = Describe("Engine", func() {
	var (
		cfg   config.Config
		world *World
	)

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		cfg.Gravity = config.Vec{}
		cfg.Substeps = 1
		world = NewWorld(cfg.MaxObjects)
	})

	It("splits an equal-mass overlap evenly", func() {
		world.Add(physics.NewParticle(r2.Vec{X: 500, Y: 500}, 10, 0, physics.Color{}))
		world.Add(physics.NewParticle(r2.Vec{X: 500, Y: 510}, 10, 1, physics.Color{}))

		e := NewEngine(cfg)
		e.Update(world, cfg.FixedDt)
		ps := world.Particles()

		Expect(e.Contacts()).To(Equal(2))
		Expect(ps[0].Pos.Y).To(BeNumerically("~", 492.93734375, 1e-9))
		Expect(ps[1].Pos.Y).To(BeNumerically("~", 517.06265625, 1e-9))
		Expect((ps[0].Pos.Y + ps[1].Pos.Y) / 2).To(BeNumerically("~", 505, 1e-9))
		Expect(ps[1].Pos.Y - ps[0].Pos.Y).To(BeNumerically(">", 2*10.0))
		Expect(ps[0].Pos.X).To(Equal(500.0))
	})

	It("moves the lighter particle further", func() {
		world.Add(physics.NewParticle(r2.Vec{X: 100, Y: 100}, 10, 0, physics.Color{}))
		world.Add(physics.NewParticle(r2.Vec{X: 125, Y: 100}, 20, 1, physics.Color{}))

		NewEngine(cfg).Update(world, cfg.FixedDt)
		ps := world.Particles()

		Expect(ps[0].Pos.X).To(BeNumerically("~", 94.349875, 1e-9))
		Expect(ps[1].Pos.X).To(BeNumerically("~", 126.41253125, 1e-9))
		Expect(100 - ps[0].Pos.X).To(BeNumerically("~", 4*(ps[1].Pos.X-125), 1e-9))
	})

	It("depends on the order of the substep phases", func() {
		seed := func() *World {
			w := NewWorld(2)
			w.Add(physics.NewParticle(r2.Vec{X: 500, Y: 988}, 10, 0, physics.Color{}))
			w.Add(physics.NewParticle(r2.Vec{X: 500, Y: 978}, 10, 1, physics.Color{}))
			return w
		}

		cfg.Substeps = 8
		e := NewEngine(cfg)
		ordered, reordered := seed(), seed()
		for i := 0; i < 5; i++ {
			e.Update(ordered, cfg.FixedDt)
			updateReordered(e, reordered, cfg.FixedDt)
		}

		Expect(ordered.Particles()[0].Pos).NotTo(Equal(reordered.Particles()[0].Pos))
	})

	It("matches the serial result when per-particle passes run in parallel", func() {
		base, _ := config.GetPreset("dense")
		base.TotalSteps = 400
		base.Parallel = false
		serial := mustRun(base)

		base.Parallel = true
		parallel := mustRun(base)

		Expect(len(serial.Particles)).To(BeNumerically(">", minParallelChunk))
		Expect(parallel.Particles).To(Equal(serial.Particles))
	})
})

var _ = Describe("Replayer", func() {
	It("reproduces the core trajectories from the trace", func() {
		cfg := smallConfig(300)
		core := mustRun(cfg)

		records, err := trace.ReadAll(bytes.NewReader(encode(core.Trace)))
		Expect(err).NotTo(HaveOccurred())

		r := NewReplayer(cfg, records)
		r.Run()

		Expect(r.Pending()).To(BeZero())
		Expect(r.CurrentStep()).To(Equal(core.StepsTaken))
		Expect(r.World().Snapshot()).To(Equal(core.Particles))
	})

	It("spawns every record of a step at once", func() {
		cfg := smallConfig(3)
		records := []trace.Record{
			{Step: 0, X: 100, Y: 100, Radius: 5, PrevX: 100, PrevY: 100},
			{Step: 0, X: 200, Y: 100, Radius: 5, PrevX: 200, PrevY: 100},
			{Step: 2, X: 300, Y: 100, Radius: 5, PrevX: 300, PrevY: 100},
		}
		r := NewReplayer(cfg, records)

		r.Step()
		Expect(r.World().Len()).To(Equal(2))
		r.Step()
		Expect(r.World().Len()).To(Equal(2))
		r.Step()
		Expect(r.World().Len()).To(Equal(3))
		Expect(r.Done()).To(BeTrue())
	})

	It("stops spawning at a truncated or out-of-order trace", func() {
		cfg := smallConfig(20)
		records := []trace.Record{
			{Step: 0, X: 100, Y: 100, Radius: 5, PrevX: 100, PrevY: 100},
			{Step: 5, X: 100, Y: 100, Radius: 5, PrevX: 100, PrevY: 100},
			{Step: 1, X: 100, Y: 100, Radius: 5, PrevX: 100, PrevY: 100},
		}
		r := NewReplayer(cfg, records)
		r.Run()

		Expect(r.World().Len()).To(Equal(2))
		Expect(r.Pending()).To(Equal(1))

		r.Reset()
		Expect(r.World().Len()).To(BeZero())
		Expect(r.Pending()).To(Equal(3))
		Expect(CheckTrace(cfg, records)).To(MatchError(ErrUnplayable))
	})

	It("stops spawning at a radius the collider cells cannot hold", func() {
		cfg, _ := config.GetPreset("dense")
		cfg.Gravity = config.Vec{}
		cfg.TotalSteps = 50
		records := []trace.Record{
			{Step: 0, X: 300, Y: 300, Radius: 8, PrevX: 300, PrevY: 300},
			{Step: 1, X: 100, Y: 100, Radius: 28, PrevX: 100, PrevY: 100},
			{Step: 1, X: 140, Y: 100, Radius: 28, PrevX: 140, PrevY: 100},
		}
		Expect(CheckTrace(cfg, records)).To(MatchError(ErrUnplayable))

		r := NewReplayer(cfg, records)
		r.Run()

		Expect(r.Halted()).To(BeTrue())
		Expect(r.World().Len()).To(Equal(1))
		Expect(r.Pending()).To(Equal(2))

		r.Reset()
		Expect(r.Halted()).To(BeFalse())
	})

	It("resolves large records once the radius range admits them", func() {
		cfg, _ := config.GetPreset("dense")
		cfg.Gravity = config.Vec{}
		cfg.MinRadius, cfg.MaxRadius = 5, 28
		cfg.TotalSteps = 50
		records := []trace.Record{
			{Step: 0, X: 100, Y: 100, Radius: 28, PrevX: 100, PrevY: 100},
			{Step: 0, X: 140, Y: 100, Radius: 28, PrevX: 140, PrevY: 100},
		}
		Expect(CheckTrace(cfg, records)).To(Succeed())

		r := NewReplayer(cfg, records)
		r.Run()

		ps := r.World().Particles()
		Expect(ps).To(HaveLen(2))
		Expect(r2.Norm(r2.Sub(ps[0].Pos, ps[1].Pos))).To(BeNumerically(">", 50))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs each member with consecutive seeds", func() {
		cfg := smallConfig(40)
		results, err := NewEnsemble(cfg, 3, 100, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))

		for i, res := range results {
			single := cfg
			single.Seed = 100 + uint64(i)
			Expect(encode(res.Trace)).To(Equal(encode(mustRun(single).Trace)))
		}
	})

	It("fails on an invalid configuration", func() {
		cfg := smallConfig(10)
		cfg.FixedDt = 0
		_, err := NewEnsemble(cfg, 2, 0, nil).Run(context.Background())
		Expect(err).To(MatchError(config.ErrInvalid))
	})
})

var _ = Describe("ParallelFor", func() {
	It("covers every index exactly once", func() {
		const n = 10_000
		hits := make([]int, n)
		ParallelFor(n, 100, func(start, end int) {
			for i := start; i < end; i++ {
				hits[i]++
			}
		})
		for i := range hits {
			Expect(hits[i]).To(Equal(1))
		}
	})
})

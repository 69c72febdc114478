package sim

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/physics"
)

// minParallelChunk keeps small worlds on the calling goroutine.
const minParallelChunk = 256

// Engine advances a World by one outer step. The core run and the replay
// share it so both produce the same trajectories.
type Engine struct {
	gravity  r2.Vec
	bounds   physics.Bounds
	bounce   float64
	damping  float64
	substeps int
	parallel bool
	collider *physics.Collider
	contacts int
}

func NewEngine(cfg config.Config) *Engine {
	return &Engine{
		gravity:  cfg.Gravity.R2(),
		bounds:   physics.Bounds{Width: cfg.Width, Height: cfg.Height},
		bounce:   cfg.BounceLoss,
		damping:  cfg.CollisionDamping,
		substeps: cfg.Substeps,
		parallel: cfg.Parallel,
		collider: physics.NewCollider(cfg.CellSize(), cfg.CollisionDamping),
	}
}

// Update splits dt into equal substeps and runs, in this order: gravity,
// one collision pass, wall constraints, integration.
func (e *Engine) Update(w *World, dt float64) {
	subDt := dt / float64(e.substeps)
	e.contacts = 0
	for i := 0; i < e.substeps; i++ {
		ps := w.Particles()
		e.applyGravity(ps)
		e.contacts += e.solveCollisions(ps)
		e.applyConstraints(ps)
		e.integrate(ps, subDt)
	}
}

// Contacts is the number of collision corrections made by the last Update.
func (e *Engine) Contacts() int { return e.contacts }

func (e *Engine) Bounds() physics.Bounds { return e.bounds }

func (e *Engine) applyGravity(ps []physics.Particle) {
	e.each(ps, func(p *physics.Particle) { p.Accelerate(e.gravity) })
}

func (e *Engine) solveCollisions(ps []physics.Particle) int {
	return e.collider.Solve(ps)
}

func (e *Engine) applyConstraints(ps []physics.Particle) {
	e.each(ps, func(p *physics.Particle) { p.Constrain(e.bounds, e.bounce, e.damping) })
}

func (e *Engine) integrate(ps []physics.Particle, dt float64) {
	e.each(ps, func(p *physics.Particle) { p.Integrate(dt) })
}

// each applies fn to every particle. Only per-particle passes go through
// here; the collision pass mutates pairs and stays serial.
func (e *Engine) each(ps []physics.Particle, fn func(*physics.Particle)) {
	if !e.parallel {
		for i := range ps {
			fn(&ps[i])
		}
		return
	}
	ParallelFor(len(ps), minParallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			fn(&ps[i])
		}
	})
}

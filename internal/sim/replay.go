package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/trace"
)

// ErrUnplayable is wrapped by CheckTrace for the first record replay stops at.
var ErrUnplayable = errors.New("replay: unplayable record")

// Replayer rebuilds a run from its spawn trace. It drives the same Engine as
// Simulation, so an unmodified trace reproduces the core trajectories.
type Replayer struct {
	cfg       config.Config
	records   []trace.Record
	next      int
	step      int
	halted    bool
	world     *World
	engine    *Engine
	observers []Observer
}

func NewReplayer(cfg config.Config, records []trace.Record) *Replayer {
	return &Replayer{
		cfg:     cfg,
		records: records,
		world:   NewWorld(cfg.MaxObjects),
		engine:  NewEngine(cfg),
	}
}

func (r *Replayer) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Replayer) World() *World    { return r.world }
func (r *Replayer) CurrentStep() int { return r.step }
func (r *Replayer) TotalSteps() int  { return r.cfg.TotalSteps }
func (r *Replayer) Done() bool       { return r.step >= r.cfg.TotalSteps }

// Pending is the number of records not yet spawned.
func (r *Replayer) Pending() int { return len(r.records) - r.next }

// Halted reports whether spawning stopped at a record whose radius falls
// outside the configured range.
func (r *Replayer) Halted() bool { return r.halted }

// Step spawns every record stamped with the current step and advances the
// world by one outer step. A record stamped with an earlier step is never
// reached again, so a trace that goes backwards stops spawning there. A
// record whose radius is outside [MinRadius, MaxRadius] would not fit the
// collider's cells, so spawning stops there too.
func (r *Replayer) Step() {
	for !r.halted && r.next < len(r.records) && r.records[r.next].Step == r.step {
		rec := r.records[r.next]
		if !radiusInRange(r.cfg, rec.Radius) {
			r.halted = true
			break
		}
		r.world.Add(rec.Particle())
		r.next++
	}
	r.engine.Update(r.world, r.cfg.FixedDt)
	r.step++

	for _, obs := range r.observers {
		obs.OnStep(r.step, r.world)
	}
}

// Run steps until TotalSteps.
func (r *Replayer) Run() {
	for !r.Done() {
		r.Step()
	}
}

func (r *Replayer) Reset() {
	r.world.Reset()
	r.next = 0
	r.step = 0
	r.halted = false
}

func radiusInRange(cfg config.Config, radius float64) bool {
	return radius >= cfg.MinRadius && radius <= cfg.MaxRadius
}

// CheckTrace reports the first record a Replayer under cfg would stop at,
// either because its step goes backwards or because its radius is out of
// range. A nil error means every record will spawn.
func CheckTrace(cfg config.Config, records []trace.Record) error {
	for i, rec := range records {
		if i > 0 && rec.Step < records[i-1].Step {
			return fmt.Errorf("%w: record %d goes back to step %d", ErrUnplayable, i, rec.Step)
		}
		if !radiusInRange(cfg, rec.Radius) {
			return fmt.Errorf("%w: record %d has radius %g outside [%g, %g]",
				ErrUnplayable, i, rec.Radius, cfg.MinRadius, cfg.MaxRadius)
		}
	}
	return nil
}

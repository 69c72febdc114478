package sim

import (
	"slices"

	"github.com/san-kum/spherique/internal/physics"
)

// World is the particle arena. Particles are stored by value in spawn order;
// the broad phase refers to them by index only.
type World struct {
	particles []physics.Particle
	capacity  int
	evicted   int
}

func NewWorld(capacity int) *World {
	return &World{
		particles: make([]physics.Particle, 0, capacity),
		capacity:  capacity,
	}
}

// Add appends p, first evicting the oldest particle if the arena is full.
// It reports whether an eviction happened.
func (w *World) Add(p physics.Particle) bool {
	evicted := false
	if len(w.particles) >= w.capacity {
		w.particles = slices.Delete(w.particles, 0, 1)
		w.evicted++
		evicted = true
	}
	w.particles = append(w.particles, p)
	return evicted
}

func (w *World) Len() int      { return len(w.particles) }
func (w *World) Capacity() int { return w.capacity }
func (w *World) Evicted() int  { return w.evicted }

// Particles exposes the live arena. The slice is invalidated by Add.
func (w *World) Particles() []physics.Particle { return w.particles }

// Snapshot copies the live particles.
func (w *World) Snapshot() []physics.Particle { return slices.Clone(w.particles) }

func (w *World) Reset() {
	w.particles = w.particles[:0]
	w.evicted = 0
}

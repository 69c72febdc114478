// Package physics implements the per-particle operations of the simulation.
//
//   - [Particle]: position-based Verlet body with implicit velocity
//   - [Grid]: uniform broad-phase partition storing particle indices
//   - [Collider]: single-pass, mass-weighted circle overlap resolution
//
// # Integration
//
// A particle's velocity is Pos - Prev. Integrate advances
//
//	Pos' = Pos + (Pos - Prev) + Acc·dt²
//
// and Constrain re-derives Prev after a wall hit, so both the bounce loss
// and the collision damping act on the reflected component.
//
// # Grid
//
// The cell size must be at least twice the largest radius so that a 3x3
// neighbourhood query sees every possible contact.
package physics

package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/metrics"
	"github.com/san-kum/spherique/internal/physics"
)

type ParticleData struct {
	Step   int     `json:"step"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
}

type ExportData struct {
	ID        string             `json:"id"`
	Config    config.Config      `json:"config"`
	Steps     int                `json:"steps"`
	Particles []ParticleData     `json:"particles"`
	Stats     []metrics.Sample   `json:"stats,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
}

// NewExportData collects a run for JSON output. Velocities are the last
// substep displacement, as stored.
func NewExportData(id string, cfg config.Config, steps int, particles []physics.Particle, stats []metrics.Sample, m map[string]float64) ExportData {
	data := ExportData{
		ID:        id,
		Config:    cfg,
		Steps:     steps,
		Particles: make([]ParticleData, len(particles)),
		Stats:     stats,
		Metrics:   m,
	}
	for i := range particles {
		p := &particles[i]
		v := p.Velocity()
		data.Particles[i] = ParticleData{
			Step:   p.Step,
			X:      p.Pos.X,
			Y:      p.Pos.Y,
			VX:     v.X,
			VY:     v.Y,
			Radius: p.Radius(),
			Color:  Hex(p.Color),
		}
	}
	return data
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

package config

import (
	"math"
	"sort"
)

var Presets = map[string]func() Config{
	"default": DefaultConfig,
	"small": func() Config {
		c := DefaultConfig()
		c.Width, c.Height = 400, 400
		c.MaxObjects = 150
		c.TotalSteps = 600
		return c
	},
	"rain": func() Config {
		c := DefaultConfig()
		c.SpawnOrigin = &Vec{X: c.Width / 2, Y: c.MaxRadius}
		c.SpawnSpeed = 120
		c.SpawnInterval = 2
		c.TotalSteps = 1500
		return c
	},
	"settle": func() Config {
		c := DefaultConfig()
		c.MinRadius, c.MaxRadius = 10, 10
		// Gravity is a force; scale it so the single particle falls at 981 px/s².
		c.Gravity = Vec{Y: DefaultGravity * math.Pi * c.MaxRadius * c.MaxRadius}
		c.SpawnSpeed = 0
		c.MaxObjects = 1
		c.TotalSteps = 1500
		return c
	},
	"dense": func() Config {
		c := DefaultConfig()
		c.MinRadius, c.MaxRadius = 3, 8
		c.MaxObjects = 3000
		c.TotalSteps = 3500
		c.Parallel = true
		return c
	},
}

// GetPreset returns a fresh copy of the named preset.
func GetPreset(name string) (Config, bool) {
	fn, ok := Presets[name]
	if !ok {
		return Config{}, false
	}
	return fn(), true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

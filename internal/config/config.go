package config

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth            = 1000.0
	DefaultHeight           = 1000.0
	DefaultGravity          = 981.0
	DefaultBounceLoss       = 0.9
	DefaultCollisionDamping = 0.95
	DefaultMinRadius        = 5.0
	DefaultMaxRadius        = 28.0
	DefaultSpawnInterval    = 1
	DefaultSpawnSpeed       = 40.0
	DefaultFixedDt          = 1.0 / 60.0
	DefaultTotalSteps       = 1000
	DefaultSubsteps         = 8
	DefaultMaxObjects       = 900
	DefaultSeed             = 42
	DefaultColorMin         = 80
	DefaultColorMax         = 255
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Vec is the yaml form of a 2D vector.
type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (v Vec) R2() r2.Vec { return r2.Vec{X: v.X, Y: v.Y} }

// Config is passed by value into the simulation and never mutated by it.
type Config struct {
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	Gravity          Vec     `yaml:"gravity"`
	BounceLoss       float64 `yaml:"bounce_loss"`
	CollisionDamping float64 `yaml:"collision_damping"`
	MinRadius        float64 `yaml:"min_radius"`
	MaxRadius        float64 `yaml:"max_radius"`
	SpawnInterval    int     `yaml:"spawn_interval"`
	SpawnSpeed       float64 `yaml:"spawn_speed"`
	SpawnOrigin      *Vec    `yaml:"spawn_origin,omitempty"`
	FixedDt          float64 `yaml:"fixed_dt"`
	TotalSteps       int     `yaml:"total_steps"`
	Substeps         int     `yaml:"substeps"`
	MaxObjects       int     `yaml:"max_objects"`
	Seed             uint64  `yaml:"seed"`
	ColorMin         int     `yaml:"color_min"`
	ColorMax         int     `yaml:"color_max"`
	Parallel         bool    `yaml:"parallel"`
}

func DefaultConfig() Config {
	return Config{
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		Gravity:          Vec{X: 0, Y: DefaultGravity},
		BounceLoss:       DefaultBounceLoss,
		CollisionDamping: DefaultCollisionDamping,
		MinRadius:        DefaultMinRadius,
		MaxRadius:        DefaultMaxRadius,
		SpawnInterval:    DefaultSpawnInterval,
		SpawnSpeed:       DefaultSpawnSpeed,
		FixedDt:          DefaultFixedDt,
		TotalSteps:       DefaultTotalSteps,
		Substeps:         DefaultSubsteps,
		MaxObjects:       DefaultMaxObjects,
		Seed:             DefaultSeed,
		ColorMin:         DefaultColorMin,
		ColorMax:         DefaultColorMax,
	}
}

// Load reads a yaml file on top of DefaultConfig, so omitted keys keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CellSize is the broad-phase cell edge. Two overlapping circles of radius at
// most MaxRadius always sit in the same or adjacent cells.
func (c Config) CellSize() float64 { return 2 * c.MaxRadius }

// Origin returns the spawn point, the world centre unless SpawnOrigin is set.
func (c Config) Origin() r2.Vec {
	if c.SpawnOrigin != nil {
		return c.SpawnOrigin.R2()
	}
	return r2.Vec{X: c.Width / 2, Y: c.Height / 2}
}

func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: world size must be positive, got %gx%g", ErrInvalid, c.Width, c.Height)
	case c.MinRadius <= 0:
		return fmt.Errorf("%w: min_radius must be positive, got %g", ErrInvalid, c.MinRadius)
	case c.MaxRadius < c.MinRadius:
		return fmt.Errorf("%w: max_radius %g below min_radius %g", ErrInvalid, c.MaxRadius, c.MinRadius)
	case 2*c.MaxRadius > c.Width || 2*c.MaxRadius > c.Height:
		return fmt.Errorf("%w: world %gx%g cannot hold a particle of radius %g", ErrInvalid, c.Width, c.Height, c.MaxRadius)
	case c.FixedDt <= 0:
		return fmt.Errorf("%w: fixed_dt must be positive, got %g", ErrInvalid, c.FixedDt)
	case c.Substeps < 1:
		return fmt.Errorf("%w: substeps must be at least 1, got %d", ErrInvalid, c.Substeps)
	case c.SpawnInterval < 1:
		return fmt.Errorf("%w: spawn_interval must be at least 1, got %d", ErrInvalid, c.SpawnInterval)
	case c.MaxObjects < 1:
		return fmt.Errorf("%w: max_objects must be at least 1, got %d", ErrInvalid, c.MaxObjects)
	case c.TotalSteps < 0:
		return fmt.Errorf("%w: total_steps must not be negative, got %d", ErrInvalid, c.TotalSteps)
	case c.ColorMin < 0 || c.ColorMax > 255 || c.ColorMin > c.ColorMax:
		return fmt.Errorf("%w: colour range [%d, %d] outside 0..255", ErrInvalid, c.ColorMin, c.ColorMax)
	}
	return nil
}

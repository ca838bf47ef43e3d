package field

import (
	"fmt"

	"github.com/san-kum/neonportal/internal/dynamo"
)

const (
	// StepsPerSecond fixes the simulated timestep shared by every window.
	StepsPerSecond = 60
	Dt             = 1.0 / StepsPerSecond

	DefaultCount = 4000
)

// Params is the force model. Visual variants are different Params values,
// not different simulations.
type Params struct {
	Count int `yaml:"count"`

	Attraction float64 `yaml:"attraction"`
	Softening  float64 `yaml:"softening"`
	MaxAccel   float64 `yaml:"max_accel"`
	Orbit      float64 `yaml:"orbit"`
	Noise      float64 `yaml:"noise"`
	MinRadius  float64 `yaml:"min_radius"`
	Repulsion  float64 `yaml:"repulsion"`

	Bridge      float64 `yaml:"bridge"`
	BridgeRange float64 `yaml:"bridge_range"`

	Figure8      float64 `yaml:"figure8"`
	Figure8Pull  float64 `yaml:"figure8_pull"`
	Figure8Speed float64 `yaml:"figure8_speed"`

	Boundary        float64 `yaml:"boundary"`
	BoundaryPull    float64 `yaml:"boundary_pull"`
	BoundaryDamping float64 `yaml:"boundary_damping"`
	BoundarySlack   float64 `yaml:"boundary_slack"`

	Damping  float64 `yaml:"damping"`
	MaxSpeed float64 `yaml:"max_speed"`

	ColorFalloff  float64 `yaml:"color_falloff"`
	MinBrightness float64 `yaml:"min_brightness"`
	SpawnRadius   float64 `yaml:"spawn_radius"`
}

func DefaultParams() Params {
	return Params{
		Count:           DefaultCount,
		Attraction:      8,
		Softening:       0.6,
		MaxAccel:        40,
		Orbit:           2.2,
		Noise:           0.6,
		MinRadius:       0.8,
		Repulsion:       12,
		Bridge:          3,
		BridgeRange:     24,
		Figure8:         0.6,
		Figure8Pull:     2.5,
		Figure8Speed:    0.5,
		Boundary:        5.5,
		BoundaryPull:    4,
		BoundaryDamping: 0.92,
		BoundarySlack:   0.75,
		Damping:         0.985,
		MaxSpeed:        6,
		ColorFalloff:    3,
		MinBrightness:   0.25,
		SpawnRadius:     4.5,
	}
}

func (p Params) Validate() error {
	switch {
	case p.Count <= 0:
		return fmt.Errorf("count must be positive, got %d: %w", p.Count, dynamo.ErrParameterBounds)
	case p.Softening <= 0:
		return fmt.Errorf("softening must be positive: %w", dynamo.ErrParameterBounds)
	case p.MaxSpeed <= 0:
		return fmt.Errorf("max speed must be positive: %w", dynamo.ErrParameterBounds)
	case p.Damping <= 0 || p.Damping > 1:
		return fmt.Errorf("damping must be in (0, 1], got %f: %w", p.Damping, dynamo.ErrParameterBounds)
	case p.BoundaryDamping <= 0 || p.BoundaryDamping > 1:
		return fmt.Errorf("boundary damping must be in (0, 1]: %w", dynamo.ErrParameterBounds)
	case p.Boundary <= p.MinRadius:
		return fmt.Errorf("boundary must exceed min radius: %w", dynamo.ErrParameterBounds)
	case p.BoundarySlack < 0:
		return fmt.Errorf("boundary slack must not be negative: %w", dynamo.ErrParameterBounds)
	case p.SpawnRadius <= 0.6 || p.SpawnRadius > p.Boundary+p.BoundarySlack:
		return fmt.Errorf("spawn radius must be in (0.6, boundary+slack]: %w", dynamo.ErrParameterBounds)
	case p.BridgeRange <= 0:
		return fmt.Errorf("bridge range must be positive: %w", dynamo.ErrParameterBounds)
	case p.ColorFalloff <= 0:
		return fmt.Errorf("color falloff must be positive: %w", dynamo.ErrParameterBounds)
	case p.MinBrightness < 0 || p.MinBrightness > 1:
		return fmt.Errorf("min brightness must be in [0, 1]: %w", dynamo.ErrParameterBounds)
	}
	return nil
}

// Calm scales down motion for reduced-motion viewers.
func (p Params) Calm(scale float64) Params {
	scale = dynamo.Clamp01(scale)
	if scale == 0 {
		scale = 0.01
	}
	p.Orbit *= scale
	p.Noise *= scale
	p.Figure8Speed *= scale
	p.MaxSpeed *= scale
	return p
}

// WithDensity scales the particle count, keeping at least one particle.
func (p Params) WithDensity(density float64) Params {
	if density <= 0 {
		return p
	}
	p.Count = int(float64(p.Count) * density)
	if p.Count < 1 {
		p.Count = 1
	}
	return p
}

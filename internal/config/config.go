package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
	"github.com/san-kum/neonportal/internal/presence"
	"github.com/san-kum/neonportal/internal/sim"
	"github.com/san-kum/neonportal/internal/viz"
)

const (
	DefaultPreset    = "nebula"
	DefaultDensity   = 1.0
	DefaultCalmScale = 0.25
	DefaultDB        = "neonportal.db"
	DefaultWidth     = 800
	DefaultHeight    = 600
)

type Config struct {
	Preset        string  `yaml:"preset" env:"PORTAL_PRESET"`
	Density       float64 `yaml:"density" env:"PORTAL_DENSITY"`
	ReducedMotion bool    `yaml:"reduced_motion" env:"PORTAL_REDUCED_MOTION"`
	CalmScale     float64 `yaml:"calm_scale"`
	Fullscreen    bool    `yaml:"fullscreen" env:"PORTAL_FULLSCREEN"`
	ShowBadge     bool    `yaml:"show_badge" env:"PORTAL_SHOW_BADGE"`
	DB            string  `yaml:"db" env:"PORTAL_DB"`
	WindowID      string  `yaml:"window_id" env:"PORTAL_WINDOW_ID"`
	Seed          uint32  `yaml:"seed"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`

	Presence PresenceConfig `yaml:"presence"`
	Layout   LayoutConfig   `yaml:"layout"`

	// Params replaces the preset's force model when set.
	Params *field.Params `yaml:"params,omitempty" env:"-"`
}

type PresenceConfig struct {
	HeartbeatMs       int `yaml:"heartbeat_ms"`
	StaleMs           int `yaml:"stale_ms"`
	RestartCooldownMs int `yaml:"restart_cooldown_ms"`
}

type LayoutConfig struct {
	PixelsPerUnit float64 `yaml:"pixels_per_unit"`
	MaxCores      int     `yaml:"max_cores"`
	MaxCatchUp    int     `yaml:"max_catch_up"`
}

func DefaultConfig() *Config {
	return &Config{
		Preset:     DefaultPreset,
		Density:    DefaultDensity,
		CalmScale:  DefaultCalmScale,
		Fullscreen: true,
		ShowBadge:  true,
		DB:         DefaultDB,
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Presence: PresenceConfig{
			HeartbeatMs:       int(presence.DefaultHeartbeatInterval / time.Millisecond),
			StaleMs:           int(presence.DefaultStaleAfter / time.Millisecond),
			RestartCooldownMs: int(presence.DefaultRestartCooldown / time.Millisecond),
		},
		Layout: LayoutConfig{
			PixelsPerUnit: sim.DefaultPixelsPerUnit,
			MaxCores:      sim.DefaultMaxCores,
			MaxCatchUp:    sim.DefaultMaxCatchUp,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overlays PORTAL_* environment variables. Unset variables leave
// the current values alone.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnvFrom is ApplyEnv over an explicit environment.
func (c *Config) ApplyEnvFrom(environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Params == nil {
		if _, ok := GetPreset(c.Preset); !ok {
			return fmt.Errorf("unknown preset %q (available: %v)", c.Preset, ListPresets())
		}
	}
	if c.Density <= 0 {
		return fmt.Errorf("density must be positive, got %f: %w", c.Density, dynamo.ErrParameterBounds)
	}
	if c.CalmScale <= 0 || c.CalmScale > 1 {
		return fmt.Errorf("calm scale must be in (0, 1]: %w", dynamo.ErrParameterBounds)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size %dx%d: %w", c.Width, c.Height, dynamo.ErrInvalidRect)
	}
	if c.Presence.HeartbeatMs <= 0 || c.Presence.StaleMs <= c.Presence.HeartbeatMs {
		return fmt.Errorf("stale threshold must exceed heartbeat: %w", dynamo.ErrParameterBounds)
	}
	if c.Layout.PixelsPerUnit <= 0 || c.Layout.MaxCores <= 0 {
		return fmt.Errorf("layout must have positive scale and core cap: %w", dynamo.ErrParameterBounds)
	}
	if c.Layout.MaxCores > viz.MaxCores {
		return fmt.Errorf("core cap %d exceeds the %d drawable cores: %w", c.Layout.MaxCores, viz.MaxCores, dynamo.ErrParameterBounds)
	}
	_, err := c.FieldParams(false)
	return err
}

// FieldParams resolves the force model: preset (or explicit override),
// scaled by density and calmed when reduced is set.
func (c *Config) FieldParams(reduced bool) (field.Params, error) {
	var p field.Params
	if c.Params != nil {
		p = *c.Params
	} else {
		preset, ok := GetPreset(c.Preset)
		if !ok {
			return field.Params{}, fmt.Errorf("unknown preset %q", c.Preset)
		}
		p = preset
	}
	p = p.WithDensity(c.Density)
	if reduced {
		p = p.Calm(c.CalmScale)
	}
	return p, p.Validate()
}

func (c *Config) PresenceConfig() presence.Config {
	return presence.Config{
		HeartbeatInterval: time.Duration(c.Presence.HeartbeatMs) * time.Millisecond,
		StaleAfter:        time.Duration(c.Presence.StaleMs) * time.Millisecond,
		RestartCooldown:   time.Duration(c.Presence.RestartCooldownMs) * time.Millisecond,
	}
}

func (c *Config) SimLayout() sim.Layout {
	return sim.Layout{PixelsPerUnit: c.Layout.PixelsPerUnit, MaxCores: c.Layout.MaxCores}
}

func (c *Config) Rect() presence.Rect {
	return presence.Rect{Width: float64(c.Width), Height: float64(c.Height)}
}

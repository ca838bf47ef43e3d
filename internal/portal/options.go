package portal

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/san-kum/neonportal/internal/config"
	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
	"github.com/san-kum/neonportal/internal/presence"
	"github.com/san-kum/neonportal/internal/sim"
	"github.com/san-kum/neonportal/internal/viz"
)

// Options configure a portal. The zero value is not usable; start from
// DefaultOptions or FromConfig.
type Options struct {
	ID     string
	Preset string

	// Params is the full-motion force model. Reduced motion calms it by
	// CalmScale.
	Params        field.Params
	CalmScale     float64
	ReducedMotion bool

	// Fullscreen enables multi-window mode. Without it the portal renders
	// a single window into Rect.
	Fullscreen bool
	ShowBadge  bool
	Rect       presence.Rect

	// Seed fixes the particle layout. Zero shares the medium's seed, or
	// picks a fresh one.
	Seed uint32

	Layout     sim.Layout
	Presence   presence.Config
	MaxCatchUp int64

	// Medium is nil for a window that never synchronizes.
	Medium Medium

	// ManualSync leaves heartbeats to the host, which calls Sync. Headless
	// replays use it with a presence.ManualClock.
	ManualSync bool

	Clock  presence.Clock
	Logger *log.Logger
}

func DefaultOptions() Options {
	return Options{
		ID:         uuid.NewString(),
		Preset:     config.DefaultPreset,
		Params:     field.DefaultParams(),
		CalmScale:  config.DefaultCalmScale,
		Fullscreen: true,
		ShowBadge:  true,
		Rect:       presence.Rect{Width: config.DefaultWidth, Height: config.DefaultHeight},
		Layout:     sim.DefaultLayout(),
		Presence:   presence.DefaultConfig(),
		MaxCatchUp: sim.DefaultMaxCatchUp,
		Clock:      presence.SystemClock{},
		Logger:     log.Default(),
	}
}

// FromConfig resolves cfg into options backed by the SQLite medium at
// cfg.DB. An empty DB path leaves the portal single-window.
func FromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	params, err := cfg.FieldParams(false)
	if err != nil {
		return Options{}, err
	}

	opts := DefaultOptions()
	if cfg.WindowID != "" {
		opts.ID = cfg.WindowID
	}
	opts.Preset = cfg.Preset
	opts.Params = params
	opts.CalmScale = cfg.CalmScale
	opts.ReducedMotion = cfg.ReducedMotion
	opts.Fullscreen = cfg.Fullscreen
	opts.ShowBadge = cfg.ShowBadge
	opts.Rect = cfg.Rect()
	opts.Seed = cfg.Seed
	opts.Layout = cfg.SimLayout()
	opts.Presence = cfg.PresenceConfig()
	opts.MaxCatchUp = int64(cfg.Layout.MaxCatchUp)
	if cfg.DB != "" {
		opts.Medium = SQLite{Path: cfg.DB}
	}
	return opts, nil
}

func (o Options) validate() error {
	if o.ID == "" {
		return fmt.Errorf("window id is required")
	}
	if !o.Rect.Valid() {
		return fmt.Errorf("window %s: %w", o.ID, dynamo.ErrInvalidRect)
	}
	if o.CalmScale <= 0 || o.CalmScale > 1 {
		return fmt.Errorf("calm scale must be in (0, 1]: %w", dynamo.ErrParameterBounds)
	}
	if o.Layout.MaxCores <= 0 || o.Layout.MaxCores > viz.MaxCores {
		return fmt.Errorf("core cap must be in [1, %d], got %d: %w", viz.MaxCores, o.Layout.MaxCores, dynamo.ErrParameterBounds)
	}
	return o.Params.Validate()
}

// params returns the force model for the given motion preference.
func (o Options) params(reduced bool) field.Params {
	if reduced {
		return o.Params.Calm(o.CalmScale)
	}
	return o.Params
}

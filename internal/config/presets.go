package config

import (
	"sort"

	"github.com/san-kum/neonportal/internal/field"
)

// Presets are the visual variants. Each is a force model over the same
// simulation.
var Presets = map[string]field.Params{
	"nebula": field.DefaultParams(),
	"infinity": withParams(func(p *field.Params) {
		p.Figure8 = 1.0
		p.Figure8Pull = 4
		p.Figure8Speed = 0.6
		p.Bridge = 4
		p.BridgeRange = 40
		p.Noise = 0.4
	}),
	"galaxy": withParams(func(p *field.Params) {
		p.Attraction = 10
		p.Orbit = 4.5
		p.Noise = 0.15
		p.Damping = 0.99
		p.MaxSpeed = 7
		p.Figure8 = 0.2
	}),
	"shards": withParams(func(p *field.Params) {
		p.Repulsion = 30
		p.MinRadius = 1.6
		p.Damping = 0.995
		p.Noise = 1.2
		p.Orbit = 1.2
		p.SpawnRadius = 5.5
		p.ColorFalloff = 2
	}),
}

func withParams(modify func(*field.Params)) field.Params {
	p := field.DefaultParams()
	modify(&p)
	return p
}

func GetPreset(name string) (field.Params, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package metrics

import (
	"fmt"
	"sort"

	"github.com/san-kum/neonportal/internal/field"
	"github.com/san-kum/neonportal/internal/sim"
)

var constructors = map[string]func(p field.Params) sim.Metric{
	"energy":        func(field.Params) sim.Metric { return NewEnergy() },
	"max_speed":     func(field.Params) sim.Metric { return NewMaxSpeed() },
	"core_distance": func(field.Params) sim.Metric { return NewCoreDistance() },
	"containment": func(p field.Params) sim.Metric {
		return NewContainment(p.Boundary + p.BoundarySlack)
	},
}

// Names lists the metrics available to New.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named metrics for a field running with p.
func New(p field.Params, names ...string) ([]sim.Metric, error) {
	out := make([]sim.Metric, 0, len(names))
	for _, name := range names {
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q (available: %v)", name, Names())
		}
		out = append(out, ctor(p))
	}
	return out, nil
}

package sim

import (
	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
)

// Metric accumulates a scalar over the steps of a field.
type Metric interface {
	Name() string
	Observe(f *field.Field, cores []dynamo.Vec3)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int64, f *field.Field, cores []dynamo.Vec3)
}

// CoreFunc yields the core anchors in effect at a step.
type CoreFunc func(step int64) []dynamo.Vec3

// Static holds the same cores for every step.
func Static(cores ...dynamo.Vec3) CoreFunc {
	return func(int64) []dynamo.Vec3 { return cores }
}

type Config struct {
	Steps       int
	SampleEvery int
	Record      bool
	Validate    bool
}

type Snapshot struct {
	Step      int64
	Positions []float64
}

type Result struct {
	Seed       uint32
	StepsTaken int
	Snapshots  []Snapshot
	Series     map[string][]float64
	Metrics    map[string]float64
	Errors     []error
}

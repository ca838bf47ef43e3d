package metrics

import (
	"math"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
)

// Energy is the mean kinetic energy per particle (unit mass), averaged
// over observed steps.
type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(f *field.Field, cores []dynamo.Vec3) {
	if f.Len() == 0 {
		return
	}
	var sum float64
	for i := 0; i < f.Len(); i++ {
		v := f.Velocity(i)
		sum += 0.5 * v.Dot(v)
	}
	e.totalEnergy += sum / float64(f.Len())
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// MaxSpeed is the largest particle speed seen since the last reset.
type MaxSpeed struct {
	name string
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(f *field.Field, cores []dynamo.Vec3) {
	for i := 0; i < f.Len(); i++ {
		m.max = math.Max(m.max, f.Velocity(i).Length())
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }

func (m *MaxSpeed) Reset() { m.max = 0 }

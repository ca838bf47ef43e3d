package metrics

import (
	"math"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
)

// Containment is the fraction of particles within radius of their nearest
// core at the most recent step.
type Containment struct {
	name   string
	radius float64
	value  float64
	seen   bool
}

func NewContainment(radius float64) *Containment {
	return &Containment{
		name:   "containment",
		radius: radius,
	}
}

func (c *Containment) Name() string {
	return c.name
}

func (c *Containment) Observe(f *field.Field, cores []dynamo.Vec3) {
	if f.Len() == 0 {
		return
	}
	inside := 0
	for i := 0; i < f.Len(); i++ {
		if nearestDistance(f.Position(i), cores) <= c.radius {
			inside++
		}
	}
	c.value = float64(inside) / float64(f.Len())
	c.seen = true
}

func (c *Containment) Value() float64 {
	if !c.seen {
		return 1.0
	}
	return c.value
}

func (c *Containment) Reset() {
	c.value = 0
	c.seen = false
}

// CoreDistance is the mean particle distance to the nearest core,
// averaged over observed steps.
type CoreDistance struct {
	name    string
	total   float64
	samples int
}

func NewCoreDistance() *CoreDistance {
	return &CoreDistance{name: "core_distance"}
}

func (c *CoreDistance) Name() string { return c.name }

func (c *CoreDistance) Observe(f *field.Field, cores []dynamo.Vec3) {
	if f.Len() == 0 {
		return
	}
	var sum float64
	for i := 0; i < f.Len(); i++ {
		sum += nearestDistance(f.Position(i), cores)
	}
	c.total += sum / float64(f.Len())
	c.samples++
}

func (c *CoreDistance) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.total / float64(c.samples)
}

func (c *CoreDistance) Reset() {
	c.total = 0
	c.samples = 0
}

func nearestDistance(p dynamo.Vec3, cores []dynamo.Vec3) float64 {
	if len(cores) == 0 {
		return p.Length()
	}
	best := math.Inf(1)
	for _, c := range cores {
		best = math.Min(best, p.Distance(c))
	}
	return best
}

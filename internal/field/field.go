package field

import (
	"math"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/rng"
)

// Base colors of the two home groups (#ff5efb, #3fd8ff).
var groupColors = [2][3]float32{
	{1.0, 0x5e / 255.0, 0xfb / 255.0},
	{0x3f / 255.0, 0xd8 / 255.0, 1.0},
}

// Field is the particle arena: flat buffers indexed by particle slot,
// allocated once and mutated in place every step.
type Field struct {
	params Params
	seed   uint32
	n      int
	step   int64

	pos   []float64 // x, y, z per slot
	vel   []float64
	color []float32 // r, g, b per slot
	home  []uint8
	phase []float64

	initPos []float64
	initVel []float64
}

// New seeds a field of p.Count particles from seed.
func New(seed uint32, p Params) (*Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.Count
	f := &Field{
		params:  p,
		seed:    seed,
		n:       n,
		pos:     make([]float64, n*3),
		vel:     make([]float64, n*3),
		color:   make([]float32, n*3),
		home:    make([]uint8, n),
		phase:   make([]float64, n),
		initPos: make([]float64, n*3),
		initVel: make([]float64, n*3),
	}

	src := rng.New(seed)
	for i := 0; i < n; i++ {
		f.home[i] = uint8(src.Intn(2))
		r := src.Range(0.6, p.SpawnRadius)
		theta := src.Angle()
		z := (src.Float64() - 0.5) * 1.5
		speed := src.Range(0.4, 1.2)
		f.phase[i] = src.Angle()

		sin, cos := math.Sin(theta), math.Cos(theta)
		sign := orbitSign(f.home[i])
		f.initPos[i*3], f.initPos[i*3+1], f.initPos[i*3+2] = r*cos, r*sin, z
		f.initVel[i*3], f.initVel[i*3+1], f.initVel[i*3+2] = -sin*speed*sign, cos*speed*sign, 0
	}

	f.Reset()
	return f, nil
}

// Reset returns every particle to its seeded initial state and rewinds the
// step counter.
func (f *Field) Reset() {
	copy(f.pos, f.initPos)
	copy(f.vel, f.initVel)
	f.step = 0
	origin := []dynamo.Vec3{{}}
	for i := 0; i < f.n; i++ {
		f.shade(i, f.particle(i), origin)
	}
}

func (f *Field) Len() int         { return f.n }
func (f *Field) Seed() uint32     { return f.seed }
func (f *Field) Steps() int64     { return f.step }
func (f *Field) Params() Params   { return f.params }
func (f *Field) Home(i int) uint8 { return f.home[i] }

// Positions exposes the position buffer (x, y, z per slot). Callers must not
// modify it.
func (f *Field) Positions() []float64 { return f.pos }

// Colors exposes the color buffer (r, g, b per slot). Callers must not
// modify it.
func (f *Field) Colors() []float32 { return f.color }

func (f *Field) Position(i int) dynamo.Vec3 { return f.particle(i) }

func (f *Field) Velocity(i int) dynamo.Vec3 {
	return dynamo.Vec3{X: f.vel[i*3], Y: f.vel[i*3+1], Z: f.vel[i*3+2]}
}

// SetParams swaps the force model without touching particle state. The
// count must not change.
func (f *Field) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Count != f.n {
		return dynamo.ErrParameterBounds
	}
	f.params = p
	return nil
}

// Validate reports the first slot holding NaN or Inf.
func (f *Field) Validate() error {
	for i, v := range f.pos {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &dynamo.StepError{Step: f.step, Slot: i / 3, Wrapped: dynamo.ErrInvalidState}
		}
	}
	for i, v := range f.vel {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &dynamo.StepError{Step: f.step, Slot: i / 3, Wrapped: dynamo.ErrInvalidState}
		}
	}
	return nil
}

func (f *Field) particle(i int) dynamo.Vec3 {
	return dynamo.Vec3{X: f.pos[i*3], Y: f.pos[i*3+1], Z: f.pos[i*3+2]}
}

func orbitSign(home uint8) float64 {
	if home == 0 {
		return 1
	}
	return -1
}

// shade recomputes slot i's color from its distance to the nearest core.
func (f *Field) shade(i int, p dynamo.Vec3, cores []dynamo.Vec3) {
	_, d := nearest(p, cores)
	b := f.params.MinBrightness + (1-f.params.MinBrightness)*math.Exp(-d/f.params.ColorFalloff)
	base := groupColors[f.home[i]]
	f.color[i*3] = base[0] * float32(b)
	f.color[i*3+1] = base[1] * float32(b)
	f.color[i*3+2] = base[2] * float32(b)
}

func nearest(p dynamo.Vec3, cores []dynamo.Vec3) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for i, c := range cores {
		if d := p.Distance(c); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// nearestTwo returns the nearest and second-nearest cores. With a single
// core the second index is -1.
func nearestTwo(p dynamo.Vec3, cores []dynamo.Vec3) (i1 int, d1 float64, i2 int, d2 float64) {
	i1, i2 = -1, -1
	d1, d2 = math.Inf(1), math.Inf(1)
	for i, c := range cores {
		d := p.Distance(c)
		switch {
		case d < d1:
			i2, d2 = i1, d1
			i1, d1 = i, d
		case d < d2:
			i2, d2 = i, d
		}
	}
	return
}

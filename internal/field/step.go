package field

import (
	"math"

	"github.com/san-kum/neonportal/internal/dynamo"
)

// minChunk keeps tiny fields on the calling goroutine.
const minChunk = 512

// pair describes the two-core arrangement used for bridging and the
// figure-eight flow. It is computed once per step.
type pair struct {
	active    bool
	mid       dynamo.Vec3
	axis      dynamo.Vec3 // unit vector from core 0 to core 1 in the xy-plane
	normal    dynamo.Vec3
	sep       float64
	closeness float64
	lobe      float64
}

func (f *Field) pairOf(cores []dynamo.Vec3) pair {
	if len(cores) != 2 {
		return pair{}
	}
	a, b := cores[0], cores[1]
	d := b.Sub(a)
	sep := d.Length()
	pr := pair{
		active:    true,
		mid:       a.Lerp(b, 0.5),
		sep:       sep,
		closeness: dynamo.Clamp01(1 - sep/f.params.BridgeRange),
		lobe:      0.7*sep + 1,
	}
	flat := math.Hypot(d.X, d.Y)
	if flat < 1e-9 {
		pr.axis = dynamo.Vec3{X: 1}
	} else {
		pr.axis = dynamo.Vec3{X: d.X / flat, Y: d.Y / flat}
	}
	pr.normal = dynamo.Vec3{X: -pr.axis.Y, Y: pr.axis.X}
	return pr
}

// lemniscate returns the point at parameter theta on the figure-eight
// through both cores.
func (pr pair) lemniscate(theta float64) dynamo.Vec3 {
	sin, cos := math.Sin(theta), math.Cos(theta)
	den := 1 + sin*sin
	x := pr.lobe * cos / den
	y := pr.lobe * sin * cos / den
	return pr.mid.Add(pr.axis.Scale(x)).Add(pr.normal.Scale(y)).Add(dynamo.Vec3{Z: 0.4 * math.Sin(2*theta)})
}

// Step advances every particle by one fixed timestep around cores. An empty
// core list is treated as a single core at the origin.
func (f *Field) Step(cores []dynamo.Vec3) {
	if len(cores) == 0 {
		cores = []dynamo.Vec3{{}}
	}
	t := float64(f.step) * Dt
	pr := f.pairOf(cores)

	dynamo.ParallelFor(f.n, minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			f.advance(i, cores, pr, t)
		}
	})
	f.step++
}

func (f *Field) advance(i int, cores []dynamo.Vec3, pr pair, t float64) {
	p := &f.params
	pos := f.particle(i)
	vel := f.Velocity(i)
	phase := f.phase[i]

	i1, d1, i2, d2 := nearestTwo(pos, cores)
	c1 := cores[i1]

	var acc dynamo.Vec3

	dir := c1.Sub(pos).Scale(1 / math.Max(d1, 1e-6))
	mag := p.Attraction / math.Max(d1*d1, p.Softening*p.Softening)
	if mag > p.MaxAccel {
		mag = p.MaxAccel
	}
	acc = acc.Add(dir.Scale(mag))

	tangent := dynamo.Vec3{X: -dir.Y, Y: dir.X}
	acc = acc.Add(tangent.Scale(p.Orbit * orbitSign(f.home[i])))

	acc = acc.Add(dynamo.Vec3{
		X: dynamo.FastSin(1.3*t + phase),
		Y: dynamo.FastCos(1.1*t + 1.7*phase),
		Z: dynamo.FastSin(0.7*t + 0.5*phase),
	}.Scale(p.Noise))

	if d1 < p.MinRadius {
		acc = acc.Sub(dir.Scale(p.Repulsion * (p.MinRadius - d1) / p.MinRadius))
	}

	center, radius := c1, p.Boundary
	if i2 >= 0 {
		c2 := cores[i2]
		sep := c1.Distance(c2)
		if closeness := dynamo.Clamp01(1 - sep/p.BridgeRange); closeness > 0 {
			toward := c2.Sub(pos).Scale(1 / math.Max(d2, 1e-6))
			acc = acc.Add(toward.Scale(p.Bridge * closeness))
			center, radius = c1.Lerp(c2, 0.5), sep/2+p.Boundary
		}
	}

	if pr.active && pr.closeness > 0 && p.Figure8 > 0 {
		target := pr.lemniscate(phase + t*p.Figure8Speed)
		acc = acc.Add(target.Sub(pos).Scale(p.Figure8Pull * p.Figure8 * pr.closeness))
	}

	vel = vel.Add(acc.Scale(Dt)).Scale(p.Damping)

	off := pos.Sub(center)
	if r := off.Length(); r > radius {
		vel = vel.Sub(off.Scale(p.BoundaryPull * (r - radius) * Dt / r)).Scale(p.BoundaryDamping)
	}

	if speed := vel.Length(); speed > p.MaxSpeed {
		vel = vel.Scale(p.MaxSpeed / speed)
	}

	pos = pos.Add(vel.Scale(Dt))

	off = pos.Sub(center)
	if r, lim := off.Length(), radius+p.BoundarySlack; r > lim {
		pos = center.Add(off.Scale(lim / r))
	}

	f.pos[i*3], f.pos[i*3+1], f.pos[i*3+2] = pos.X, pos.Y, pos.Z
	f.vel[i*3], f.vel[i*3+1], f.vel[i*3+2] = vel.X, vel.Y, vel.Z
	f.shade(i, pos, cores)
}

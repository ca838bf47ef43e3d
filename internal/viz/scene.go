package viz

import (
	"math"
	"sort"
	"time"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/rng"
)

const (
	StarCount     = 1100
	StarMinRadius = 9.0
	StarMaxRadius = 51.0
	MaxCores      = 4

	starSalt = 0x5eed5
)

var coreColor = [3]float32{1.0, 0.92, 1.0}

// Point is a projected, colored point in window-local pixels.
type Point struct {
	X, Y    float64
	Depth   float64
	R, G, B float32
}

type Status struct {
	WindowID string
	Preset   string
	Windows  int
	Leader   bool
	Multi    bool
	Reduced  bool
	Step     int64
	EpochAge time.Duration
}

// Frame is one rendered view. Points are sorted far to near.
type Frame struct {
	Width, Height float64
	Stars         []Point
	Cores         []Point
	Points        []Point
	Badge         bool
	Status        Status
}

// Scene holds the render-side state of a window: the starfield, the core
// glow slots and the reusable frame buffers.
type Scene struct {
	camera   *ViewCamera
	stars    []dynamo.Vec3
	starTint []float32
	glow     [MaxCores]dynamo.Vec3
	visible  int
	frame    Frame
}

// NewScene seeds the starfield from seed so every window shares the same
// backdrop.
func NewScene(seed uint32, camera *ViewCamera) *Scene {
	src := rng.New(seed ^ starSalt)
	s := &Scene{
		camera:   camera,
		stars:    make([]dynamo.Vec3, StarCount),
		starTint: make([]float32, StarCount),
	}
	for i := range s.stars {
		r := src.Range(StarMinRadius, StarMaxRadius)
		theta := src.Angle()
		cosPhi := src.Range(-1, 1)
		sinPhi := math.Sqrt(1 - cosPhi*cosPhi)
		s.stars[i] = dynamo.Vec3{X: r * sinPhi * math.Cos(theta), Y: r * sinPhi * math.Sin(theta), Z: r * cosPhi}
		s.starTint[i] = float32(src.Range(0.25, 0.6))
	}
	return s
}

func (s *Scene) Camera() *ViewCamera { return s.camera }

// SetCores places the glow slots. Slots beyond MaxCores are dropped.
func (s *Scene) SetCores(cores []dynamo.Vec3) {
	n := len(cores)
	if n > MaxCores {
		n = MaxCores
	}
	copy(s.glow[:], cores[:n])
	s.visible = n
}

func (s *Scene) VisibleCores() int { return s.visible }

// Render projects the starfield, the cores and the particles (x, y, z and
// r, g, b per slot) after easing the camera by dt seconds. The returned
// frame is reused by the next call.
func (s *Scene) Render(positions []float64, colors []float32, dt float64) *Frame {
	s.camera.Update(dt)
	v := s.camera.View()

	f := &s.frame
	f.Width, f.Height = v.Width, v.Height

	f.Stars = f.Stars[:0]
	for i, p := range s.stars {
		if x, y, d, ok := s.camera.Project(p); ok && s.camera.Visible(x, y) {
			t := s.starTint[i]
			f.Stars = append(f.Stars, Point{X: x, Y: y, Depth: d, R: t, G: t, B: t * 1.2})
		}
	}

	f.Cores = f.Cores[:0]
	for i := 0; i < s.visible; i++ {
		if x, y, d, ok := s.camera.Project(s.glow[i]); ok {
			f.Cores = append(f.Cores, Point{X: x, Y: y, Depth: d, R: coreColor[0], G: coreColor[1], B: coreColor[2]})
		}
	}

	f.Points = f.Points[:0]
	n := len(positions) / 3
	colored := len(colors) >= n*3
	for i := 0; i < n; i++ {
		p := dynamo.Vec3{X: positions[i*3], Y: positions[i*3+1], Z: positions[i*3+2]}
		x, y, d, ok := s.camera.Project(p)
		if !ok || !s.camera.Visible(x, y) {
			continue
		}
		pt := Point{X: x, Y: y, Depth: d, R: 1, G: 1, B: 1}
		if colored {
			pt.R, pt.G, pt.B = colors[i*3], colors[i*3+1], colors[i*3+2]
		}
		f.Points = append(f.Points, pt)
	}
	sort.SliceStable(f.Points, func(i, j int) bool { return f.Points[i].Depth > f.Points[j].Depth })

	return f
}

// Release drops the scene's buffers.
func (s *Scene) Release() {
	s.frame = Frame{}
	s.stars = nil
	s.starTint = nil
	s.visible = 0
}

package sim

import (
	"fmt"
	"sort"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/presence"
)

const (
	DefaultPixelsPerUnit = 40.0
	DefaultMaxCores      = 4
)

// Layout turns the live window set into world-space core anchors. Every
// window sharing the same live set and bounds derives the same cores.
type Layout struct {
	PixelsPerUnit float64
	MaxCores      int
}

func DefaultLayout() Layout {
	return Layout{PixelsPerUnit: DefaultPixelsPerUnit, MaxCores: DefaultMaxCores}
}

// Cores places one core at the center of each live window, ranked by id
// and capped at MaxCores. Single-window mode, or an empty set, yields one
// core at the origin.
func (l Layout) Cores(windows []presence.WindowInfo, multi bool) []dynamo.Vec3 {
	valid := make([]presence.WindowInfo, 0, len(windows))
	for _, w := range windows {
		if w.Valid() {
			valid = append(valid, w)
		}
	}
	if !multi || len(valid) == 0 {
		return []dynamo.Vec3{{}}
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].ID < valid[j].ID })
	bounds := presence.ComputeBounds(valid)

	n := len(valid)
	if l.MaxCores > 0 && n > l.MaxCores {
		n = l.MaxCores
	}
	cores := make([]dynamo.Vec3, n)
	for i := 0; i < n; i++ {
		cx, cy := valid[i].Center()
		cores[i] = l.ToWorld(bounds, cx, cy)
	}
	return cores
}

// ToWorld maps a screen point to world space relative to the bounds
// center. Screen y grows downward, world y grows upward.
func (l Layout) ToWorld(b presence.Bounds, x, y float64) dynamo.Vec3 {
	ppu := l.PixelsPerUnit
	if ppu <= 0 {
		ppu = DefaultPixelsPerUnit
	}
	bx, by := b.Center()
	return dynamo.Vec3{X: (x - bx) / ppu, Y: -(y - by) / ppu}
}

// Arrange lays out n synthetic windows side by side, for headless runs.
func Arrange(n int, width, height, gap float64) []presence.WindowInfo {
	windows := make([]presence.WindowInfo, n)
	for i := range windows {
		windows[i] = presence.WindowInfo{
			ID:     fmt.Sprintf("w%d", i),
			X:      float64(i) * (width + gap),
			Width:  width,
			Height: height,
		}
	}
	return windows
}

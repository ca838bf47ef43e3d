package presence

import (
	"math"
	"sort"
	"time"
)

// Rect is a window's screen rectangle in screen pixels, top-left origin.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Valid reports whether the rectangle has positive, finite size.
func (r Rect) Valid() bool {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Width > 0 && r.Height > 0
}

// WindowInfo is one window's presence record as stored and broadcast.
type WindowInfo struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	TS     int64   `json:"ts"`
}

func NewWindowInfo(id string, r Rect) WindowInfo {
	return WindowInfo{ID: id, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func (w WindowInfo) Rect() Rect {
	return Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height}
}

// Valid reports whether the record names a window with a usable rectangle.
// Zeroed records are departure notices, never live entries.
func (w WindowInfo) Valid() bool {
	return w.ID != "" && w.Rect().Valid()
}

// Age is how long ago the record was last refreshed.
func (w WindowInfo) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(w.TS))
}

// Center returns the rectangle center in screen pixels.
func (w WindowInfo) Center() (float64, float64) {
	return w.X + w.Width/2, w.Y + w.Height/2
}

// Bounds is the shared virtual space: the rectangle enclosing every live window.
type Bounds struct {
	OriginX, OriginY float64
	Width, Height    float64
}

// ComputeBounds returns the bounding rectangle of windows. Invalid entries
// are ignored; no valid entries yields the zero Bounds.
func ComputeBounds(windows []WindowInfo) Bounds {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, w := range windows {
		if !w.Valid() {
			continue
		}
		found = true
		minX = math.Min(minX, w.X)
		minY = math.Min(minY, w.Y)
		maxX = math.Max(maxX, w.X+w.Width)
		maxY = math.Max(maxY, w.Y+w.Height)
	}
	if !found {
		return Bounds{}
	}
	return Bounds{OriginX: minX, OriginY: minY, Width: maxX - minX, Height: maxY - minY}
}

// Empty reports whether the bounds enclose nothing.
func (b Bounds) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

// Center returns the bounds center in screen pixels.
func (b Bounds) Center() (float64, float64) {
	return b.OriginX + b.Width/2, b.OriginY + b.Height/2
}

// Offset returns w's top-left corner relative to the bounds origin.
func (b Bounds) Offset(w WindowInfo) (float64, float64) {
	return w.X - b.OriginX, w.Y - b.OriginY
}

// Leader returns the lexicographically smallest id among windows.
func Leader(windows []WindowInfo) string {
	leader := ""
	for _, w := range windows {
		if leader == "" || w.ID < leader {
			leader = w.ID
		}
	}
	return leader
}

// IDs returns the sorted ids of windows.
func IDs(windows []WindowInfo) []string {
	ids := make([]string, len(windows))
	for i, w := range windows {
		ids[i] = w.ID
	}
	sort.Strings(ids)
	return ids
}

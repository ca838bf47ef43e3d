package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille dot grid with one color per cell. A cell takes the
// per-channel maximum of every pen color drawn into it.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
	Colors        [][][3]float32

	pen    [3]float32
	styles map[string]lipgloss.Style
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		Colors: make([][][3]float32, h),
		pen:    [3]float32{1, 1, 1},
		styles: make(map[string]lipgloss.Style),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		c.Colors[i] = make([][3]float32, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// SetPen selects the color of subsequent Set and DrawLine calls.
func (c *Canvas) SetPen(r, g, b float32) {
	c.pen = [3]float32{r, g, b}
}

// SetPixel sets a pixel at (x, y) where x,y are in "sub-pixel" coordinates.
// The canvas size in sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	// Early bounds check for negative coordinates
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	subX := x % 2
	subY := y % 4

	c.Grid[row][col] |= rune(pixelMap[subY][subX])
	cell := &c.Colors[row][col]
	for k := range cell {
		if c.pen[k] > cell[k] {
			cell[k] = c.pen[k]
		}
	}
}

// Unset clears a pixel
func (c *Canvas) Unset(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	subX := x % 2
	subY := y % 4

	mask := ^rune(pixelMap[subY][subX])
	c.Grid[row][col] &= mask
	if c.Grid[row][col] < blank {
		c.Grid[row][col] = blank
	}
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
			c.Colors[i][j] = [3]float32{}
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Render is String with every lit cell colored.
func (c *Canvas) Render() string {
	var b strings.Builder
	for i, row := range c.Grid {
		for j, r := range row {
			if r == blank {
				b.WriteRune(r)
				continue
			}
			b.WriteString(c.style(c.Colors[i][j]).Render(string(r)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (c *Canvas) style(rgb [3]float32) lipgloss.Style {
	hex := hexColor(int(rgb[0]*255), int(rgb[1]*255), int(rgb[2]*255))
	st, ok := c.styles[hex]
	if !ok {
		st = lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
		c.styles[hex] = st
	}
	return st
}

// SubPixel is the size in screen pixels of one braille dot.
const SubPixel = 4.0

// DrawFrame clears the canvas and rasterizes f, scaling window pixels onto
// the dot grid. Stars go first so particles and cores draw over them.
func (c *Canvas) DrawFrame(f *Frame) {
	c.Clear()
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return
	}
	sx := float64(c.Width*2) / f.Width
	sy := float64(c.Height*4) / f.Height

	plot := func(p Point) {
		c.SetPen(p.R, p.G, p.B)
		c.Set(int(p.X*sx), int(p.Y*sy))
	}
	for _, p := range f.Stars {
		plot(p)
	}
	for _, p := range f.Points {
		plot(p)
	}
	for _, p := range f.Cores {
		x, y := int(p.X*sx), int(p.Y*sy)
		c.SetPen(p.R, p.G, p.B)
		c.DrawLine(x-2, y, x+2, y)
		c.DrawLine(x, y-2, x, y+2)
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

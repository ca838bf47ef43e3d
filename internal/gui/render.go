package gui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/san-kum/neonportal/internal/viz"
)

func pointColor(p viz.Point, alpha uint8) rl.Color {
	return rl.NewColor(channel(p.R), channel(p.G), channel(p.B), alpha)
}

func channel(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v * 255)
}

func (a *App) drawFrame(f *viz.Frame) {
	for _, s := range f.Stars {
		rl.DrawPixelV(rl.NewVector2(float32(s.X), float32(s.Y)), pointColor(s, 200))
	}

	rl.BeginBlendMode(rl.BlendAdditive)
	for _, c := range f.Cores {
		a.drawGlow(c, 6, 90)
		a.drawGlow(c, 2.5, 200)
	}
	for _, p := range f.Points {
		rl.DrawCircleV(rl.NewVector2(float32(p.X), float32(p.Y)), 1.6, pointColor(p, 220))
	}
	rl.EndBlendMode()
}

// drawGlow stamps the radial glow texture centered on p.
func (a *App) drawGlow(p viz.Point, scale float32, alpha uint8) {
	half := float32(a.glowTex.Width) * scale / 2
	pos := rl.NewVector2(float32(p.X)-half, float32(p.Y)-half)
	rl.DrawTextureEx(a.glowTex, pos, 0, scale, pointColor(p, alpha))
}

func (a *App) drawHUD(f *viz.Frame) {
	if f.Badge {
		rl.DrawText("NEON", 24, 20, 24, ColPink)
		rl.DrawText("PORTAL", 24+rl.MeasureText("NEON ", 24), 20, 24, ColCyan)
	}

	s := f.Status
	mode := "solo"
	if s.Multi {
		mode = "shared"
	}
	if s.Leader {
		mode += "*"
	}
	status := fmt.Sprintf("%s  windows %d  step %d  epoch %.1fs", mode, s.Windows, s.Step, s.EpochAge.Seconds())
	if s.Reduced {
		status += "  reduced motion"
	}
	h := int32(f.Height)
	rl.DrawText(status, 24, h-28, 14, ColTextDim)

	if a.err != nil {
		rl.DrawText(a.err.Error(), 24, h-48, 14, rl.Red)
	}
	if a.showHelp {
		rl.DrawText("[M] REDUCED MOTION  [?] HELP  [Q] QUIT", 24, 52, 14, ColText)
	}
}

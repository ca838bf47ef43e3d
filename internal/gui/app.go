package gui

import (
	"errors"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/presence"
	"github.com/san-kum/neonportal/internal/viz"
)

var (
	ColBg      = rl.NewColor(4, 2, 10, 255)
	ColText    = rl.NewColor(232, 230, 255, 255)
	ColTextDim = rl.NewColor(102, 102, 136, 255)
	ColPink    = rl.NewColor(255, 94, 251, 255)
	ColCyan    = rl.NewColor(63, 216, 255, 255)
)

// App is an OS window of the portal. Unlike the terminal viewer it knows
// its real screen rectangle, so moving the window moves its view.
type App struct {
	src      viz.Source
	rect     presence.Rect
	frame    *viz.Frame
	err      error
	glowTex  rl.Texture2D
	showHelp bool
}

func initWindow(width, height int, fullscreen bool) {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(width), int32(height), "neon portal")
	rl.SetTargetFPS(60)
	rl.SetExitKey(0)
	if fullscreen {
		rl.ToggleFullscreen()
	}
}

func NewApp(src viz.Source) *App {
	img := rl.GenImageGradientRadial(32, 32, 0.0, rl.White, rl.NewColor(0, 0, 0, 0))
	a := &App{src: src, glowTex: rl.LoadTextureFromImage(img)}
	rl.UnloadImage(img)
	return a
}

// Run opens an OS window of width x height and drives src until the window
// closes or the portal unmounts.
func Run(src viz.Source, width, height int, fullscreen bool) error {
	initWindow(width, height, fullscreen)
	defer rl.CloseWindow()

	app := NewApp(src)
	defer rl.UnloadTexture(app.glowTex)
	return app.RunLoop()
}

func (a *App) RunLoop() error {
	for !rl.WindowShouldClose() {
		if done := a.Update(); done {
			return nil
		}
		a.Draw()
	}
	return nil
}

// Update tracks the window rectangle, handles keys and pulls the next
// frame. It reports true when the loop should stop.
func (a *App) Update() bool {
	if rl.IsKeyPressed(rl.KeyQ) {
		return true
	}
	if rl.IsKeyPressed(rl.KeyM) {
		a.src.SetReducedMotion(!a.src.ReducedMotion())
	}
	if rl.IsKeyPressed(rl.KeySlash) {
		a.showHelp = !a.showHelp
	}

	pos := rl.GetWindowPosition()
	rect := presence.Rect{
		X:      float64(pos.X),
		Y:      float64(pos.Y),
		Width:  float64(rl.GetScreenWidth()),
		Height: float64(rl.GetScreenHeight()),
	}
	if rect != a.rect && rect.Valid() {
		a.rect = rect
		a.err = a.src.Resize(rect)
	}

	frame, err := a.src.Frame(time.Now())
	if errors.Is(err, dynamo.ErrUnmounted) {
		return true
	}
	if err != nil {
		a.err = err
	}
	if frame != nil {
		a.frame = frame
	}
	return false
}

func (a *App) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(ColBg)

	if a.frame != nil {
		a.drawFrame(a.frame)
		a.drawHUD(a.frame)
	}

	rl.EndDrawing()
}

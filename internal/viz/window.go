package viz

import (
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/presence"
)

const (
	defaultCols = 80
	defaultRows = 24
	chromeRows  = 3
	moveStep    = 40.0
)

// Source produces frames for a window. A mounted portal satisfies it.
type Source interface {
	Frame(now time.Time) (*Frame, error)
	Resize(rect presence.Rect) error
	SetReducedMotion(on bool)
	ReducedMotion() bool
}

type TickMsg time.Time

var (
	canvasStyle = lipgloss.NewStyle().Padding(0, 0)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4757"))
)

// Model is the terminal viewer: one terminal is one window of the portal.
// The terminal cannot report its screen position, so the window rectangle
// is moved with the arrow keys.
type Model struct {
	src      Source
	canvas   *Canvas
	rect     presence.Rect
	frame    *Frame
	err      error
	showHelp bool
}

func NewModel(src Source, rect presence.Rect) Model {
	m := Model{src: src, rect: rect}
	m.resizeCanvas(defaultCols, defaultRows)
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			m.move(-moveStep, 0)
		case "right", "l":
			m.move(moveStep, 0)
		case "up", "k":
			m.move(0, -moveStep)
		case "down", "j":
			m.move(0, moveStep)
		case "m":
			m.src.SetReducedMotion(!m.src.ReducedMotion())
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.resizeCanvas(msg.Width, msg.Height)
		m.err = m.src.Resize(m.rect)
	case TickMsg:
		frame, err := m.src.Frame(time.Time(msg))
		if errors.Is(err, dynamo.ErrUnmounted) {
			return m, tea.Quit
		}
		m.err = err
		if frame != nil {
			m.frame = frame
			m.canvas.DrawFrame(frame)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) move(dx, dy float64) {
	m.rect.X += dx
	m.rect.Y += dy
	m.err = m.src.Resize(m.rect)
}

// resizeCanvas fits the dot grid to a terminal of cols x rows and sizes the
// window rectangle to match.
func (m *Model) resizeCanvas(cols, rows int) {
	rows -= chromeRows
	if cols < 4 {
		cols = 4
	}
	if rows < 2 {
		rows = 2
	}
	m.canvas = NewCanvas(cols, rows)
	m.rect.Width = float64(cols*2) * SubPixel
	m.rect.Height = float64(rows*4) * SubPixel
}

func (m Model) Rect() presence.Rect { return m.rect }

func (m Model) View() string {
	var b strings.Builder
	if m.frame != nil && m.frame.Badge {
		b.WriteString(Badge())
	}
	b.WriteString("\n")
	b.WriteString(canvasStyle.Render(m.canvas.Render()))
	if m.frame != nil {
		b.WriteString(StatusLine(m.frame.Status))
	}
	if m.err != nil {
		b.WriteString("  " + errStyle.Render(m.err.Error()))
	}
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(KeyHints())
	}
	return b.String()
}

// Run opens the terminal viewer on src until the user quits or the portal
// unmounts.
func Run(src Source, rect presence.Rect) error {
	_, err := tea.NewProgram(NewModel(src, rect), tea.WithAltScreen()).Run()
	return err
}

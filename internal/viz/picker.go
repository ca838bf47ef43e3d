package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fd8ff")).Bold(true)
	pickSub      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	pickCursor   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5efb")).Bold(true)
	pickActive   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	pickDesc     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	pickInactive = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
)

// Picker is a menu over the visual presets.
type Picker struct {
	names    []string
	info     map[string]string
	cursor   int
	selected string
}

func NewPicker(names []string, info map[string]string) Picker {
	return Picker{names: names, info: info}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.names)-1 {
			p.cursor++
		}
	case "enter", " ":
		if len(p.names) > 0 {
			p.selected = p.names[p.cursor]
		}
		return p, tea.Quit
	}
	return p, nil
}

func (p Picker) Selected() string { return p.selected }

func (p Picker) View() string {
	var b strings.Builder
	b.WriteString("\n\n    " + Badge() + "\n    " + pickSub.Render("choose a preset") + "\n    " + pickSub.Render("─────────────────────────") + "\n\n")
	for i, name := range p.names {
		desc := p.info[name]
		if i == p.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", pickCursor.Render("▸"), pickActive.Render(fmt.Sprintf("%-10s", name)), pickDesc.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", pickInactive.Render(fmt.Sprintf("%-10s", name)), pickInactive.Render(desc)))
		}
	}
	b.WriteString("\n    " + pickTitle.Render("j/k") + pickSub.Render(" navigate  ") + pickTitle.Render("enter") + pickSub.Render(" select  ") + pickTitle.Render("q") + pickSub.Render(" quit") + "\n")
	return b.String()
}

// PickPreset runs the picker and returns the chosen name, or "" when the
// user quit without choosing.
func PickPreset(names []string, info map[string]string) (string, error) {
	final, err := tea.NewProgram(NewPicker(names, info)).Run()
	if err != nil {
		return "", err
	}
	return final.(Picker).Selected(), nil
}

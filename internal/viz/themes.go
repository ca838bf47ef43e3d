package viz

import "github.com/charmbracelet/lipgloss"

// Theme colors the chrome around the particle view: badge, status line and
// key hints. Particle colors come from the field.
type Theme struct {
	Name       string
	BadgeStart lipgloss.Color
	BadgeEnd   lipgloss.Color
	Status     lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Warning    lipgloss.Color
}

var (
	ThemeNeon = Theme{
		Name:       "neon",
		BadgeStart: lipgloss.Color("#ff5efb"),
		BadgeEnd:   lipgloss.Color("#3fd8ff"),
		Status:     lipgloss.Color("#e8e6ff"),
		Accent:     lipgloss.Color("#3fd8ff"),
		Muted:      lipgloss.Color("#666688"),
		Warning:    lipgloss.Color("#ffaa00"),
	}

	ThemeMono = Theme{
		Name:       "mono",
		BadgeStart: lipgloss.Color("#ffffff"),
		BadgeEnd:   lipgloss.Color("#888888"),
		Status:     lipgloss.Color("#cccccc"),
		Accent:     lipgloss.Color("#ffffff"),
		Muted:      lipgloss.Color("#555555"),
		Warning:    lipgloss.Color("#ffffff"),
	}

	ThemeEmber = Theme{
		Name:       "ember",
		BadgeStart: lipgloss.Color("#ff6b6b"),
		BadgeEnd:   lipgloss.Color("#feca57"),
		Status:     lipgloss.Color("#fff5f5"),
		Accent:     lipgloss.Color("#ff9ff3"),
		Muted:      lipgloss.Color("#8b6b8c"),
		Warning:    lipgloss.Color("#ffc048"),
	}

	CurrentTheme = ThemeNeon

	Themes = []Theme{
		ThemeNeon,
		ThemeMono,
		ThemeEmber,
	}
)

// GetTheme returns a theme by name, falling back to neon.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeNeon
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// NextTheme cycles CurrentTheme.
func NextTheme() {
	names := ThemeNames()
	for i, name := range names {
		if name == CurrentTheme.Name {
			SetTheme(names[(i+1)%len(names)])
			return
		}
	}
}

package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const badgeText = "NEON PORTAL"

// Badge renders the title overlay in the current theme's gradient.
func Badge() string {
	return GradientText(badgeText, CurrentTheme.BadgeStart, CurrentTheme.BadgeEnd)
}

// StatusLine summarizes a frame's status for the terminal viewer.
func StatusLine(s Status) string {
	label := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	value := lipgloss.NewStyle().Foreground(CurrentTheme.Status).Bold(true)

	mode := "solo"
	if s.Multi {
		mode = "shared"
	}
	if s.Leader {
		mode += "*"
	}

	parts := []string{
		label.Render("mode ") + value.Render(mode),
		label.Render("windows ") + value.Render(fmt.Sprintf("%d", s.Windows)),
		label.Render("step ") + value.Render(fmt.Sprintf("%d", s.Step)),
		label.Render("epoch ") + value.Render(formatAge(s.EpochAge)),
	}
	if s.Preset != "" {
		parts = append(parts, label.Render("preset ")+value.Render(s.Preset))
	}
	if s.Reduced {
		parts = append(parts, lipgloss.NewStyle().Foreground(CurrentTheme.Warning).Render("reduced motion"))
	}
	return strings.Join(parts, "  ")
}

// KeyHints renders the key help line.
func KeyHints() string {
	key := lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Bold(true)
	text := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	hints := [][2]string{
		{"arrows", " move window  "},
		{"m", " reduced motion  "},
		{"t", " theme  "},
		{"?", " help  "},
		{"q", " quit"},
	}
	var b strings.Builder
	for _, h := range hints {
		b.WriteString(key.Render(h[0]) + text.Render(h[1]))
	}
	return b.String()
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// GradientText creates a gradient effect on text using color interpolation
func GradientText(text string, startColor, endColor lipgloss.Color) string {
	if len(text) == 0 {
		return ""
	}

	sr, sg, sb := parseHex(string(startColor))
	er, eg, eb := parseHex(string(endColor))

	var result strings.Builder
	n := len(text)

	for i, c := range text {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		r := int(float64(sr) + t*float64(er-sr))
		g := int(float64(sg) + t*float64(eg-sg))
		b := int(float64(sb) + t*float64(eb-sb))

		style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(r, g, b))).Bold(true)
		result.WriteString(style.Render(string(c)))
	}

	return result.String()
}

func parseHex(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 255, 255, 255
	}
	r = parseHexByte(hex[1:3])
	g = parseHexByte(hex[3:5])
	b = parseHexByte(hex[5:7])
	return
}

func parseHexByte(s string) int {
	var val int
	for _, c := range s {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

func hexColor(r, g, b int) string {
	return "#" + hexByte(r) + hexByte(g) + hexByte(b)
}

func hexByte(v int) string {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	const hex = "0123456789abcdef"
	return string(hex[v/16]) + string(hex[v%16])
}

// HexColor formats a float RGB triple as #rrggbb.
func HexColor(r, g, b float32) string {
	return hexColor(int(r*255), int(g*255), int(b*255))
}

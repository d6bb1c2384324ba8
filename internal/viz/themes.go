package viz

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/servoloop/internal/servo"
)

// Theme colors the monitor, with one color per servo state.
type Theme struct {
	Name    string
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Idle    lipgloss.Color
	Running lipgloss.Color
	Holding lipgloss.Color
	Stalled lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:    "cyberpunk",
		Accent:  lipgloss.Color("#00ffff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666688"),
		Idle:    lipgloss.Color("#888899"),
		Running: lipgloss.Color("#00ff88"),
		Holding: lipgloss.Color("#ff00ff"),
		Stalled: lipgloss.Color("#ff4444"),
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Accent:  lipgloss.Color("#88ff88"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Idle:    lipgloss.Color("#007700"),
		Running: lipgloss.Color("#00ff00"),
		Holding: lipgloss.Color("#ccffcc"),
		Stalled: lipgloss.Color("#ffff00"),
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Idle:    lipgloss.Color("#aaaaaa"),
		Running: lipgloss.Color("#00cc00"),
		Holding: lipgloss.Color("#0088ff"),
		Stalled: lipgloss.Color("#ff0000"),
	}

	CurrentTheme = ThemeCyberpunk

	Themes = []Theme{ThemeCyberpunk, ThemeRetroGreen, ThemeMinimal}
)

// GetTheme returns a theme by name, the default for unknown names.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
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

// NextTheme switches to the theme after the current one.
func NextTheme() {
	names := ThemeNames()
	for i, name := range names {
		if name == CurrentTheme.Name {
			SetTheme(names[(i+1)%len(names)])
			return
		}
	}
}

// StateColor is the theme color of a servo state.
func (t Theme) StateColor(s servo.State) lipgloss.Color {
	switch s {
	case servo.StateRunning:
		return t.Running
	case servo.StateHolding:
		return t.Holding
	case servo.StateStalled:
		return t.Stalled
	case servo.StateIdle:
		return t.Idle
	}
	return t.Muted
}

package banner

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var ColorBanner = lipgloss.Color("#7D56F4")

// GetString renders the banner for w. Color is dropped when w is not a terminal.
func GetString(w io.Writer) string {
	renderer := lipgloss.NewRenderer(w)

	style := renderer.NewStyle().
		Foreground(ColorBanner).
		Bold(true)

	ascii := `
  __  __
 / /_/ /_  ____  _____
/ __/ __ \/ __ \/ ___/
/ /_/ / / / /_/ / /
\__/_/ /_/\____/_/     `

	return style.Render(ascii) + "\n"
}

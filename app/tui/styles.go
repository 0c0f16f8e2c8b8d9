package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF5F5F")
	colorGreen   = lipgloss.Color("#5FFF87")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorCyan    = lipgloss.Color("#5FD7FF")
	colorGray    = lipgloss.Color("#767676")
	colorDimGray = lipgloss.Color("#444444")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorMagenta = lipgloss.Color("#D787FF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	liveDotStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	pausedDotStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	idleDotStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	badgeStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	partialTextStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	timestampStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	agentLabelStyle = lipgloss.NewStyle().
			Foreground(colorMagenta)

	systemLabelStyle = lipgloss.NewStyle().
				Foreground(colorGray)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	panelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorCyan)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)

	levelGreenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	levelYellowStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	levelGrayStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	sentimentStyles = map[string]lipgloss.Style{
		"positive": lipgloss.NewStyle().Foreground(colorGreen),
		"neutral":  lipgloss.NewStyle().Foreground(colorGray),
		"negative": lipgloss.NewStyle().Foreground(colorRed),
	}
)

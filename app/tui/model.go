package tui

import (
	"context"
	"fmt"
	"meetassist/app/service/analysis"
	"meetassist/app/service/conversation"
	"meetassist/app/service/queue"
	"meetassist/app/service/session"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/elliotchance/pie/v2"
)

const (
	refreshInterval = 200 * time.Millisecond
	messageTimeout  = 4 * time.Second
	minPanelWidth   = 20
)

// Controller is the part of the live session the console drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect()
	Pause()
	Resume()
	ToggleMute() bool
	StartSystemAudio(ctx context.Context) error
	StopSystemAudio()
	Status() session.Status
}

type Dashboard interface {
	View() analysis.View
}

type Transcript interface {
	Turns() []conversation.Turn
}

type Exporter interface {
	Save() (string, error)
}

// Focus selects which panel receives scroll keys.
type Focus int

const (
	FocusTranscript Focus = iota
	FocusAnalysis
)

type refreshMsg struct{}

// Model is the bubbletea model of the console view.
type Model struct {
	ctx        context.Context
	controller Controller
	dashboard  Dashboard
	transcript Transcript
	exporter   Exporter

	status session.Status
	turns  []conversation.Turn
	view   analysis.View

	focus            Focus
	transcriptScroll int
	analysisScroll   int

	width  int
	height int

	infoMessage  string
	errorMessage string
	messageSeq   int

	alive bool
}

// NewModel creates the console model. The model reads state from the services on
// every notice.
func NewModel(ctx context.Context, controller Controller, dashboard Dashboard, transcript Transcript, exporter Exporter) Model {
	m := Model{
		ctx:        ctx,
		controller: controller,
		dashboard:  dashboard,
		transcript: transcript,
		exporter:   exporter,
		width:      100,
		height:     30,
		alive:      true,
	}
	m.refresh()

	return m
}

func (m Model) Init() tea.Cmd {
	return refreshTick()
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func clearMessageAfter(seq int) tea.Cmd {
	return tea.Tick(messageTimeout, func(time.Time) tea.Msg {
		return ClearMessageMsg{Seq: seq}
	})
}

func (m *Model) refresh() {
	m.status = m.controller.Status()
	m.turns = m.transcript.Turns()
	m.view = m.dashboard.View()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		if !m.alive {
			return m, nil
		}
		m.status = m.controller.Status()
		return m, refreshTick()

	case NoticeMsg:
		m.refresh()
		switch msg.Notice.Kind {
		case queue.KindError:
			m.errorMessage = msg.Notice.Text
		case queue.KindInfo:
			return m.showInfo(msg.Notice.Text)
		case queue.KindTurns:
			m.transcriptScroll = 0
		}
		return m, nil

	case ActionResultMsg:
		m.refresh()
		if msg.Err != nil {
			m.errorMessage = msg.Err.Error()
			return m, nil
		}
		if msg.Info != "" {
			return m.showInfo(msg.Info)
		}
		return m, nil

	case ClearMessageMsg:
		if msg.Seq == m.messageSeq {
			m.infoMessage = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) showInfo(text string) (tea.Model, tea.Cmd) {
	m.messageSeq++
	m.infoMessage = text
	return m, clearMessageAfter(m.messageSeq)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.errorMessage = ""

	switch msg.String() {
	case keyQuit, keyQuitUpper, keyCtrlC:
		m.alive = false
		return m, tea.Quit

	case keySpace:
		if m.status.State == session.StateIdle {
			return m, m.connect()
		}
		return m, m.disconnect()

	case keyPause:
		switch m.status.State {
		case session.StateListening:
			return m, m.action("Paused", m.controller.Pause)
		case session.StatePaused:
			return m, m.action("Resumed", m.controller.Resume)
		}
		return m, nil

	case keyMute:
		return m, m.toggleMute()

	case keySystemAudio:
		if m.status.SystemAudio {
			return m, m.action("System audio stopped", m.controller.StopSystemAudio)
		}
		return m, m.startSystemAudio()

	case keyExport:
		return m, m.export()

	case keyTab:
		if m.focus == FocusTranscript {
			m.focus = FocusAnalysis
		} else {
			m.focus = FocusTranscript
		}
		return m, nil

	case keyUp, keyK:
		m.scroll(1)
		return m, nil

	case keyDown, keyJ:
		m.scroll(-1)
		return m, nil
	}

	return m, nil
}

// scroll moves the focused panel away from (positive) or toward (negative) its latest lines.
func (m *Model) scroll(delta int) {
	target := &m.transcriptScroll
	if m.focus == FocusAnalysis {
		target = &m.analysisScroll
	}

	*target += delta
	if *target < 0 {
		*target = 0
	}
}

func (m Model) connect() tea.Cmd {
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		if err := controller.Connect(ctx); err != nil {
			return ActionResultMsg{Err: err}
		}
		return ActionResultMsg{Info: "Connected"}
	}
}

func (m Model) disconnect() tea.Cmd {
	return m.action("Disconnected", m.controller.Disconnect)
}

func (m Model) toggleMute() tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		if controller.ToggleMute() {
			return ActionResultMsg{Info: "Microphone muted"}
		}
		return ActionResultMsg{Info: "Microphone unmuted"}
	}
}

func (m Model) startSystemAudio() tea.Cmd {
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		if err := controller.StartSystemAudio(ctx); err != nil {
			return ActionResultMsg{Err: err}
		}
		return ActionResultMsg{Info: "System audio enabled"}
	}
}

func (m Model) export() tea.Cmd {
	exporter := m.exporter
	return func() tea.Msg {
		path, err := exporter.Save()
		if err != nil {
			return ActionResultMsg{Err: err}
		}
		return ActionResultMsg{Info: "Exported to " + path}
	}
}

func (m Model) action(info string, fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return ActionResultMsg{Info: info}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	// header, status bar, blank line, message line, footer
	contentHeight := m.height - 6
	if contentHeight < 4 {
		contentHeight = 4
	}
	b.WriteString(m.renderMainContent(contentHeight))
	b.WriteString("\n")

	b.WriteString(m.renderMessageBar())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("MEETING ASSISTANT")
	if m.view.UpdatedAt.IsZero() {
		return title
	}

	updated := timestampStyle.Render("analysis " + m.view.UpdatedAt.Local().Format("15:04:05"))
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(updated)
	if gap < 1 {
		gap = 1
	}

	return title + strings.Repeat(" ", gap) + updated
}

func (m Model) renderStatusBar() string {
	var state string
	switch m.status.State {
	case session.StateListening:
		state = liveDotStyle.Render("● LIVE")
	case session.StatePaused:
		state = pausedDotStyle.Render("❚❚ PAUSED")
	default:
		state = idleDotStyle.Render("○ IDLE")
	}

	parts := []string{state}
	if m.status.Muted {
		parts = append(parts, badgeStyle.Render("MUTED"))
	}
	if m.status.SystemAudio {
		parts = append(parts, badgeStyle.Render("SYS"))
	}

	parts = append(parts,
		"MIC "+renderLevelMeter(m.status.MicLevel),
		"OUT "+renderLevelMeter(m.status.OutputLevel),
		dimStyle.Render(fmt.Sprintf("tokens %d in / %d out", m.status.Tokens.Input, m.status.Tokens.Output)),
	)

	return strings.Join(parts, "  ")
}

func renderLevelMeter(level float32) string {
	const width = 8

	filled := int(level * width)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	style := levelGreenStyle
	switch {
	case filled == 0:
		style = levelGrayStyle
	case filled >= width-1:
		style = levelYellowStyle
	}

	return style.Render(strings.Repeat("█", filled)) + levelGrayStyle.Render(strings.Repeat("░", width-filled))
}

func (m Model) renderMainContent(height int) string {
	leftWidth := m.width / 2
	if leftWidth < minPanelWidth {
		leftWidth = minPanelWidth
	}
	rightWidth := m.width - leftWidth - 3
	if rightWidth < minPanelWidth {
		rightWidth = minPanelWidth
	}

	left := m.renderPanel("Transcript", m.focus == FocusTranscript, m.transcriptLines(leftWidth), m.transcriptScroll, leftWidth, height)
	right := m.renderPanel("Analysis", m.focus == FocusAnalysis, m.analysisLines(rightWidth), m.analysisScroll, rightWidth, height)

	divider := dividerStyle.Render("│")

	var b strings.Builder
	for i := range height {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(padRight(left[i], leftWidth))
		b.WriteString(" ")
		b.WriteString(divider)
		b.WriteString(" ")
		b.WriteString(right[i])
	}

	return b.String()
}

// renderPanel returns exactly height lines: the title and the visible window of lines.
// The window is anchored to the bottom and moved up by scroll.
func (m Model) renderPanel(title string, active bool, lines []string, scroll, width, height int) []string {
	style := panelTitleStyle
	if active {
		style = panelTitleActiveStyle
	}

	out := make([]string, 0, height)
	out = append(out, style.Render(truncateToWidth(title, width)))

	visible := height - 1
	end := len(lines) - scroll
	if end < visible {
		end = min(visible, len(lines))
	}
	start := max(end-visible, 0)

	out = append(out, lines[start:end]...)
	for len(out) < height {
		out = append(out, "")
	}

	return out
}

func (m Model) transcriptLines(width int) []string {
	if len(m.turns) == 0 {
		return []string{dimStyle.Render("No conversation yet. Press space to connect.")}
	}

	var lines []string
	for _, turn := range m.turns {
		label := roleLabel(turn.Role)
		prefix := timestampStyle.Render(turn.Timestamp.Local().Format("15:04:05")) + " " + label + " "
		indent := lipgloss.Width(prefix)

		wrapped := wrapText(turn.Text, max(width-indent, 10))
		for i, line := range wrapped {
			if !turn.IsFinal {
				line = partialTextStyle.Render(line)
			}
			if i == 0 {
				lines = append(lines, prefix+line)
			} else {
				lines = append(lines, strings.Repeat(" ", indent)+line)
			}
		}

		for _, source := range turn.Grounding {
			lines = append(lines, strings.Repeat(" ", indent)+dimStyle.Render(truncateToWidth("↳ "+source.Title, width-indent)))
		}
	}

	return lines
}

func roleLabel(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return userLabelStyle.Render("You")
	case conversation.RoleAgent:
		return agentLabelStyle.Render("AI ")
	default:
		return systemLabelStyle.Render("SYS")
	}
}

func (m Model) analysisLines(width int) []string {
	var lines []string

	section := func(title string, body []string) {
		if len(body) == 0 {
			return
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, sectionStyle.Render(title))
		lines = append(lines, body...)
	}

	bullets := func(items []string) []string {
		var out []string
		for _, item := range items {
			for i, line := range wrapText(item, max(width-2, 10)) {
				if i == 0 {
					out = append(out, "• "+line)
				} else {
					out = append(out, "  "+line)
				}
			}
		}
		return out
	}

	section("Customer context", bullets(m.view.CustomerContext))

	result := m.view.Result
	if result == nil && len(m.view.Suggestions) == 0 {
		if len(lines) > 0 {
			return lines
		}
		if m.view.Running {
			return []string{dimStyle.Render("Waiting for enough conversation to analyze.")}
		}
		return []string{dimStyle.Render("Analysis runs while listening.")}
	}

	if result != nil {
		section("Summary", wrapText(result.Summary, width))
		section("Insights", bullets(result.Insights))
		section("Action items", bullets(result.ActionItems))
		section("Sentiment", m.sentimentLines(result.Sentiment, width))
	}

	section("Suggestions", bullets(m.view.Suggestions))

	if result != nil && len(result.DiarizedTranscript) > 0 {
		segments := pie.Map(result.DiarizedTranscript, func(segment analysis.DiarizedSegment) string {
			return segment.Speaker + ": " + segment.Text
		})
		section("Speakers", bullets(segments))
	}

	return lines
}

func (m Model) sentimentLines(sentiment analysis.Sentiment, width int) []string {
	if sentiment.Overall == "" && len(sentiment.Topics) == 0 {
		return nil
	}

	lines := []string{"Overall: " + renderSentiment(sentiment.Overall)}
	for _, topic := range sentiment.Topics {
		lines = append(lines, truncateToWidth("  "+topic.Topic+": ", width-10)+renderSentiment(topic.Sentiment))
	}

	return lines
}

func renderSentiment(value string) string {
	style, ok := sentimentStyles[strings.ToLower(value)]
	if !ok {
		return value
	}
	return style.Render(value)
}

func (m Model) renderMessageBar() string {
	if m.errorMessage != "" {
		return errorStyle.Render("ERROR ") + errorTextStyle.Render(truncateToWidth(m.errorMessage, m.width-6))
	}
	if m.infoMessage != "" {
		return infoStyle.Render(truncateToWidth(m.infoMessage, m.width))
	}
	return ""
}

func (m Model) renderFooter() string {
	connectDesc := "connect"
	if m.status.State != session.StateIdle {
		connectDesc = "disconnect"
	}

	pauseDesc := "pause"
	if m.status.State == session.StatePaused {
		pauseDesc = "resume"
	}

	muteDesc := "mute"
	if m.status.Muted {
		muteDesc = "unmute"
	}

	keys := [][2]string{
		{"space", connectDesc},
		{"p", pauseDesc},
		{"m", muteDesc},
		{"a", "system audio"},
		{"e", "export"},
		{"tab", "focus"},
		{"q", "quit"},
	}

	parts := pie.Map(keys, func(k [2]string) string {
		return footerKeyStyle.Render(k[0]) + " " + footerDescStyle.Render(k[1])
	})

	return strings.Join(parts, "  ")
}

// padRight pads s with spaces to the given visible width.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// truncateToWidth cuts unstyled s to the given visible width.
func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}

	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}

func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len([]rune(current))+1+len([]rune(word)) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}

	return append(lines, current)
}

package tui

import (
	"context"
	"errors"
	"meetassist/app/service/analysis"
	"meetassist/app/service/conversation"
	"meetassist/app/service/queue"
	"meetassist/app/service/session"
	"meetassist/app/service/usage"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu         sync.Mutex
	status     session.Status
	connectErr error
	calls      []string
}

func (c *fakeController) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, name)
}

func (c *fakeController) Connect(context.Context) error {
	c.record("connect")
	if c.connectErr != nil {
		return c.connectErr
	}

	c.mu.Lock()
	c.status.State = session.StateListening
	c.status.Connected = true
	c.mu.Unlock()

	return nil
}

func (c *fakeController) Disconnect() {
	c.record("disconnect")

	c.mu.Lock()
	c.status.State = session.StateIdle
	c.mu.Unlock()
}

func (c *fakeController) Pause() {
	c.record("pause")

	c.mu.Lock()
	c.status.State = session.StatePaused
	c.mu.Unlock()
}

func (c *fakeController) Resume() {
	c.record("resume")

	c.mu.Lock()
	c.status.State = session.StateListening
	c.mu.Unlock()
}

func (c *fakeController) ToggleMute() bool {
	c.record("mute")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Muted = !c.status.Muted
	return c.status.Muted
}

func (c *fakeController) StartSystemAudio(context.Context) error {
	c.record("system_audio_start")

	c.mu.Lock()
	c.status.SystemAudio = true
	c.mu.Unlock()

	return nil
}

func (c *fakeController) StopSystemAudio() {
	c.record("system_audio_stop")

	c.mu.Lock()
	c.status.SystemAudio = false
	c.mu.Unlock()
}

func (c *fakeController) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

type fakeDashboard struct {
	view analysis.View
}

func (d *fakeDashboard) View() analysis.View {
	return d.view
}

type fakeTranscript struct {
	turns []conversation.Turn
}

func (t *fakeTranscript) Turns() []conversation.Turn {
	return t.turns
}

type fakeExporter struct {
	path string
	err  error
}

func (e *fakeExporter) Save() (string, error) {
	return e.path, e.err
}

type fixture struct {
	controller *fakeController
	dashboard  *fakeDashboard
	transcript *fakeTranscript
	exporter   *fakeExporter
}

func newTestModel() (Model, *fixture) {
	f := &fixture{
		controller: &fakeController{status: session.Status{State: session.StateIdle}},
		dashboard:  &fakeDashboard{},
		transcript: &fakeTranscript{},
		exporter:   &fakeExporter{path: "/tmp/log.json"},
	}

	m := NewModel(context.Background(), f.controller, f.dashboard, f.transcript, f.exporter)
	return m, f
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

// press sends a key and feeds the resulting command's message back into the model.
func press(t *testing.T, m Model, key string) Model {
	t.Helper()

	updated, cmd := m.Update(keyMsg(key))
	m = updated.(Model)

	if cmd == nil {
		return m
	}

	if result, ok := cmd().(ActionResultMsg); ok {
		updated, _ = m.Update(result)
		m = updated.(Model)
	}

	return m
}

func TestConnectAndDisconnect(t *testing.T) {
	m, f := newTestModel()

	m = press(t, m, " ")
	assert.Equal(t, session.StateListening, m.status.State)
	assert.Equal(t, "Connected", m.infoMessage)
	assert.Contains(t, m.View(), "LIVE")

	m = press(t, m, " ")
	assert.Equal(t, session.StateIdle, m.status.State)
	assert.Equal(t, []string{"connect", "disconnect"}, f.controller.calls)
}

func TestConnectErrorShown(t *testing.T) {
	m, f := newTestModel()
	f.controller.connectErr = errors.New("Select a realtime model before connecting")

	m = press(t, m, " ")
	assert.Equal(t, session.StateIdle, m.status.State)
	assert.Contains(t, m.View(), "Select a realtime model")

	m = press(t, m, "tab")
	assert.Empty(t, m.errorMessage)
}

func TestPauseResume(t *testing.T) {
	m, f := newTestModel()

	m = press(t, m, "p")
	assert.Empty(t, f.controller.calls)

	m = press(t, m, " ")
	m = press(t, m, "p")
	assert.Equal(t, session.StatePaused, m.status.State)
	assert.Contains(t, m.View(), "PAUSED")

	m = press(t, m, "p")
	assert.Equal(t, session.StateListening, m.status.State)
	assert.Equal(t, []string{"connect", "pause", "resume"}, f.controller.calls)
}

func TestMuteAndSystemAudio(t *testing.T) {
	m, _ := newTestModel()

	m = press(t, m, "m")
	assert.True(t, m.status.Muted)
	assert.Equal(t, "Microphone muted", m.infoMessage)
	assert.Contains(t, m.View(), "MUTED")

	m = press(t, m, "a")
	assert.True(t, m.status.SystemAudio)
	assert.Contains(t, m.View(), "SYS")

	m = press(t, m, "a")
	assert.False(t, m.status.SystemAudio)
}

func TestExport(t *testing.T) {
	m, f := newTestModel()

	m = press(t, m, "e")
	assert.Equal(t, "Exported to /tmp/log.json", m.infoMessage)

	f.exporter.err = errors.New("disk full")
	m = press(t, m, "e")
	assert.Equal(t, "disk full", m.errorMessage)
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel()

	updated, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, updated.(Model).alive)

	_, cmd = updated.Update(refreshMsg{})
	assert.Nil(t, cmd)
}

func TestNoticesRefreshPanels(t *testing.T) {
	m, f := newTestModel()

	f.transcript.turns = []conversation.Turn{
		{Timestamp: time.Now(), Role: conversation.RoleUser, Text: "What does the enterprise plan cost?", IsFinal: true},
		{Timestamp: time.Now(), Role: conversation.RoleAgent, Text: "Ask about seat count", IsFinal: false},
	}
	f.dashboard.view = analysis.View{
		Running: true,
		Result: &analysis.Result{
			Summary:     "Customer asked about pricing.",
			ActionItems: []string{"Send a quote"},
			Sentiment:   analysis.Sentiment{Overall: "positive"},
		},
		Suggestions: []string{"Ask about budget"},
		UpdatedAt:   time.Now(),
	}
	f.controller.status.Tokens = usage.Tokens{Input: 120, Output: 30}

	updated, _ := m.Update(NoticeMsg{Notice: queue.Notice{Kind: queue.KindAnalysis}})
	m = updated.(Model)

	view := m.View()
	assert.Contains(t, view, "enterprise plan")
	assert.Contains(t, view, "Summary")
	assert.Contains(t, view, "Send a quote")
	assert.Contains(t, view, "Ask about budget")
	assert.Contains(t, view, "tokens 120 in / 30 out")

	updated, _ = m.Update(NoticeMsg{Notice: queue.Notice{Kind: queue.KindError, Text: "System audio unavailable"}})
	m = updated.(Model)
	assert.Contains(t, m.View(), "System audio unavailable")
}

func TestInfoClearedAfterTimeout(t *testing.T) {
	m, _ := newTestModel()

	updated, cmd := m.Update(NoticeMsg{Notice: queue.Notice{Kind: queue.KindInfo, Text: "System audio ended"}})
	require.NotNil(t, cmd)
	m = updated.(Model)
	assert.Equal(t, "System audio ended", m.infoMessage)

	updated, _ = m.Update(ClearMessageMsg{Seq: m.messageSeq - 1})
	assert.Equal(t, "System audio ended", updated.(Model).infoMessage)

	updated, _ = m.Update(ClearMessageMsg{Seq: m.messageSeq})
	assert.Empty(t, updated.(Model).infoMessage)
}

func TestScrollStaysInBounds(t *testing.T) {
	m, _ := newTestModel()

	m = press(t, m, "j")
	assert.Zero(t, m.transcriptScroll)

	m = press(t, m, "k")
	m = press(t, m, "k")
	assert.Equal(t, 2, m.transcriptScroll)

	m = press(t, m, "tab")
	m = press(t, m, "k")
	assert.Equal(t, FocusAnalysis, m.focus)
	assert.Equal(t, 1, m.analysisScroll)
	assert.Equal(t, 2, m.transcriptScroll)
}

func TestLevelMeter(t *testing.T) {
	assert.Equal(t, 8, len([]rune(stripped(renderLevelMeter(0)))))
	assert.Equal(t, 8, strings.Count(stripped(renderLevelMeter(2)), "█"))
	assert.Equal(t, 4, strings.Count(stripped(renderLevelMeter(0.5)), "█"))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"one two", "three"}, wrapText("one two three", 8))
	assert.Nil(t, wrapText("   ", 8))
}

func stripped(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}

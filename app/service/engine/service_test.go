package engine

import (
	"context"
	"meetassist/app/client/boltdb"
	"meetassist/app/config"
	"meetassist/app/service/analysis"
	"meetassist/app/service/audio"
	"meetassist/app/service/conversation"
	"meetassist/app/service/customer"
	"meetassist/app/service/queue"
	"meetassist/app/service/realtime"
	"meetassist/app/service/session"
	"meetassist/app/service/settings"
	"meetassist/app/service/tools"
	"meetassist/app/service/usage"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	events chan realtime.Event
	once   sync.Once
}

func (c *fakeConn) Events() <-chan realtime.Event { return c.events }
func (c *fakeConn) SendAudio(realtime.AudioChunk) error { return nil }
func (c *fakeConn) SendText(string, bool) error { return nil }
func (c *fakeConn) SendToolResponse([]realtime.FunctionResponse) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.events <- realtime.CloseEvent{Reason: "closed by client"}
		close(c.events)
	})
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context, realtime.Config) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn := &fakeConn{events: make(chan realtime.Event, 64)}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeRecorder struct {
	mu      sync.Mutex
	running bool
}

func (r *fakeRecorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running = true
	return nil
}

func (r *fakeRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running = false
}

func (r *fakeRecorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.running
}

func (r *fakeRecorder) OnData(func(audio.Frame)) func() { return func() {} }
func (r *fakeRecorder) OnEnded(func(error)) func() { return func() {} }

type fakePlayer struct{}

func (fakePlayer) AddPCM16([]byte) {}
func (fakePlayer) Stop() {}
func (fakePlayer) OnVolume(func(float32)) {}

type fakeGenerator struct{}

func (fakeGenerator) Analyze(context.Context, string, bool) (*analysis.Result, usage.Tokens, error) {
	return &analysis.Result{
		Summary:     "Renewal pricing was discussed.",
		ActionItems: []string{"Send the renewal quote"},
		Sentiment:   analysis.Sentiment{Overall: "positive"},
	}, usage.Tokens{Input: 100, Output: 20}, nil
}

func (fakeGenerator) Suggest(context.Context, string) ([]string, usage.Tokens, error) {
	return []string{"Confirm seat count", "Offer annual billing", "Book a follow-up"}, usage.Tokens{Input: 50, Output: 10}, nil
}

type fixture struct {
	engine       *Service
	dialer       *fakeDialer
	mic          *fakeRecorder
	session      *session.Service
	analysis     *analysis.Service
	conversation *conversation.Service
	usage        *usage.Service
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{
		Live: config.Live{Model: "live-model", Voice: "Zephyr"},
		Analysis: config.Analysis{
			Model:               "analysis-model",
			Interval:            time.Hour,
			MinTranscriptLength: 50,
			SummaryDetail:       "brief",
			InsightsDetail:      "brief",
			ActionItemsDetail:   "brief",
		},
		Storage: config.Storage{Path: filepath.Join(t.TempDir(), "test.bolt")},
		Tools: []config.Tool{
			{Name: "lookup_order", Enabled: true},
		},
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	dialer := &fakeDialer{}
	mic := &fakeRecorder{}

	di := do.New()
	t.Cleanup(func() { _ = di.Shutdown() })

	do.ProvideValue(di, cfg)
	do.ProvideValue(di, context.Background())
	do.ProvideValue[realtime.Dialer](di, dialer)
	do.ProvideValue[analysis.Generator](di, fakeGenerator{})
	do.ProvideNamedValue[session.Recorder](di, session.MicrophoneRecorder, mic)
	do.ProvideNamedValue[session.Recorder](di, session.SystemAudioRecorder, &fakeRecorder{})
	do.ProvideValue[session.Player](di, fakePlayer{})
	do.Provide(di, boltdb.New)
	do.Provide(di, customer.New)
	do.Provide(di, tools.New)
	do.Provide(di, settings.New)
	do.Provide(di, conversation.New)
	do.Provide(di, usage.New)
	do.Provide(di, queue.New)
	do.Provide(di, session.New)
	do.Provide(di, analysis.New)

	svc, err := New(di)
	require.NoError(t, err)

	return &fixture{
		engine:       svc,
		dialer:       dialer,
		mic:          mic,
		session:      do.MustInvoke[*session.Service](di),
		analysis:     do.MustInvoke[*analysis.Service](di),
		conversation: do.MustInvoke[*conversation.Service](di),
		usage:        do.MustInvoke[*usage.Service](di),
	}
}

func (f *fixture) connect(t *testing.T) *fakeConn {
	t.Helper()

	require.NoError(t, f.session.Connect(context.Background()))

	conn := f.dialer.last()
	require.NotNil(t, conn)
	conn.events <- realtime.OpenEvent{}

	require.Eventually(t, func() bool {
		return f.session.State() == session.StateListening && f.analysis.Running()
	}, time.Second, 10*time.Millisecond)

	return conn
}

func TestSessionLifecycleDrivesAnalysis(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t)

	question := "Could you walk me through the renewal pricing for next year?"
	conn.events <- realtime.TranscriptionEvent{Source: realtime.SourceInput, Text: question, Final: true}
	conn.events <- realtime.TranscriptionEvent{Source: realtime.SourceOutput, Text: "Ask about the seat count."}
	conn.events <- realtime.TurnCompleteEvent{}
	conn.events <- realtime.ToolCallEvent{Calls: []realtime.FunctionCall{{ID: "1", Name: "lookup_order"}}}
	conn.events <- realtime.UsageEvent{Input: 10, Output: 5}

	require.Eventually(t, func() bool {
		return f.conversation.Len() == 4 && f.usage.Totals().Total() == 15
	}, time.Second, 10*time.Millisecond)

	transcript := f.analysis.Transcript()
	assert.Contains(t, transcript, "user: "+question)
	assert.Contains(t, transcript, "agent: Ask about the seat count.")
	assert.NotContains(t, transcript, "Tool call")

	require.True(t, f.analysis.Tick(context.Background()))

	f.session.Pause()
	assert.False(t, f.analysis.Running())
	assert.False(t, f.mic.Running())

	f.session.Resume()
	assert.True(t, f.analysis.Running())
	assert.True(t, f.mic.Running())

	f.session.Disconnect()
	assert.False(t, f.analysis.Running())
	assert.Empty(t, f.analysis.Transcript())
	assert.Nil(t, f.analysis.View().Result)
	assert.Equal(t, 4, f.conversation.Len())

	last, err := f.analysis.LastSession()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, usage.Tokens{Input: 160, Output: 35}, last.Tokens)
	require.NotNil(t, last.Analysis)
	assert.Equal(t, "Renewal pricing was discussed.", last.Analysis.Summary)
}

func TestRemoteCloseFinishesSession(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t)

	conn.events <- realtime.TranscriptionEvent{Source: realtime.SourceInput, Text: strings.Repeat("pricing ", 8), Final: true}
	conn.events <- realtime.CloseEvent{Reason: "deadline exceeded"}

	require.Eventually(t, func() bool {
		last, err := f.analysis.LastSession()
		return err == nil && last != nil
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, session.StateIdle, f.session.State())
	assert.False(t, f.analysis.Running())
	assert.Empty(t, f.analysis.Transcript())
	assert.Equal(t, 1, f.conversation.Len())
}

func TestRunDeliversNotices(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.UI.Headless = true
		cfg.UI.AutoConnect = true
	})

	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu      sync.Mutex
		notices []queue.Notice
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Run(ctx, func(notice queue.Notice) {
			mu.Lock()
			defer mu.Unlock()

			notices = append(notices, notice)
		})
	}()

	require.Eventually(t, func() bool {
		return f.dialer.last() != nil
	}, time.Second, 10*time.Millisecond)

	f.dialer.last().events <- realtime.OpenEvent{}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		for _, notice := range notices {
			if notice.Kind == queue.KindState && notice.Text == string(session.StateListening) {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}

	LogSink(queue.Notice{Kind: queue.KindInfo, Text: "done"})
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"meetassist/app/config"
	"meetassist/app/service/audio"
	"meetassist/app/service/conversation"
	"meetassist/app/service/queue"
	"meetassist/app/service/realtime"
	"meetassist/app/service/settings"
	"meetassist/app/service/usage"
	"sync"

	"github.com/samber/do"
	"github.com/samber/oops"
)

type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StatePaused    State = "paused"
)

const (
	MicrophoneRecorder  = "recorder.microphone"
	SystemAudioRecorder = "recorder.system_audio"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectCancelled = errors.New("connect cancelled by disconnect")
)

type Recorder interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	OnData(fn func(audio.Frame)) func()
	OnEnded(fn func(error)) func()
}

type Player interface {
	AddPCM16(data []byte)
	Stop()
	OnVolume(fn func(float32))
}

// StateObserver is called synchronously after every state transition.
type StateObserver func(from, to State)

type Status struct {
	State       State        `json:"state"`
	Connected   bool         `json:"connected"`
	Muted       bool         `json:"muted"`
	SystemAudio bool         `json:"systemAudio"`
	Tokens      usage.Tokens `json:"tokens"`
	MicLevel    float32      `json:"micLevel"`
	OutputLevel float32      `json:"outputLevel"`
}

// Service owns the live session: the realtime connection, the two capture sources
// and playback. Capture is active only while listening.
type Service struct {
	ctx               context.Context
	dialer            realtime.Dialer
	settingsSvc       *settings.Service
	conversationSvc   *conversation.Service
	usageSvc          *usage.Service
	queueSvc          *queue.Service
	mic               Recorder
	system            Recorder
	player            Player
	systemAudioDevice string

	// serializes rebinds so forwarders never overlap
	bindMu    sync.Mutex
	// serializes Connect so at most one dial is in flight
	connectMu sync.Mutex

	mu           sync.Mutex
	state        State
	conn         realtime.Conn
	connGen      uint64
	muted        bool
	sysConnected bool
	lastSeen     usage.Tokens
	forwarders   []func()
	micLevel     float32
	outputLevel  float32
	observers    []StateObserver
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	s := &Service{
		ctx:               do.MustInvoke[context.Context](di),
		dialer:            do.MustInvoke[realtime.Dialer](di),
		settingsSvc:       do.MustInvoke[*settings.Service](di),
		conversationSvc:   do.MustInvoke[*conversation.Service](di),
		usageSvc:          do.MustInvoke[*usage.Service](di),
		queueSvc:          do.MustInvoke[*queue.Service](di),
		mic:               do.MustInvokeNamed[Recorder](di, MicrophoneRecorder),
		system:            do.MustInvokeNamed[Recorder](di, SystemAudioRecorder),
		player:            do.MustInvoke[Player](di),
		systemAudioDevice: cfg.Live.SystemAudioDevice,
		state:             StateIdle,
	}

	s.mic.OnEnded(s.handleMicEnded)
	s.system.OnEnded(s.handleSystemEnded)
	s.player.OnVolume(s.setOutputLevel)

	return s, nil
}

// OnStateChange registers an observer. Observers run in registration order.
func (s *Service) OnStateChange(fn StateObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, fn)
}

func (s *Service) notify(from, to State) {
	if from == to {
		return
	}

	s.mu.Lock()
	observers := append([]StateObserver(nil), s.observers...)
	s.mu.Unlock()

	slog.Info("Session state changed", "from", from, "to", to)

	for _, fn := range observers {
		fn(from, to)
	}

	s.queueSvc.Add(queue.KindState, string(to))
}

// Connect opens a new connection, replacing any existing one. The session becomes
// listening when the connection reports it is open.
func (s *Service) Connect(ctx context.Context) error {
	cfg := s.settingsSvc.LiveConfig()
	if cfg == nil {
		return oops.
			Code("precondition").
			Public("Choose a realtime model in the settings before connecting.").
			Errorf("connection config is not set")
	}

	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	hasConn := s.conn != nil || s.state != StateIdle
	s.mu.Unlock()

	if hasConn {
		s.Disconnect()
	}

	// Disconnect during the dial bumps the generation and invalidates this attempt
	s.mu.Lock()
	s.connGen++
	gen := s.connGen
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx, *cfg)
	if err != nil {
		s.queueSvc.Error(fmt.Sprintf("Could not connect to %s: %v", cfg.Model, err))
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.mu.Lock()
	if s.connGen != gen {
		s.mu.Unlock()

		go func() {
			for range conn.Events() {
			}
		}()
		if err := conn.Close(); err != nil {
			slog.Warn("Failed to close cancelled connection", "error", err)
		}

		slog.Info("Connect cancelled while dialing", "model", cfg.Model)
		return oops.
			Code("cancelled").
			Public("The connection was cancelled.").
			Wrap(ErrConnectCancelled)
	}
	s.conn = conn
	s.mu.Unlock()

	slog.Info("Connecting", "model", cfg.Model, "voice", cfg.Voice, "tools", len(cfg.Tools))

	go s.handleEvents(gen, conn)

	return nil
}

// Disconnect stops capture, closes the connection and forces idle. Calling it again
// does nothing.
func (s *Service) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	from := s.state
	s.conn = nil
	s.connGen++
	s.state = StateIdle
	s.sysConnected = false
	s.mu.Unlock()

	s.rebind()
	s.player.Stop()

	if conn != nil {
		if err := conn.Close(); err != nil {
			slog.Warn("Failed to close connection", "error", err)
		}
	}

	s.notify(from, StateIdle)
}

func (s *Service) Pause() {
	s.transition(StateListening, StatePaused)
}

func (s *Service) Resume() {
	s.transition(StatePaused, StateListening)
}

func (s *Service) transition(from, to State) {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	s.rebind()
	s.notify(from, to)
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Service) ToggleMute() bool {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	s.mu.Unlock()

	s.rebind()
	s.queueSvc.Add(queue.KindState, "")

	slog.Info("Microphone mute toggled", "muted", muted)

	return muted
}

// StartSystemAudio marks system audio as a second participant source. Capture begins
// right away when listening, otherwise as soon as the session listens.
func (s *Service) StartSystemAudio(_ context.Context) error {
	s.mu.Lock()
	if s.sysConnected {
		s.mu.Unlock()
		return nil
	}
	s.sysConnected = true
	s.mu.Unlock()

	err := s.rebind()
	s.queueSvc.Add(queue.KindState, "")

	return err
}

func (s *Service) StopSystemAudio() {
	s.mu.Lock()
	if !s.sysConnected {
		s.mu.Unlock()
		return
	}
	s.sysConnected = false
	s.mu.Unlock()

	s.rebind()
	s.queueSvc.Add(queue.KindState, "")
}

// SendText sends a complete text turn, such as a recap request.
func (s *Service) SendText(text string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	return conn.SendText(text, true)
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Service) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.muted
}

func (s *Service) SystemAudioConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sysConnected
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		State:       s.state,
		Connected:   s.conn != nil,
		Muted:       s.muted,
		SystemAudio: s.sysConnected,
		Tokens:      s.usageSvc.Totals(),
		MicLevel:    s.micLevel,
		OutputLevel: s.outputLevel,
	}
}

// rebind drops every forwarding subscription and attaches the ones the current state,
// mute flag and system audio flag call for. It returns the system audio start error.
func (s *Service) rebind() error {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	s.mu.Lock()
	forwarders := s.forwarders
	s.forwarders = nil
	conn := s.conn
	live := conn != nil && s.state == StateListening
	micOn := live && !s.muted
	sysOn := live && s.sysConnected
	s.mu.Unlock()

	for _, unsubscribe := range forwarders {
		unsubscribe()
	}

	if micOn {
		if err := s.mic.Start(s.ctx); err != nil {
			slog.Error("Failed to start microphone", "error", err)
			s.queueSvc.Error(fmt.Sprintf("Could not start the microphone: %v", err))
		} else {
			s.addForwarder(s.mic.OnData(func(frame audio.Frame) {
				s.forward(conn, frame, true)
			}))
		}
	} else {
		s.mic.Stop()
	}

	if !sysOn {
		s.system.Stop()
		return nil
	}

	if err := s.system.Start(s.ctx); err != nil {
		s.mu.Lock()
		s.sysConnected = false
		s.mu.Unlock()

		domainErr := systemAudioError(s.systemAudioDevice, err)
		slog.Error("Failed to start system audio", "error", err, "device", s.systemAudioDevice)
		s.queueSvc.Error(publicMessage(domainErr))

		return domainErr
	}

	s.addForwarder(s.system.OnData(func(frame audio.Frame) {
		s.forward(conn, frame, false)
	}))

	return nil
}

func (s *Service) addForwarder(unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forwarders = append(s.forwarders, unsubscribe)
}

// ForwarderCount reports the active forwarding subscriptions.
func (s *Service) ForwarderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.forwarders)
}

func (s *Service) forward(conn realtime.Conn, frame audio.Frame, mic bool) {
	if err := conn.SendAudio(frame.Chunk); err != nil {
		slog.Debug("Failed to send audio", "error", err)
	}

	if mic {
		s.mu.Lock()
		s.micLevel = frame.Level
		s.mu.Unlock()

		s.queueSvc.Add(queue.KindLevels, "")
	}
}

func (s *Service) setOutputLevel(level float32) {
	s.mu.Lock()
	s.outputLevel = level
	s.mu.Unlock()

	s.queueSvc.Add(queue.KindLevels, "")
}

func (s *Service) handleMicEnded(err error) {
	s.mu.Lock()
	listening := s.state == StateListening
	s.mu.Unlock()

	if !listening {
		return
	}

	slog.Warn("Microphone capture ended", "error", err)
	s.queueSvc.Error("The microphone stopped unexpectedly. Mute and unmute to try again.")
}

// handleSystemEnded treats a revoked or unplugged system audio source as a normal stop.
func (s *Service) handleSystemEnded(err error) {
	s.mu.Lock()
	wasConnected := s.sysConnected
	s.sysConnected = false
	s.mu.Unlock()

	if !wasConnected {
		return
	}

	slog.Info("System audio ended", "error", err)

	s.rebind()
	s.queueSvc.Info("System audio sharing ended. Start it again to include the other participants.")
}

func (s *Service) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connGen == gen
}

func (s *Service) handleEvents(gen uint64, conn realtime.Conn) {
	for event := range conn.Events() {
		if !s.current(gen) {
			continue
		}

		s.handleEvent(gen, conn, event)
	}
}

func (s *Service) handleEvent(gen uint64, conn realtime.Conn, event realtime.Event) {
	switch e := event.(type) {
	case realtime.OpenEvent:
		s.handleOpen(gen)
	case realtime.CloseEvent:
		s.handleClose(gen, e.Reason)
	case realtime.InterruptedEvent:
		s.player.Stop()
	case realtime.TurnCompleteEvent:
		if _, ok := s.conversationSvc.SealLast(conversation.RoleAgent); ok {
			s.queueSvc.Add(queue.KindTurns, "")
		}
	case realtime.TranscriptionEvent:
		s.handleTranscription(e)
	case realtime.AudioEvent:
		if s.settingsSvc.Live().AudioOutput {
			s.player.AddPCM16(e.PCM)
		}
	case realtime.ToolCallEvent:
		s.handleToolCalls(conn, e.Calls)
	case realtime.UsageEvent:
		s.applyUsage(e)
	case realtime.GroundingEvent:
		if s.conversationSvc.AttachGrounding(e.Sources) {
			s.queueSvc.Add(queue.KindTurns, "")
		}
	}
}

func (s *Service) handleOpen(gen uint64) {
	s.mu.Lock()
	if s.connGen != gen {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = StateListening
	s.lastSeen = usage.Tokens{}
	s.mu.Unlock()

	s.usageSvc.Reset()
	s.rebind()
	s.notify(from, StateListening)
}

func (s *Service) handleClose(gen uint64, reason string) {
	s.mu.Lock()
	if s.connGen != gen {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.conn = nil
	s.connGen++
	s.state = StateIdle
	s.sysConnected = false
	s.mu.Unlock()

	s.rebind()
	s.player.Stop()

	slog.Info("Connection closed", "reason", reason)

	if from != StateIdle {
		s.queueSvc.Info("Connection closed: " + reason)
	}

	s.notify(from, StateIdle)
}

func (s *Service) handleTranscription(e realtime.TranscriptionEvent) {
	role := conversation.RoleUser
	if e.Source == realtime.SourceOutput {
		role = conversation.RoleAgent
	}

	s.conversationSvc.ApplyTranscription(role, e.Text, e.Final)
	s.queueSvc.Add(queue.KindTurns, "")
}

// applyUsage turns cumulative counts into deltas. Counts lower than the last seen ones
// are ignored.
func (s *Service) applyUsage(e realtime.UsageEvent) {
	var delta usage.Tokens

	s.mu.Lock()
	if e.Input > s.lastSeen.Input {
		delta.Input = e.Input - s.lastSeen.Input
		s.lastSeen.Input = e.Input
	}
	if e.Output > s.lastSeen.Output {
		delta.Output = e.Output - s.lastSeen.Output
		s.lastSeen.Output = e.Output
	}
	s.mu.Unlock()

	if delta.Total() == 0 {
		return
	}

	s.usageSvc.Add(usage.SourceLive, delta)
	s.queueSvc.Add(queue.KindState, "")
}

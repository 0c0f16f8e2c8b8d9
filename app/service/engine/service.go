package engine

import (
	"context"
	"log/slog"
	"meetassist/app/config"
	"meetassist/app/service/analysis"
	"meetassist/app/service/conversation"
	"meetassist/app/service/queue"
	"meetassist/app/service/session"

	"github.com/samber/do"
)

// Sink receives notices for the active view.
type Sink func(notice queue.Notice)

type Service struct {
	ctx             context.Context
	cfg             *config.Config
	sessionSvc      *session.Service
	analysisSvc     *analysis.Service
	conversationSvc *conversation.Service
	queueSvc        *queue.Service
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		ctx:             do.MustInvoke[context.Context](di),
		cfg:             do.MustInvoke[*config.Config](di),
		sessionSvc:      do.MustInvoke[*session.Service](di),
		analysisSvc:     do.MustInvoke[*analysis.Service](di),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
		queueSvc:        do.MustInvoke[*queue.Service](di),
	}

	s.analysisSvc.Attach(s.sessionSvc)
	s.sessionSvc.OnStateChange(s.handleStateChange)
	s.conversationSvc.OnSeal(s.handleSealedTurn)

	return s, nil
}

func (s *Service) handleStateChange(from, to session.State) {
	switch to {
	case session.StateListening:
		s.analysisSvc.Start(s.ctx)
	case session.StatePaused:
		s.analysisSvc.Stop()
	case session.StateIdle:
		if from == session.StateIdle {
			return
		}
		if err := s.analysisSvc.Finish(); err != nil {
			slog.Error("Failed to finalize session", "error", err)
		}
	}
}

func (s *Service) handleSealedTurn(turn conversation.Turn) {
	if turn.Role == conversation.RoleSystem {
		return
	}

	s.analysisSvc.AppendTranscript(turn.Role, turn.Text)
}

// Run delivers notices to sink until ctx is done. In headless mode with auto connect
// it opens the session first.
func (s *Service) Run(ctx context.Context, sink Sink) {
	if s.cfg.UI.Headless && s.cfg.UI.AutoConnect {
		if err := s.sessionSvc.Connect(ctx); err != nil {
			slog.Error("Auto connect failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case notice, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			sink(notice)
		}
	}
}

// LogSink is the sink used without a console view.
func LogSink(notice queue.Notice) {
	switch notice.Kind {
	case queue.KindError:
		slog.Error("Notice", "text", notice.Text)
	case queue.KindInfo:
		slog.Info("Notice", "text", notice.Text)
	case queue.KindState:
		if notice.Text != "" {
			slog.Info("Session state", "state", notice.Text)
		}
	}
}

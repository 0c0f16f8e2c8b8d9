package queue

import (
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

type Kind string

const (
	KindState    Kind = "state"
	KindTurns    Kind = "turns"
	KindAnalysis Kind = "analysis"
	KindLevels   Kind = "levels"
	KindInfo     Kind = "info"
	KindError    Kind = "error"
)

// Notice tells the view that something changed. Views read the current state from the
// services themselves; Text is only set for info and error notices.
type Notice struct {
	Kind Kind
	Text string
}

type Service struct {
	mu     sync.RWMutex
	closed bool
	queue  chan Notice
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Notice, bufferSize),
	}, nil
}

func (s *Service) Add(kind Kind, text string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.queue <- Notice{Kind: kind, Text: text}:
	default:
		if kind == KindError {
			slog.Warn("notice queue is full", "kind", kind, "text", text)
		}
	}
}

func (s *Service) Info(text string) {
	s.Add(KindInfo, text)
}

func (s *Service) Error(text string) {
	s.Add(KindError, text)
}

func (s *Service) Channel() <-chan Notice {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}

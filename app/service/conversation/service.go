package conversation

import (
	"meetassist/app/service/realtime"
	"slices"
	"sync"
	"time"

	"github.com/samber/do"
)

// Service is the conversation log. It is append-only except for the tail turn, which
// is amended in place while it is not final. At most one non-final turn exists, and it
// is always the last one.
type Service struct {
	mu     sync.RWMutex
	turns  []Turn
	onSeal []func(Turn)
	now    func() time.Time
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		now: time.Now,
	}, nil
}

// OnSeal registers a listener called for every turn that becomes final, in order.
// Listeners run after the log is unlocked.
func (s *Service) OnSeal(fn func(Turn)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onSeal = append(s.onSeal, fn)
}

func (s *Service) notify(sealed []Turn) {
	if len(sealed) == 0 {
		return
	}

	s.mu.RLock()
	listeners := slices.Clone(s.onSeal)
	s.mu.RUnlock()

	for _, turn := range sealed {
		for _, fn := range listeners {
			fn(turn)
		}
	}
}

// Add appends a turn, sealing a non-final tail first.
func (s *Service) Add(turn Turn) Turn {
	s.mu.Lock()
	turn, sealed := s.addLocked(turn)
	s.mu.Unlock()

	s.notify(sealed)

	return turn
}

func (s *Service) addLocked(turn Turn) (Turn, []Turn) {
	var sealed []Turn

	if n := len(s.turns); n > 0 && !s.turns[n-1].IsFinal {
		s.turns[n-1].IsFinal = true
		sealed = append(sealed, s.turns[n-1])
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}

	s.turns = append(s.turns, turn)

	if turn.IsFinal {
		sealed = append(sealed, turn)
	}

	return turn, sealed
}

// ApplyTranscription merges a streamed transcription fragment. A fragment for the same
// role as a non-final tail is appended onto it; anything else starts a new turn. The
// returned flag reports whether the resulting turn is sealed.
func (s *Service) ApplyTranscription(role Role, text string, final bool) (Turn, bool) {
	s.mu.Lock()

	if n := len(s.turns); n > 0 {
		last := &s.turns[n-1]
		if last.Role == role && !last.IsFinal {
			last.Text += text
			last.IsFinal = final
			turn := *last
			s.mu.Unlock()

			if final {
				s.notify([]Turn{turn})
			}

			return turn, final
		}
	}

	turn, sealed := s.addLocked(Turn{
		Role:    role,
		Text:    text,
		IsFinal: final,
	})
	s.mu.Unlock()

	s.notify(sealed)

	return turn, final
}

// SealLast marks a non-final tail turn of the given role as final.
func (s *Service) SealLast(role Role) (Turn, bool) {
	s.mu.Lock()

	n := len(s.turns)
	if n == 0 {
		s.mu.Unlock()
		return Turn{}, false
	}

	last := &s.turns[n-1]
	if last.Role != role || last.IsFinal {
		s.mu.Unlock()
		return Turn{}, false
	}

	last.IsFinal = true
	turn := *last
	s.mu.Unlock()

	s.notify([]Turn{turn})

	return turn, true
}

// AttachGrounding adds grounding sources to the agent turn still being streamed.
// Sealed turns are never amended, so sources arriving after the seal are dropped.
func (s *Service) AttachGrounding(sources []realtime.GroundingSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.turns)
	if n == 0 || len(sources) == 0 {
		return false
	}

	last := &s.turns[n-1]
	if last.Role != RoleAgent || last.IsFinal {
		return false
	}

	last.Grounding = append(last.Grounding, sources...)
	return true
}

func (s *Service) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Turn, len(s.turns))
	copy(result, s.turns)

	return result
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}

func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
}

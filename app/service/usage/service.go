package usage

import (
	"sync"
	"time"

	"github.com/samber/do"
)

const (
	SourceLive        = "live"
	SourceAnalysis    = "analysis"
	SourceSuggestions = "suggestions"
)

type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

func (t Tokens) Plus(other Tokens) Tokens {
	return Tokens{
		Input:  t.Input + other.Input,
		Output: t.Output + other.Output,
	}
}

func (t Tokens) Total() int {
	return t.Input + t.Output
}

// Delta is one applied increment of the shared counters.
type Delta struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Tokens Tokens    `json:"tokens"`
}

// Service holds the token counters of the current live session. Counters only grow
// between resets.
type Service struct {
	mu     sync.RWMutex
	totals Tokens
	deltas []Delta
	now    func() time.Time
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		now: time.Now,
	}, nil
}

// Add applies an increment. Negative components are ignored.
func (s *Service) Add(source string, tokens Tokens) {
	tokens.Input = max(tokens.Input, 0)
	tokens.Output = max(tokens.Output, 0)

	if tokens.Total() == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals = s.totals.Plus(tokens)
	s.deltas = append(s.deltas, Delta{
		At:     s.now(),
		Source: source,
		Tokens: tokens,
	})
}

// Reset zeroes the counters and the delta log, as on a new connection.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals = Tokens{}
	s.deltas = nil
}

func (s *Service) Totals() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totals
}

func (s *Service) Deltas() []Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Delta, len(s.deltas))
	copy(result, s.deltas)

	return result
}

package tools

import (
	"errors"
	"log/slog"
	"meetassist/app/config"
	"meetassist/app/service/realtime"
	"strings"
	"sync"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var ErrNotFound = errors.New("tool not found")

type Definition struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  map[string]any      `json:"parameters,omitempty"`
	Enabled     bool                `json:"isEnabled"`
	Scheduling  realtime.Scheduling `json:"scheduling,omitempty"`
}

// Service keeps user-managed tool definitions. Names are unique. Definitions are only
// read when a new connection is established.
type Service struct {
	mu   sync.RWMutex
	defs []Definition
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	svc := &Service{}

	for _, tool := range cfg.Tools {
		err := svc.Add(Definition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
			Enabled:     tool.Enabled,
			Scheduling:  realtime.Scheduling(tool.Scheduling),
		})
		if err != nil {
			return nil, err
		}
	}

	return svc, nil
}

func (s *Service) indexOf(name string) int {
	return pie.FindFirstUsing(s.defs, func(d Definition) bool {
		return d.Name == name
	})
}

func (s *Service) Add(def Definition) error {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return oops.Code("invalid_tool").Errorf("tool name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(def.Name) >= 0 {
		return oops.
			Code("tool_exists").
			With("name", def.Name).
			Errorf("tool %q already exists", def.Name)
	}

	s.defs = append(s.defs, def)

	return nil
}

// Update replaces the named definition. A rename onto an existing name is rejected
// with a warning and the previous definition is kept; updated reports false then.
func (s *Service) Update(name string, def Definition) (bool, error) {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		def.Name = name
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(name)
	if idx < 0 {
		return false, ErrNotFound
	}

	if def.Name != name && s.indexOf(def.Name) >= 0 {
		slog.Warn("Tool rename rejected, name already in use",
			"from", name,
			"to", def.Name,
		)
		return false, nil
	}

	s.defs[idx] = def

	return true, nil
}

func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(name)
	if idx < 0 {
		return false
	}

	s.defs = pie.Delete(s.defs, idx)

	return true
}

func (s *Service) Get(name string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(name)
	if idx < 0 {
		return Definition{}, false
	}

	return s.defs[idx], true
}

func (s *Service) List() []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Definition, len(s.defs))
	copy(result, s.defs)

	return result
}

func (s *Service) Enabled() []Definition {
	return pie.Filter(s.List(), func(d Definition) bool {
		return d.Enabled
	})
}

// Specs converts the enabled tools into the form passed to the realtime connection.
func (s *Service) Specs() []realtime.ToolSpec {
	return pie.Map(s.Enabled(), func(d Definition) realtime.ToolSpec {
		return realtime.ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
			Scheduling:  d.Scheduling,
		}
	})
}

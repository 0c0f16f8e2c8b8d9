package settings

import (
	"meetassist/app/config"
	"meetassist/app/service/realtime"
	"meetassist/app/service/tools"
	"strings"
	"sync"

	"github.com/samber/do"
)

type Live struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	SystemPrompt string `json:"systemPrompt"`
	AudioOutput  bool   `json:"audioOutput"`
}

type Analysis struct {
	SummaryDetail     string `json:"summaryDetail"`
	InsightsDetail    string `json:"insightsDetail"`
	ActionItemsDetail string `json:"actionItemsDetail"`
	Diarization       bool   `json:"diarization"`
	PhoneNumber       string `json:"phoneNumber"`
}

// Service holds the user-editable settings, initialized from config.
type Service struct {
	toolsSvc *tools.Service

	mu       sync.RWMutex
	live     Live
	analysis Analysis
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		toolsSvc: do.MustInvoke[*tools.Service](di),
		live: Live{
			Model:        cfg.Live.Model,
			Voice:        cfg.Live.Voice,
			SystemPrompt: cfg.Live.SystemPrompt,
			AudioOutput:  cfg.Live.AudioOutput,
		},
		analysis: Analysis{
			SummaryDetail:     cfg.Analysis.SummaryDetail,
			InsightsDetail:    cfg.Analysis.InsightsDetail,
			ActionItemsDetail: cfg.Analysis.ActionItemsDetail,
			Diarization:       cfg.Analysis.Diarization,
			PhoneNumber:       cfg.Customer.PhoneNumber,
		},
	}, nil
}

func (s *Service) Live() Live {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.live
}

func (s *Service) SetLive(live Live) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = live
}

func (s *Service) Analysis() Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.analysis
}

func (s *Service) SetAnalysis(analysis Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analysis = analysis
}

// LiveConfig builds the connection configuration, or nil when no model is set.
func (s *Service) LiveConfig() *realtime.Config {
	live := s.Live()

	if strings.TrimSpace(live.Model) == "" {
		return nil
	}

	return &realtime.Config{
		Model:               live.Model,
		Voice:               live.Voice,
		SystemPrompt:        live.SystemPrompt,
		ResponseModality:    realtime.ModalityAudio,
		InputTranscription:  true,
		OutputTranscription: true,
		Tools:               s.toolsSvc.Specs(),
	}
}

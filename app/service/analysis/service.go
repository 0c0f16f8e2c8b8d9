package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"meetassist/app/client/boltdb"
	"meetassist/app/config"
	"meetassist/app/service/conversation"
	"meetassist/app/service/customer"
	"meetassist/app/service/queue"
	"meetassist/app/service/settings"
	"meetassist/app/service/usage"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/do"
)

const (
	sessionsBucket = "sessions"
	lastSessionKey = "last"
)

// Service runs the periodic analysis while a session is listening.
type Service struct {
	interval  time.Duration
	minLength int

	generator   Generator
	customers   ContextLookup
	store       Store
	settingsSvc *settings.Service
	usageSvc    *usage.Service
	queueSvc    *queue.Service
	now         func() time.Time

	mu              sync.Mutex
	session         Session
	lines           []string
	textLength      int
	result          *Result
	suggestions     []string
	updatedAt       time.Time
	customerContext []string
	customerLoaded  bool
	running         bool
	cancel          context.CancelFunc
	gen             uint64
	epoch           uint64
	inFlight        bool
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		interval:    cfg.Analysis.Interval,
		minLength:   cfg.Analysis.MinTranscriptLength,
		generator:   do.MustInvoke[Generator](di),
		customers:   do.MustInvoke[*customer.Service](di),
		store:       do.MustInvoke[*boltdb.Store](di),
		settingsSvc: do.MustInvoke[*settings.Service](di),
		usageSvc:    do.MustInvoke[*usage.Service](di),
		queueSvc:    do.MustInvoke[*queue.Service](di),
		now:         time.Now,
	}, nil
}

// Attach sets the live session used for diarization hints and spoken recaps.
func (s *Service) Attach(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
}

// AppendTranscript adds a sealed turn to the text sent for analysis.
func (s *Service) AppendTranscript(role conversation.Role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, fmt.Sprintf("%s: %s", role, text))
	s.textLength += utf8.RuneCountInString(text)
}

func (s *Service) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return strings.Join(s.lines, "\n")
}

// Start begins ticking. It also triggers the customer lookup the first time a session
// starts listening with a phone number configured.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)

	s.running = true
	s.cancel = cancel
	s.gen++

	go s.loop(loopCtx)

	phone := s.settingsSvc.Analysis().PhoneNumber
	if phone != "" && !s.customerLoaded {
		s.customerLoaded = true
		go s.loadCustomer(ctx, s.epoch, phone)
	}

	slog.Debug("Analysis loop started", "interval", s.interval)
}

// Stop cancels the timer and any analysis in flight. Late results are discarded.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.cancel = nil
	s.running = false
	s.gen++

	slog.Debug("Analysis loop stopped")
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Finish stops the loop, keeps the session totals and last analysis as the last
// session snapshot, and clears everything for the next session.
func (s *Service) Finish() error {
	s.Stop()

	s.mu.Lock()
	snapshot := LastSession{
		EndedAt:  s.now(),
		Tokens:   s.usageSvc.Totals(),
		Analysis: s.result,
	}

	s.lines = nil
	s.textLength = 0
	s.result = nil
	s.suggestions = nil
	s.updatedAt = time.Time{}
	s.customerContext = nil
	s.customerLoaded = false
	s.epoch++
	s.mu.Unlock()

	s.queueSvc.Add(queue.KindAnalysis, "")

	if err := s.store.Put(sessionsBucket, lastSessionKey, snapshot); err != nil {
		return fmt.Errorf("failed to save last session: %w", err)
	}

	slog.Info("Session finalized",
		"input_tokens", snapshot.Tokens.Input,
		"output_tokens", snapshot.Tokens.Output,
		"has_analysis", snapshot.Analysis != nil,
	)

	return nil
}

func (s *Service) LastSession() (*LastSession, error) {
	var result LastSession

	found, err := s.store.Get(sessionsBucket, lastSessionKey, &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return &result, nil
}

func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Running:         s.running,
		Result:          s.result,
		Suggestions:     append([]string(nil), s.suggestions...),
		CustomerContext: append([]string(nil), s.customerContext...),
		UpdatedAt:       s.updatedAt,
	}
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Service) loadCustomer(ctx context.Context, epoch uint64, phone string) {
	docs, err := s.customers.Lookup(ctx, phone)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.customerLoaded = false
		s.mu.Unlock()
		slog.Warn("Customer lookup failed", "error", err)
		return
	}

	s.customerContext = docs
	s.mu.Unlock()

	slog.Info("Customer context loaded", "documents", len(docs))

	s.queueSvc.Add(queue.KindAnalysis, "")
}

// Tick runs one analysis round. It reports whether new results were applied. A tick is
// skipped while the previous one is still running or the transcript is too short.
func (s *Service) Tick(ctx context.Context) bool {
	s.mu.Lock()

	if s.inFlight {
		s.mu.Unlock()
		slog.Debug("Previous analysis still running, skipping tick")
		return false
	}

	// the threshold counts spoken text only, not role labels or separators
	if s.textLength < s.minLength {
		s.mu.Unlock()
		return false
	}

	transcript := strings.Join(s.lines, "\n")

	input := promptInput{
		Settings:        s.settingsSvc.Analysis(),
		CustomerContext: s.customerContext,
		Transcript:      transcript,
	}

	s.inFlight = true
	gen := s.gen
	session := s.session
	s.mu.Unlock()

	if session != nil {
		input.SystemAudio = session.SystemAudioConnected()
	}

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	start := time.Now()

	result, analysisTokens, err := s.generator.Analyze(ctx, buildAnalysisPrompt(input), input.diarize())
	if err != nil {
		slog.Warn("Analysis failed", "error", err)
	}

	suggestions, suggestionTokens, err := s.generator.Suggest(ctx, buildSuggestionsPrompt(input))
	if err != nil {
		slog.Warn("Suggestions failed", "error", err)
	}

	s.mu.Lock()
	if gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		slog.Debug("Discarding analysis from a stopped session")
		return false
	}

	if result != nil {
		s.result = result
	}
	if suggestions != nil {
		s.suggestions = suggestions
	}
	s.updatedAt = s.now()
	s.mu.Unlock()

	s.usageSvc.Add(usage.SourceAnalysis, analysisTokens)
	s.usageSvc.Add(usage.SourceSuggestions, suggestionTokens)
	s.queueSvc.Add(queue.KindAnalysis, "")

	slog.Info("Analysis updated",
		"transcript_length", len(transcript),
		"has_analysis", result != nil,
		"suggestions", len(suggestions),
		"duration", time.Since(start),
	)

	if result != nil && result.Summary != "" && session != nil && s.settingsSvc.Live().AudioOutput {
		if err := session.SendText(buildRecapPrompt(result.Summary)); err != nil {
			slog.Warn("Failed to send spoken recap", "error", err)
		}
	}

	return result != nil || suggestions != nil
}

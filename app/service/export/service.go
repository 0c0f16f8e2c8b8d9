package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"meetassist/app/config"
	"meetassist/app/service/conversation"
	"meetassist/app/service/settings"
	"meetassist/app/service/tools"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/do"
)

const filePrefix = "personal-meeting-assistant-logs-"

type Configuration struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt"`
}

type Document struct {
	Configuration Configuration       `json:"configuration"`
	Tools         []tools.Definition  `json:"tools"`
	Conversation  []conversation.Turn `json:"conversation"`
}

type Service struct {
	dir             string
	settingsSvc     *settings.Service
	toolsSvc        *tools.Service
	conversationSvc *conversation.Service
	now             func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		dir:             cfg.UI.ExportDir,
		settingsSvc:     do.MustInvoke[*settings.Service](di),
		toolsSvc:        do.MustInvoke[*tools.Service](di),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
		now:             time.Now,
	}, nil
}

func (s *Service) Document() Document {
	live := s.settingsSvc.Live()

	return Document{
		Configuration: Configuration{
			Model:        live.Model,
			SystemPrompt: live.SystemPrompt,
		},
		Tools:        s.toolsSvc.List(),
		Conversation: s.conversationSvc.Turns(),
	}
}

// Render returns the export file name and its JSON content.
func (s *Service) Render() (string, []byte, error) {
	data, err := json.MarshalIndent(s.Document(), "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal logs: %w", err)
	}

	return FileName(s.now()), data, nil
}

// Save writes the export into the export directory and returns its path.
func (s *Service) Save() (string, error) {
	name, data, err := s.Render()
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write logs: %w", err)
	}

	slog.Info("Exported conversation logs", "path", path, "bytes", len(data))

	return path, nil
}

// FileName builds the export name from an ISO-8601 UTC timestamp with ':' and '.'
// replaced by '-'.
func FileName(at time.Time) string {
	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)

	return filePrefix + stamp + ".json"
}

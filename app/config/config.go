package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	EnvAPIKey     = "GEMINI_API_KEY"
	EnvConfigPath = "MEETASSIST_CONFIG"

	DefaultConfigPath = "config.yaml"
)

type Config struct {
	// Gemini API key, read from GEMINI_API_KEY
	APIKey string `yaml:"-" validate:"required"`

	Log      Log      `yaml:"log"`
	Live     Live     `yaml:"live"`
	Analysis Analysis `yaml:"analysis"`
	Customer Customer `yaml:"customer"`
	Storage  Storage  `yaml:"storage"`
	HTTP     HTTP     `yaml:"http"`
	UI       UI       `yaml:"ui"`
	Tools    []Tool   `yaml:"tools" validate:"dive"`
}

type Log struct {
	// Log file used while the console view owns the terminal
	File string `yaml:"file" example:"data/meetassist.log"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Live struct {
	// Realtime model name
	Model string `yaml:"model" example:"gemini-2.5-flash-native-audio-preview-09-2025" validate:"required"`
	// Prebuilt voice name
	Voice string `yaml:"voice" example:"Zephyr" validate:"required"`
	// System prompt for the realtime session
	SystemPrompt string `yaml:"system_prompt"`
	// Play agent audio and speak analysis recaps
	AudioOutput bool `yaml:"audio_output" example:"false"`
	// Microphone input device, empty for the default input
	MicrophoneDevice string `yaml:"microphone_device" example:"default"`
	// System audio input device, empty for the platform loopback source
	SystemAudioDevice string `yaml:"system_audio_device" example:"alsa_output.pci.monitor"`
}

type Analysis struct {
	// Structured-output model
	Model string `yaml:"model" example:"gemini-2.5-flash" validate:"required"`
	// Interval between analysis calls while listening
	Interval time.Duration `yaml:"interval" example:"10s" validate:"gt=0"`
	// Minimum transcript length (characters) before analysis is requested
	MinTranscriptLength int `yaml:"min_transcript_length" example:"50" validate:"gte=0"`
	// Detail levels: brief or detailed
	SummaryDetail     string `yaml:"summary_detail" example:"brief" validate:"oneof=brief detailed"`
	InsightsDetail    string `yaml:"insights_detail" example:"brief" validate:"oneof=brief detailed"`
	ActionItemsDetail string `yaml:"action_items_detail" example:"brief" validate:"oneof=brief detailed"`
	// Ask the model to label transcript segments by speaker
	Diarization bool `yaml:"diarization" example:"false"`
}

type Customer struct {
	// Phone number of the current caller, enables customer context lookup
	PhoneNumber string `yaml:"phone_number" example:"+15551234567"`
	// Simulated document store latency
	Latency time.Duration `yaml:"latency" example:"500ms" validate:"gte=0"`
	// Documents seeded into the store, keyed by phone number
	Documents map[string][]string `yaml:"documents"`
}

type Storage struct {
	// bbolt database path
	Path string `yaml:"path" example:"data/meetassist.bolt" validate:"required"`
}

type HTTP struct {
	// Local API listen address, empty disables the API
	Addr string `yaml:"addr" example:"127.0.0.1:8088"`
}

type UI struct {
	// Run without the console view, notices go to the log
	Headless bool `yaml:"headless" example:"false"`
	// Connect right after startup in headless mode
	AutoConnect bool `yaml:"auto_connect" example:"false"`
	// Directory for exported conversation logs
	ExportDir string `yaml:"export_dir" example:"exports"`
}

type Tool struct {
	Name        string         `yaml:"name" validate:"required"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	Enabled     bool           `yaml:"enabled"`
	// INTERRUPT, WHEN_IDLE or SILENT
	Scheduling string `yaml:"scheduling" validate:"omitempty,oneof=INTERRUPT WHEN_IDLE SILENT"`
}

func Path() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	return DefaultConfigPath
}

func Load(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if len(data) > 0 {
		if err = yaml.Unmarshal(data, &result); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	}

	result.APIKey = os.Getenv(EnvAPIKey)
	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.File == "" {
		cfg.Log.File = "data/meetassist.log"
	}
	if cfg.Live.Model == "" {
		cfg.Live.Model = "gemini-2.5-flash-native-audio-preview-09-2025"
	}
	if cfg.Live.Voice == "" {
		cfg.Live.Voice = "Zephyr"
	}
	if cfg.Analysis.Model == "" {
		cfg.Analysis.Model = "gemini-2.5-flash"
	}
	if cfg.Analysis.Interval == 0 {
		cfg.Analysis.Interval = 10 * time.Second
	}
	if cfg.Analysis.MinTranscriptLength == 0 {
		cfg.Analysis.MinTranscriptLength = 50
	}
	if cfg.Analysis.SummaryDetail == "" {
		cfg.Analysis.SummaryDetail = "brief"
	}
	if cfg.Analysis.InsightsDetail == "" {
		cfg.Analysis.InsightsDetail = "brief"
	}
	if cfg.Analysis.ActionItemsDetail == "" {
		cfg.Analysis.ActionItemsDetail = "brief"
	}
	if cfg.Customer.Latency == 0 {
		cfg.Customer.Latency = 500 * time.Millisecond
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/meetassist.bolt"
	}
	if cfg.UI.ExportDir == "" {
		cfg.UI.ExportDir = "exports"
	}
}

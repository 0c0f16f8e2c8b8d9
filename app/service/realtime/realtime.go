// Package realtime describes the bidirectional connection to the hosted voice model.
// Implementations live under app/client; the session controller only sees these types.
package realtime

import "context"

// AudioMIMEType is the only outbound audio format the connection accepts.
const AudioMIMEType = "audio/pcm;rate=16000"

type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

// Scheduling tells the model what to do with a tool response that arrives while it talks.
type Scheduling string

const (
	SchedulingInterrupt Scheduling = "INTERRUPT"
	SchedulingWhenIdle  Scheduling = "WHEN_IDLE"
	SchedulingSilent    Scheduling = "SILENT"
)

type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Scheduling  Scheduling
}

// Config is passed once per Dial.
type Config struct {
	Model               string
	Voice               string
	SystemPrompt        string
	ResponseModality    Modality
	InputTranscription  bool
	OutputTranscription bool
	Tools               []ToolSpec
}

// AudioChunk is one outbound realtime audio message.
type AudioChunk struct {
	MIMEType string `json:"mimeType"`
	// Base64 encoded PCM16
	Data string `json:"data"`
}

type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Conn, error)
}

// Conn delivers events in arrival order on a single channel. The first event is
// OpenEvent, the last one is CloseEvent, after which the channel is closed.
type Conn interface {
	Events() <-chan Event
	SendAudio(chunk AudioChunk) error
	SendText(text string, turnComplete bool) error
	SendToolResponse(responses []FunctionResponse) error
	Close() error
}

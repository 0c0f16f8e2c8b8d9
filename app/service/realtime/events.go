package realtime

type Event interface {
	isEvent()
}

type Source string

const (
	SourceInput  Source = "input"
	SourceOutput Source = "output"
)

type OpenEvent struct{}

type CloseEvent struct {
	Reason string
}

type InterruptedEvent struct{}

type TurnCompleteEvent struct{}

type TranscriptionEvent struct {
	Source Source
	Text   string
	Final  bool
}

// AudioEvent carries 24kHz PCM16 produced by the model.
type AudioEvent struct {
	PCM []byte
}

type ToolCallEvent struct {
	Calls []FunctionCall
}

// UsageEvent reports cumulative token counts for the connection.
type UsageEvent struct {
	Input  int
	Output int
}

type GroundingEvent struct {
	Sources []GroundingSource
}

type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

func (OpenEvent) isEvent()          {}
func (CloseEvent) isEvent()         {}
func (InterruptedEvent) isEvent()   {}
func (TurnCompleteEvent) isEvent()  {}
func (TranscriptionEvent) isEvent() {}
func (AudioEvent) isEvent()         {}
func (ToolCallEvent) isEvent()      {}
func (UsageEvent) isEvent()         {}
func (GroundingEvent) isEvent()     {}

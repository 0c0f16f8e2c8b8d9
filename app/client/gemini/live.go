package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"meetassist/app/service/realtime"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/genai"
)

const eventsBufferSize = 64

var _ realtime.Dialer = (*Client)(nil)

// Dial opens a Gemini Live session. The returned connection emits OpenEvent as soon as
// the session is established.
func (c *Client) Dial(ctx context.Context, cfg realtime.Config) (realtime.Conn, error) {
	session, err := c.genai.Live.Connect(ctx, cfg.Model, buildConnectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to live api: %w", err)
	}

	scheduling := make(map[string]realtime.Scheduling, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		scheduling[tool.Name] = tool.Scheduling
	}

	conn := &liveConn{
		session:    session,
		events:     make(chan realtime.Event, eventsBufferSize),
		scheduling: scheduling,
	}

	go conn.run()

	slog.Info("Live session opened", "model", cfg.Model, "voice", cfg.Voice, "tools", len(cfg.Tools))

	return conn, nil
}

func buildConnectConfig(cfg realtime.Config) *genai.LiveConnectConfig {
	modality := genai.ModalityAudio
	if cfg.ResponseModality == realtime.ModalityText {
		modality = genai.ModalityText
	}

	result := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{modality},
	}

	if cfg.Voice != "" {
		result.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: cfg.Voice,
				},
			},
		}
	}

	if strings.TrimSpace(cfg.SystemPrompt) != "" {
		result.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}

	if cfg.InputTranscription {
		result.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		result.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	if len(cfg.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, tool := range cfg.Tools {
			decl := &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
			}
			if len(tool.Parameters) > 0 {
				decl.ParametersJsonSchema = tool.Parameters
			}
			declarations = append(declarations, decl)
		}

		result.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	return result
}

type liveConn struct {
	session    *genai.Session
	events     chan realtime.Event
	scheduling map[string]realtime.Scheduling

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *liveConn) Events() <-chan realtime.Event {
	return c.events
}

func (c *liveConn) run() {
	defer close(c.events)

	c.events <- realtime.OpenEvent{}

	for {
		msg, err := c.session.Receive()
		if err != nil {
			reason := err.Error()
			if c.closed.Load() {
				reason = "closed by client"
			}

			c.events <- realtime.CloseEvent{Reason: reason}
			return
		}

		if msg.GoAway != nil {
			slog.Warn("Live session is going away", "time_left", msg.GoAway.TimeLeft)
		}

		for _, ev := range translateMessage(msg) {
			c.events <- ev
		}
	}
}

// translateMessage flattens one server message into events, preserving the order
// transcription, audio, grounding, interruption, turn completion, tool calls, usage.
func translateMessage(msg *genai.LiveServerMessage) []realtime.Event {
	if msg == nil {
		return nil
	}

	var result []realtime.Event

	if content := msg.ServerContent; content != nil {
		if tr := content.InputTranscription; tr != nil && (tr.Text != "" || tr.Finished) {
			result = append(result, realtime.TranscriptionEvent{
				Source: realtime.SourceInput,
				Text:   tr.Text,
				Final:  tr.Finished,
			})
		}

		if tr := content.OutputTranscription; tr != nil && (tr.Text != "" || tr.Finished) {
			result = append(result, realtime.TranscriptionEvent{
				Source: realtime.SourceOutput,
				Text:   tr.Text,
				Final:  tr.Finished,
			})
		}

		if turn := content.ModelTurn; turn != nil {
			for _, part := range turn.Parts {
				if part == nil || part.InlineData == nil {
					continue
				}
				if !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}

				result = append(result, realtime.AudioEvent{PCM: part.InlineData.Data})
			}
		}

		if meta := content.GroundingMetadata; meta != nil && len(meta.GroundingChunks) > 0 {
			var sources []realtime.GroundingSource
			for _, chunk := range meta.GroundingChunks {
				if chunk == nil || chunk.Web == nil {
					continue
				}
				sources = append(sources, realtime.GroundingSource{
					Title: chunk.Web.Title,
					URI:   chunk.Web.URI,
				})
			}
			if len(sources) > 0 {
				result = append(result, realtime.GroundingEvent{Sources: sources})
			}
		}

		if content.Interrupted {
			result = append(result, realtime.InterruptedEvent{})
		}

		if content.TurnComplete {
			result = append(result, realtime.TurnCompleteEvent{})
		}
	}

	if call := msg.ToolCall; call != nil && len(call.FunctionCalls) > 0 {
		calls := make([]realtime.FunctionCall, 0, len(call.FunctionCalls))
		for _, fc := range call.FunctionCalls {
			if fc == nil {
				continue
			}
			calls = append(calls, realtime.FunctionCall{
				ID:   fc.ID,
				Name: fc.Name,
				Args: fc.Args,
			})
		}
		result = append(result, realtime.ToolCallEvent{Calls: calls})
	}

	if usage := msg.UsageMetadata; usage != nil {
		result = append(result, realtime.UsageEvent{
			Input:  int(usage.PromptTokenCount),
			Output: int(usage.ResponseTokenCount),
		})
	}

	return result
}

func (c *liveConn) SendAudio(chunk realtime.AudioChunk) error {
	data, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		return fmt.Errorf("failed to decode audio chunk: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{
			MIMEType: chunk.MIMEType,
			Data:     data,
		},
	})
}

func (c *liveConn) SendText(text string, turnComplete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.SendClientContent(genai.LiveClientContentInput{
		Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		TurnComplete: genai.Ptr(turnComplete),
	})
}

func (c *liveConn) SendToolResponse(responses []realtime.FunctionResponse) error {
	result := make([]*genai.FunctionResponse, 0, len(responses))
	for _, resp := range responses {
		fr := &genai.FunctionResponse{
			ID:       resp.ID,
			Name:     resp.Name,
			Response: resp.Response,
		}
		if scheduling := c.scheduling[resp.Name]; scheduling != "" {
			fr.Scheduling = genai.FunctionResponseScheduling(scheduling)
		}
		result = append(result, fr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: result,
	})
}

func (c *liveConn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.session.Close()
	})

	return err
}

package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"meetassist/app/service/conversation"
	"meetassist/app/service/queue"
	"meetassist/app/service/realtime"
	"strings"

	"github.com/elliotchance/pie/v2"
)

// handleToolCalls acknowledges every call with the same static response. Each call is
// logged as its own system turn, the responses as one combined turn, and they go back
// in a single batch.
func (s *Service) handleToolCalls(conn realtime.Conn, calls []realtime.FunctionCall) {
	if len(calls) == 0 {
		return
	}

	for _, call := range calls {
		s.conversationSvc.Add(conversation.Turn{
			Role:    conversation.RoleSystem,
			Text:    fmt.Sprintf("Tool call: %s(%s)", call.Name, formatArgs(call.Args)),
			IsFinal: true,
			ToolUseRequest: &conversation.ToolUseRequest{
				FunctionCalls: []realtime.FunctionCall{call},
			},
		})
	}

	responses := pie.Map(calls, func(call realtime.FunctionCall) realtime.FunctionResponse {
		return realtime.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"result": "ok"},
		}
	})

	names := pie.Map(responses, func(r realtime.FunctionResponse) string {
		return r.Name
	})

	s.conversationSvc.Add(conversation.Turn{
		Role:    conversation.RoleSystem,
		Text:    "Tool response: " + strings.Join(names, ", "),
		IsFinal: true,
		ToolUseResponse: &conversation.ToolUseResponse{
			FunctionResponses: responses,
		},
	})

	s.queueSvc.Add(queue.KindTurns, "")

	if err := conn.SendToolResponse(responses); err != nil {
		slog.Warn("Failed to send tool response", "error", err, "calls", len(calls))
		return
	}

	slog.Info("Acknowledged tool calls", "names", names)
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}

	data, err := json.Marshal(args)
	if err != nil {
		return "?"
	}

	return string(data)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"meetassist/app/service/conversation"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const defaultTranscriptLimit = 50

func (s *Server) newMCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"meetassist",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	mcpServer.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Get the most recent turns of the live meeting transcript"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of turns to return, newest last"),
		),
	), s.handleGetTranscript)

	mcpServer.AddTool(mcp.NewTool("get_analysis",
		mcp.WithDescription("Get the latest meeting analysis: summary, insights, action items, sentiment and reply suggestions"),
	), s.handleGetAnalysis)

	mcpServer.AddTool(mcp.NewTool("get_session_status",
		mcp.WithDescription("Get the live session state, mute and system audio flags and token usage"),
	), s.handleGetSessionStatus)

	return mcpServer
}

func (s *Server) handleGetTranscript(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultTranscriptLimit)
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}

	turns := s.conversationSvc.Turns()
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	return mcp.NewToolResultText(conversation.Format(turns)), nil
}

func (s *Server) handleGetAnalysis(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.analysisSvc.View())
}

func (s *Server) handleGetSessionStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sessionSvc.Status())
}

func jsonResult(value any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

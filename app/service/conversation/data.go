package conversation

import (
	"meetassist/app/service/realtime"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

type ToolUseRequest struct {
	FunctionCalls []realtime.FunctionCall `json:"functionCalls"`
}

type ToolUseResponse struct {
	FunctionResponses []realtime.FunctionResponse `json:"functionResponses"`
}

// Turn is one attributable unit of conversation text. Timestamp marshals as RFC 3339.
type Turn struct {
	Timestamp       time.Time                  `json:"timestamp"`
	Role            Role                       `json:"role"`
	Text            string                     `json:"text"`
	IsFinal         bool                       `json:"isFinal"`
	ToolUseRequest  *ToolUseRequest            `json:"toolUseRequest,omitempty"`
	ToolUseResponse *ToolUseResponse           `json:"toolUseResponse,omitempty"`
	Grounding       []realtime.GroundingSource `json:"groundingChunks,omitempty"`
}

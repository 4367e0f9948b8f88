package entities

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Content block type tags carried in tool artifacts.
const (
	BlockText     = "text"
	BlockImage    = "image"
	BlockResource = "resource"
)

type ToolCall struct {
	ID        string         `json:"id" bson:"id"`
	Name      string         `json:"name" bson:"name"`
	Arguments map[string]any `json:"arguments" bson:"arguments"`
}

// ContentBlock is one typed entry of a tool artifact. Image blocks carry
// base64 encoded bytes in Data.
type ContentBlock struct {
	Type     string `json:"type" bson:"type"`
	Text     string `json:"text,omitempty" bson:"text,omitempty"`
	Data     string `json:"data,omitempty" bson:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
}

type Message struct {
	ID         string         `json:"id" bson:"id"`
	Role       Role           `json:"role" bson:"role"`
	Content    string         `json:"content" bson:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty" bson:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty" bson:"tool_name,omitempty"`
	Artifact   []ContentBlock `json:"artifact,omitempty" bson:"artifact,omitempty"`
	IsError    bool           `json:"is_error,omitempty" bson:"is_error,omitempty"`
	Timestamp  time.Time      `json:"timestamp" bson:"timestamp"`
}

func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

func NewHumanMessage(content string) *Message {
	return NewMessage(RoleHuman, content)
}

// NewAIMessage creates a model turn. A message with tool calls asks the loop
// to run the TOOLS state next.
func NewAIMessage(content string, toolCalls ...ToolCall) *Message {
	msg := NewMessage(RoleAI, content)
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return msg
}

func NewToolMessage(callID, toolName, content string, artifact []ContentBlock) *Message {
	msg := NewMessage(RoleTool, content)
	msg.ToolCallID = callID
	msg.ToolName = toolName
	msg.Artifact = artifact
	return msg
}

func NewToolErrorMessage(callID, toolName, content string) *Message {
	msg := NewToolMessage(callID, toolName, content, nil)
	msg.IsError = true
	return msg
}

func (m *Message) HasToolCalls() bool {
	return m.Role == RoleAI && len(m.ToolCalls) > 0
}

// Clone returns a deep copy so callers cannot mutate stored history.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: cloneArguments(tc.Arguments),
			}
		}
	}
	if m.Artifact != nil {
		out.Artifact = make([]ContentBlock, len(m.Artifact))
		copy(out.Artifact, m.Artifact)
	}
	return out
}

func cloneArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneArguments(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

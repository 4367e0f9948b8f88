package entities

import (
	"time"

	"github.com/google/uuid"
)

// ToolCallEvent describes one finished tool invocation.
type ToolCallEvent struct {
	ID         string         `json:"id"`
	ThreadID   string         `json:"thread_id"`
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Result     string         `json:"result"`
	Error      string         `json:"error,omitempty"`
	HasImage   bool           `json:"has_image,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewToolCallEvent(threadID string, call ToolCall, result, errorMsg string, hasImage bool, duration time.Duration) *ToolCallEvent {
	return &ToolCallEvent{
		ID:         uuid.New().String(),
		ThreadID:   threadID,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Arguments:  call.Arguments,
		Result:     result,
		Error:      errorMsg,
		HasImage:   hasImage,
		Duration:   duration,
		Timestamp:  time.Now(),
	}
}

// ModelCallEvent describes one model invocation.
type ModelCallEvent struct {
	ID            string        `json:"id"`
	ThreadID      string        `json:"thread_id"`
	Provider      ProviderType  `json:"provider"`
	Model         string        `json:"model"`
	Iteration     int           `json:"iteration"`
	ToolCallCount int           `json:"tool_call_count"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

func NewModelCallEvent(threadID string, provider ProviderType, model string, iteration, toolCalls int, duration time.Duration, err error) *ModelCallEvent {
	event := &ModelCallEvent{
		ID:            uuid.New().String(),
		ThreadID:      threadID,
		Provider:      provider,
		Model:         model,
		Iteration:     iteration,
		ToolCallCount: toolCalls,
		Duration:      duration,
		Timestamp:     time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

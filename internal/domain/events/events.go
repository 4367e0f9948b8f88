package events

import (
	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/kelindar/event"
)

// Event types
const (
	ToolCallEventType       uint32 = 1
	MessageHistoryEventType uint32 = 2
	ModelCallEventType      uint32 = 3
	ScreenshotEventType     uint32 = 4
)

// ToolCallEventData wraps the ToolCallEvent for publishing
type ToolCallEventData struct {
	Event *entities.ToolCallEvent
}

// MessageHistoryEventData wraps message history change events
type MessageHistoryEventData struct {
	ThreadID string
	Messages []entities.Message
}

type ModelCallEventData struct {
	Event *entities.ModelCallEvent
}

type ScreenshotEventData struct {
	Record entities.ScreenshotRecord
}

// Type implements the Event interface
func (t ToolCallEventData) Type() uint32 {
	return ToolCallEventType
}

// Type implements the Event interface
func (m MessageHistoryEventData) Type() uint32 {
	return MessageHistoryEventType
}

func (m ModelCallEventData) Type() uint32 {
	return ModelCallEventType
}

func (s ScreenshotEventData) Type() uint32 {
	return ScreenshotEventType
}

// PublishToolCallEvent publishes a tool call event
func PublishToolCallEvent(toolEvent *entities.ToolCallEvent) {
	event.Emit(ToolCallEventData{Event: toolEvent})
}

// SubscribeToToolCallEvents subscribes to tool call events
func SubscribeToToolCallEvents(handler func(data ToolCallEventData)) func() {
	return event.On(handler)
}

// PublishMessageHistoryEvent publishes a message history change event
func PublishMessageHistoryEvent(threadID string, messages []entities.Message) {
	event.Emit(MessageHistoryEventData{ThreadID: threadID, Messages: messages})
}

// SubscribeToMessageHistoryEvents subscribes to message history change events
func SubscribeToMessageHistoryEvents(handler func(data MessageHistoryEventData)) func() {
	return event.On(handler)
}

func PublishModelCallEvent(modelEvent *entities.ModelCallEvent) {
	event.Emit(ModelCallEventData{Event: modelEvent})
}

func SubscribeToModelCallEvents(handler func(data ModelCallEventData)) func() {
	return event.On(handler)
}

func PublishScreenshotEvent(record entities.ScreenshotRecord) {
	event.Emit(ScreenshotEventData{Record: record})
}

func SubscribeToScreenshotEvents(handler func(data ScreenshotEventData)) func() {
	return event.On(handler)
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
)

type fakeTool struct {
	name   string
	invoke func(ctx context.Context, args map[string]any) (*entities.ToolResult, error)

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake " + f.name }
func (f *fakeTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }

func (f *fakeTool) Invoke(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.invoke == nil {
		return &entities.ToolResult{Content: f.name + " ok"}, nil
	}
	return f.invoke(ctx, args)
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeToolSet struct {
	tools []interfaces.Tool
}

func newFakeToolSet(tools ...interfaces.Tool) *fakeToolSet {
	return &fakeToolSet{tools: tools}
}

func (s *fakeToolSet) Tools() []interfaces.Tool { return s.tools }

func (s *fakeToolSet) Lookup(name string) (interfaces.Tool, bool) {
	for _, t := range s.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// scriptedModel replays a fixed sequence of AI turns.
type scriptedModel struct {
	mu       sync.Mutex
	turns    []*entities.Message
	err      error
	seen     [][]entities.Message
	provider entities.ProviderType
}

func (m *scriptedModel) Invoke(ctx context.Context, history []entities.Message) (*entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, history)
	if len(m.turns) == 0 {
		if m.err != nil {
			return nil, m.err
		}
		return entities.NewAIMessage("no more turns"), nil
	}
	next := m.turns[0]
	m.turns = m.turns[1:]
	return next, nil
}

func (m *scriptedModel) ModelName() string { return "scripted" }

func (m *scriptedModel) ProviderType() entities.ProviderType {
	if m.provider == "" {
		return entities.ProviderOpenAI
	}
	return m.provider
}

func (m *scriptedModel) invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// loopingModel requests a tool call on every turn.
type loopingModel struct {
	calls int
}

func (m *loopingModel) Invoke(ctx context.Context, history []entities.Message) (*entities.Message, error) {
	m.calls++
	return entities.NewAIMessage("", entities.ToolCall{ID: "loop", Name: "browser_navigate"}), nil
}

func (m *loopingModel) ModelName() string                   { return "looping" }
func (m *loopingModel) ProviderType() entities.ProviderType { return entities.ProviderGoogle }

// recordingSink counts processed Tool messages and reports one record per
// message that carried an artifact.
type recordingSink struct {
	mu        sync.Mutex
	processed []entities.Message
	written   []entities.ScreenshotRecord
}

func (s *recordingSink) Process(message *entities.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == nil || message.Role != entities.RoleTool {
		return false
	}
	s.processed = append(s.processed, message.Clone())
	if len(message.Artifact) == 0 {
		return false
	}
	s.written = append(s.written, entities.ScreenshotRecord{
		Name:      "screenshot_" + message.ToolCallID + ".png",
		CreatedAt: time.Now(),
	})
	return true
}

func (s *recordingSink) List(since time.Time) ([]entities.ScreenshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.ScreenshotRecord
	for _, r := range s.written {
		if r.CreatedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *recordingSink) writtenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

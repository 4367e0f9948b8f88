package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type navigateTool struct{}

func (navigateTool) Name() string        { return "browser_navigate" }
func (navigateTool) Description() string { return "Navigate to a URL" }
func (navigateTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []string{"url"},
	}
}
func (navigateTool) Invoke(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	return &entities.ToolResult{Content: "ok"}, nil
}

type toolSet []interfaces.Tool

func (s toolSet) Tools() []interfaces.Tool { return s }
func (s toolSet) Lookup(name string) (interfaces.Tool, bool) {
	for _, t := range s {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

func sampleHistory() []entities.Message {
	ai := entities.NewAIMessage("", entities.ToolCall{ID: "call_1", Name: "browser_navigate", Arguments: map[string]any{"url": "https://example.com"}})
	return []entities.Message{
		*entities.NewSystemMessage("You are a browser assistant."),
		*entities.NewHumanMessage("open example.com"),
		*ai,
		*entities.NewToolMessage("call_1", "browser_navigate", "Navigated", nil),
	}
}

func completionHandler(t *testing.T, seen *openai.ChatCompletionRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4.1-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_2",
						"type": "function",
						"function": {"name": "browser_take_screenshot", "arguments": "{\"fullPage\":true}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}
}

func TestOpenAIIntegration_Invoke(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := httptest.NewServer(completionHandler(t, &seen))
	defer srv.Close()

	model, err := NewOpenAIIntegration(srv.URL+"/v1", "sk-test",
		entities.ModelSettings{Model: "gpt-4.1-mini", Temperature: 0.1},
		toolSet{navigateTool{}}, CallPolicy{}, zap.NewNop())
	require.NoError(t, err)

	reply, err := model.Invoke(context.Background(), sampleHistory())

	require.NoError(t, err)
	assert.Equal(t, entities.RoleAI, reply.Role)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_2", reply.ToolCalls[0].ID)
	assert.Equal(t, "browser_take_screenshot", reply.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"fullPage": true}, reply.ToolCalls[0].Arguments)

	assert.Equal(t, "gpt-4.1-mini", seen.Model)
	require.Len(t, seen.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, seen.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, seen.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, seen.Messages[2].Role)
	require.Len(t, seen.Messages[2].ToolCalls, 1)
	assert.JSONEq(t, `{"url":"https://example.com"}`, seen.Messages[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, openai.ChatMessageRoleTool, seen.Messages[3].Role)
	assert.Equal(t, "call_1", seen.Messages[3].ToolCallID)
	require.Len(t, seen.Tools, 1)
	assert.Equal(t, "browser_navigate", seen.Tools[0].Function.Name)
}

func TestOpenAIIntegration_RetriesTransientErrors(t *testing.T) {
	var calls int32
	var seen openai.ChatCompletionRequest
	ok := completionHandler(t, &seen)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_exceeded"}}`))
			return
		}
		ok(w, r)
	}))
	defer srv.Close()

	model, err := NewOpenAIIntegration(srv.URL+"/v1", "sk-test",
		entities.ModelSettings{Model: "gpt-4.1-mini"}, nil,
		CallPolicy{MaxRetries: 2, MaxElapsed: 10 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	reply, err := model.Invoke(context.Background(), sampleHistory())

	require.NoError(t, err)
	assert.True(t, reply.HasToolCalls())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIIntegration_PermanentError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	model, err := NewOpenAIIntegration(srv.URL+"/v1", "sk-test",
		entities.ModelSettings{Model: "gpt-4.1-mini"}, nil,
		CallPolicy{MaxRetries: 3, MaxElapsed: 10 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	_, err = model.Invoke(context.Background(), sampleHistory())

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewOpenAIIntegration_Validation(t *testing.T) {
	_, err := NewOpenAIIntegration("", "", entities.ModelSettings{Model: "m"}, nil, CallPolicy{}, zap.NewNop())
	assert.EqualError(t, err, "apiKey cannot be empty")

	_, err = NewOpenAIIntegration("", "k", entities.ModelSettings{}, nil, CallPolicy{}, zap.NewNop())
	assert.EqualError(t, err, "model cannot be empty")
}

func TestConvertToGenaiContents(t *testing.T) {
	history := sampleHistory()
	history = append(history, *entities.NewToolErrorMessage("call_x", "browser_click", "element not found"))

	system, contents := convertToGenaiContents(history)

	require.NotNil(t, system)
	assert.Equal(t, "You are a browser assistant.", system.Parts[0].Text)
	require.Len(t, contents, 3)

	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, "open example.com", contents[0].Parts[0].Text)

	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.Len(t, contents[1].Parts, 1)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "browser_navigate", contents[1].Parts[0].FunctionCall.Name)

	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, map[string]any{"output": "Navigated"}, contents[2].Parts[0].FunctionResponse.Response)
	assert.Equal(t, "browser_click", contents[2].Parts[1].FunctionResponse.Name)
	assert.Equal(t, map[string]any{"error": "element not found"}, contents[2].Parts[1].FunctionResponse.Response)
}

func TestFromGenaiContent(t *testing.T) {
	msg := fromGenaiContent(&genai.Content{
		Role: string(genai.RoleModel),
		Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{Text: "Opening the page"},
			{FunctionCall: &genai.FunctionCall{Name: "browser_navigate", Args: map[string]any{"url": "https://example.com"}}},
		},
	})

	assert.Equal(t, "Opening the page", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	assert.Equal(t, "browser_navigate", msg.ToolCalls[0].Name)
	assert.True(t, msg.HasToolCalls())
}

func TestConvertToGenaiTools(t *testing.T) {
	tools := convertToGenaiTools(toolSet{navigateTool{}})

	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "browser_navigate", tools[0].FunctionDeclarations[0].Name)
	assert.Nil(t, convertToGenaiTools(toolSet{}))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(t, isTransient(&openai.RequestError{HTTPStatusCode: http.StatusBadGateway}))
	assert.False(t, isTransient(&openai.APIError{HTTPStatusCode: http.StatusBadRequest}))
	assert.True(t, isTransient(genai.APIError{Code: http.StatusServiceUnavailable}))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(errors.New("malformed response")))

	dial := &url.Error{Op: "Post", URL: "https://api.openai.com/v1/chat/completions", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	assert.True(t, isTransient(dial))
	assert.True(t, isTransient(&net.DNSError{Err: "no such host", Name: "generativelanguage.googleapis.com"}))
	assert.False(t, isTransient(&url.Error{Op: "Post", URL: "https://api.openai.com", Err: context.Canceled}))
}

func TestConvertToOpenAIMessages_EmptyToolContent(t *testing.T) {
	screenshot := entities.NewToolMessage("call_1", "browser_take_screenshot", "",
		[]entities.ContentBlock{{Type: entities.BlockImage, Data: "iVBORw0KGgo=", MIMEType: "image/png"}})
	closed := entities.NewToolMessage("call_2", "browser_close", "", nil)

	msgs := convertToOpenAIMessages([]entities.Message{*screenshot, *closed})

	require.Len(t, msgs, 2)
	assert.Equal(t, "[image]", msgs[0].Content)
	assert.Equal(t, "call_1", msgs[0].ToolCallID)
	assert.Equal(t, "(no output)", msgs[1].Content)

	body, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"content":"[image]"`)
}

func TestModelFactory(t *testing.T) {
	cfg := &config.Config{
		OpenAIAPIKey: "sk-test",
		GoogleAPIKey: "g-test",
	}
	factory := NewModelFactory(cfg, zap.NewNop())
	ctx := context.Background()

	model, err := factory.CreateModelIntegration(ctx, entities.ProviderOpenAI, toolSet{navigateTool{}})
	require.NoError(t, err)
	assert.Equal(t, entities.ProviderOpenAI, model.ProviderType())
	assert.Equal(t, config.DefaultOpenAIModel, model.ModelName())

	model, err = factory.CreateModelIntegration(ctx, entities.ProviderGoogle, toolSet{navigateTool{}})
	require.NoError(t, err)
	assert.Equal(t, entities.ProviderGoogle, model.ProviderType())
	assert.Equal(t, config.DefaultGoogleModel, model.ModelName())

	_, err = factory.CreateModelIntegration(ctx, entities.ProviderType("anthropic"), nil)
	assert.IsType(t, &errs.ConfigError{}, err)
	assert.EqualError(t, err, `unsupported provider: "anthropic"`)

	cfg.OpenAIAPIKey = ""
	_, err = factory.CreateModelIntegration(ctx, entities.ProviderOpenAI, nil)
	assert.IsType(t, &errs.ConfigError{}, err)
}

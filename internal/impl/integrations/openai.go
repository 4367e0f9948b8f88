package integrations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIIntegration calls the chat completions API with the tool set bound
// as function tools.
type OpenAIIntegration struct {
	client      *openai.Client
	model       string
	temperature float32
	tools       []openai.Tool
	caller      *caller
	logger      *zap.Logger
}

// NewOpenAIIntegration creates an OpenAI integration. An empty baseURL uses
// the public endpoint.
func NewOpenAIIntegration(baseURL, apiKey string, settings entities.ModelSettings, tools interfaces.ToolSet, policy CallPolicy, logger *zap.Logger) (*OpenAIIntegration, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey cannot be empty")
	}
	if settings.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIIntegration{
		client:      openai.NewClientWithConfig(config),
		model:       settings.Model,
		temperature: float32(settings.Temperature),
		tools:       convertToOpenAITools(tools),
		caller:      newCaller(policy, logger),
		logger:      logger,
	}, nil
}

func (m *OpenAIIntegration) ModelName() string {
	return m.model
}

func (m *OpenAIIntegration) ProviderType() entities.ProviderType {
	return entities.ProviderOpenAI
}

// Invoke sends the history and returns the model's single reply.
func (m *OpenAIIntegration) Invoke(ctx context.Context, history []entities.Message) (*entities.Message, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    convertToOpenAIMessages(history),
		Temperature: m.temperature,
		Tools:       m.tools,
	}

	var resp openai.ChatCompletionResponse
	err := m.caller.do(ctx, func() error {
		var err error
		resp, err = m.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	m.logger.Debug("OpenAI completion",
		zap.String("model", m.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)))

	return m.fromOpenAIMessage(resp.Choices[0].Message), nil
}

func (m *OpenAIIntegration) fromOpenAIMessage(msg openai.ChatCompletionMessage) *entities.Message {
	calls := make([]entities.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				m.logger.Warn("Model sent malformed tool arguments",
					zap.String("tool_name", tc.Function.Name),
					zap.String("arguments", tc.Function.Arguments),
					zap.Error(err))
			}
		}
		id := tc.ID
		if id == "" {
			id = uuid.New().String()
		}
		calls = append(calls, entities.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return entities.NewAIMessage(msg.Content, calls...)
}

func convertToOpenAIMessages(history []entities.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case entities.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case entities.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case entities.RoleAI:
			apiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil || tc.Arguments == nil {
					args = []byte("{}")
				}
				apiMsg.ToolCalls = append(apiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, apiMsg)
		case entities.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolContent(msg),
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

// toolContent never returns an empty string: the API rejects tool messages
// without content, and image-only results carry no text.
func toolContent(msg entities.Message) string {
	switch {
	case msg.Content != "":
		return msg.Content
	case len(msg.Artifact) > 0:
		return "[image]"
	default:
		return "(no output)"
	}
}

func convertToOpenAITools(tools interfaces.ToolSet) []openai.Tool {
	if tools == nil {
		return nil
	}
	list := tools.Tools()
	if len(list) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(list))
	for i, tool := range list {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.InputSchema(),
			},
		}
	}
	return out
}

var _ interfaces.ModelIntegration = (*OpenAIIntegration)(nil)

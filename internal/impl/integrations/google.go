package integrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GoogleIntegration calls the Gemini API with the tool set bound as function
// declarations.
type GoogleIntegration struct {
	client      *genai.Client
	model       string
	temperature float32
	tools       []*genai.Tool
	caller      *caller
	logger      *zap.Logger
}

// NewGoogleIntegration creates a Gemini integration. An empty baseURL uses
// the public endpoint.
func NewGoogleIntegration(ctx context.Context, baseURL, apiKey string, settings entities.ModelSettings, tools interfaces.ToolSet, policy CallPolicy, logger *zap.Logger) (*GoogleIntegration, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey cannot be empty")
	}
	if settings.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GoogleIntegration{
		client:      client,
		model:       settings.Model,
		temperature: float32(settings.Temperature),
		tools:       convertToGenaiTools(tools),
		caller:      newCaller(policy, logger),
		logger:      logger,
	}, nil
}

func (m *GoogleIntegration) ModelName() string {
	return m.model
}

func (m *GoogleIntegration) ProviderType() entities.ProviderType {
	return entities.ProviderGoogle
}

// Invoke sends the history and returns the model's single reply.
func (m *GoogleIntegration) Invoke(ctx context.Context, history []entities.Message) (*entities.Message, error) {
	system, contents := convertToGenaiContents(history)

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(m.temperature),
		SystemInstruction: system,
		Tools:             m.tools,
	}

	var resp *genai.GenerateContentResponse
	err := m.caller.do(ctx, func() error {
		var err error
		resp, err = m.client.Models.GenerateContent(ctx, m.model, contents, config)
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if resp.UsageMetadata != nil {
		m.logger.Debug("Gemini completion",
			zap.String("model", m.model),
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount),
			zap.String("finish_reason", string(candidate.FinishReason)))
	}

	return fromGenaiContent(candidate.Content), nil
}

func fromGenaiContent(content *genai.Content) *entities.Message {
	var text strings.Builder
	var calls []entities.ToolCall
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.New().String()
			}
			calls = append(calls, entities.ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	return entities.NewAIMessage(text.String(), calls...)
}

// convertToGenaiContents splits system messages into the system instruction
// and groups consecutive tool results into one user turn. Call ids are not
// sent back; Gemini pairs responses with calls by name and order.
func convertToGenaiContents(history []entities.Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(history))

	for _, msg := range history {
		switch msg.Role {
		case entities.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case entities.RoleHuman:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case entities.RoleAI:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, tc.Arguments))
			}
			if len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(" "))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case entities.RoleTool:
			key := "output"
			if msg.IsError {
				key = "error"
			}
			part := genai.NewPartFromFunctionResponse(msg.ToolName, map[string]any{key: msg.Content})
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	return system, contents
}

func isFunctionResponseTurn(content *genai.Content) bool {
	if content.Role != string(genai.RoleUser) || len(content.Parts) == 0 {
		return false
	}
	for _, part := range content.Parts {
		if part.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func convertToGenaiTools(tools interfaces.ToolSet) []*genai.Tool {
	if tools == nil {
		return nil
	}
	list := tools.Tools()
	if len(list) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(list))
	for i, tool := range list {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 tool.Name(),
			Description:          tool.Description(),
			ParametersJsonSchema: tool.InputSchema(),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

var _ interfaces.ModelIntegration = (*GoogleIntegration)(nil)

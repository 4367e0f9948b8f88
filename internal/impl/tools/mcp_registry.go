package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const clientName = "aibrowser"

// MCPRegistry holds one client session per configured tool server and exposes
// every remote tool under its own name.
type MCPRegistry struct {
	client   *mcp.Client
	sessions map[string]*mcp.ClientSession
	tools    []interfaces.Tool
	index    map[string]interfaces.Tool
	logger   *zap.Logger
	mu       sync.RWMutex
}

func NewMCPRegistry(version string, logger *zap.Logger) *MCPRegistry {
	return &MCPRegistry{
		client:   mcp.NewClient(&mcp.Implementation{Name: clientName, Version: version}, nil),
		sessions: make(map[string]*mcp.ClientSession),
		index:    make(map[string]interfaces.Tool),
		logger:   logger,
	}
}

// ConnectServers connects every server of cfg in name order. Any failure closes
// the sessions opened so far and is reported as a configuration error.
func (r *MCPRegistry) ConnectServers(ctx context.Context, cfg *config.Config) error {
	for _, name := range cfg.ServerNames() {
		transport, err := buildTransport(cfg.MCPServers[name])
		if err != nil {
			r.Close()
			return errs.ConfigErrorf("mcp server %s: %v", name, err)
		}
		if err := r.Connect(ctx, name, transport); err != nil {
			r.Close()
			return errs.ConfigErrorf("mcp server %s: %v", name, err)
		}
	}
	return nil
}

// Connect opens a session over transport and registers the server's tools.
// A tool name already registered by an earlier server is skipped.
func (r *MCPRegistry) Connect(ctx context.Context, name string, transport mcp.Transport) error {
	session, err := r.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	var remote []*mcp.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			session.Close()
			return fmt.Errorf("failed to list tools: %w", err)
		}
		remote = append(remote, tool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[name] = session
	for _, tool := range remote {
		if _, exists := r.index[tool.Name]; exists {
			r.logger.Warn("Duplicate tool name; keeping the first server's tool",
				zap.String("tool_name", tool.Name),
				zap.String("server", name))
			continue
		}
		t := &MCPTool{
			server:  name,
			name:    tool.Name,
			desc:    tool.Description,
			schema:  schemaMap(tool.InputSchema),
			session: session,
			logger:  r.logger,
		}
		r.tools = append(r.tools, t)
		r.index[t.name] = t
	}

	r.logger.Info("Connected MCP server",
		zap.String("server", name),
		zap.Int("tools", len(remote)))
	return nil
}

func (r *MCPRegistry) Tools() []interfaces.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]interfaces.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *MCPRegistry) Lookup(name string) (interfaces.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.index[name]
	return tool, ok
}

// Close ends every session. The registry is empty afterwards.
func (r *MCPRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, session := range r.sessions {
		if err := session.Close(); err != nil {
			r.logger.Warn("Error closing MCP session", zap.String("server", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.sessions = make(map[string]*mcp.ClientSession)
	r.tools = nil
	r.index = make(map[string]interfaces.Tool)
	return firstErr
}

// MCPTool is one tool of a connected server.
type MCPTool struct {
	server  string
	name    string
	desc    string
	schema  map[string]any
	session *mcp.ClientSession
	logger  *zap.Logger
}

func (t *MCPTool) Name() string {
	return t.name
}

func (t *MCPTool) Description() string {
	return t.desc
}

func (t *MCPTool) InputSchema() map[string]any {
	return t.schema
}

func (t *MCPTool) Server() string {
	return t.server
}

// Invoke calls the remote tool. Text content becomes the result content and
// every other content block is carried in the artifact, images as base64.
func (t *MCPTool) Invoke(ctx context.Context, arguments map[string]any) (*entities.ToolResult, error) {
	t.logger.Debug("Executing MCP tool",
		zap.String("server", t.server),
		zap.String("tool_name", t.name),
		zap.Any("arguments", arguments))

	if arguments == nil {
		arguments = map[string]any{}
	}
	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{Name: t.name, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	return toToolResult(res), nil
}

func toToolResult(res *mcp.CallToolResult) *entities.ToolResult {
	result := &entities.ToolResult{}
	if res == nil {
		return result
	}

	var texts []string
	for _, content := range res.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			texts = append(texts, c.Text)
		case *mcp.ImageContent:
			result.Artifact = append(result.Artifact, entities.ContentBlock{
				Type:     entities.BlockImage,
				Data:     base64.StdEncoding.EncodeToString(c.Data),
				MIMEType: c.MIMEType,
			})
		case *mcp.EmbeddedResource:
			if c.Resource == nil {
				continue
			}
			block := entities.ContentBlock{
				Type:     entities.BlockResource,
				Text:     c.Resource.Text,
				MIMEType: c.Resource.MIMEType,
			}
			if len(c.Resource.Blob) > 0 {
				block.Data = base64.StdEncoding.EncodeToString(c.Resource.Blob)
			}
			result.Artifact = append(result.Artifact, block)
		}
	}

	result.Content = strings.Join(texts, "\n")
	result.IsError = res.IsError
	return result
}

// schemaMap normalizes a tool's input schema into a plain JSON object.
func schemaMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return m
}

func buildTransport(server config.MCPServerConfig) (mcp.Transport, error) {
	switch {
	case server.Command != "":
		cmd := exec.Command(server.Command, server.Args...)
		cmd.Env = os.Environ()
		for key, value := range server.Env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case server.URL != "" && server.Transport == config.TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: server.URL}, nil
	case server.URL != "":
		return &mcp.StreamableClientTransport{Endpoint: server.URL}, nil
	}
	return nil, fmt.Errorf("no command or url configured")
}

var _ interfaces.ToolProvider = (*MCPRegistry)(nil)
var _ interfaces.Tool = (*MCPTool)(nil)

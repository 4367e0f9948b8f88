package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	defaultUserAgent = "aibrowser/1.0 (+https://github.com/drujensen/aibrowser)"
	defaultMaxBytes  = 200000
)

// FetchTool reads a URL over plain HTTP. It is read-only: only GET and HEAD
// are allowed, and bodies past maxBytes are cut off.
type FetchTool struct {
	userAgent string
	maxBytes  int
	logger    *zap.Logger
	client    *http.Client
}

func NewFetchTool(cfg config.FetchConfig, logger *zap.Logger) *FetchTool {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	return &FetchTool{
		userAgent: userAgent,
		maxBytes:  maxBytes,
		logger:    logger,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *FetchTool) Name() string {
	return "web_fetch"
}

func (t *FetchTool) Description() string {
	return "Fetch a URL over HTTP without a browser and return the status, content type and body. Use it for plain pages, feeds and JSON endpoints; use the browser tools for pages that need scripts or interaction."
}

func (t *FetchTool) InputSchema() map[string]any {
	return schema(map[string]any{
		"url": stringProp("The URL to fetch. Must include the protocol (e.g., http:// or https://)"),
		"operation": map[string]any{
			"type":        "string",
			"enum":        []string{http.MethodGet, http.MethodHead},
			"description": "The HTTP operation to perform, defaults to GET",
		},
		"headers": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Array of headers in the format 'key:value' to include in the request",
		},
	}, "url")
}

type fetchResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
}

func (t *FetchTool) Invoke(ctx context.Context, arguments map[string]any) (*entities.ToolResult, error) {
	url, _ := arguments["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}

	operation, _ := arguments["operation"].(string)
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = http.MethodGet
	}
	if operation != http.MethodGet && operation != http.MethodHead {
		return nil, fmt.Errorf("unsupported operation: %s", operation)
	}

	req, err := http.NewRequestWithContext(ctx, operation, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", t.userAgent)
	if headers, ok := arguments["headers"].([]any); ok {
		for _, h := range headers {
			header, _ := h.(string)
			key, value, found := strings.Cut(header, ":")
			if found {
				req.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
			}
		}
	}

	t.logger.Debug("Fetching URL", zap.String("operation", operation), zap.String("url", url))
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := fetchResult{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if len(body) > t.maxBytes {
		body = body[:t.maxBytes]
		result.Truncated = true
	}
	if result.ContentType == "" && len(body) > 0 {
		result.ContentType = mimetype.Detect(body).String()
	}
	result.Body = string(body)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("Fetch completed",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Bool("truncated", result.Truncated))
	return &entities.ToolResult{Content: string(resultJSON), IsError: resp.StatusCode >= 400}, nil
}

// FetchTools is the tool source holding the web_fetch tool.
type FetchTools struct {
	tool *FetchTool
}

func NewFetchTools(cfg config.FetchConfig, logger *zap.Logger) *FetchTools {
	return &FetchTools{tool: NewFetchTool(cfg, logger)}
}

func (f *FetchTools) Tools() []interfaces.Tool {
	return []interfaces.Tool{f.tool}
}

func (f *FetchTools) Lookup(name string) (interfaces.Tool, bool) {
	if name == f.tool.Name() {
		return f.tool, true
	}
	return nil, false
}

func (f *FetchTools) Close() error {
	f.tool.client.CloseIdleConnections()
	return nil
}

var _ interfaces.Tool = (*FetchTool)(nil)
var _ interfaces.ToolProvider = (*FetchTools)(nil)

package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// BrowserTools drives a local Chromium through go-rod and exposes the same
// tool names as the Playwright tool server, so it can stand in for it.
type BrowserTools struct {
	headless bool
	logger   *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page

	tools []interfaces.Tool
	index map[string]interfaces.Tool
}

type browserTool struct {
	name        string
	description string
	schema      map[string]any
	run         func(ctx context.Context, args map[string]any) (*entities.ToolResult, error)
}

func (t *browserTool) Name() string                { return t.name }
func (t *browserTool) Description() string         { return t.description }
func (t *browserTool) InputSchema() map[string]any { return t.schema }

func (t *browserTool) Invoke(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	return t.run(ctx, args)
}

func NewBrowserTools(headless bool, logger *zap.Logger) *BrowserTools {
	b := &BrowserTools{
		headless: headless,
		logger:   logger,
		index:    make(map[string]interfaces.Tool),
	}

	b.register(&browserTool{
		name:        "browser_navigate",
		description: "Navigate to a URL",
		schema:      schema(map[string]any{"url": stringProp("The URL to navigate to")}, "url"),
		run:         b.navigate,
	})
	b.register(&browserTool{
		name:        "browser_click",
		description: "Click the element matching a CSS selector",
		schema:      schema(map[string]any{"selector": stringProp("CSS selector of the element to click")}, "selector"),
		run:         b.click,
	})
	b.register(&browserTool{
		name:        "browser_type",
		description: "Type text into the element matching a CSS selector",
		schema: schema(map[string]any{
			"selector": stringProp("CSS selector of the input element"),
			"text":     stringProp("Text to type"),
		}, "selector", "text"),
		run: b.typeText,
	})
	b.register(&browserTool{
		name:        "browser_get_text",
		description: "Return the visible text of the element matching a CSS selector, or of the whole page",
		schema:      schema(map[string]any{"selector": stringProp("CSS selector, defaults to body")}),
		run:         b.getText,
	})
	b.register(&browserTool{
		name:        "browser_take_screenshot",
		description: "Take a screenshot of the current page",
		schema:      schema(map[string]any{"fullPage": map[string]any{"type": "boolean", "description": "Capture the full scrollable page"}}),
		run:         b.screenshot,
	})
	b.register(&browserTool{
		name:        "browser_close",
		description: "Close the current page",
		schema:      schema(map[string]any{}),
		run:         b.closePage,
	})

	return b
}

func (b *BrowserTools) register(t *browserTool) {
	b.tools = append(b.tools, t)
	b.index[t.name] = t
}

func (b *BrowserTools) Tools() []interfaces.Tool {
	out := make([]interfaces.Tool, len(b.tools))
	copy(out, b.tools)
	return out
}

func (b *BrowserTools) Lookup(name string) (interfaces.Tool, bool) {
	t, ok := b.index[name]
	return t, ok
}

// Close shuts the browser down if it was started.
func (b *BrowserTools) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.page = nil
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

func (b *BrowserTools) navigate(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	url, err := requiredString(args, "url")
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureBrowser(); err != nil {
		return nil, err
	}
	if b.page == nil {
		page, err := b.browser.Page(proto.TargetCreateTarget{URL: ""})
		if err != nil {
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
		b.page = page
	}

	page := b.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page did not finish loading: %w", err)
	}

	title := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
	}
	return &entities.ToolResult{Content: fmt.Sprintf("Navigated to %s (title: %q)", url, title)}, nil
}

func (b *BrowserTools) click(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	selector, err := requiredString(args, "selector")
	if err != nil {
		return nil, err
	}

	page, err := b.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return &entities.ToolResult{Content: fmt.Sprintf("Clicked element with selector %s", selector)}, nil
}

func (b *BrowserTools) typeText(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	selector, err := requiredString(args, "selector")
	if err != nil {
		return nil, err
	}
	text, err := requiredString(args, "text")
	if err != nil {
		return nil, err
	}

	page, err := b.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return nil, fmt.Errorf("failed to type into %s: %w", selector, err)
	}
	return &entities.ToolResult{Content: fmt.Sprintf("Typed into element with selector %s", selector)}, nil
}

func (b *BrowserTools) getText(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	selector, _ := args["selector"].(string)
	if selector == "" {
		selector = "body"
	}

	page, err := b.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to read text of %s: %w", selector, err)
	}
	return &entities.ToolResult{Content: text}, nil
}

func (b *BrowserTools) screenshot(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	fullPage, _ := args["fullPage"].(bool)

	page, err := b.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	data, err := page.Screenshot(fullPage, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}

	b.logger.Debug("Captured screenshot", zap.Int("bytes", len(data)), zap.Bool("full_page", fullPage))

	return &entities.ToolResult{
		Content: "Took a screenshot of the current page",
		Artifact: []entities.ContentBlock{{
			Type:     entities.BlockImage,
			Data:     base64.StdEncoding.EncodeToString(data),
			MIMEType: "image/png",
		}},
	}, nil
}

func (b *BrowserTools) closePage(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page == nil {
		return &entities.ToolResult{Content: "No page is open"}, nil
	}
	if err := b.page.Close(); err != nil {
		return nil, fmt.Errorf("failed to close page: %w", err)
	}
	b.page = nil
	return &entities.ToolResult{Content: "Page closed"}, nil
}

func (b *BrowserTools) currentPage(ctx context.Context) (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page == nil {
		return nil, fmt.Errorf("no page is open; call browser_navigate first")
	}
	return b.page.Context(ctx), nil
}

// ensureBrowser launches Chromium on first use. Callers hold b.mu.
func (b *BrowserTools) ensureBrowser() error {
	if b.browser != nil {
		return nil
	}
	controlURL, err := launcher.New().Headless(b.headless).Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.browser = browser
	b.logger.Info("Launched browser", zap.Bool("headless", b.headless))
	return nil
}

func requiredString(args map[string]any, key string) (string, error) {
	value, _ := args[key].(string)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func schema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var _ interfaces.ToolProvider = (*BrowserTools)(nil)
var _ interfaces.Tool = (*browserTool)(nil)

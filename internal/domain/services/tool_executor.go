package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/events"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ToolExecutorOptions struct {
	// Concurrency bounds sibling calls of one AI turn. Values below 1 run them sequentially.
	Concurrency int
	// Timeout bounds each call. Zero waits indefinitely.
	Timeout time.Duration
}

// ToolExecutor runs the tool calls requested by one AI message. Resolution and
// invocation failures never escape: they become error-bearing Tool messages so
// the model can react on its next turn.
type ToolExecutor struct {
	tools   interfaces.ToolSet
	options ToolExecutorOptions
	logger  *zap.Logger
}

func NewToolExecutor(tools interfaces.ToolSet, options ToolExecutorOptions, logger *zap.Logger) *ToolExecutor {
	if options.Concurrency < 1 {
		options.Concurrency = 1
	}
	return &ToolExecutor{
		tools:   tools,
		options: options,
		logger:  logger,
	}
}

// Execute returns one Tool message per requested call, in request order, each
// carrying the correlation id of its call.
func (e *ToolExecutor) Execute(ctx context.Context, threadID string, ai entities.Message) []*entities.Message {
	if !ai.HasToolCalls() {
		return nil
	}

	results := make([]*entities.Message, len(ai.ToolCalls))

	var g errgroup.Group
	g.SetLimit(e.options.Concurrency)
	for i, call := range ai.ToolCalls {
		g.Go(func() error {
			results[i] = e.executeCall(ctx, threadID, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *ToolExecutor) executeCall(ctx context.Context, threadID string, call entities.ToolCall) *entities.Message {
	start := time.Now()

	tool, found := e.lookup(call.Name)
	if !found {
		e.logger.Warn("Tool not found", zap.String("tool_name", call.Name), zap.String("tool_call_id", call.ID))
		errorMsg := fmt.Sprintf("tool %s not found", call.Name)
		events.PublishToolCallEvent(entities.NewToolCallEvent(threadID, call, "", errorMsg, false, time.Since(start)))
		return entities.NewToolErrorMessage(call.ID, call.Name, errorMsg)
	}

	result, err := e.invoke(ctx, tool, call)
	duration := time.Since(start)

	if err != nil {
		e.logger.Error("Tool execution failed",
			zap.String("tool_name", call.Name),
			zap.String("tool_call_id", call.ID),
			zap.Duration("duration", duration),
			zap.Error(err))
		errorMsg := fmt.Sprintf("tool %s failed: %v", call.Name, err)
		events.PublishToolCallEvent(entities.NewToolCallEvent(threadID, call, "", errorMsg, false, duration))
		return entities.NewToolErrorMessage(call.ID, call.Name, errorMsg)
	}

	if result == nil {
		result = &entities.ToolResult{}
	}
	result.CallID = call.ID

	_, hasImage := result.FirstImage()
	errorMsg := ""
	if result.IsError {
		errorMsg = result.Content
	}
	e.logger.Debug("Tool executed",
		zap.String("tool_name", call.Name),
		zap.String("tool_call_id", call.ID),
		zap.Bool("has_image", hasImage),
		zap.Duration("duration", duration))
	events.PublishToolCallEvent(entities.NewToolCallEvent(threadID, call, result.Content, errorMsg, hasImage, duration))

	return result.Message(call.Name)
}

func (e *ToolExecutor) lookup(name string) (interfaces.Tool, bool) {
	if e.tools == nil {
		return nil, false
	}
	return e.tools.Lookup(name)
}

type invokeOutcome struct {
	result *entities.ToolResult
	err    error
}

// invoke runs the tool in its own goroutine so a panic or an expired timeout
// is reported as an error instead of taking the loop down.
func (e *ToolExecutor) invoke(ctx context.Context, tool interfaces.Tool, call entities.ToolCall) (*entities.ToolResult, error) {
	callCtx := ctx
	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	done := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		result, err := tool.Invoke(callCtx, call.Arguments)
		done <- invokeOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && e.options.Timeout > 0 {
			return nil, fmt.Errorf("timed out after %s", e.options.Timeout)
		}
		return out.result, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && e.options.Timeout > 0 {
			return nil, fmt.Errorf("timed out after %s", e.options.Timeout)
		}
		return nil, callCtx.Err()
	}
}

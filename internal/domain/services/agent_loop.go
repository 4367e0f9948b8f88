package services

import (
	"context"
	"fmt"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/events"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"go.uber.org/zap"
)

// State is a node of the agent control graph.
type State string

const (
	StateStart State = "START"
	StateAgent State = "AGENT"
	StateTools State = "TOOLS"
	StateEnd   State = "END"
)

const DefaultMaxIterations = 25

type AgentLoopOptions struct {
	// MaxIterations bounds the number of AGENT turns. Zero uses DefaultMaxIterations.
	MaxIterations int
	// MaxDuration bounds the wall-clock time of one run. Zero means no bound.
	MaxDuration time.Duration
}

// LoopResult is the outcome of driving one conversation to END.
type LoopResult struct {
	Final     entities.Message
	Visited   []State
	Telemetry entities.Telemetry
}

// AgentLoop alternates model turns and tool turns until the model answers
// without tool calls.
type AgentLoop struct {
	model    interfaces.ModelIntegration
	executor *ToolExecutor
	sink     interfaces.ScreenshotSink
	window   *HistoryWindow
	options  AgentLoopOptions
	logger   *zap.Logger
}

func NewAgentLoop(
	model interfaces.ModelIntegration,
	executor *ToolExecutor,
	sink interfaces.ScreenshotSink,
	window *HistoryWindow,
	options AgentLoopOptions,
	logger *zap.Logger,
) *AgentLoop {
	if options.MaxIterations <= 0 {
		options.MaxIterations = DefaultMaxIterations
	}
	return &AgentLoop{
		model:    model,
		executor: executor,
		sink:     sink,
		window:   window,
		options:  options,
		logger:   logger,
	}
}

// route picks the state after an AGENT turn.
func route(last entities.Message) State {
	if last.HasToolCalls() {
		return StateTools
	}
	return StateEnd
}

// Run drives the conversation from START to END. The conversation must
// already hold the seed messages. On error the conversation keeps every
// message appended before the failure.
func (l *AgentLoop) Run(ctx context.Context, conv *Conversation) (*LoopResult, error) {
	start := time.Now()
	result := &LoopResult{
		Visited:   []State{StateStart},
		Telemetry: entities.Telemetry{ThreadID: conv.ThreadID()},
	}
	defer func() {
		result.Telemetry.Total = time.Since(start)
	}()

	state := StateAgent
	for state != StateEnd {
		if err := ctx.Err(); err != nil {
			return result, errs.CanceledErrorf("agent loop canceled in %s: %v", state, err)
		}

		switch state {
		case StateAgent:
			if reason, stop := l.exceeded(result.Telemetry.Iterations, start); stop {
				final, err := l.stop(ctx, conv, reason)
				if err != nil {
					return result, err
				}
				result.Final = *final
				result.Telemetry.Truncated = true
				state = StateEnd
				continue
			}

			result.Visited = append(result.Visited, StateAgent)
			result.Telemetry.Iterations++

			reply, err := l.agentTurn(ctx, conv, &result.Telemetry)
			if err != nil {
				return result, err
			}
			result.Final = *reply
			state = route(*reply)

		case StateTools:
			result.Visited = append(result.Visited, StateTools)
			if err := l.toolsTurn(ctx, conv, &result.Telemetry); err != nil {
				return result, err
			}
			state = StateAgent
		}
	}

	result.Visited = append(result.Visited, StateEnd)

	l.logger.Info("Agent loop finished",
		zap.String("thread_id", conv.ThreadID()),
		zap.Int("iterations", result.Telemetry.Iterations),
		zap.Int("tool_calls", result.Telemetry.ToolCalls),
		zap.Duration("total", time.Since(start)))

	return result, nil
}

func (l *AgentLoop) agentTurn(ctx context.Context, conv *Conversation, telemetry *entities.Telemetry) (*entities.Message, error) {
	l.drainScreenshot(conv)

	history := l.window.Apply(conv.Snapshot())
	if len(history) < conv.Len() {
		l.logger.Debug("History window applied",
			zap.String("thread_id", conv.ThreadID()),
			zap.Int("sent", len(history)),
			zap.Int("stored", conv.Len()))
	}

	callStart := time.Now()
	reply, err := l.model.Invoke(ctx, history)
	latency := time.Since(callStart)

	telemetry.ModelCalls++
	telemetry.ModelLatency += latency

	toolCalls := 0
	if reply != nil {
		toolCalls = len(reply.ToolCalls)
	}
	events.PublishModelCallEvent(entities.NewModelCallEvent(
		conv.ThreadID(), l.model.ProviderType(), l.model.ModelName(), telemetry.Iterations, toolCalls, latency, err))

	if err != nil {
		l.logger.Error("Model invocation failed",
			zap.String("thread_id", conv.ThreadID()),
			zap.String("model", l.model.ModelName()),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, errs.NewModelError(string(l.model.ProviderType()), l.model.ModelName(), err)
	}
	if reply == nil {
		return nil, errs.NewModelError(string(l.model.ProviderType()), l.model.ModelName(), fmt.Errorf("model returned no message"))
	}

	l.logger.Info("Model invoked",
		zap.String("thread_id", conv.ThreadID()),
		zap.String("model", l.model.ModelName()),
		zap.Int("tool_calls", toolCalls),
		zap.Duration("latency", latency))

	// Only AI messages may request tools.
	reply.Role = entities.RoleAI
	if err := conv.Append(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (l *AgentLoop) toolsTurn(ctx context.Context, conv *Conversation, telemetry *entities.Telemetry) error {
	last, ok := conv.LastAI()
	if !ok || !last.HasToolCalls() {
		return errs.InternalErrorf("tools turn without pending tool calls")
	}

	callStart := time.Now()
	results := l.executor.Execute(ctx, conv.ThreadID(), last)
	telemetry.ToolLatency += time.Since(callStart)
	telemetry.ToolCalls += len(results)
	for _, msg := range results {
		if msg.IsError {
			telemetry.ToolFailures++
		}
	}

	return conv.Append(ctx, results...)
}

// drainScreenshot hands the preceding Tool message to the sink. It runs once
// per tool turn, right before the model consumes that turn's results.
func (l *AgentLoop) drainScreenshot(conv *Conversation) bool {
	if l.sink == nil {
		return false
	}
	last, ok := conv.LastTool()
	if !ok {
		return false
	}
	return l.sink.Process(&last)
}

func (l *AgentLoop) exceeded(iterations int, start time.Time) (string, bool) {
	if iterations >= l.options.MaxIterations {
		return fmt.Sprintf("Stopped after %d iterations without a final answer.", iterations), true
	}
	if l.options.MaxDuration > 0 && time.Since(start) > l.options.MaxDuration {
		return fmt.Sprintf("Stopped after %s without a final answer.", l.options.MaxDuration), true
	}
	return "", false
}

// stop ends a run that hit a bound with a synthetic AI message that has no
// tool calls, so the history still ends on a terminal AI message.
func (l *AgentLoop) stop(ctx context.Context, conv *Conversation, reason string) (*entities.Message, error) {
	l.drainScreenshot(conv)

	l.logger.Warn("Agent loop bound reached",
		zap.String("thread_id", conv.ThreadID()),
		zap.String("reason", reason))

	final := entities.NewAIMessage(reason)
	if err := conv.Append(ctx, final); err != nil {
		return nil, err
	}
	return final, nil
}

package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"go.uber.org/zap"
)

const DefaultSystemPrompt = `You are a helpful AI assistant. Answer in the language of the user and show your reasoning before your conclusion.
You can operate a web browser through the browser tools. Use them as needed to answer the user's question.
When you use tools, base your answer only on the information the tools returned.

First decide from the question what you need the tools for and how many times, call them as often as needed to gather the information, and answer once everything has been collected.

After every browser operation, always call the browser_take_screenshot tool to capture a screenshot.`

type SessionOptions struct {
	// Provider is the raw provider tag from configuration.
	Provider         string
	SystemPrompt     string
	HistoryMaxTokens int
	Loop             AgentLoopOptions
	Executor         ToolExecutorOptions
}

// SessionResult is the outcome of one query.
type SessionResult struct {
	ThreadID    string                      `json:"thread_id"`
	Answer      string                      `json:"answer"`
	Screenshots []entities.ScreenshotRecord `json:"screenshots"`
	Telemetry   entities.Telemetry          `json:"telemetry"`
	Visited     []State                     `json:"visited"`
	StartedAt   time.Time                   `json:"started_at"`
}

// SessionService binds a query to a thread and drives one agent loop to END.
type SessionService struct {
	factory interfaces.ModelFactory
	tools   interfaces.ToolSet
	repo    interfaces.CheckpointRepository
	sink    interfaces.ScreenshotSink
	counter TokenCounter
	options SessionOptions
	logger  *zap.Logger
	now     func() time.Time

	locks sync.Map
}

func NewSessionService(
	factory interfaces.ModelFactory,
	tools interfaces.ToolSet,
	repo interfaces.CheckpointRepository,
	sink interfaces.ScreenshotSink,
	options SessionOptions,
	logger *zap.Logger,
) *SessionService {
	if options.SystemPrompt == "" {
		options.SystemPrompt = DefaultSystemPrompt
	}
	var counter TokenCounter
	if options.HistoryMaxTokens > 0 {
		counter = TiktokenCounter(logger)
	}
	return &SessionService{
		factory: factory,
		tools:   tools,
		repo:    repo,
		sink:    sink,
		counter: counter,
		options: options,
		logger:  logger,
		now:     time.Now,
	}
}

// Run answers query on threadID. An empty threadID starts a new thread named
// after the current time. Queries on the same thread are serialized.
func (s *SessionService) Run(ctx context.Context, threadID, query string) (*SessionResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.ValidationErrorf("query is required")
	}

	provider, ok := entities.ParseProviderType(s.options.Provider)
	if !ok {
		return nil, errs.ConfigErrorf("unsupported provider: %q", s.options.Provider)
	}

	model, err := s.factory.CreateModelIntegration(ctx, provider, s.tools)
	if err != nil {
		s.logger.Error("Failed to create model integration", zap.String("provider", string(provider)), zap.Error(err))
		return nil, err
	}

	startedAt := s.now()
	if threadID == "" {
		threadID = entities.NewThreadID(startedAt)
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	conv, err := OpenConversation(ctx, threadID, s.repo, s.logger)
	if err != nil {
		return nil, err
	}

	if conv.Len() == 0 {
		err = conv.Append(ctx, entities.NewSystemMessage(s.options.SystemPrompt), entities.NewHumanMessage(query))
	} else {
		err = conv.Append(ctx, entities.NewHumanMessage(query))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session started",
		zap.String("thread_id", threadID),
		zap.String("provider", string(provider)),
		zap.String("model", model.ModelName()))

	executor := NewToolExecutor(s.tools, s.options.Executor, s.logger)
	window := NewHistoryWindow(s.options.HistoryMaxTokens, s.counter)
	loop := NewAgentLoop(model, executor, s.sink, window, s.options.Loop, s.logger)

	loopResult, err := loop.Run(ctx, conv)
	if err != nil {
		s.logger.Error("Session failed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, err
	}

	if s.sink != nil {
		if last, ok := conv.LastTool(); ok {
			s.sink.Process(&last)
		}
	}

	result := &SessionResult{
		ThreadID:  threadID,
		Answer:    loopResult.Final.Content,
		Telemetry: loopResult.Telemetry,
		Visited:   loopResult.Visited,
		StartedAt: startedAt,
	}

	if s.sink != nil {
		records, err := s.sink.List(startedAt)
		if err != nil {
			s.logger.Warn("Failed to list screenshots", zap.Error(err))
		}
		result.Screenshots = records
		for _, r := range records {
			result.Telemetry.Screenshots = append(result.Telemetry.Screenshots, r.Name)
		}
	}

	return result, nil
}

// Thread returns the stored history of threadID.
func (s *SessionService) Thread(ctx context.Context, threadID string) (*entities.Thread, error) {
	if threadID == "" {
		return nil, errs.ValidationErrorf("thread ID is required")
	}
	if s.repo == nil {
		return nil, errs.NotFoundErrorf("thread %s not found", threadID)
	}
	return s.repo.LoadThread(ctx, threadID)
}

func (s *SessionService) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	if s.repo == nil {
		return []entities.ThreadSummary{}, nil
	}
	return s.repo.ListThreads(ctx)
}

func (s *SessionService) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return errs.ValidationErrorf("thread ID is required")
	}
	if s.repo == nil {
		return errs.NotFoundErrorf("thread %s not found", threadID)
	}
	return s.repo.DeleteThread(ctx, threadID)
}

// Screenshots lists files written after since.
func (s *SessionService) Screenshots(since time.Time) ([]entities.ScreenshotRecord, error) {
	if s.sink == nil {
		return []entities.ScreenshotRecord{}, nil
	}
	return s.sink.List(since)
}

func (s *SessionService) lockThread(threadID string) func() {
	value, _ := s.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

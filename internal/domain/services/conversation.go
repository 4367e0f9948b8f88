package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/events"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conversation is the append-only message history of one thread. Every append
// is checkpointed before it becomes visible, so a failed checkpoint leaves the
// conversation at its last successfully appended state.
type Conversation struct {
	threadID string
	messages []entities.Message
	repo     interfaces.CheckpointRepository
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewConversation starts an empty conversation. A nil repository keeps the
// history in memory only.
func NewConversation(threadID string, repo interfaces.CheckpointRepository, logger *zap.Logger) *Conversation {
	return &Conversation{
		threadID: threadID,
		messages: make([]entities.Message, 0),
		repo:     repo,
		logger:   logger,
	}
}

// OpenConversation resumes the checkpointed history for threadID, or starts an
// empty one when nothing is stored yet.
func OpenConversation(ctx context.Context, threadID string, repo interfaces.CheckpointRepository, logger *zap.Logger) (*Conversation, error) {
	if threadID == "" {
		return nil, errs.ValidationErrorf("thread ID is required")
	}

	conv := NewConversation(threadID, repo, logger)
	if repo == nil {
		return conv, nil
	}

	thread, err := repo.LoadThread(ctx, threadID)
	if err != nil {
		var notFound *errs.NotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("Starting new thread", zap.String("thread_id", threadID))
			return conv, nil
		}
		return nil, err
	}

	for _, msg := range thread.Messages {
		conv.messages = append(conv.messages, msg.Clone())
	}
	logger.Info("Resumed thread from checkpoint",
		zap.String("thread_id", threadID),
		zap.Int("messages", len(conv.messages)))

	return conv, nil
}

func (c *Conversation) ThreadID() string {
	return c.threadID
}

// Append adds messages at the end of the history. Existing messages are never
// removed, reordered or changed.
func (c *Conversation) Append(ctx context.Context, messages ...*entities.Message) error {
	if len(messages) == 0 {
		return nil
	}

	batch := make([]entities.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			return errs.ValidationErrorf("cannot append nil message")
		}
		if msg.Role == "" {
			return errs.ValidationErrorf("message role is required")
		}
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		batch = append(batch, msg.Clone())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.AppendMessages(ctx, c.threadID, batch); err != nil {
			c.logger.Error("Failed to checkpoint messages",
				zap.String("thread_id", c.threadID),
				zap.Int("count", len(batch)),
				zap.Error(err))
			return err
		}
	}

	c.messages = append(c.messages, batch...)

	events.PublishMessageHistoryEvent(c.threadID, snapshotOf(batch))

	return nil
}

// Snapshot returns a deep copy of the ordered history.
func (c *Conversation) Snapshot() []entities.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return snapshotOf(c.messages)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() (entities.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 {
		return entities.Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// LastAI returns the most recent AI-role message.
func (c *Conversation) LastAI() (entities.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == entities.RoleAI {
			return c.messages[i].Clone(), true
		}
	}
	return entities.Message{}, false
}

// LastTool returns the most recent message if it is a Tool message.
func (c *Conversation) LastTool() (entities.Message, bool) {
	last, ok := c.Last()
	if !ok || last.Role != entities.RoleTool {
		return entities.Message{}, false
	}
	return last, true
}

func snapshotOf(messages []entities.Message) []entities.Message {
	out := make([]entities.Message, len(messages))
	for i, msg := range messages {
		out[i] = msg.Clone()
	}
	return out
}

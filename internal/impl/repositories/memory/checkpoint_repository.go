package repositories_memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	errors "github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
)

// MemoryCheckpointRepository keeps threads for the lifetime of the process.
type MemoryCheckpointRepository struct {
	mu      sync.RWMutex
	threads map[string]*entities.Thread
}

func NewMemoryCheckpointRepository() *MemoryCheckpointRepository {
	return &MemoryCheckpointRepository{
		threads: make(map[string]*entities.Thread),
	}
}

func (r *MemoryCheckpointRepository) LoadThread(ctx context.Context, threadID string) (*entities.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.threads[threadID]
	if !ok {
		return nil, errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	return copyThread(thread), nil
}

func (r *MemoryCheckpointRepository) AppendMessages(ctx context.Context, threadID string, messages []entities.Message) error {
	if threadID == "" {
		return errors.ValidationErrorf("thread ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[threadID]
	if !ok {
		thread = entities.NewThread(threadID)
		r.threads[threadID] = thread
	}
	for _, msg := range messages {
		thread.Messages = append(thread.Messages, msg.Clone())
	}
	thread.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryCheckpointRepository) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]entities.ThreadSummary, 0, len(r.threads))
	for _, thread := range r.threads {
		summaries = append(summaries, thread.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (r *MemoryCheckpointRepository) DeleteThread(ctx context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[threadID]; !ok {
		return errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	delete(r.threads, threadID)
	return nil
}

func copyThread(thread *entities.Thread) *entities.Thread {
	out := *thread
	out.Messages = make([]entities.Message, len(thread.Messages))
	for i, msg := range thread.Messages {
		out.Messages[i] = msg.Clone()
	}
	return &out
}

var _ interfaces.CheckpointRepository = (*MemoryCheckpointRepository)(nil)

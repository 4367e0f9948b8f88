package interfaces

import (
	"context"

	"github.com/drujensen/aibrowser/internal/domain/entities"
)

// CheckpointRepository persists thread history keyed by thread identifier.
// Append must never rewrite messages that are already stored.
type CheckpointRepository interface {
	LoadThread(ctx context.Context, threadID string) (*entities.Thread, error)
	AppendMessages(ctx context.Context, threadID string, messages []entities.Message) error
	ListThreads(ctx context.Context) ([]entities.ThreadSummary, error)
	DeleteThread(ctx context.Context, threadID string) error
}

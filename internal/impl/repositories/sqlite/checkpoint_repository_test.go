package repositories_sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteCheckpointRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	repo, err := NewSQLiteCheckpointRepository(path, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.LoadThread(ctx, "1")
	assert.IsType(t, &errs.NotFoundError{}, err)

	ai := entities.NewAIMessage("", entities.ToolCall{ID: "c1", Name: "browser_navigate", Arguments: map[string]any{"url": "https://example.com"}})
	require.NoError(t, repo.AppendMessages(ctx, "1", []entities.Message{*entities.NewSystemMessage("s"), *entities.NewHumanMessage("q")}))
	require.NoError(t, repo.AppendMessages(ctx, "1", []entities.Message{*ai}))
	require.NoError(t, repo.AppendMessages(ctx, "2", []entities.Message{*entities.NewHumanMessage("other")}))

	thread, err := repo.LoadThread(ctx, "1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 3)
	assert.Equal(t, entities.RoleSystem, thread.Messages[0].Role)
	assert.Equal(t, "q", thread.Messages[1].Content)
	require.Len(t, thread.Messages[2].ToolCalls, 1)
	assert.Equal(t, "https://example.com", thread.Messages[2].ToolCalls[0].Arguments["url"])

	summaries, err := repo.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "2", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].MessageCount)
	assert.Equal(t, 3, summaries[1].MessageCount)

	require.NoError(t, repo.DeleteThread(ctx, "2"))
	assert.IsType(t, &errs.NotFoundError{}, repo.DeleteThread(ctx, "2"))
	assert.IsType(t, &errs.ValidationError{}, repo.AppendMessages(ctx, "", nil))
}

func TestSQLiteCheckpointRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	repo, err := NewSQLiteCheckpointRepository(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repo.AppendMessages(ctx, "42", []entities.Message{*entities.NewHumanMessage("persisted")}))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteCheckpointRepository(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	thread, err := reopened.LoadThread(ctx, "42")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "persisted", thread.Messages[0].Content)
}

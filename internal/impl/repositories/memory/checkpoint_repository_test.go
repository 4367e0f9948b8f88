package repositories_memory

import (
	"context"
	"testing"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCheckpointRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCheckpointRepository()

	_, err := repo.LoadThread(ctx, "1")
	assert.IsType(t, &errs.NotFoundError{}, err)

	require.NoError(t, repo.AppendMessages(ctx, "1", []entities.Message{*entities.NewHumanMessage("q")}))
	require.NoError(t, repo.AppendMessages(ctx, "1", []entities.Message{*entities.NewAIMessage("a")}))
	require.NoError(t, repo.AppendMessages(ctx, "2", []entities.Message{*entities.NewHumanMessage("other")}))

	thread, err := repo.LoadThread(ctx, "1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "q", thread.Messages[0].Content)
	assert.Equal(t, "a", thread.Messages[1].Content)

	// Loaded threads are copies.
	thread.Messages[0].Content = "changed"
	again, _ := repo.LoadThread(ctx, "1")
	assert.Equal(t, "q", again.Messages[0].Content)

	summaries, err := repo.ListThreads(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	require.NoError(t, repo.DeleteThread(ctx, "2"))
	assert.IsType(t, &errs.NotFoundError{}, repo.DeleteThread(ctx, "2"))

	assert.IsType(t, &errs.ValidationError{}, repo.AppendMessages(ctx, "", nil))
}

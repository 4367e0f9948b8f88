package repositories_mongo

import (
	"testing"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestAppendUpdate(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msgs := []entities.Message{*entities.NewHumanMessage("q"), *entities.NewAIMessage("a")}

	update := appendUpdate(msgs, now)

	push := update["$push"].(bson.M)["messages"].(bson.M)["$each"].(bson.A)
	require.Len(t, push, 2)
	assert.Equal(t, "q", push[0].(entities.Message).Content)
	assert.Equal(t, now, update["$set"].(bson.M)["updated_at"])
	assert.Equal(t, now, update["$setOnInsert"].(bson.M)["created_at"])

	// The update document must be encodable by the driver.
	_, err := bson.Marshal(update)
	assert.NoError(t, err)
}

func TestThreadDocumentRoundTrip(t *testing.T) {
	thread := entities.NewThread("1700000000")
	thread.Messages = append(thread.Messages, *entities.NewAIMessage("", entities.ToolCall{
		ID: "c1", Name: "browser_navigate", Arguments: map[string]any{"url": "https://example.com"},
	}))

	data, err := bson.Marshal(thread)
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.Equal(t, "1700000000", raw["_id"])

	var decoded entities.Thread
	require.NoError(t, bson.Unmarshal(data, &decoded))
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "browser_navigate", decoded.Messages[0].ToolCalls[0].Name)
	assert.Equal(t, "https://example.com", decoded.Messages[0].ToolCalls[0].Arguments["url"])
}

func TestSummaryPipeline(t *testing.T) {
	pipeline := summaryPipeline()

	require.Len(t, pipeline, 2)
	assert.Equal(t, "$project", pipeline[0][0].Key)
	assert.Equal(t, "$sort", pipeline[1][0].Key)
}

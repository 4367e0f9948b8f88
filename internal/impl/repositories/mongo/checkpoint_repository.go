package repositories_mongo

import (
	"context"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	errors "github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCheckpointRepository stores each thread as one document whose
// messages array only ever grows through $push.
type MongoCheckpointRepository struct {
	collection *mongo.Collection
}

func NewMongoCheckpointRepository(collection *mongo.Collection) *MongoCheckpointRepository {
	return &MongoCheckpointRepository{
		collection: collection,
	}
}

func (r *MongoCheckpointRepository) LoadThread(ctx context.Context, threadID string) (*entities.Thread, error) {
	var thread entities.Thread
	err := r.collection.FindOne(ctx, bson.M{"_id": threadID}).Decode(&thread)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	if err != nil {
		return nil, errors.InternalErrorf("failed to load thread: %v", err)
	}
	if thread.Messages == nil {
		thread.Messages = make([]entities.Message, 0)
	}
	return &thread, nil
}

func (r *MongoCheckpointRepository) AppendMessages(ctx context.Context, threadID string, messages []entities.Message) error {
	if threadID == "" {
		return errors.ValidationErrorf("thread ID is required")
	}

	now := time.Now()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": threadID},
		appendUpdate(messages, now),
		options.Update().SetUpsert(true))
	if err != nil {
		return errors.InternalErrorf("failed to append messages: %v", err)
	}
	return nil
}

func appendUpdate(messages []entities.Message, now time.Time) bson.M {
	docs := make(bson.A, 0, len(messages))
	for _, msg := range messages {
		docs = append(docs, msg.Clone())
	}
	return bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": docs}},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
}

func (r *MongoCheckpointRepository) ListThreads(ctx context.Context) ([]entities.ThreadSummary, error) {
	cursor, err := r.collection.Aggregate(ctx, summaryPipeline())
	if err != nil {
		return nil, errors.InternalErrorf("failed to list threads: %v", err)
	}
	defer cursor.Close(ctx)

	summaries := make([]entities.ThreadSummary, 0)
	for cursor.Next(ctx) {
		var summary entities.ThreadSummary
		if err := cursor.Decode(&summary); err != nil {
			return nil, errors.InternalErrorf("failed to decode thread: %v", err)
		}
		summaries = append(summaries, summary)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.InternalErrorf("failed to list threads: %v", err)
	}
	return summaries, nil
}

func summaryPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$project", Value: bson.M{
			"created_at":    1,
			"updated_at":    1,
			"message_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}},
		}}},
		{{Key: "$sort", Value: bson.M{"updated_at": -1}}},
	}
}

func (r *MongoCheckpointRepository) DeleteThread(ctx context.Context, threadID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": threadID})
	if err != nil {
		return errors.InternalErrorf("failed to delete thread: %v", err)
	}
	if result.DeletedCount == 0 {
		return errors.NotFoundErrorf("thread not found: %s", threadID)
	}
	return nil
}

var _ interfaces.CheckpointRepository = (*MongoCheckpointRepository)(nil)

package entities

import (
	"strconv"
	"time"
)

// Thread is the checkpointed form of one conversation.
type Thread struct {
	ID        string    `json:"id" bson:"_id"`
	Messages  []Message `json:"messages" bson:"messages"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func NewThread(id string) *Thread {
	now := time.Now()
	return &Thread{
		ID:        id,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewThreadID derives a thread identifier from the invocation time in unix seconds.
func NewThreadID(now time.Time) string {
	return strconv.FormatInt(now.Unix(), 10)
}

// ThreadSummary is the listing view of a checkpointed thread.
type ThreadSummary struct {
	ID           string    `json:"id" bson:"_id"`
	MessageCount int       `json:"message_count" bson:"message_count"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

func (t *Thread) Summary() ThreadSummary {
	return ThreadSummary{
		ID:           t.ID,
		MessageCount: len(t.Messages),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

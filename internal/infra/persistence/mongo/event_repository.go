package mongopersistence

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"idea-board/internal/domain"
)

// MongoEventRepository 是 EventRepository 接口的 MongoDB 实现
type MongoEventRepository struct {
	coll *mongo.Collection
}

// NewMongoEventRepository 创建 MongoEventRepository 实例
func NewMongoEventRepository(db *mongo.Database) *MongoEventRepository {
	if db == nil {
		panic("mongo database cannot be nil for MongoEventRepository")
	}
	return &MongoEventRepository{coll: db.Collection(eventsCollection)}
}

// Save 写入事件，_id 冲突说明已经写过，直接忽略
func (r *MongoEventRepository) Save(ctx context.Context, event domain.IdeaEvent) error {
	if _, err := r.coll.InsertOne(ctx, newEventDoc(event)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("mongo: insert idea event %s: %w", event.ID, err)
	}
	return nil
}

func (r *MongoEventRepository) ListByIdea(ctx context.Context, ideaID string, limit int) ([]domain.IdeaEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"idea_id": ideaID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list events for idea %s: %w", ideaID, err)
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode events: %w", err)
	}
	events := make([]domain.IdeaEvent, 0, len(docs))
	for i := range docs {
		events = append(events, docs[i].toDomain())
	}
	return events, nil
}

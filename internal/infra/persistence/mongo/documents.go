// Package mongopersistence 提供基于 MongoDB 的仓库实现。
// Idea 以单文档保存投票者和评论，投票切换依赖单文档原子更新。
package mongopersistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"idea-board/internal/domain"
)

const (
	usersCollection  = "users"
	ideasCollection  = "ideas"
	eventsCollection = "idea_events"
)

type userDoc struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password_hash"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type commentDoc struct {
	Username  string    `bson:"username"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"created_at"`
}

type ideaDoc struct {
	ID          string       `bson:"_id"`
	Title       string       `bson:"title"`
	Description string       `bson:"description"`
	Tags        []string     `bson:"tags"`
	CreatorID   string       `bson:"creator"`
	Username    string       `bson:"username"`
	Upvotes     []string     `bson:"upvotes"`
	Downvotes   []string     `bson:"downvotes"`
	Comments    []commentDoc `bson:"comments"`
	CreatedAt   time.Time    `bson:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at"`
}

// summaryDoc 是列表聚合 $project 阶段的输出
type summaryDoc struct {
	ID            string    `bson:"_id"`
	Title         string    `bson:"title"`
	Description   string    `bson:"description"`
	Tags          []string  `bson:"tags"`
	Username      string    `bson:"username"`
	CreatedAt     time.Time `bson:"created_at"`
	UpvoteCount   int       `bson:"upvote_count"`
	DownvoteCount int       `bson:"downvote_count"`
}

type eventDoc struct {
	ID            string    `bson:"_id"`
	IdeaID        string    `bson:"idea_id"`
	Type          string    `bson:"type"`
	ActorID       string    `bson:"actor_id"`
	ActorName     string    `bson:"actor_name"`
	Detail        string    `bson:"detail,omitempty"`
	UpvoteCount   int       `bson:"upvote_count"`
	DownvoteCount int       `bson:"downvote_count"`
	CommentCount  int       `bson:"comment_count"`
	OccurredAt    time.Time `bson:"occurred_at"`
}

// EnsureIndexes 创建查询和唯一约束所需的索引，可重复调用。
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ideasCollection: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
			{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		eventsCollection: {
			{Keys: bson.D{{Key: "idea_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:        d.ID,
		Username:  d.Username,
		Email:     d.Email,
		Password:  d.Password,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func newIdeaDoc(i *domain.Idea) *ideaDoc {
	d := &ideaDoc{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Tags:        nonNil(i.Tags),
		CreatorID:   i.CreatorID,
		Username:    i.Username,
		Upvotes:     nonNil(i.Upvotes),
		Downvotes:   nonNil(i.Downvotes),
		Comments:    make([]commentDoc, 0, len(i.Comments)),
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
	for _, c := range i.Comments {
		d.Comments = append(d.Comments, commentDoc{Username: c.Username, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return d
}

func (d *ideaDoc) toDomain() *domain.Idea {
	idea := &domain.Idea{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Tags:        nonNil(d.Tags),
		CreatorID:   d.CreatorID,
		Username:    d.Username,
		Upvotes:     nonNil(d.Upvotes),
		Downvotes:   nonNil(d.Downvotes),
		Comments:    make([]domain.Comment, 0, len(d.Comments)),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, c := range d.Comments {
		idea.Comments = append(idea.Comments, domain.Comment{Username: c.Username, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return idea
}

func (d *summaryDoc) toDomain() domain.IdeaSummary {
	return domain.IdeaSummary{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Tags:          nonNil(d.Tags),
		Username:      d.Username,
		CreatedAt:     d.CreatedAt,
		UpvoteCount:   d.UpvoteCount,
		DownvoteCount: d.DownvoteCount,
	}
}

func newEventDoc(e domain.IdeaEvent) *eventDoc {
	return &eventDoc{
		ID:            e.ID,
		IdeaID:        e.IdeaID,
		Type:          string(e.Type),
		ActorID:       e.ActorID,
		ActorName:     e.ActorName,
		Detail:        e.Detail,
		UpvoteCount:   e.UpvoteCount,
		DownvoteCount: e.DownvoteCount,
		CommentCount:  e.CommentCount,
		OccurredAt:    e.OccurredAt,
	}
}

func (d *eventDoc) toDomain() domain.IdeaEvent {
	return domain.IdeaEvent{
		ID:            d.ID,
		IdeaID:        d.IdeaID,
		Type:          domain.IdeaEventType(d.Type),
		ActorID:       d.ActorID,
		ActorName:     d.ActorName,
		Detail:        d.Detail,
		UpvoteCount:   d.UpvoteCount,
		DownvoteCount: d.DownvoteCount,
		CommentCount:  d.CommentCount,
		OccurredAt:    d.OccurredAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

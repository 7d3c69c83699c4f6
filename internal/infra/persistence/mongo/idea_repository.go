package mongopersistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"idea-board/internal/domain"
	"idea-board/internal/repository"
)

// MongoIdeaRepository 是 IdeaRepository 接口的 MongoDB 实现
type MongoIdeaRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoIdeaRepository 创建 MongoIdeaRepository 实例
func NewMongoIdeaRepository(db *mongo.Database) *MongoIdeaRepository {
	if db == nil {
		panic("mongo database cannot be nil for MongoIdeaRepository")
	}
	return &MongoIdeaRepository{coll: db.Collection(ideasCollection), now: time.Now}
}

func (r *MongoIdeaRepository) Create(ctx context.Context, idea *domain.Idea) error {
	if _, err := r.coll.InsertOne(ctx, newIdeaDoc(idea)); err != nil {
		return fmt.Errorf("mongo: insert idea: %w", err)
	}
	return nil
}

func (r *MongoIdeaRepository) FindByID(ctx context.Context, id string) (*domain.Idea, error) {
	var doc ideaDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrIdeaNotFound
		}
		return nil, fmt.Errorf("mongo: find idea %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

// List 用聚合管道分页并计算投票数，避免把投票者数组传回客户端
func (r *MongoIdeaRepository) List(ctx context.Context, filter domain.IdeaFilter, offset, limit int) ([]domain.IdeaSummary, int64, error) {
	match := listFilter(filter)
	total, err := r.coll.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: count ideas: %w", err)
	}
	if total == 0 || int64(offset) >= total {
		return []domain.IdeaSummary{}, total, nil
	}

	cur, err := r.coll.Aggregate(ctx, listPipeline(match, offset, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: list ideas: %w", err)
	}
	var docs []summaryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("mongo: decode idea list: %w", err)
	}

	items := make([]domain.IdeaSummary, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toDomain())
	}
	return items, total, nil
}

// Update 以 {_id, creator} 为条件更新，未命中时再区分不存在和无权限
func (r *MongoIdeaRepository) Update(ctx context.Context, id, requesterID string, patch domain.IdeaPatch) (*domain.Idea, error) {
	var doc ideaDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "creator": requesterID},
		bson.M{"$set": patchSet(patch, r.now().UTC())},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missOrForbidden(ctx, id)
		}
		return nil, fmt.Errorf("mongo: update idea %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (r *MongoIdeaRepository) Delete(ctx context.Context, id, requesterID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "creator": requesterID})
	if err != nil {
		return fmt.Errorf("mongo: delete idea %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return r.missOrForbidden(ctx, id)
	}
	return nil
}

// Vote 用一条带管道的 FindOneAndUpdate 完成切换，两个数组都从更新前的文档计算。
// 返回更新前的文档，在内存中重放同一转移得到结果视图。
func (r *MongoIdeaRepository) Vote(ctx context.Context, id, userID string, dir domain.VoteDirection) (*domain.Idea, domain.VoteTransition, error) {
	var before ideaDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		votePipeline(userID, dir, r.now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.VoteTransition{}, repository.ErrIdeaNotFound
		}
		return nil, domain.VoteTransition{}, fmt.Errorf("mongo: vote on idea %s: %w", id, err)
	}
	idea := before.toDomain()
	tr := idea.ApplyVote(userID, dir)
	return idea, tr, nil
}

func (r *MongoIdeaRepository) AddComment(ctx context.Context, id string, comment domain.Comment) (*domain.Idea, error) {
	var doc ideaDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"comments": commentDoc{Username: comment.Username, Text: comment.Text, CreatedAt: comment.CreatedAt}},
			"$set":  bson.M{"updated_at": comment.CreatedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrIdeaNotFound
		}
		return nil, fmt.Errorf("mongo: add comment to %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (r *MongoIdeaRepository) DistinctTags(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "tags", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo: distinct tags: %w", err)
	}
	tags := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (r *MongoIdeaRepository) missOrForbidden(ctx context.Context, id string) error {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongo: check idea %s: %w", id, err)
	}
	if n == 0 {
		return repository.ErrIdeaNotFound
	}
	return repository.ErrForbidden
}

// --- 查询构造 ---

// listFilter 构造列表的匹配条件，标题搜索按字面子串匹配
func listFilter(f domain.IdeaFilter) bson.M {
	m := bson.M{}
	if f.Search != "" {
		m["title"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	if len(f.Tags) > 0 {
		m["tags"] = bson.M{"$in": f.Tags}
	}
	if f.CreatorID != "" {
		m["creator"] = f.CreatorID
	}
	return m
}

func listPipeline(match bson.M, offset, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: int64(offset)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$project", Value: bson.D{
			{Key: "title", Value: 1},
			{Key: "description", Value: 1},
			{Key: "tags", Value: 1},
			{Key: "username", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "upvote_count", Value: bson.M{"$size": bson.M{"$ifNull": bson.A{"$upvotes", bson.A{}}}}},
			{Key: "downvote_count", Value: bson.M{"$size": bson.M{"$ifNull": bson.A{"$downvotes", bson.A{}}}}},
		}}},
	}
}

func patchSet(p domain.IdeaPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.SetTags {
		set["tags"] = nonNil(p.Tags)
	}
	return set
}

// votePipeline 构造切换管道：目标集合中已有该用户则移除，否则追加；
// 另一个集合中总是移除该用户。
func votePipeline(userID string, dir domain.VoteDirection, now time.Time) mongo.Pipeline {
	target, other := "upvotes", "downvotes"
	if dir == domain.VoteDown {
		target, other = other, target
	}
	targetArr := bson.M{"$ifNull": bson.A{"$" + target, bson.A{}}}
	otherArr := bson.M{"$ifNull": bson.A{"$" + other, bson.A{}}}
	without := func(arr bson.M) bson.M {
		return bson.M{"$filter": bson.M{
			"input": arr,
			"cond":  bson.M{"$ne": bson.A{"$$this", userID}},
		}}
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: target, Value: bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{userID, targetArr}},
				without(targetArr),
				bson.M{"$concatArrays": bson.A{targetArr, bson.A{userID}}},
			}}},
			{Key: other, Value: without(otherArr)},
			{Key: "updated_at", Value: now},
		}}},
	}
}

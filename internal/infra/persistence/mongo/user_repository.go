package mongopersistence

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"idea-board/internal/domain"
	"idea-board/internal/repository"
)

// MongoUserRepository 是 UserRepository 接口的 MongoDB 实现
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository 创建 MongoUserRepository 实例
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	if db == nil {
		panic("mongo database cannot be nil for MongoUserRepository")
	}
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// Create 插入新用户，email 唯一索引冲突时返回 ErrDuplicateEntry
func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.coll.InsertOne(ctx, &userDoc{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.Password,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("mongo: insert user (email: %s): %w", user.Email, err)
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return doc.toDomain(), nil
}

package repository

import (
	"context"

	"idea-board/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByEmail 根据邮箱查找用户，不存在时返回 ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户，不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// Create 创建新用户。邮箱重复时返回 ErrDuplicateEntry。
	Create(ctx context.Context, user *domain.User) error
}

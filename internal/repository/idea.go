package repository

import (
	"context"

	"idea-board/internal/domain"
)

// IdeaRepository 定义了 Idea 文档的存储操作。
// 所有修改操作都必须是单次原子操作，不允许"读-改-写"丢失更新。
type IdeaRepository interface {
	// Create 保存新 Idea，ID 和时间戳由调用方设置。
	Create(ctx context.Context, idea *domain.Idea) error

	// FindByID 返回完整的 Idea（含投票者和评论），不存在时返回 ErrIdeaNotFound。
	FindByID(ctx context.Context, id string) (*domain.Idea, error)

	// List 按创建时间倒序返回一页摘要和匹配总数。
	List(ctx context.Context, filter domain.IdeaFilter, offset, limit int) ([]domain.IdeaSummary, int64, error)

	// Update 仅当 requesterID 为创建者时应用 patch。
	// 不存在返回 ErrIdeaNotFound，非创建者返回 ErrForbidden。
	Update(ctx context.Context, id, requesterID string, patch domain.IdeaPatch) (*domain.Idea, error)

	// Delete 仅当 requesterID 为创建者时删除，错误约定同 Update。
	Delete(ctx context.Context, id, requesterID string) error

	// Vote 原子地执行投票状态转移，返回转移后的 Idea。
	Vote(ctx context.Context, id, userID string, dir domain.VoteDirection) (*domain.Idea, domain.VoteTransition, error)

	// AddComment 把评论追加到末尾，不存在时返回 ErrIdeaNotFound。
	AddComment(ctx context.Context, id string, comment domain.Comment) (*domain.Idea, error)

	// DistinctTags 返回所有 Idea 使用过的标签（去重、排序）。
	DistinctTags(ctx context.Context) ([]string, error)
}

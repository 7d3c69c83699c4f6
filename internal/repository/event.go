package repository

import (
	"context"

	"idea-board/internal/domain"
)

// EventRepository 持久化 Idea 活动日志。
type EventRepository interface {
	// Save 保存事件，同一 ID 重复保存是幂等的（任务重试）。
	Save(ctx context.Context, event domain.IdeaEvent) error

	// ListByIdea 按发生时间倒序返回某个 Idea 的最近事件。
	ListByIdea(ctx context.Context, ideaID string, limit int) ([]domain.IdeaEvent, error)
}

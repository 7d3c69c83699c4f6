package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"idea-board/internal/domain"
)

// GormEventRepository 是 EventRepository 接口的 GORM 实现
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository 创建 GormEventRepository 实例
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	if db == nil {
		panic("database connection cannot be nil for GormEventRepository")
	}
	return &GormEventRepository{db: db}
}

// Save 写入事件，主键冲突时忽略，任务重试不会产生重复记录
func (r *GormEventRepository) Save(ctx context.Context, event domain.IdeaEvent) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(eventToRow(event)).Error
	if err != nil {
		return fmt.Errorf("gorm: save idea event %s: %w", event.ID, err)
	}
	return nil
}

// ListByIdea 按发生时间倒序返回最近的事件
func (r *GormEventRepository) ListByIdea(ctx context.Context, ideaID string, limit int) ([]domain.IdeaEvent, error) {
	var rows []eventRow
	err := r.db.WithContext(ctx).
		Where("idea_id = ?", ideaID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list events for idea %s: %w", ideaID, err)
	}
	events := make([]domain.IdeaEvent, 0, len(rows))
	for i := range rows {
		events = append(events, eventFromRow(&rows[i]))
	}
	return events, nil
}

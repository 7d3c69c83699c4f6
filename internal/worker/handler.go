package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"idea-board/internal/repository"
	"idea-board/internal/tasks"
)

// EventPersistenceHandler 处理活动日志持久化任务
type EventPersistenceHandler struct {
	eventRepo repository.EventRepository
}

// NewEventPersistenceHandler 创建 Handler 实例
func NewEventPersistenceHandler(eventRepo repository.EventRepository) *EventPersistenceHandler {
	if eventRepo == nil {
		panic("EventRepository cannot be nil for EventPersistenceHandler")
	}
	return &EventPersistenceHandler{eventRepo: eventRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *EventPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})

	var payload tasks.EventPersistencePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Event.ID == "" || payload.Event.IdeaID == "" {
		logCtx.Error("Task payload is missing event or idea id")
		return fmt.Errorf("incomplete event payload: %w", asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"event_id": payload.Event.ID, "idea_id": payload.Event.IdeaID})

	if err := h.eventRepo.Save(ctx, payload.Event); err != nil {
		logCtx.WithError(err).Error("Failed to save idea event")
		return fmt.Errorf("failed to save event %s: %w", payload.Event.ID, err)
	}

	logCtx.Debug("Idea event persisted")
	return nil
}

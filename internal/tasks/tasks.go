package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"idea-board/internal/domain"
)

// 定义任务类型常量
const (
	TypeEventPersistence = "idea_event:persist" // 活动日志持久化任务类型
)

// EventQueue 是活动日志任务所在的队列，worker 只消费这一个队列
const EventQueue = "low"

const eventMaxRetry = 5

// EventPersistencePayload 定义了活动日志持久化任务的数据结构
type EventPersistencePayload struct {
	Event domain.IdeaEvent `json:"event"`
}

// NewEventPersistenceTask 创建一个新的活动日志持久化任务。
// 任务 ID 使用事件 ID，重复入队会被 asynq 拒绝。
func NewEventPersistenceTask(event domain.IdeaEvent) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(EventPersistencePayload{Event: event})
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return asynq.NewTask(TypeEventPersistence, payloadBytes,
		asynq.TaskID(event.ID),
		asynq.Queue(EventQueue),
		asynq.MaxRetry(eventMaxRetry),
	), nil
}

// Enqueuer 是 asynq.Client 的最小接口，便于测试
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuePublisher 把 Idea 事件作为后台任务入队，由 worker 写入活动日志
type QueuePublisher struct {
	client Enqueuer
}

// NewQueuePublisher 创建 QueuePublisher 实例
func NewQueuePublisher(client Enqueuer) *QueuePublisher {
	if client == nil {
		panic("asynq client cannot be nil for QueuePublisher")
	}
	return &QueuePublisher{client: client}
}

func (p *QueuePublisher) Publish(ctx context.Context, event domain.IdeaEvent) error {
	task, err := NewEventPersistenceTask(event)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil // 已经入队过
		}
		return fmt.Errorf("enqueue event %s: %w", event.ID, err)
	}
	return nil
}

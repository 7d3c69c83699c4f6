package service

import (
	"context"
	"errors"

	"idea-board/internal/domain"
	"idea-board/internal/repository"

	"github.com/sirupsen/logrus"
)

// EventPublisher 把 Idea 变更事件投递给下游（活动日志、实时推送）。
// 实现需要自行处理重试，调用方只记录错误。
type EventPublisher interface {
	Publish(ctx context.Context, event domain.IdeaEvent) error
}

// NoopPublisher 丢弃所有事件。
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.IdeaEvent) error { return nil }

// MultiPublisher 依次投递给多个 publisher，汇总所有错误。
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event domain.IdeaEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StorePublisher 同步写入活动日志，用于未配置任务队列的部署。
type StorePublisher struct {
	Events repository.EventRepository
}

func (p StorePublisher) Publish(ctx context.Context, event domain.IdeaEvent) error {
	return p.Events.Save(ctx, event)
}

// publish 投递事件，失败只记录日志，不影响请求结果。
func (s *IdeaService) publish(ctx context.Context, event domain.IdeaEvent) {
	event.ID = s.newID()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"idea_id": event.IdeaID,
			"type":    event.Type,
		}).Error("Failed to publish idea event")
	}
}

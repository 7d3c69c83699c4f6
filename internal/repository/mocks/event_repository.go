package mocks

import (
	"context"

	"idea-board/internal/domain"

	"github.com/stretchr/testify/mock"
)

// EventRepository 是 repository.EventRepository 的 Mock。
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Save(ctx context.Context, event domain.IdeaEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventRepository) ListByIdea(ctx context.Context, ideaID string, limit int) ([]domain.IdeaEvent, error) {
	args := m.Called(ctx, ideaID, limit)
	events, _ := args.Get(0).([]domain.IdeaEvent)
	return events, args.Error(1)
}

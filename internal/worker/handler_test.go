package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"idea-board/internal/domain"
	"idea-board/internal/repository/mocks"
	"idea-board/internal/tasks"
)

func TestEventPersistenceHandler_SavesEvent(t *testing.T) {
	// Arrange
	repo := new(mocks.EventRepository)
	h := NewEventPersistenceHandler(repo)
	ev := domain.IdeaEvent{ID: "e1", IdeaID: "i1", Type: domain.EventIdeaVoted, Detail: "Upvote removed"}
	task, err := tasks.NewEventPersistenceTask(ev)
	require.NoError(t, err)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(got domain.IdeaEvent) bool {
		return got.ID == "e1" && got.Detail == "Upvote removed"
	})).Return(nil).Once()

	// Act & Assert
	assert.NoError(t, h.ProcessTask(context.Background(), task))
	repo.AssertExpectations(t)
}

func TestEventPersistenceHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	repo := new(mocks.EventRepository)
	h := NewEventPersistenceHandler(repo)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeEventPersistence, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeEventPersistence, []byte(`{"event":{}}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEventPersistenceHandler_SaveErrorIsRetried(t *testing.T) {
	repo := new(mocks.EventRepository)
	h := NewEventPersistenceHandler(repo)
	task, err := tasks.NewEventPersistenceTask(domain.IdeaEvent{ID: "e1", IdeaID: "i1"})
	require.NoError(t, err)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	err = h.ProcessTask(context.Background(), task)

	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "存储错误应该允许重试")
}

func TestQueues_OnlyEventQueue(t *testing.T) {
	q := queues()
	assert.Len(t, q, 1, "没有任务使用的队列不应该被轮询")
	assert.Contains(t, q, tasks.EventQueue)
}

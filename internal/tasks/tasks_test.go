package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idea-board/internal/domain"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func TestNewEventPersistenceTask(t *testing.T) {
	ev := domain.IdeaEvent{ID: "e1", IdeaID: "i1", Type: domain.EventIdeaCommented, CommentCount: 3}

	task, err := NewEventPersistenceTask(ev)

	require.NoError(t, err)
	assert.Equal(t, TypeEventPersistence, task.Type())
	var payload EventPersistencePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "i1", payload.Event.IdeaID)
	assert.Equal(t, 3, payload.Event.CommentCount)
}

func TestQueuePublisher(t *testing.T) {
	f := &fakeEnqueuer{}
	p := NewQueuePublisher(f)

	require.NoError(t, p.Publish(context.Background(), domain.IdeaEvent{ID: "e1"}))
	require.Len(t, f.tasks, 1)
	assert.Equal(t, TypeEventPersistence, f.tasks[0].Type())

	f.err = asynq.ErrTaskIDConflict
	assert.NoError(t, p.Publish(context.Background(), domain.IdeaEvent{ID: "e1"}), "重复入队视为成功")

	f.err = errors.New("redis down")
	assert.Error(t, p.Publish(context.Background(), domain.IdeaEvent{ID: "e2"}))
}

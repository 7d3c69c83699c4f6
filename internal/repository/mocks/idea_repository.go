package mocks

import (
	"context"

	"idea-board/internal/domain"

	"github.com/stretchr/testify/mock"
)

// IdeaRepository 是 repository.IdeaRepository 的 Mock。
type IdeaRepository struct {
	mock.Mock
}

func (m *IdeaRepository) Create(ctx context.Context, idea *domain.Idea) error {
	args := m.Called(ctx, idea)
	return args.Error(0)
}

func (m *IdeaRepository) FindByID(ctx context.Context, id string) (*domain.Idea, error) {
	args := m.Called(ctx, id)
	idea, _ := args.Get(0).(*domain.Idea)
	return idea, args.Error(1)
}

func (m *IdeaRepository) List(ctx context.Context, filter domain.IdeaFilter, offset, limit int) ([]domain.IdeaSummary, int64, error) {
	args := m.Called(ctx, filter, offset, limit)
	items, _ := args.Get(0).([]domain.IdeaSummary)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *IdeaRepository) Update(ctx context.Context, id, requesterID string, patch domain.IdeaPatch) (*domain.Idea, error) {
	args := m.Called(ctx, id, requesterID, patch)
	idea, _ := args.Get(0).(*domain.Idea)
	return idea, args.Error(1)
}

func (m *IdeaRepository) Delete(ctx context.Context, id, requesterID string) error {
	args := m.Called(ctx, id, requesterID)
	return args.Error(0)
}

func (m *IdeaRepository) Vote(ctx context.Context, id, userID string, dir domain.VoteDirection) (*domain.Idea, domain.VoteTransition, error) {
	args := m.Called(ctx, id, userID, dir)
	idea, _ := args.Get(0).(*domain.Idea)
	tr, _ := args.Get(1).(domain.VoteTransition)
	return idea, tr, args.Error(2)
}

func (m *IdeaRepository) AddComment(ctx context.Context, id string, comment domain.Comment) (*domain.Idea, error) {
	args := m.Called(ctx, id, comment)
	idea, _ := args.Get(0).(*domain.Idea)
	return idea, args.Error(1)
}

func (m *IdeaRepository) DistinctTags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tags, _ := args.Get(0).([]string)
	return tags, args.Error(1)
}

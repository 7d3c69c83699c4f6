package service

import (
	"context"
	"math"
	"strings"
	"time"

	"idea-board/internal/domain"
	"idea-board/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPage          = 1
	DefaultPageSize      = 10
	MaxPageSize          = 100
	DefaultActivityLimit = 50
	maxTitleLen          = 200
	maxTagLen            = 100
)

// maxListOffset 限制传给存储层的偏移量，超出时必然是空页。
const maxListOffset = math.MaxInt32

// ListQuery 是列表查询参数，Page/PageSize 由 handler 解析并填充默认值。
type ListQuery struct {
	Page      int
	PageSize  int
	Search    string
	Tags      []string
	CreatorID string
}

// normalize 把非正数钳制为 1，并限制单页最大条数。
func (q ListQuery) normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 1
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Tags = domain.NormalizeTags(q.Tags)
	return q
}

// offset 返回 (Page-1)*PageSize，乘法溢出或超过 maxListOffset 时取 maxListOffset。
func (q ListQuery) offset() int {
	if q.Page-1 > maxListOffset/q.PageSize {
		return maxListOffset
	}
	return (q.Page - 1) * q.PageSize
}

// IdeaInput 是创建 Idea 时的输入。
type IdeaInput struct {
	Title       string
	Description string
	Tags        []string
}

// IdeaService 实现 Idea 的增删改查、投票和评论。
type IdeaService struct {
	ideaRepo  repository.IdeaRepository
	eventRepo repository.EventRepository
	publisher EventPublisher
	now       func() time.Time
	newID     func() string
}

// NewIdeaService 创建 IdeaService 实例。publisher 为 nil 时不投递事件。
func NewIdeaService(ideaRepo repository.IdeaRepository, eventRepo repository.EventRepository, publisher EventPublisher) *IdeaService {
	if ideaRepo == nil || eventRepo == nil {
		panic("IdeaRepository and EventRepository must be non-nil for IdeaService")
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &IdeaService{
		ideaRepo:  ideaRepo,
		eventRepo: eventRepo,
		publisher: publisher,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// List 返回按创建时间倒序的一页结果。超出末页时返回空列表。
func (s *IdeaService) List(ctx context.Context, q ListQuery) (*domain.IdeaPage, error) {
	q = q.normalize()
	filter := domain.IdeaFilter{Search: q.Search, Tags: q.Tags, CreatorID: q.CreatorID}

	items, total, err := s.ideaRepo.List(ctx, filter, q.offset(), q.PageSize)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"page": q.Page, "search": q.Search}).Error("Failed to list ideas")
		return nil, ErrInternalServer
	}
	if items == nil {
		items = []domain.IdeaSummary{}
	}
	return &domain.IdeaPage{
		Ideas:       items,
		CurrentPage: q.Page,
		TotalPages:  int((total + int64(q.PageSize) - 1) / int64(q.PageSize)),
	}, nil
}

// GetByID 返回完整的 Idea，包括投票者和评论。
func (s *IdeaService) GetByID(ctx context.Context, id string) (*domain.Idea, error) {
	idea, err := s.ideaRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.repoError(err, "Failed to get idea", id)
	}
	return idea, nil
}

// Create 创建 Idea，标题为空时不写入任何数据。
func (s *IdeaService) Create(ctx context.Context, actor domain.Identity, in IdeaInput) (*domain.Idea, error) {
	logCtx := logrus.WithField("user_id", actor.UserID)

	title, err := validateTitle(in.Title)
	if err != nil {
		logCtx.WithError(err).Warn("Idea creation rejected")
		return nil, err
	}
	tags := domain.NormalizeTags(in.Tags)
	if err := validateTags(tags); err != nil {
		logCtx.WithError(err).Warn("Idea creation rejected")
		return nil, err
	}

	now := s.now().UTC()
	idea := &domain.Idea{
		ID:          s.newID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Tags:        tags,
		CreatorID:   actor.UserID,
		Username:    actor.Username,
		Upvotes:     []string{},
		Downvotes:   []string{},
		Comments:    []domain.Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.ideaRepo.Create(ctx, idea); err != nil {
		logCtx.WithError(err).Error("Failed to save new idea")
		return nil, ErrInternalServer
	}

	logCtx.WithField("idea_id", idea.ID).Info("Idea created")
	s.publish(ctx, domain.NewIdeaEvent(domain.EventIdeaCreated, idea.ID, actor, idea, now))
	return idea, nil
}

// Update 修改标题、描述或标签，只有创建者可以修改。
func (s *IdeaService) Update(ctx context.Context, id string, actor domain.Identity, patch domain.IdeaPatch) (*domain.Idea, error) {
	logCtx := logrus.WithFields(logrus.Fields{"idea_id": id, "user_id": actor.UserID})

	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			logCtx.WithError(err).Warn("Idea update rejected")
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	if patch.SetTags {
		patch.Tags = domain.NormalizeTags(patch.Tags)
		if err := validateTags(patch.Tags); err != nil {
			logCtx.WithError(err).Warn("Idea update rejected")
			return nil, err
		}
	}

	idea, err := s.ideaRepo.Update(ctx, id, actor.UserID, patch)
	if err != nil {
		return nil, s.repoError(err, "Failed to update idea", id)
	}

	logCtx.Info("Idea updated")
	s.publish(ctx, domain.NewIdeaEvent(domain.EventIdeaUpdated, id, actor, idea, s.now().UTC()))
	return idea, nil
}

// Delete 物理删除 Idea 及其投票和评论，只有创建者可以删除。
func (s *IdeaService) Delete(ctx context.Context, id string, actor domain.Identity) error {
	if err := s.ideaRepo.Delete(ctx, id, actor.UserID); err != nil {
		return s.repoError(err, "Failed to delete idea", id)
	}
	logrus.WithFields(logrus.Fields{"idea_id": id, "user_id": actor.UserID}).Info("Idea deleted")
	s.publish(ctx, domain.NewIdeaEvent(domain.EventIdeaDeleted, id, actor, nil, s.now().UTC()))
	return nil
}

// Vote 执行一次投票切换，返回更新后的 Idea 以及状态转移。
func (s *IdeaService) Vote(ctx context.Context, id string, actor domain.Identity, dir domain.VoteDirection) (*domain.Idea, domain.VoteTransition, error) {
	if dir != domain.VoteUp && dir != domain.VoteDown {
		return nil, domain.VoteTransition{}, validationError("unknown vote direction %q", dir)
	}

	idea, tr, err := s.ideaRepo.Vote(ctx, id, actor.UserID, dir)
	if err != nil {
		return nil, domain.VoteTransition{}, s.repoError(err, "Failed to apply vote", id)
	}

	logrus.WithFields(logrus.Fields{
		"idea_id": id,
		"user_id": actor.UserID,
		"from":    tr.From.String(),
		"to":      tr.To.String(),
	}).Debug("Vote applied")

	ev := domain.NewIdeaEvent(domain.EventIdeaVoted, id, actor, idea, s.now().UTC())
	ev.Detail = tr.Message()
	s.publish(ctx, ev)
	return idea, tr, nil
}

// AddComment 在评论序列末尾追加一条评论。
func (s *IdeaService) AddComment(ctx context.Context, id string, actor domain.Identity, text string) (*domain.Idea, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		logrus.WithFields(logrus.Fields{"idea_id": id, "user_id": actor.UserID}).Warn("Empty comment rejected")
		return nil, validationError("comment text is required")
	}

	now := s.now().UTC()
	idea, err := s.ideaRepo.AddComment(ctx, id, domain.Comment{
		Username:  actor.Username,
		Text:      text,
		CreatedAt: now,
	})
	if err != nil {
		return nil, s.repoError(err, "Failed to add comment", id)
	}

	s.publish(ctx, domain.NewIdeaEvent(domain.EventIdeaCommented, id, actor, idea, now))
	return idea, nil
}

// Tags 返回所有 Idea 中出现过的标签，已排序去重。
func (s *IdeaService) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.ideaRepo.DistinctTags(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list tags")
		return nil, ErrInternalServer
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// Activity 返回 Idea 的最近事件，最新的在前。
func (s *IdeaService) Activity(ctx context.Context, id string, limit int) ([]domain.IdeaEvent, error) {
	if limit < 1 {
		limit = DefaultActivityLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	// 先确认 Idea 存在，已删除的 Idea 不再暴露历史
	if _, err := s.ideaRepo.FindByID(ctx, id); err != nil {
		return nil, s.repoError(err, "Failed to load idea for activity", id)
	}
	events, err := s.eventRepo.ListByIdea(ctx, id, limit)
	if err != nil {
		logrus.WithError(err).WithField("idea_id", id).Error("Failed to list idea activity")
		return nil, ErrInternalServer
	}
	if events == nil {
		events = []domain.IdeaEvent{}
	}
	return events, nil
}

func (s *IdeaService) repoError(err error, msg, ideaID string) error {
	mapped := mapIdeaRepoError(err)
	logCtx := logrus.WithError(err).WithField("idea_id", ideaID)
	if mapped == ErrInternalServer {
		logCtx.Error(msg)
	} else {
		logCtx.Warn(msg)
	}
	return mapped
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", validationError("title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return "", validationError("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

// validateTags 要求标签已经过 NormalizeTags。
func validateTags(tags []string) error {
	for _, tag := range tags {
		if len([]rune(tag)) > maxTagLen {
			return validationError("tag must be at most %d characters", maxTagLen)
		}
	}
	return nil
}

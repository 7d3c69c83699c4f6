package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"idea-board/internal/domain"
	"idea-board/internal/repository"
)

// 投票 CAS 失败后的最大尝试次数
const maxVoteAttempts = 3

// errVoteRace 表示条件语句没有命中，说明投票状态在读取后被并发修改
var errVoteRace = errors.New("vote state changed concurrently")

// GormIdeaRepository 是 IdeaRepository 接口的 GORM 实现
type GormIdeaRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormIdeaRepository 创建 GormIdeaRepository 实例
func NewGormIdeaRepository(db *gorm.DB) *GormIdeaRepository {
	if db == nil {
		panic("database connection cannot be nil for GormIdeaRepository")
	}
	return &GormIdeaRepository{db: db, now: time.Now}
}

// Create 在一个事务中写入 Idea 和标签
func (r *GormIdeaRepository) Create(ctx context.Context, idea *domain.Idea) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := ideaRow{
			ID:          idea.ID,
			Title:       idea.Title,
			Description: idea.Description,
			CreatorID:   idea.CreatorID,
			Username:    idea.Username,
			CreatedAt:   idea.CreatedAt,
			UpdatedAt:   idea.UpdatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("gorm: create idea: %w", err)
		}
		if len(idea.Tags) > 0 {
			tags := tagRows(idea.ID, idea.Tags)
			if err := tx.Create(&tags).Error; err != nil {
				return fmt.Errorf("gorm: create idea tags: %w", err)
			}
		}
		return nil
	})
}

// FindByID 返回完整的 Idea
func (r *GormIdeaRepository) FindByID(ctx context.Context, id string) (*domain.Idea, error) {
	return loadIdea(r.db.WithContext(ctx), id)
}

// List 按创建时间倒序分页，返回当前页和匹配总数
func (r *GormIdeaRepository) List(ctx context.Context, filter domain.IdeaFilter, offset, limit int) ([]domain.IdeaSummary, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := applyFilter(db.Model(&ideaRow{}), filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count ideas: %w", err)
	}
	if total == 0 || int64(offset) >= total {
		return []domain.IdeaSummary{}, total, nil
	}

	var rows []ideaRow
	err := applyFilter(db.Model(&ideaRow{}), filter).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list ideas: %w", err)
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	tags, err := loadTags(db, ids)
	if err != nil {
		return nil, 0, err
	}
	counts, err := loadVoteCounts(db, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.IdeaSummary, 0, len(rows))
	for _, row := range rows {
		c := counts[row.ID]
		itemTags := tags[row.ID]
		if itemTags == nil {
			itemTags = []string{}
		}
		items = append(items, domain.IdeaSummary{
			ID:            row.ID,
			Title:         row.Title,
			Description:   row.Description,
			Tags:          itemTags,
			Username:      row.Username,
			CreatedAt:     row.CreatedAt,
			UpvoteCount:   c.up,
			DownvoteCount: c.down,
		})
	}
	return items, total, nil
}

// Update 修改标题、描述或标签，非创建者返回 ErrForbidden
func (r *GormIdeaRepository) Update(ctx context.Context, id, requesterID string, patch domain.IdeaPatch) (*domain.Idea, error) {
	var idea *domain.Idea
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkOwner(tx, id, requesterID); err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": r.now().UTC()}
		if patch.Title != nil {
			updates["title"] = *patch.Title
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		res := tx.Model(&ideaRow{}).Where("id = ? AND creator_id = ?", id, requesterID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("gorm: update idea %s: %w", id, res.Error)
		}

		if patch.SetTags {
			if err := tx.Where("idea_id = ?", id).Delete(&tagRow{}).Error; err != nil {
				return fmt.Errorf("gorm: clear idea tags: %w", err)
			}
			if len(patch.Tags) > 0 {
				tags := tagRows(id, patch.Tags)
				if err := tx.Create(&tags).Error; err != nil {
					return fmt.Errorf("gorm: replace idea tags: %w", err)
				}
			}
		}

		var err error
		idea, err = loadIdea(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return idea, nil
}

// Delete 物理删除 Idea，连同标签、投票和评论
func (r *GormIdeaRepository) Delete(ctx context.Context, id, requesterID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkOwner(tx, id, requesterID); err != nil {
			return err
		}
		for _, model := range []interface{}{&tagRow{}, &voteRow{}, &commentRow{}} {
			if err := tx.Where("idea_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("gorm: delete idea children: %w", err)
			}
		}
		if err := tx.Where("id = ?", id).Delete(&ideaRow{}).Error; err != nil {
			return fmt.Errorf("gorm: delete idea %s: %w", id, err)
		}
		return nil
	})
}

// Vote 执行一次投票切换。
// 每次转移都是带前置条件的单条语句，条件不满足说明有并发修改，整个事务回滚后重试。
func (r *GormIdeaRepository) Vote(ctx context.Context, id, userID string, dir domain.VoteDirection) (*domain.Idea, domain.VoteTransition, error) {
	for attempt := 1; attempt <= maxVoteAttempts; attempt++ {
		idea, tr, err := r.voteOnce(ctx, id, userID, dir)
		if errors.Is(err, errVoteRace) {
			continue
		}
		return idea, tr, err
	}
	return nil, domain.VoteTransition{}, fmt.Errorf("gorm: vote on idea %s: %w", id, repository.ErrConflict)
}

func (r *GormIdeaRepository) voteOnce(ctx context.Context, id, userID string, dir domain.VoteDirection) (*domain.Idea, domain.VoteTransition, error) {
	var (
		idea *domain.Idea
		tr   domain.VoteTransition
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkExists(tx, id); err != nil {
			return err
		}

		var current voteRow
		from := domain.VoteNone
		err := tx.Where("idea_id = ? AND user_id = ?", id, userID).Take(&current).Error
		switch {
		case err == nil:
			from = stateOf(current.Direction)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("gorm: read vote: %w", err)
		}
		to := domain.NextVoteState(from, dir)
		now := r.now().UTC()

		var res *gorm.DB
		switch {
		case from == domain.VoteNone:
			res = tx.Create(&voteRow{IdeaID: id, UserID: userID, Direction: directionOf(to), CreatedAt: now})
			if res.Error != nil && isDuplicateKeyError(res.Error) {
				return errVoteRace
			}
		case to == domain.VoteNone:
			res = tx.Where("idea_id = ? AND user_id = ? AND direction = ?", id, userID, current.Direction).
				Delete(&voteRow{})
		default:
			// 换方向时刷新时间，使该用户排到目标集合末尾
			res = tx.Model(&voteRow{}).
				Where("idea_id = ? AND user_id = ? AND direction = ?", id, userID, current.Direction).
				Updates(map[string]interface{}{"direction": directionOf(to), "created_at": now})
		}
		if res.Error != nil {
			return fmt.Errorf("gorm: apply vote: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errVoteRace
		}

		if err := tx.Model(&ideaRow{}).Where("id = ?", id).Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("gorm: touch idea: %w", err)
		}

		idea, err = loadIdea(tx, id)
		tr = domain.VoteTransition{Direction: dir, From: from, To: to}
		return err
	})
	if err != nil {
		return nil, domain.VoteTransition{}, err
	}
	return idea, tr, nil
}

// AddComment 追加评论
func (r *GormIdeaRepository) AddComment(ctx context.Context, id string, comment domain.Comment) (*domain.Idea, error) {
	var idea *domain.Idea
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkExists(tx, id); err != nil {
			return err
		}
		row := commentRow{IdeaID: id, Username: comment.Username, Text: comment.Text, CreatedAt: comment.CreatedAt}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("gorm: add comment: %w", err)
		}
		if err := tx.Model(&ideaRow{}).Where("id = ?", id).Update("updated_at", comment.CreatedAt).Error; err != nil {
			return fmt.Errorf("gorm: touch idea: %w", err)
		}
		var err error
		idea, err = loadIdea(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return idea, nil
}

// DistinctTags 返回所有标签，按名称排序
func (r *GormIdeaRepository) DistinctTags(ctx context.Context) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).Model(&tagRow{}).
		Distinct("name").Order("name ASC").
		Pluck("name", &tags).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list distinct tags: %w", err)
	}
	return tags, nil
}

// --- 私有辅助函数 ---

func applyFilter(q *gorm.DB, filter domain.IdeaFilter) *gorm.DB {
	if filter.Search != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}
	if len(filter.Tags) > 0 {
		sub := q.Session(&gorm.Session{NewDB: true}).
			Model(&tagRow{}).Select("idea_id").Where("name IN ?", filter.Tags)
		q = q.Where("id IN (?)", sub)
	}
	if filter.CreatorID != "" {
		q = q.Where("creator_id = ?", filter.CreatorID)
	}
	return q
}

// escapeLike 转义 LIKE 通配符，搜索词按字面匹配
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func checkExists(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&ideaRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("gorm: check idea %s: %w", id, err)
	}
	if count == 0 {
		return repository.ErrIdeaNotFound
	}
	return nil
}

func checkOwner(tx *gorm.DB, id, requesterID string) error {
	var row ideaRow
	err := tx.Select("id", "creator_id").Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrIdeaNotFound
		}
		return fmt.Errorf("gorm: find idea %s: %w", id, err)
	}
	if row.CreatorID != requesterID {
		return repository.ErrForbidden
	}
	return nil
}

func loadIdea(db *gorm.DB, id string) (*domain.Idea, error) {
	var row ideaRow
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrIdeaNotFound
		}
		return nil, fmt.Errorf("gorm: find idea %s: %w", id, err)
	}

	idea := &domain.Idea{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		CreatorID:   row.CreatorID,
		Username:    row.Username,
		Tags:        []string{},
		Upvotes:     []string{},
		Downvotes:   []string{},
		Comments:    []domain.Comment{},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}

	tags, err := loadTags(db, []string{id})
	if err != nil {
		return nil, err
	}
	if t := tags[id]; t != nil {
		idea.Tags = t
	}

	var votes []voteRow
	if err := db.Where("idea_id = ?", id).Order("created_at ASC").Order("user_id ASC").Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("gorm: load votes for %s: %w", id, err)
	}
	for _, v := range votes {
		switch stateOf(v.Direction) {
		case domain.VoteUpvoted:
			idea.Upvotes = append(idea.Upvotes, v.UserID)
		case domain.VoteDownvoted:
			idea.Downvotes = append(idea.Downvotes, v.UserID)
		}
	}

	var comments []commentRow
	if err := db.Where("idea_id = ?", id).Order("id ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("gorm: load comments for %s: %w", id, err)
	}
	for _, c := range comments {
		idea.Comments = append(idea.Comments, domain.Comment{Username: c.Username, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return idea, nil
}

func loadTags(db *gorm.DB, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []tagRow
	if err := db.Where("idea_id IN ?", ids).Order("idea_id").Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: load tags: %w", err)
	}
	for _, t := range rows {
		out[t.IdeaID] = append(out[t.IdeaID], t.Name)
	}
	return out, nil
}

type voteCounts struct{ up, down int }

func loadVoteCounts(db *gorm.DB, ids []string) (map[string]voteCounts, error) {
	out := make(map[string]voteCounts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		IdeaID    string
		Direction string
		N         int
	}
	err := db.Model(&voteRow{}).
		Select("idea_id, direction, COUNT(*) AS n").
		Where("idea_id IN ?", ids).
		Group("idea_id, direction").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: count votes: %w", err)
	}
	for _, r := range rows {
		c := out[r.IdeaID]
		switch stateOf(r.Direction) {
		case domain.VoteUpvoted:
			c.up = r.N
		case domain.VoteDownvoted:
			c.down = r.N
		}
		out[r.IdeaID] = c
	}
	return out, nil
}

func stateOf(direction string) domain.VoteState {
	switch domain.VoteDirection(direction) {
	case domain.VoteUp:
		return domain.VoteUpvoted
	case domain.VoteDown:
		return domain.VoteDownvoted
	}
	return domain.VoteNone
}

func directionOf(s domain.VoteState) string {
	if s == domain.VoteDownvoted {
		return string(domain.VoteDown)
	}
	return string(domain.VoteUp)
}

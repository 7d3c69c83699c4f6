package gormpersistence

import (
	"time"

	"idea-board/internal/domain"
)

// 表结构与 domain 模型分离：投票、标签、评论拆成子表，
// 以便用条件语句完成原子更新。

type userRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Username  string `gorm:"size:50;not null"`
	Email     string `gorm:"size:191;not null;uniqueIndex:idx_users_email"`
	Password  string `gorm:"size:255;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type ideaRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Title       string    `gorm:"size:200;not null"`
	Description string    `gorm:"type:text"`
	CreatorID   string    `gorm:"size:36;not null;index:idx_ideas_creator"`
	Username    string    `gorm:"size:50"`
	CreatedAt   time.Time `gorm:"index:idx_ideas_created_at"`
	UpdatedAt   time.Time
}

func (ideaRow) TableName() string { return "ideas" }

type tagRow struct {
	IdeaID   string `gorm:"primaryKey;size:36"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"size:100;not null;index:idx_idea_tags_name"`
}

func (tagRow) TableName() string { return "idea_tags" }

// voteRow 的主键 (idea_id, user_id) 保证一个用户对一个 Idea 只有一个投票方向。
type voteRow struct {
	IdeaID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36"`
	Direction string `gorm:"size:8;not null"`
	CreatedAt time.Time
}

func (voteRow) TableName() string { return "idea_votes" }

type commentRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	IdeaID    string `gorm:"size:36;not null;index:idx_idea_comments_idea"`
	Username  string `gorm:"size:50"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (commentRow) TableName() string { return "idea_comments" }

type eventRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	IdeaID        string `gorm:"size:36;not null;index:idx_idea_events_idea"`
	Type          string `gorm:"size:32;not null"`
	ActorID       string `gorm:"size:36"`
	ActorName     string `gorm:"size:50"`
	Detail        string `gorm:"size:255"`
	UpvoteCount   int
	DownvoteCount int
	CommentCount  int
	OccurredAt    time.Time `gorm:"index:idx_idea_events_occurred"`
}

func (eventRow) TableName() string { return "idea_events" }

// Models 返回需要迁移的全部表模型。
func Models() []interface{} {
	return []interface{}{
		&userRow{},
		&ideaRow{},
		&tagRow{},
		&voteRow{},
		&commentRow{},
		&eventRow{},
	}
}

func userFromRow(r *userRow) *domain.User {
	return &domain.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func userToRow(u *domain.User) *userRow {
	return &userRow{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func tagRows(ideaID string, tags []string) []tagRow {
	rows := make([]tagRow, 0, len(tags))
	for i, t := range tags {
		rows = append(rows, tagRow{IdeaID: ideaID, Position: i, Name: t})
	}
	return rows
}

func eventToRow(e domain.IdeaEvent) *eventRow {
	return &eventRow{
		ID:            e.ID,
		IdeaID:        e.IdeaID,
		Type:          string(e.Type),
		ActorID:       e.ActorID,
		ActorName:     e.ActorName,
		Detail:        e.Detail,
		UpvoteCount:   e.UpvoteCount,
		DownvoteCount: e.DownvoteCount,
		CommentCount:  e.CommentCount,
		OccurredAt:    e.OccurredAt,
	}
}

func eventFromRow(r *eventRow) domain.IdeaEvent {
	return domain.IdeaEvent{
		ID:            r.ID,
		IdeaID:        r.IdeaID,
		Type:          domain.IdeaEventType(r.Type),
		ActorID:       r.ActorID,
		ActorName:     r.ActorName,
		Detail:        r.Detail,
		UpvoteCount:   r.UpvoteCount,
		DownvoteCount: r.DownvoteCount,
		CommentCount:  r.CommentCount,
		OccurredAt:    r.OccurredAt,
	}
}

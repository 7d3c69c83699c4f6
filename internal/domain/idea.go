package domain

import (
	"strings"
	"time"
)

// Idea 表示用户发布的一个创意。
// Username 是创建时的用户名快照，用户改名后不会同步。
type Idea struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatorID   string    `json:"creator"`
	Username    string    `json:"username"`
	Upvotes     []string  `json:"upvotes"`   // 点赞用户 ID
	Downvotes   []string  `json:"downvotes"` // 点踩用户 ID
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment 是追加在 Idea 上的评论，按位置标识，不可编辑或删除。
type Comment struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// IdeaSummary 是列表视图中的投影，不包含评论和投票者。
type IdeaSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	Username      string    `json:"username"`
	CreatedAt     time.Time `json:"createdAt"`
	UpvoteCount   int       `json:"upvoteCount"`
	DownvoteCount int       `json:"downvoteCount"`
}

// IdeaPatch 描述 Update 允许修改的字段，nil 表示不修改。
type IdeaPatch struct {
	Title       *string
	Description *string
	Tags        []string
	SetTags     bool // Tags 为 nil 时区分"不修改"和"清空"
}

// IdeaFilter 描述列表查询条件。
type IdeaFilter struct {
	Search    string   // 标题子串，大小写不敏感
	Tags      []string // 任意一个命中即匹配
	CreatorID string
}

// IdeaPage 是一次分页查询的结果。
type IdeaPage struct {
	Ideas       []IdeaSummary `json:"ideas"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
}

// Summary 返回 Idea 的列表投影。
func (i *Idea) Summary() IdeaSummary {
	return IdeaSummary{
		ID:            i.ID,
		Title:         i.Title,
		Description:   i.Description,
		Tags:          i.Tags,
		Username:      i.Username,
		CreatedAt:     i.CreatedAt,
		UpvoteCount:   len(i.Upvotes),
		DownvoteCount: len(i.Downvotes),
	}
}

// IsOwnedBy 判断 userID 是否为创建者。
func (i *Idea) IsOwnedBy(userID string) bool {
	return userID != "" && i.CreatorID == userID
}

// NormalizeTags 去掉首尾空白并丢弃空标签，保留顺序和重复项。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

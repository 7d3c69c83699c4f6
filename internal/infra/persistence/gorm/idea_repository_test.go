package gormpersistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idea-board/internal/domain"
	"idea-board/internal/repository"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedIdea(t *testing.T, repo *GormIdeaRepository, id, title, creator string, offset time.Duration, tags ...string) {
	t.Helper()
	at := baseTime.Add(offset)
	require.NoError(t, repo.Create(context.Background(), &domain.Idea{
		ID:        id,
		Title:     title,
		CreatorID: creator,
		Username:  "user-" + creator,
		Tags:      tags,
		CreatedAt: at,
		UpdatedAt: at,
	}))
}

func assertExclusive(t *testing.T, idea *domain.Idea) {
	t.Helper()
	for _, up := range idea.Upvotes {
		assert.NotContains(t, idea.Downvotes, up, "用户不能同时出现在两个集合中")
	}
}

func TestGormIdeaRepository_CreateAndFind(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	seedIdea(t, repo, "i1", "X", "u1", 0, "go", "db", "go")

	idea, err := repo.FindByID(context.Background(), "i1")

	require.NoError(t, err)
	assert.Equal(t, "X", idea.Title)
	assert.Equal(t, []string{"go", "db", "go"}, idea.Tags, "保留标签顺序和重复项")
	assert.Empty(t, idea.Upvotes)
	assert.Empty(t, idea.Downvotes)
	assert.Empty(t, idea.Comments)
	assert.Equal(t, "user-u1", idea.Username)

	_, err = repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrIdeaNotFound)
}

func TestGormIdeaRepository_ListNewestFirst(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		seedIdea(t, repo, fmt.Sprintf("i%d", i), fmt.Sprintf("Idea %d", i), "u1", time.Duration(i)*time.Minute)
	}

	items, total, err := repo.List(ctx, domain.IdeaFilter{}, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"i6", "i5", "i4"}, []string{items[0].ID, items[1].ID, items[2].ID})

	items, _, err = repo.List(ctx, domain.IdeaFilter{}, 6, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "i0", items[0].ID)

	// 超出末页
	items, total, err = repo.List(ctx, domain.IdeaFilter{}, 30, 3)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(7), total)
}

func TestGormIdeaRepository_ListFilters(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "i1", "Golang tips", "u1", 1*time.Minute, "go", "tips")
	seedIdea(t, repo, "i2", "Rust vs GO", "u2", 2*time.Minute, "rust")
	seedIdea(t, repo, "i3", "Cooking 100%", "u1", 3*time.Minute, "food")
	seedIdea(t, repo, "i4", "Cooking 1000", "u2", 4*time.Minute)

	ids := func(items []domain.IdeaSummary) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	items, total, err := repo.List(ctx, domain.IdeaFilter{Search: "go"}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"i2", "i1"}, ids(items), "标题搜索大小写不敏感")

	items, _, err = repo.List(ctx, domain.IdeaFilter{Search: "100%"}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"i3"}, ids(items), "% 按字面匹配")

	items, _, err = repo.List(ctx, domain.IdeaFilter{Tags: []string{"rust", "food"}}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"i3", "i2"}, ids(items), "标签是 OR 关系")

	items, _, err = repo.List(ctx, domain.IdeaFilter{CreatorID: "u1", Search: "cook"}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"i3"}, ids(items))
	assert.Equal(t, []string{"food"}, items[0].Tags)
}

func TestGormIdeaRepository_ListCounts(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "i1", "X", "u1", 0)
	for _, u := range []string{"u1", "u2", "u3"} {
		_, _, err := repo.Vote(ctx, "i1", u, domain.VoteUp)
		require.NoError(t, err)
	}
	_, _, err := repo.Vote(ctx, "i1", "u4", domain.VoteDown)
	require.NoError(t, err)

	items, _, err := repo.List(ctx, domain.IdeaFilter{}, 0, 10)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].UpvoteCount)
	assert.Equal(t, 1, items[0].DownvoteCount)
	assert.NotNil(t, items[0].Tags)
}

func TestGormIdeaRepository_VoteScenario(t *testing.T) {
	// 两个用户点赞，其中一个改为点踩
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "A", "X", "owner", 0)

	_, _, err := repo.Vote(ctx, "A", "U1", domain.VoteUp)
	require.NoError(t, err)
	idea, _, err := repo.Vote(ctx, "A", "U2", domain.VoteUp)
	require.NoError(t, err)
	assert.Len(t, idea.Upvotes, 2)

	idea, tr, err := repo.Vote(ctx, "A", "U1", domain.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteUpvoted, tr.From)
	assert.Equal(t, domain.VoteDownvoted, tr.To)
	assert.Equal(t, []string{"U2"}, idea.Upvotes)
	assert.Equal(t, []string{"U1"}, idea.Downvotes)
	assertExclusive(t, idea)
}

func TestGormIdeaRepository_VoteToggleTable(t *testing.T) {
	cases := []struct {
		name  string
		steps []domain.VoteDirection
		want  domain.VoteState
	}{
		{"none up", []domain.VoteDirection{domain.VoteUp}, domain.VoteUpvoted},
		{"none down", []domain.VoteDirection{domain.VoteDown}, domain.VoteDownvoted},
		{"up up", []domain.VoteDirection{domain.VoteUp, domain.VoteUp}, domain.VoteNone},
		{"up down", []domain.VoteDirection{domain.VoteUp, domain.VoteDown}, domain.VoteDownvoted},
		{"down down", []domain.VoteDirection{domain.VoteDown, domain.VoteDown}, domain.VoteNone},
		{"down up", []domain.VoteDirection{domain.VoteDown, domain.VoteUp}, domain.VoteUpvoted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewGormIdeaRepository(newTestDB(t))
			seedIdea(t, repo, "i1", "X", "owner", 0)

			var idea *domain.Idea
			var err error
			for _, dir := range tc.steps {
				idea, _, err = repo.Vote(context.Background(), "i1", "voter", dir)
				require.NoError(t, err)
				assertExclusive(t, idea)
			}
			assert.Equal(t, tc.want, idea.VoteStateOf("voter"))
		})
	}
}

func TestGormIdeaRepository_VoteNotFound(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))

	_, _, err := repo.Vote(context.Background(), "nope", "u1", domain.VoteUp)

	assert.ErrorIs(t, err, repository.ErrIdeaNotFound)
}

func TestGormIdeaRepository_ConcurrentVotes(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "i1", "X", "owner", 0)

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := domain.VoteUp
			if i%2 == 1 {
				dir = domain.VoteDown
			}
			_, _, err := repo.Vote(ctx, "i1", fmt.Sprintf("u%d", i), dir)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	idea, err := repo.FindByID(ctx, "i1")
	require.NoError(t, err)
	assert.Len(t, idea.Upvotes, voters/2, "并发投票不能丢失更新")
	assert.Len(t, idea.Downvotes, voters/2)
	assertExclusive(t, idea)
}

func TestGormIdeaRepository_UpdateOwnership(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "i1", "Old", "u1", 0, "a")
	title := "New"

	_, err := repo.Update(ctx, "i1", "u2", domain.IdeaPatch{Title: &title})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	unchanged, err := repo.FindByID(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Old", unchanged.Title)

	_, err = repo.Update(ctx, "missing", "u1", domain.IdeaPatch{Title: &title})
	assert.ErrorIs(t, err, repository.ErrIdeaNotFound)

	updated, err := repo.Update(ctx, "i1", "u1", domain.IdeaPatch{Title: &title, Tags: []string{"b", "c"}, SetTags: true})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, []string{"b", "c"}, updated.Tags)
	assert.Equal(t, "u1", updated.CreatorID)

	// 未设置 SetTags 时保留原标签
	desc := "details"
	updated, err = repo.Update(ctx, "i1", "u1", domain.IdeaPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "details", updated.Description)
	assert.Equal(t, []string{"b", "c"}, updated.Tags)
}

func TestGormIdeaRepository_DeleteOwnership(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "i1", "X", "u1", 0, "a")
	_, _, err := repo.Vote(ctx, "i1", "u2", domain.VoteUp)
	require.NoError(t, err)
	_, err = repo.AddComment(ctx, "i1", domain.Comment{Username: "bob", Text: "hi", CreatedAt: baseTime})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, "i1", "u2"), repository.ErrForbidden)
	_, err = repo.FindByID(ctx, "i1")
	require.NoError(t, err, "非创建者删除后 Idea 仍然存在")

	require.NoError(t, repo.Delete(ctx, "i1", "u1"))
	_, err = repo.FindByID(ctx, "i1")
	assert.ErrorIs(t, err, repository.ErrIdeaNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "i1", "u1"), repository.ErrIdeaNotFound)

	var remaining int64
	require.NoError(t, repo.db.Model(&voteRow{}).Count(&remaining).Error)
	assert.Zero(t, remaining, "投票随 Idea 一起删除")
	require.NoError(t, repo.db.Model(&commentRow{}).Count(&remaining).Error)
	assert.Zero(t, remaining, "评论随 Idea 一起删除")
}

func TestGormIdeaRepository_AddComment(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	ctx := context.Background()
	seedIdea(t, repo, "i1", "X", "u1", 0)

	_, err := repo.AddComment(ctx, "i1", domain.Comment{Username: "bob", Text: "first", CreatedAt: baseTime})
	require.NoError(t, err)
	idea, err := repo.AddComment(ctx, "i1", domain.Comment{Username: "carol", Text: "second", CreatedAt: baseTime})
	require.NoError(t, err)

	require.Len(t, idea.Comments, 2)
	assert.Equal(t, "first", idea.Comments[0].Text)
	assert.Equal(t, "carol", idea.Comments[1].Username)

	_, err = repo.AddComment(ctx, "missing", domain.Comment{Text: "x"})
	assert.ErrorIs(t, err, repository.ErrIdeaNotFound)
}

func TestGormIdeaRepository_DistinctTags(t *testing.T) {
	repo := NewGormIdeaRepository(newTestDB(t))
	seedIdea(t, repo, "i1", "X", "u1", 0, "go", "web", "go")
	seedIdea(t, repo, "i2", "Y", "u1", time.Minute, "db", "web")

	tags, err := repo.DistinctTags(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"db", "go", "web"}, tags)
}

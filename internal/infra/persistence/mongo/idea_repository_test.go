package mongopersistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"idea-board/internal/domain"
)

func TestListFilter(t *testing.T) {
	assert.Empty(t, listFilter(domain.IdeaFilter{}), "无条件时匹配全部")

	m := listFilter(domain.IdeaFilter{Search: "a.b*", Tags: []string{"go", "db"}, CreatorID: "u1"})

	assert.Equal(t, bson.M{"$regex": `a\.b\*`, "$options": "i"}, m["title"], "搜索词中的正则元字符要转义")
	assert.Equal(t, bson.M{"$in": []string{"go", "db"}}, m["tags"])
	assert.Equal(t, "u1", m["creator"])
}

func TestListPipeline(t *testing.T) {
	p := listPipeline(bson.M{"creator": "u1"}, 20, 10)

	require.Len(t, p, 5)
	assert.Equal(t, "$match", p[0][0].Key)
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, p[1][0].Value, "最新的排在前面")
	assert.Equal(t, int64(20), p[2][0].Value)
	assert.Equal(t, int64(10), p[3][0].Value)

	project := p[4][0].Value.(bson.D)
	keys := make([]string, 0, len(project))
	for _, e := range project {
		keys = append(keys, e.Key)
	}
	assert.NotContains(t, keys, "comments", "列表不返回评论")
	assert.NotContains(t, keys, "upvotes", "列表不返回投票者")
	assert.Contains(t, keys, "upvote_count")
	assert.Contains(t, keys, "downvote_count")
}

func TestPatchSet(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	title := "New"

	set := patchSet(domain.IdeaPatch{Title: &title}, now)
	assert.Equal(t, bson.M{"title": "New", "updated_at": now}, set, "未设置的字段不修改")

	set = patchSet(domain.IdeaPatch{SetTags: true}, now)
	assert.Equal(t, []string{}, set["tags"], "清空标签写入空数组")
}

func TestVotePipeline(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		dir           domain.VoteDirection
		target, other string
	}{
		{domain.VoteUp, "upvotes", "downvotes"},
		{domain.VoteDown, "downvotes", "upvotes"},
	} {
		t.Run(string(tc.dir), func(t *testing.T) {
			p := votePipeline("u1", tc.dir, now)

			require.Len(t, p, 1, "整个切换是一个原子更新阶段")
			require.Equal(t, "$set", p[0][0].Key)
			set := p[0][0].Value.(bson.D)
			require.Len(t, set, 3)

			assert.Equal(t, tc.target, set[0].Key)
			cond := set[0].Value.(bson.M)["$cond"].(bson.A)
			require.Len(t, cond, 3)
			assert.Contains(t, cond[2].(bson.M), "$concatArrays", "未投票时追加")
			assert.Contains(t, cond[1].(bson.M), "$filter", "已投票时移除")

			assert.Equal(t, tc.other, set[1].Key)
			assert.Contains(t, set[1].Value.(bson.M), "$filter", "另一集合总是移除该用户")

			assert.Equal(t, "updated_at", set[2].Key)
			assert.Equal(t, now, set[2].Value)
		})
	}
}

func TestIdeaDocRoundTrip(t *testing.T) {
	idea := &domain.Idea{ID: "i1", Title: "X", CreatorID: "u1", Comments: []domain.Comment{{Username: "bob", Text: "hi"}}}

	back := newIdeaDoc(idea).toDomain()

	assert.Equal(t, "i1", back.ID)
	assert.NotNil(t, back.Tags)
	assert.NotNil(t, back.Upvotes)
	assert.NotNil(t, back.Downvotes)
	require.Len(t, back.Comments, 1)
	assert.Equal(t, "hi", back.Comments[0].Text)
}

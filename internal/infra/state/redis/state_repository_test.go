package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idea-board/internal/domain"
)

func newTestRepo(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStateRepository(client, "test:"), mr
}

func TestRedisStateRepository_RevokeExpires(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("test:token:revoked:jti-1"), "key 应带前缀")

	// token 过期后记录随之清除
	mr.FastForward(2 * time.Minute)
	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisStateRepository_CheckRateLimit(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exceeded, err := repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Second)
		require.NoError(t, err)
		assert.False(t, exceeded, "第 %d 次请求不应超限", i+1)
	}
	exceeded, err := repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, exceeded)

	// 窗口过后计数重置
	mr.FastForward(2 * time.Second)
	exceeded, err = repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, exceeded)
}

func TestRedisStateRepository_PublishSubscribe(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, closeSub, err := repo.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer closeSub()

	sent := domain.IdeaEvent{ID: "e1", IdeaID: "i1", Type: domain.EventIdeaVoted, Detail: "Upvoted successfully", UpvoteCount: 1}
	require.NoError(t, repo.Publish(ctx, sent))

	select {
	case got := <-events:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Type, got.Type)
		assert.Equal(t, 1, got.UpvoteCount)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive published event")
	}
}

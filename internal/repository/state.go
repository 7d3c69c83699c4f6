package repository

import (
	"context"
	"time"

	"idea-board/internal/domain"
)

// TokenDenylist 记录已注销的 token（按 jti）。
type TokenDenylist interface {
	// Revoke 在 ttl 内拒绝该 jti。
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked 判断 jti 是否已被注销。
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// StateRepository 定义了进程间共享的短期状态，通常由 Redis 实现。
type StateRepository interface {
	TokenDenylist

	// === Rate Limiting ===

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 如果超限，false 如果未超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// === Idea Events Pub/Sub ===

	// Publish 把事件广播给所有订阅者。
	Publish(ctx context.Context, event domain.IdeaEvent) error

	// SubscribeEvents 订阅事件广播，返回的 channel 在 ctx 结束或调用 close 后关闭。
	SubscribeEvents(ctx context.Context) (events <-chan domain.IdeaEvent, close func() error, err error)
}

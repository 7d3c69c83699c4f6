package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"idea-board/internal/domain"
	"idea-board/internal/repository"
)

var _ repository.StateRepository = (*RedisStateRepository)(nil)

// RedisStateRepository 保存进程间共享的短期状态：
// 已注销的 token、限流计数器，以及 Idea 事件的 Pub/Sub 频道。
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "ib:" // 默认前缀 (idea board)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) revokedTokenKey(jti string) string {
	return fmt.Sprintf("%stoken:revoked:%s", r.keyPrefix, jti)
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", r.keyPrefix, key)
}

func (r *RedisStateRepository) eventsChannel() string {
	return r.keyPrefix + "ideas:events"
}

// --- TokenDenylist ---

// Revoke 记录已注销的 jti，过期时间与 token 剩余有效期一致
func (r *RedisStateRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.revokedTokenKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to revoke token %s: %w", jti, err)
	}
	return nil
}

func (r *RedisStateRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.revokedTokenKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check token %s: %w", jti, err)
	}
	return n > 0, nil
}

// --- Rate limiting ---

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}

// --- Idea events Pub/Sub ---

// Publish 把事件广播给所有订阅的进程
func (r *RedisStateRepository) Publish(ctx context.Context, event domain.IdeaEvent) error {
	channel := r.eventsChannel()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal idea event %s: %w", event.ID, err)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"idea_id":      event.IdeaID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish idea event to channel %s: %w", channel, err)
	}
	return nil
}

// SubscribeEvents 订阅事件频道。订阅确认后才返回，
// 返回的 channel 在 ctx 结束或调用 close 后关闭。
func (r *RedisStateRepository) SubscribeEvents(ctx context.Context) (<-chan domain.IdeaEvent, func() error, error) {
	pubsub := r.client.Subscribe(ctx, r.eventsChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe to %s: %w", r.eventsChannel(), err)
	}

	out := make(chan domain.IdeaEvent, 64)
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.IdeaEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logrus.WithError(err).WithField("channel", msg.Channel).Warn("Dropping malformed idea event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, pubsub.Close, nil
}

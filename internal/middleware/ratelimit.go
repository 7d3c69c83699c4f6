package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimiter 是固定窗口计数器，返回 true 表示已超限，由 redisstate.RedisStateRepository 实现。
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 返回一个 Gin 中间件，用于基于客户端 IP 地址进行速率限制。
// maxRequests: 在指定时间窗口内允许的最大请求数。
// window: 速率限制的时间窗口。
func RateLimit(limiter RateLimiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	// 启动时检查依赖
	if limiter == nil {
		panic("RateLimiter cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 注意：如果服务在反向代理后面，需要配置 gin 的 TrustedProxies
		key := c.ClientIP()

		exceeded, err := limiter.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			// 限流存储不可用时放行，只记录日志
			logrus.WithError(err).WithField("client_ip", key).Error("RateLimit: limiter check failed, allowing request")
			c.Next()
			return
		}
		if exceeded {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds()+0.5)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}

		c.Next()
	}
}

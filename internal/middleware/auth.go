package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"idea-board/internal/domain"
	"idea-board/internal/service"
)

// 认证通过后写入 gin.Context 的键
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextEmail    = "email"
	ContextToken    = "token"
)

// TokenResolver 把 bearer token 解析为可信身份，由 service.AuthService 实现。
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

// ErrMissingAuthHeader 定义一个自定义错误，用于表示缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// ErrMalformedAuthHeader 表示 Authorization 头不是 "Bearer <token>" 格式
var ErrMalformedAuthHeader = errors.New("malformed Authorization header")

// Auth 返回一个 Gin 中间件，校验 bearer token 并把身份放进上下文。
func Auth(resolver TokenResolver) gin.HandlerFunc {
	// 在创建中间件时就进行检查，避免运行时 panic
	if resolver == nil {
		panic("TokenResolver cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := ExtractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Debug("Auth middleware: Missing Authorization header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token, authorization denied"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed Authorization header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is not valid"})
			}
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				// 具体原因只进日志，客户端统一收到同一条消息
				logrus.WithError(err).Warn("Auth middleware: Invalid token")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is not valid"})
				return
			}
			// 注销存储或用户存储故障不是凭证问题
			logrus.WithError(err).Error("Auth middleware: Failed to resolve token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "An unexpected error occurred"})
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)
		c.Set(ContextEmail, identity.Email)
		c.Set(ContextToken, tokenStr)
		logrus.WithField("user_id", identity.UserID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// IdentityFrom 从上下文中取回 Auth 写入的身份。
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{
		UserID:   userID,
		Username: c.GetString(ContextUsername),
		Email:    c.GetString(ContextEmail),
	}, true
}

// ExtractToken 从 Authorization 头中提取 Bearer Token
func ExtractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Fields(authHeader)
	// 使用 EqualFold 忽略 "Bearer" 的大小写
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedAuthHeader
	}
	return parts[1], nil
}

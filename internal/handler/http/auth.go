package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"idea-board/internal/domain"
	"idea-board/internal/middleware"
	"idea-board/internal/service"
)

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	if authService == nil {
		panic("AuthService cannot be nil for AuthHandler")
	}
	return &AuthHandler{authService: authService}
}

// RegisterRequest 定义注册请求的结构体，长度和格式由 AuthService 校验
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Register: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Please provide username, email and password")
		return
	}

	newUser, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", newUser.ID).Info("Handler.Register: User registered successfully")
	// 响应中不应包含密码等敏感信息
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    newUser.Summary(),
	})
}

// LoginRequest 定义登录请求的结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 定义登录成功的响应结构体
type LoginResponse struct {
	Token string             `json:"token"`
	User  domain.UserSummary `json:"user"`
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Login: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Please provide email and password")
		return
	}

	token, user, err := h.authService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", user.ID).Info("Handler.Login: User logged in successfully")
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: user.Summary()})
}

// Logout 注销请求携带的 token，不需要登录。
// 没有 token 或 token 无法解析时同样返回成功，客户端丢弃 token 即可。
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := middleware.ExtractToken(c)
	if err == nil {
		err = h.authService.Logout(c.Request.Context(), token)
		if err != nil && !errors.Is(err, service.ErrUnauthorized) {
			HandleServiceError(c, err)
			return
		}
	}
	if err != nil {
		logrus.WithError(err).Debug("Logout without a usable token")
	}
	MessageResponse(c, http.StatusOK, "Logged out successfully")
}

// Me 返回当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, domain.UserSummary{
		ID:       identity.UserID,
		Username: identity.Username,
		Email:    identity.Email,
	})
}

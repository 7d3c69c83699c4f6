package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"idea-board/internal/service"
)

// HandleServiceError 是服务层错误到 HTTP 状态码的唯一映射。
// 内部错误只写日志，不把原因返回给客户端。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		ErrorResponse(c, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrInvalidCredentials):
		ErrorResponse(c, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, service.ErrEmailTaken):
		ErrorResponse(c, http.StatusBadRequest, "Email already in use")
	case errors.Is(err, service.ErrUnauthorized):
		ErrorResponse(c, http.StatusUnauthorized, "Token is not valid")
	case errors.Is(err, service.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, "User not authorized")
	case errors.Is(err, service.ErrIdeaNotFound):
		ErrorResponse(c, http.StatusNotFound, "Idea not found")
	case errors.Is(err, service.ErrVoteConflict):
		ErrorResponse(c, http.StatusConflict, "Vote conflict, please retry")
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		_ = c.Error(err)
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// validationMessage 去掉哨兵前缀，只保留字段说明
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	if msg == "" || msg == service.ErrValidation.Error() {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

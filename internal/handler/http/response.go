package http

import "github.com/gin-gonic/gin"

// ErrorResponse 以统一的 {"message": ...} 格式返回错误
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"message": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// MessageResponse 返回只带 message 字段的成功响应
func MessageResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"message": message})
}

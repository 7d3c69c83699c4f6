package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 挂载 /api 下的所有 REST 路由。
// requireAuth 通常是 middleware.Auth 的返回值。
func RegisterRoutes(router gin.IRouter, auth *AuthHandler, ideas *IdeaHandler, requireAuth gin.HandlerFunc) {
	api := router.Group("/api")

	users := api.Group("/users")
	{
		users.POST("/register", auth.Register)
		users.POST("/login", auth.Login)
		users.POST("/logout", auth.Logout)
		users.GET("/me", requireAuth, auth.Me)
	}

	ideaRoutes := api.Group("/ideas")
	{
		// 公开接口
		ideaRoutes.GET("", ideas.List)
		ideaRoutes.GET("/tags", ideas.Tags)

		authed := ideaRoutes.Group("", requireAuth)
		authed.GET("/user", ideas.ListMine)
		authed.GET("/:id", ideas.Get)
		authed.GET("/:id/activity", ideas.Activity)
		authed.POST("", ideas.Create)
		authed.PUT("/:id", ideas.Update)
		authed.DELETE("/:id", ideas.Delete)
		authed.POST("/:id/upvote", ideas.Upvote)
		authed.POST("/:id/downvote", ideas.Downvote)
		authed.POST("/:id/comments", ideas.AddComment)
	}
}

// Ping 健康检查
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

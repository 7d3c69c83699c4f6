package websocket

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"idea-board/internal/hub"
	"idea-board/internal/middleware"
	"idea-board/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	ideaService *service.IdeaService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空时不校验 Origin。
func NewWebSocketHandler(h *hub.Hub, ideaService *service.IdeaService, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if ideaService == nil {
		panic("IdeaService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		ideaService: ideaService,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// /ws/ideas 订阅全部事件，/ws/ideas/:id 只订阅一个 Idea。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}
	userID := identity.UserID
	ideaID := c.Param("id")
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "idea_id": ideaID})

	// 单个 Idea 的订阅需要先确认 Idea 存在
	if ideaID != hub.AllIdeas {
		if _, err := h.ideaService.GetByID(c.Request.Context(), ideaID); err != nil {
			if errors.Is(err, service.ErrIdeaNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Idea not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"message": "An unexpected error occurred"})
			}
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, ideaID, userID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client subscribed to idea events")
}

package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个订阅 Idea 事件的 WebSocket 客户端。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	ideaID string // AllIdeas 表示订阅全部
	userID string
	send   chan []byte
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, ideaID, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		ideaID: ideaID,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"user_id": c.userID, "idea_id": c.ideaID})
}

// ReadPump 只处理控制帧和关闭，客户端发来的数据被丢弃。
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
		case <-time.After(1 * time.Second):
			c.logCtx().Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		c.logCtx().Debug("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			}
			return
		}
	}
}

// WritePump 将 send 通道中的消息写入 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

// CloseConn 关闭底层连接，用于注册失败、还没启动读写 goroutine 的客户端。
func (c *Client) CloseConn() { c.conn.Close() }

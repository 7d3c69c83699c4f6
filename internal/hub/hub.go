package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"idea-board/internal/domain"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 推送是单向的，客户端消息只用于保活
	maxMessageSize = 512
)

// AllIdeas 是订阅全部 Idea 事件的主题
const AllIdeas = ""

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type   string // "register", "unregister", "event"
	Client *Client
	Event  domain.IdeaEvent
}

// Hub 维护活跃客户端，按 Idea 分组推送事件
type Hub struct {
	messageChan chan HubMessage

	// map[ideaID]map[*Client]bool，AllIdeas 表示订阅全部
	topics   map[string]map[*Client]bool
	topicsMu sync.RWMutex
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub() *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		topics:      make(map[string]map[*Client]bool),
	}
}

// Run 启动 Hub 的主事件处理循环，ctx 结束时关闭所有客户端。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			case "event":
				h.dispatch(msg.Event)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		}
	}
}

// Forward 把外部事件源（例如 Redis 订阅）转发进 Hub，直到事件源关闭。
func (h *Hub) Forward(ctx context.Context, events <-chan domain.IdeaEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				logrus.WithField("component", "hub").Info("Event source closed")
				return
			}
			h.QueueMessage(HubMessage{Type: "event", Event: ev})
		}
	}
}

// Publish 实现 service.EventPublisher，用于没有 Redis 时的单进程推送。
func (h *Hub) Publish(_ context.Context, event domain.IdeaEvent) error {
	h.QueueMessage(HubMessage{Type: "event", Event: event})
	return nil
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"idea_id":      msg.Event.IdeaID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.topicsMu.RLock()
	defer h.topicsMu.RUnlock()
	n := 0
	for _, clients := range h.topics {
		n += len(clients)
	}
	return n
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.topicsMu.Lock()
	if _, ok := h.topics[client.ideaID]; !ok {
		h.topics[client.ideaID] = make(map[*Client]bool)
	}
	h.topics[client.ideaID][client] = true
	h.topicsMu.Unlock()

	logrus.WithFields(logrus.Fields{"idea_id": client.ideaID, "user_id": client.userID}).Info("Client registered to Hub")
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"idea_id": client.ideaID, "user_id": client.userID})

	h.topicsMu.Lock()
	defer h.topicsMu.Unlock()
	clients, ok := h.topics[client.ideaID]
	if !ok || !clients[client] {
		logCtx.Debug("Client not found during unregister")
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.topics, client.ideaID)
	}
	logCtx.Info("Client unregistered from Hub")
}

// dispatch 把事件发给订阅该 Idea 和订阅全部的客户端
func (h *Hub) dispatch(event domain.IdeaEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("idea_id", event.IdeaID).Error("Failed to marshal idea event for broadcast")
		return
	}

	h.topicsMu.RLock()
	recipients := make([]*Client, 0, len(h.topics[event.IdeaID])+len(h.topics[AllIdeas]))
	for c := range h.topics[event.IdeaID] {
		recipients = append(recipients, c)
	}
	if event.IdeaID != AllIdeas {
		for c := range h.topics[AllIdeas] {
			recipients = append(recipients, c)
		}
	}
	h.topicsMu.RUnlock()

	for _, c := range recipients {
		// 非阻塞发送，慢客户端不拖住整个 Hub
		select {
		case c.send <- payload:
		default:
			logrus.WithFields(logrus.Fields{"idea_id": event.IdeaID, "user_id": c.userID}).
				Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

func (h *Hub) closeAll() {
	h.topicsMu.Lock()
	defer h.topicsMu.Unlock()
	for topic, clients := range h.topics {
		for c := range clients {
			close(c.send)
		}
		delete(h.topics, topic)
	}
}

package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idea-board/internal/domain"
)

// startHub 启动 Hub 和一个把 ?idea= 参数作为主题的 WebSocket 服务
func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub()
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(h, conn, r.URL.Query().Get("idea"), "tester")
		h.QueueMessage(HubMessage{Type: "register", Client: c})
		c.Run()
	}))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.IdeaEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev domain.IdeaEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHub_DispatchByTopic(t *testing.T) {
	h, url := startHub(t)
	one := dial(t, url+"?idea=i1")
	all := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Publish(context.Background(), domain.IdeaEvent{ID: "e1", IdeaID: "i2", Type: domain.EventIdeaCreated}))
	require.NoError(t, h.Publish(context.Background(), domain.IdeaEvent{ID: "e2", IdeaID: "i1", Type: domain.EventIdeaVoted}))

	// 订阅全部的客户端按顺序收到两条
	assert.Equal(t, "e1", readEvent(t, all).ID)
	assert.Equal(t, "e2", readEvent(t, all).ID)
	// 订阅 i1 的客户端只收到 i1 的事件
	assert.Equal(t, "e2", readEvent(t, one).ID)
}

func TestHub_ForwardFromSource(t *testing.T) {
	h, url := startHub(t)
	conn := dial(t, url+"?idea=i9")
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	src := make(chan domain.IdeaEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Forward(ctx, src)

	src <- domain.IdeaEvent{ID: "e9", IdeaID: "i9", Type: domain.EventIdeaCommented}

	assert.Equal(t, "e9", readEvent(t, conn).ID)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	h, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

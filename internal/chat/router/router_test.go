package router

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"social_chat_service/internal/chat/app"
	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"
	t_token "social_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	app    *fiber.App
	router *presence.LocalRouter
	pusher *app.Pusher
	addr   string
}

func newNode(t *testing.T, store repository.MessageRepository, instanceID string, directory repository.PresenceRepository, relay app.RelayPublisher) *node {
	router := presence.NewLocalRouter()
	pusher := app.NewPusher(router, time.Second)
	if relay != nil {
		pusher.WithRelay(relay, directory, instanceID)
	}
	dispatchUC := app.NewDispatchUseCase(store, pusher)
	readUC := app.NewReadStateUseCase(store, pusher)
	summaryUC := app.NewSummaryUseCase(store, repository.NewStaticIdentityRepository(), 2)

	r := fiber.New()
	RegisterRoutes(r,
		app.NewChatWebsocketHandler(dispatchUC, readUC, summaryUC, router, directory, app.WebsocketConfig{
			SendBuffer:   16,
			PingInterval: time.Minute,
			PresenceTTL:  time.Minute,
			InstanceID:   instanceID,
		}),
		app.NewChatHTTPHandler(dispatchUC, readUC, summaryUC, nil, time.Minute, router, directory, instanceID),
	)
	return &node{app: r, router: router, pusher: pusher}
}

func (n *node) listen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	n.addr = ln.Addr().String()
	go func() { _ = n.app.Listener(ln) }()
	t.Cleanup(func() { _ = n.app.Shutdown() })
}

func tokenOf(t *testing.T, memberID string) string {
	tok, err := t_token.GenerateJWT(memberID, string(t_token.RoleMember), "test")
	require.NoError(t, err)
	return tok
}

func dialAndJoin(t *testing.T, addr, userID string) *gws.Conn {
	conn, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws?auth="+tokenOf(t, userID), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(domain.WSRequest{Action: "join", UserID: userID}))
	resp := readAction(t, conn, string(domain.Join))
	require.True(t, resp.Success, resp.Error)
	return conn
}

// readAction 讀到指定 action 為止
func readAction(t *testing.T, conn *gws.Conn, action string) domain.WSResponse {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var resp domain.WSResponse
		require.NoError(t, conn.ReadJSON(&resp))
		if resp.Action == action {
			return resp
		}
	}
	t.Fatalf("no %s received", action)
	return domain.WSResponse{}
}

// handler goroutine 可能比測試活得久, logger 只在這裡設定一次
func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

func TestRegisterRoutes_Public(t *testing.T) {
	n := newNode(t, repository.NewMemoryMessageRepository(), "node-a", nil, nil)

	resp, err := n.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = n.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(b), "chat_http_requests_total"))

	resp, err = n.app.Test(httptest.NewRequest(http.MethodGet, "/api/messages/chats/u1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = n.app.Test(httptest.NewRequest(http.MethodPost, "/debug?status=maybe", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRegisterRoutes_WebsocketDelivery(t *testing.T) {
	n := newNode(t, repository.NewMemoryMessageRepository(), "node-a", nil, nil)
	n.listen(t)

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", n.addr)
		if err == nil {
			c.Close()
		}
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	u1 := dialAndJoin(t, n.addr, "u1")
	u2 := dialAndJoin(t, n.addr, "u2")

	require.NoError(t, u1.WriteJSON(domain.WSRequest{Action: "send_message", ReceiverID: "u2", Content: "hi"}))
	sent := readAction(t, u1, string(domain.SendMessage))
	require.True(t, sent.Success, sent.Error)

	pushed := readAction(t, u2, string(domain.NotifyMessage))
	msg := pushed.Payload["message"].(map[string]interface{})
	assert.Equal(t, "hi", msg["content"])
	assert.Equal(t, "u1", msg["senderId"])
	assert.Equal(t, false, msg["isRead"])

	require.NoError(t, u2.WriteJSON(domain.WSRequest{Action: "read_message", OtherUserID: "u1"}))
	read := readAction(t, u2, string(domain.ReadMessage))
	assert.Equal(t, float64(1), read.Payload["modified_count"])
	receipt := readAction(t, u1, string(domain.MessagesRead))
	assert.Equal(t, "u2", receipt.Payload["reader_id"])

	// 第二個 u2 連線取代第一個
	u2b := dialAndJoin(t, n.addr, "u2")
	readAction(t, u2, string(domain.SessionSuperseded))

	// 舊連線送完通知後被伺服器關閉
	_ = u2.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := u2.ReadMessage()
	assert.True(t, gws.IsCloseError(err, 4000), "unexpected read result: %v", err)

	require.NoError(t, u1.WriteJSON(domain.WSRequest{Action: "send_message", ReceiverID: "u2", Content: "again"}))
	pushed = readAction(t, u2b, string(domain.NotifyMessage))
	assert.Equal(t, "again", pushed.Payload["message"].(map[string]interface{})["content"])
}

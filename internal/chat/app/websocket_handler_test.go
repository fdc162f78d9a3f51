package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	handler *ChatWebsocketHandler
	router  *presence.LocalRouter
	store   repository.MessageRepository
}

func newWSFixture(directory repository.PresenceRepository) *wsFixture {
	store := repository.NewMemoryMessageRepository()
	router := presence.NewLocalRouter()
	pusher := NewPusher(router, time.Second)
	identity := repository.NewStaticIdentityRepository(domain.Profile{UserID: "u1", Name: "Alice"})

	h := NewChatWebsocketHandler(
		NewDispatchUseCase(store, pusher),
		NewReadStateUseCase(store, pusher),
		NewSummaryUseCase(store, identity, 4),
		router,
		directory,
		WebsocketConfig{SendBuffer: 8, PingInterval: time.Minute, PresenceTTL: time.Minute, InstanceID: "node-a"},
	)
	return &wsFixture{handler: h, router: router, store: store}
}

func TestChatWebsocketHandler_Join(t *testing.T) {
	ctx := context.Background()
	f := newWSFixture(nil)
	c2 := newFakeChannel("c2")

	resp := f.handler.HandleRequest(ctx, c2, "u2", domain.WSRequest{Action: "join", UserID: "u2"})
	assert.True(t, resp.Success)
	got, ok := f.router.Resolve("u2")
	require.True(t, ok)
	assert.Equal(t, "c2", got.ID())

	t.Run("other identity is forbidden", func(t *testing.T) {
		resp := f.handler.HandleRequest(ctx, newFakeChannel("cx"), "u2", domain.WSRequest{Action: "join", UserID: "u1"})
		assert.False(t, resp.Success)
		assert.Equal(t, domain.ErrForbidden.Error(), resp.Error)
		_, ok := f.router.Resolve("u1")
		assert.False(t, ok)
	})

	t.Run("new join supersedes old channel", func(t *testing.T) {
		c2b := newFakeChannel("c2b")
		resp := f.handler.HandleRequest(ctx, c2b, "u2", domain.WSRequest{Action: "join", UserID: "u2"})
		assert.True(t, resp.Success)
		assert.Equal(t, []string{string(domain.SessionSuperseded)}, c2.actions())
		assert.True(t, c2.isClosed())
		assert.False(t, c2b.isClosed())

		// 舊連線關閉不影響新連線
		f.handler.leave(c2)
		got, ok := f.router.Resolve("u2")
		require.True(t, ok)
		assert.Equal(t, "c2b", got.ID())
	})
}

func TestChatWebsocketHandler_JoinRegistersPresence(t *testing.T) {
	ctx := context.Background()
	directory := new(MockPresenceRepository)
	directory.On("Register", mock.Anything, mock.MatchedBy(func(e repository.PresenceEntry) bool {
		return e.UserID == "u2" && e.InstanceID == "node-a" && e.ChannelID == "c2"
	}), time.Minute).Return(nil)
	directory.On("Refresh", ctx, "u2", time.Minute).Return(nil)
	directory.On("Unregister", mock.Anything, "u2", "c2").Return(nil)

	f := newWSFixture(directory)
	c2 := newFakeChannel("c2")

	assert.True(t, f.handler.HandleRequest(ctx, c2, "u2", domain.WSRequest{Action: "join", UserID: "u2"}).Success)
	pong := f.handler.HandleRequest(ctx, c2, "u2", domain.WSRequest{Action: "ping"})
	assert.Equal(t, string(domain.Pong), pong.Action)
	f.handler.leave(c2)

	directory.AssertExpectations(t)
}

// u1 -> u2 送出, u2 在線收到推送, 讀取後 u1 收到回條
func TestChatWebsocketHandler_Conversation(t *testing.T) {
	ctx := context.Background()
	f := newWSFixture(nil)
	c1, c2 := newFakeChannel("c1"), newFakeChannel("c2")
	f.handler.HandleRequest(ctx, c1, "u1", domain.WSRequest{Action: "join", UserID: "u1"})
	f.handler.HandleRequest(ctx, c2, "u2", domain.WSRequest{Action: "join", UserID: "u2"})

	resp := f.handler.HandleRequest(ctx, c1, "u1", domain.WSRequest{Action: "send_message", ReceiverID: "u2", Content: "hello"})
	require.True(t, resp.Success, resp.Error)
	saved := resp.Payload["message"].(*domain.Message)
	assert.Equal(t, "u1", saved.SenderID)

	require.Equal(t, []string{string(domain.NotifyMessage)}, c2.actions())
	assert.Equal(t, saved.ID, c2.last().Payload["message"].(*domain.Message).ID)

	resp = f.handler.HandleRequest(ctx, c2, "u2", domain.WSRequest{Action: "get_chats"})
	require.True(t, resp.Success)
	chats := resp.Payload["chats"].([]domain.ConversationSummary)
	require.Len(t, chats, 1)
	assert.Equal(t, "Alice", chats[0].DisplayName)
	assert.Equal(t, int64(1), chats[0].UnreadCount)

	resp = f.handler.HandleRequest(ctx, c2, "u2", domain.WSRequest{Action: "read_message", OtherUserID: "u1"})
	require.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Payload["modified_count"])
	assert.Equal(t, string(domain.MessagesRead), c1.last().Action)

	resp = f.handler.HandleRequest(ctx, c1, "u1", domain.WSRequest{Action: "get_history", OtherUserID: "u2"})
	require.True(t, resp.Success)
	msgs := resp.Payload["messages"].([]domain.Message)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsRead)
}

func TestChatWebsocketHandler_Errors(t *testing.T) {
	ctx := context.Background()
	f := newWSFixture(nil)
	c1 := newFakeChannel("c1")

	resp := f.handler.HandleRequest(ctx, c1, "u1", domain.WSRequest{Action: "send_message", ReceiverID: "u2"})
	assert.False(t, resp.Success)
	assert.Equal(t, domain.ErrValidation.Error(), resp.Error)

	resp = f.handler.HandleRequest(ctx, c1, "u1", domain.WSRequest{Action: "dance"})
	assert.Equal(t, string(domain.ActionError), resp.Action)
	assert.Equal(t, "unknown action", resp.Error)

	resp = f.handler.HandleRequest(ctx, c1, "u1", domain.WSRequest{Action: "relay_message", ReceiverID: "u2", Payload: json.RawMessage(`{}`)})
	assert.True(t, resp.Success)
}

type fakeWriter struct {
	mu      sync.Mutex
	written [][]byte
	pings   int
	closes  []int
	closed  bool
	err     error
}

func (w *fakeWriter) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, data)
	return nil
}

func (w *fakeWriter) WriteControl(messageType int, data []byte, deadline time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch messageType {
	case websocket.PingMessage:
		w.pings++
	case websocket.CloseMessage:
		if len(data) >= 2 {
			w.closes = append(w.closes, int(data[0])<<8|int(data[1]))
		}
	}
	return w.err
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

func TestWSChannel_PushIsNonBlocking(t *testing.T) {
	w := &fakeWriter{}
	ch := newWSChannel(w, 1)

	require.NoError(t, ch.Push(domain.NewSessionSuperseded("u2")))
	assert.ErrorIs(t, ch.Push(domain.NewSessionSuperseded("u2")), presence.ErrChannelFull)

	go ch.writePump(time.Hour)
	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 10*time.Millisecond)

	ch.close()
	assert.ErrorIs(t, ch.Push(domain.NewSessionSuperseded("u2")), presence.ErrChannelClosed)
}

func TestWSChannel_WriteErrorClosesChannel(t *testing.T) {
	w := &fakeWriter{err: errors.New("broken pipe")}
	ch := newWSChannel(w, 4)
	go ch.writePump(time.Hour)

	require.NoError(t, ch.Push(domain.NewSessionSuperseded("u2")))
	assert.Eventually(t, func() bool {
		return errors.Is(ch.Push(domain.NewSessionSuperseded("u2")), presence.ErrChannelClosed)
	}, time.Second, 10*time.Millisecond)
}

// blockingWriter 第一次寫入會卡住直到 release
type blockingWriter struct {
	fakeWriter
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	after   chan struct{} // closed once the channel was torn down

	lateMu     sync.Mutex
	lateWrites int
}

func newBlockingWriter() *blockingWriter {
	return &blockingWriter{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		after:   make(chan struct{}),
	}
}

func (w *blockingWriter) WriteMessage(messageType int, data []byte) error {
	first := false
	w.once.Do(func() { first = true })
	if first {
		close(w.entered)
		<-w.release
	}
	select {
	case <-w.after:
		w.lateMu.Lock()
		w.lateWrites++
		w.lateMu.Unlock()
	default:
	}
	return w.fakeWriter.WriteMessage(messageType, data)
}

func TestWSChannel_NoWriteAfterTeardown(t *testing.T) {
	for i := 0; i < 50; i++ {
		w := newBlockingWriter()
		ch := newWSChannel(w, 4)
		go ch.writePump(time.Hour)

		require.NoError(t, ch.Push(domain.NewSessionSuperseded("u2")))
		<-w.entered
		require.NoError(t, ch.Push(domain.NewSessionSuperseded("u2")))

		// 與 HandleConnection 結束時相同的順序
		ch.close()
		close(w.after)
		close(w.release)
		ch.wait()

		w.lateMu.Lock()
		late := w.lateWrites
		w.lateMu.Unlock()
		// 第一筆已在寫入中, 之後排隊的不可再寫
		require.LessOrEqual(t, late, 1)
		require.LessOrEqual(t, w.count(), 1)
	}
}

func TestWSChannel_CloseFlushesThenDisconnects(t *testing.T) {
	w := &fakeWriter{}
	ch := newWSChannel(w, 4)

	require.NoError(t, ch.Push(domain.NewSessionSuperseded("u2")))
	ch.Close()
	assert.ErrorIs(t, ch.Push(domain.NewSessionSuperseded("u2")), presence.ErrChannelClosed)

	go ch.writePump(time.Hour)
	ch.wait()

	assert.Equal(t, 1, w.count())
	assert.True(t, w.isClosed())
	w.mu.Lock()
	assert.Equal(t, []int{closeSuperseded}, w.closes)
	w.mu.Unlock()
}

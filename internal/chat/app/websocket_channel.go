package app

import (
	"encoding/json"
	"sync"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// closeSuperseded application close code sent to a replaced connection
const closeSuperseded = 4000

// wsWriter subset of *websocket.Conn used by the write pump
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// wsChannel presence.Channel over a websocket, every write goes through writePump.
//
// done: connection teardown, nothing is written after it closes.
// evict: Close() was called, pending pushes are flushed and the conn is closed.
// stopped: closed by writePump on return.
type wsChannel struct {
	id        string
	conn      wsWriter
	send      chan domain.WSResponse
	done      chan struct{}
	evict     chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	evictOnce sync.Once
}

func newWSChannel(conn wsWriter, buffer int) *wsChannel {
	return &wsChannel{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan domain.WSResponse, buffer),
		done:    make(chan struct{}),
		evict:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (c *wsChannel) ID() string {
	return c.id
}

// Push enqueue without blocking
func (c *wsChannel) Push(resp domain.WSResponse) error {
	if c.isClosed() {
		return presence.ErrChannelClosed
	}

	select {
	case c.send <- resp:
		return nil
	case <-c.done:
		return presence.ErrChannelClosed
	default:
		return presence.ErrChannelFull
	}
}

// Close 被新連線取代時呼叫, 先送完已排隊的訊息再斷線
func (c *wsChannel) Close() {
	c.evictOnce.Do(func() { close(c.evict) })
}

func (c *wsChannel) isClosed() bool {
	select {
	case <-c.done:
		return true
	case <-c.evict:
		return true
	default:
		return false
	}
}

func (c *wsChannel) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// wait block until writePump returned
func (c *wsChannel) wait() {
	<-c.stopped
}

// writePump 唯一寫入 conn 的 goroutine, 另外定期送 ping
func (c *wsChannel) writePump(pingInterval time.Duration) {
	defer close(c.stopped)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case resp := <-c.send:
			if !c.write(resp) {
				return
			}
		case <-ticker.C:
			if c.stopping() {
				return
			}
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				logger.Log.Debug("websocket ping", zap.String("channel", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-c.evict:
			c.flushAndDisconnect()
			return
		case <-c.done:
			return
		}
	}
}

// write one response, false when the pump has to stop
func (c *wsChannel) write(resp domain.WSResponse) bool {
	// handler 可能已結束, conn 不可再使用
	if c.stopping() {
		return false
	}
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("websocket marshal", zap.String("action", resp.Action), zap.Error(err))
		return true
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Debug("websocket write", zap.String("channel", c.id), zap.Error(err))
		c.close()
		return false
	}
	return true
}

func (c *wsChannel) stopping() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *wsChannel) flushAndDisconnect() {
drain:
	for {
		select {
		case resp := <-c.send:
			if !c.write(resp) {
				return
			}
		default:
			break drain
		}
	}
	if c.stopping() {
		return
	}

	msg := websocket.FormatCloseMessage(closeSuperseded, "session superseded")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		logger.Log.Debug("websocket close frame", zap.String("channel", c.id), zap.Error(err))
	}
	// 關閉底層連線讓 read loop 結束, 舊連線不能再以該使用者身分送訊息
	_ = c.conn.Close()
}

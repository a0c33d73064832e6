package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/memory"
)

// wsConn - websocket с очередью исходящих сообщений.
// Все записи в сокет, включая ping, делает только writePump.
type wsConn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(ws *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		ws:   ws,
		send: make(chan []byte, buffer),
	}
}

func (c *wsConn) TrySend(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return memory.ErrConnClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return memory.ErrSendQueueFull
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

func (c *wsConn) writePump(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// разблокирует ReadMessage в обработчике
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("websocket write", slog.Any(constant.Error, err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", slog.Any(constant.Error, err))
				return
			}
		}
	}
}

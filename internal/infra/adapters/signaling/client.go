package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	queueSize = 64
)

var ErrClientClosed = errors.New("signaling client closed")

// Client - websocket соединение участника с сигнальным сервером
type Client struct {
	serverURL string
	conn      *websocket.Conn

	incoming chan *events.Message
	outgoing chan *events.Message

	// done закрывается в Close, stopped - когда writePump завершился
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *events.Message, queueSize),
		outgoing:  make(chan *events.Message, queueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.serverURL, err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// Incoming закрывается, когда соединение с сервером потеряно
func (c *Client) Incoming() <-chan *events.Message {
	return c.incoming
}

func (c *Client) Send(msg *events.Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	case <-c.stopped:
		return ErrClientClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-c.stopped:
		return ErrClientClosed
	}
}

// Close отправляет close frame и закрывает соединение после того, как очередь отправки опустеет
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msg := new(events.Message)
		if err := c.conn.ReadJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("signaling read", slog.Any(constant.Error, err))
			}

			return
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		close(c.stopped)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			if err := c.write(msg); err != nil {
				slog.Warn("signaling write", slog.Any(constant.Error, err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.flush()

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)

			return
		}
	}
}

// flush дописывает то, что уже в очереди, например leave-room
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.outgoing:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg *events.Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteJSON(msg)
}

package ws

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// Входящие кадры нужны только для pong и close.
	inboundLimit = 512
	outboxSize   = 16
)

// Client доставляет события одному подключению пользователя.
// Канал send принадлежит хабу: только хаб его закрывает.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID uuid.UUID
	send   chan []byte

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, outboxSize),
	}
}

// Run блокируется, пока соединение живо. Запись идёт в вызывающей горутине,
// отдельная горутина только следит за закрытием со стороны браузера.
func (c *Client) Run(ctx context.Context) {
	defer c.Close()

	gone := make(chan struct{})
	go c.watchPeer(gone)

	defer func() {
		if r := recover(); r != nil {
			c.hub.log.WithField("user_id", c.userID).
				Errorf("ws: panic при отправке событий: %v\n%s", r, debug.Stack())
		}
	}()
	c.deliver(ctx, gone)
}

// Close снимает клиента с хаба и рвёт соединение. Повторные вызовы безопасны.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

func (c *Client) deliver(ctx context.Context, gone <-chan struct{}) {
	keepalive := time.NewTicker(pingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-gone:
			return
		case payload, ok := <-c.send:
			if !ok {
				// хаб остановлен или клиент не успевал читать
				c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.log.WithError(err).WithField("user_id", c.userID).Debug("ws: не удалось отправить событие")
				return
			}
		case <-keepalive.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeControl(kind int, data []byte) {
	_ = c.conn.WriteControl(kind, data, time.Now().Add(writeTimeout))
}

// watchPeer читает соединение ради pong и close, полезная нагрузка отбрасывается.
func (c *Client) watchPeer(gone chan<- struct{}) {
	defer close(gone)
	defer func() {
		if r := recover(); r != nil {
			c.hub.log.WithField("user_id", c.userID).
				Errorf("ws: panic при чтении соединения: %v\n%s", r, debug.Stack())
		}
	}()

	c.conn.SetReadLimit(inboundLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).WithField("user_id", c.userID).Debug("ws: соединение оборвано")
			}
			return
		}
	}
}

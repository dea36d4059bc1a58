package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
)

// Тайминги соединения. Пинг уходит чаще, чем истекает ожидание понга.
const (
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	pingEvery      = idleTimeout * 9 / 10
	maxInboundSize = 4 << 10
	outboxSize     = 16
)

// Client одно WebSocket подключение, подписанное на один топик.
// Канал send закрывает только хаб.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	topic     string
	send      chan []byte
	closeOnce sync.Once
}

// NewClient оборачивает уже установленное соединение.
func NewClient(conn *websocket.Conn, hub *Hub, topic string) *Client {
	return &Client{conn: conn, hub: hub, topic: topic, send: make(chan []byte, outboxSize)}
}

// Run обслуживает соединение до отключения клиента или отмены ctx.
func (c *Client) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.hub.recovery.SafeGo(c.deliver)
	c.drainInbound()
}

// Close отписывает клиента и рвёт соединение. Повторные вызовы ничего не делают.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

// drainInbound читает входящие кадры только ради понгов и закрытия.
func (c *Client) drainInbound() {
	defer c.Close()

	c.conn.SetReadLimit(maxInboundSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) || websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			logger.Log.WithError(err).WithField("topic", c.topic).Debug("ws: чтение прервано")
		}
		return
	}
}

// deliver пишет события из send и пингует клиента.
func (c *Client) deliver() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case payload, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			kind, data = websocket.TextMessage, payload
		case <-ping.C:
			kind, data = websocket.PingMessage, nil
		}
		if err := c.write(kind, data); err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}

package ws

import (
	"chat-relay/domain"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	handle domain.Handle
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(handle domain.Handle, userID string, conn *websocket.Conn, bufferSize int) *client {
	return &client{
		handle: handle,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks, it reports false when the frame is dropped.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump is the only writer of the connection, frames go out in queue order.
func (c *client) writePump(log *slog.Logger, writeTimeout, pongWait time.Duration) {
	ticker := time.NewTicker(pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("Write failed, closing connection", "handle", c.handle, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes inbound frames until the peer goes away.
func (c *client) readPump(log *slog.Logger, maxFrameSize int64, pongWait time.Duration, handle func(Envelope)) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Connection lost", "handle", c.handle, "error", err)
			}
			return
		}
		var env Envelope
		if err = json.Unmarshal(data, &env); err != nil {
			log.Debug("Malformed frame ignored", "handle", c.handle, "error", err)
			continue
		}
		handle(env)
	}
}

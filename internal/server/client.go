package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/planbridge/internal/controller"
)

// client is one websocket connection. Only writeLoop writes to conn.
type client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// latest holds at most one pending view; a newer view replaces it.
	latest chan controller.View
	frames chan Frame
	done   chan struct{}
	once   sync.Once
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *client {
	return &client{
		conn:   conn,
		logger: logger,
		latest: make(chan controller.View, 1),
		frames: make(chan Frame, 16),
		done:   make(chan struct{}),
	}
}

// offer queues v without blocking. It runs on the session goroutine.
func (c *client) offer(v controller.View) {
	for {
		select {
		case c.latest <- v:
			return
		case <-c.done:
			return
		default:
		}
		select {
		case <-c.latest:
		default:
		}
	}
}

func (c *client) send(f Frame) {
	select {
	case c.frames <- f:
	case <-c.done:
	default:
		c.logger.Warn("websocket frame dropped", "type", f.Type)
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readLoop(handle func(Action)) {
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		var a Action
		if err := json.Unmarshal(raw, &a); err != nil {
			c.send(Frame{Type: "error", Error: "invalid JSON"})
			continue
		}
		handle(a)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()
	for {
		var err error
		select {
		case v := <-c.latest:
			err = c.write(Frame{Type: "view", View: &v})
		case f := <-c.frames:
			err = c.write(f)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		case <-c.done:
			return
		}
		if err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (c *client) write(f Frame) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}
